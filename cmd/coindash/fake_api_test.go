/*
Copyright 2026 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

const fakeBasePath = "/api/v3"

// FakeAPI serves the market data resources, the session endpoints and an
// event stream. Market data requires the current access token once a user
// has logged in.
type FakeAPI struct {
	srv *httptest.Server

	mu            sync.Mutex
	accessToken   string
	refreshToken  string
	generation    int
	failing       bool
	requests      map[string]int
	refreshes     int
	streamConns   int
	streamUntil   int
	tokenLifetime time.Duration
}

func NewFakeAPI() *FakeAPI {
	fake := &FakeAPI{
		requests:      make(map[string]int),
		streamUntil:   2,
		tokenLifetime: time.Hour,
	}
	router := httprouter.New()

	router.POST(fakeBasePath+"/v1/user/login", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if body.Email != "alice@example.com" || body.Password != "secret" {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"message": "invalid email or password"})
			return
		}
		writeJSON(rw, http.StatusOK, fake.issue())
	})
	router.POST(fakeBasePath+"/v1/user/refresh", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		fake.mu.Lock()
		valid := fake.refreshToken != "" && r.Header.Get("Authorization") == "Bearer "+fake.refreshToken
		fake.refreshes++
		fake.mu.Unlock()
		if !valid {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"message": "invalid refresh token"})
			return
		}
		writeJSON(rw, http.StatusOK, fake.issue())
	})

	router.GET(fakeBasePath+"/coins/*path", fake.guard(func(rw http.ResponseWriter, r *http.Request, p httprouter.Params) {
		parts := strings.Split(strings.Trim(p.ByName("path"), "/"), "/")
		switch {
		case len(parts) == 1 && parts[0] == "list":
			writeJSON(rw, http.StatusOK, []map[string]string{
				{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin"},
				{"id": "ethereum", "symbol": "eth", "name": "Ethereum"},
				{"id": "wrapped-bitcoin", "symbol": "wbtc", "name": "Wrapped Bitcoin"},
			})
		case len(parts) == 1 && parts[0] == "markets":
			fake.markets(rw, r)
		case parts[0] != "bitcoin":
			writeJSON(rw, http.StatusNotFound, map[string]string{"error": "coin not found"})
		case len(parts) == 1:
			writeRaw(rw, `{
				"id": "bitcoin", "symbol": "btc", "name": "Bitcoin",
				"categories": ["Cryptocurrency"],
				"market_cap_rank": 1,
				"market_data": {
					"current_price": {"usd": 67000.12},
					"market_cap": {"usd": 1320000000000},
					"total_volume": {"usd": 25000000000},
					"price_change_percentage_24h": -1.25
				},
				"last_updated": "2026-10-17T12:00:00.000Z"
			}`)
		case len(parts) == 3 && parts[1] == "market_chart" && parts[2] == "range":
			writeRaw(rw, `{
				"prices": [[1700000000000, 60000], [1700086400000, 61000], [1700172800000, 62500.5]],
				"market_caps": [], "total_volumes": []
			}`)
		case len(parts) == 2 && parts[1] == "market_chart":
			writeRaw(rw, `{
				"prices": [[1700000000000, 100], [1700000060000, 110]],
				"market_caps": [[1700000000000, 1320000000000]],
				"total_volumes": [[1700000000000, 25000000000]]
			}`)
		default:
			writeJSON(rw, http.StatusNotFound, map[string]string{"error": "unknown route"})
		}
	}))
	router.GET(fakeBasePath+"/simple/price", fake.guard(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		prices := map[string]map[string]float64{}
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			prices[id] = map[string]float64{}
			for _, currency := range strings.Split(r.URL.Query().Get("vs_currencies"), ",") {
				prices[id][currency] = 2.5
			}
		}
		writeJSON(rw, http.StatusOK, prices)
	}))
	router.GET(fakeBasePath+"/simple/supported_vs_currencies", fake.guard(func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(rw, http.StatusOK, []string{"usd", "eur", "brl"})
	}))
	router.GET(fakeBasePath+"/ticker", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		fake.mu.Lock()
		fake.streamConns++
		conn, until := fake.streamConns, fake.streamUntil
		fake.mu.Unlock()
		if conn > until {
			writeJSON(rw, http.StatusNotFound, map[string]string{"message": "stream closed"})
			return
		}
		rw.Header().Set("Content-Type", "text/event-stream")
		rw.WriteHeader(http.StatusOK)
		fmt.Fprintf(rw, ": keepalive\nretry: 10\nevent: tick\ndata: tick %v\n\n", conn)
	})

	fake.srv = httptest.NewServer(router)
	return fake
}

// guard counts requests and rejects stale access tokens.
func (fake *FakeAPI) guard(next httprouter.Handle) httprouter.Handle {
	return func(rw http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fake.mu.Lock()
		fake.requests[r.URL.Path]++
		failing := fake.failing
		token := fake.accessToken
		fake.mu.Unlock()

		if failing {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		next(rw, r, p)
	}
}

// issue rotates the token pair.
func (fake *FakeAPI) issue() map[string]string {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.generation++
	claims := jwt.MapClaims{
		"sub": "alice@example.com",
		"gen": fake.generation,
		"exp": time.Now().Add(fake.tokenLifetime).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("fake-api"))
	if err != nil {
		panic(err)
	}
	fake.accessToken = token
	fake.refreshToken = "refresh-" + strconv.Itoa(fake.generation)
	return map[string]string{"accessToken": fake.accessToken, "refreshToken": fake.refreshToken}
}

// markets serves three pages of one market each.
func (fake *FakeAPI) markets(rw http.ResponseWriter, r *http.Request) {
	const pages = 3
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	envelope := map[string]interface{}{
		"data": []map[string]interface{}{{
			"id":              "coin-" + strconv.Itoa(page),
			"symbol":          "c" + strconv.Itoa(page),
			"name":            "Coin " + strconv.Itoa(page),
			"current_price":   10.25 * float64(page),
			"market_cap":      1000 * page,
			"market_cap_rank": page,
			"total_volume":    10 * page,
		}},
		"total": pages,
		"page":  page,
		"limit": 1,
	}
	if page < pages {
		envelope["nextPage"] = page + 1
	}
	writeJSON(rw, http.StatusOK, envelope)
}

func (fake *FakeAPI) URL() string {
	return fake.srv.URL + fakeBasePath
}

func (fake *FakeAPI) Close() {
	fake.srv.Close()
}

// Expire invalidates the access token, the refresh token stays valid.
func (fake *FakeAPI) Expire() {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.accessToken = "rotated-" + strconv.Itoa(fake.generation)
}

func (fake *FakeAPI) SetFailing(failing bool) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.failing = failing
}

func (fake *FakeAPI) Requests(path string) int {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.requests[fakeBasePath+path]
}

func (fake *FakeAPI) Refreshes() int {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.refreshes
}

func (fake *FakeAPI) StreamConnections() int {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.streamConns
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		panic(err)
	}
}

func writeRaw(rw http.ResponseWriter, body string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte(body))
}
