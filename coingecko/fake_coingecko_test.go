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

package coingecko

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"
)

const fakeBasePath = "/api/v3"

type FakeCoinGecko struct {
	srv *httptest.Server

	mu      sync.Mutex
	queries []url.Values
}

func NewFakeCoinGecko() *FakeCoinGecko {
	fake := &FakeCoinGecko{}
	router := httprouter.New()

	router.GET(fakeBasePath+"/coins/*path", func(rw http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fake.record(r)
		parts := strings.Split(strings.Trim(p.ByName("path"), "/"), "/")
		switch {
		case len(parts) == 1 && parts[0] == "list":
			writeJSON(rw, http.StatusOK, []map[string]string{
				{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin"},
				{"id": "ethereum", "symbol": "eth", "name": "Ethereum"},
			})
		case len(parts) == 1 && parts[0] == "markets":
			fake.markets(rw, r)
		case len(parts) == 1:
			if parts[0] != "bitcoin" {
				writeJSON(rw, http.StatusNotFound, map[string]string{"error": "coin not found"})
				return
			}
			writeRaw(rw, `{
				"id": "bitcoin", "symbol": "btc", "name": "Bitcoin",
				"categories": ["Cryptocurrency"],
				"description": {"en": "The first cryptocurrency."},
				"market_cap_rank": 1,
				"market_data": {
					"current_price": {"usd": 67000.12, "eur": 61000.5},
					"market_cap": {"usd": 1320000000000},
					"total_volume": {"usd": 25000000000},
					"price_change_percentage_24h": -1.25
				},
				"last_updated": "2026-10-17T12:00:00.000Z"
			}`)
		case len(parts) >= 2 && parts[1] == "market_chart":
			writeRaw(rw, `{
				"prices": [[1700000000000, 67000.12], [1700000060000, 67010.5]],
				"market_caps": [[1700000000000, 1320000000000]],
				"total_volumes": [[1700000000000, 25000000000]]
			}`)
		default:
			writeJSON(rw, http.StatusNotFound, map[string]string{"error": "unknown route"})
		}
	})
	router.GET(fakeBasePath+"/simple/price", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		fake.record(r)
		prices := map[string]map[string]float64{}
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			prices[id] = map[string]float64{}
			for _, currency := range strings.Split(r.URL.Query().Get("vs_currencies"), ",") {
				prices[id][currency] = 1.5
			}
		}
		writeJSON(rw, http.StatusOK, prices)
	})
	router.GET(fakeBasePath+"/simple/supported_vs_currencies", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		fake.record(r)
		writeJSON(rw, http.StatusOK, []string{"usd", "eur", "brl"})
	})
	router.GET(fakeBasePath+"/global", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		fake.record(r)
		writeRaw(rw, `{"data": {
			"active_cryptocurrencies": 12000,
			"markets": 900,
			"total_market_cap": {"usd": 2400000000000},
			"total_volume": {"usd": 90000000000},
			"market_cap_percentage": {"btc": 52.1, "eth": 16.9},
			"market_cap_change_percentage_24h_usd": 0.75,
			"updated_at": 1700000000
		}}`)
	})

	fake.srv = httptest.NewServer(router)
	return fake
}

// markets serves three pages of one market each.
func (fake *FakeCoinGecko) markets(rw http.ResponseWriter, r *http.Request) {
	const pages = 3
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	envelope := map[string]interface{}{
		"data": []map[string]interface{}{{
			"id":            "coin-" + strconv.Itoa(page),
			"symbol":        "c" + strconv.Itoa(page),
			"name":          "Coin " + strconv.Itoa(page),
			"current_price": 10.25 * float64(page),
			"market_cap":    1000 * page,
			"high_24h":      nil,
			"last_updated":  "2026-10-17T12:00:00.000Z",
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

func (fake *FakeCoinGecko) URL() string {
	return fake.srv.URL + fakeBasePath
}

func (fake *FakeCoinGecko) Close() {
	fake.srv.Close()
}

func (fake *FakeCoinGecko) LastQuery() url.Values {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.queries) == 0 {
		return nil
	}
	return fake.queries[len(fake.queries)-1]
}

func (fake *FakeCoinGecko) Requests() int {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return len(fake.queries)
}

func (fake *FakeCoinGecko) record(r *http.Request) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.queries = append(fake.queries, r.URL.Query())
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
