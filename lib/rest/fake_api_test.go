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

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/julienschmidt/httprouter"
)

const fakeBasePath = "/api/v3"

type fakeItem struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

func (i *fakeItem) ResourceID() string {
	return i.ID
}

type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	Body          string
	Authorization string
	Accept        string
}

type FakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	// pages holds the number of pages of the items listing per category.
	pages map[string]int
	// events is written as is by the stream endpoint.
	events string
}

func NewFakeAPI() *FakeAPI {
	api := &FakeAPI{pages: map[string]int{"": 2}}
	router := httprouter.New()

	router.GET(fakeBasePath+"/items", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		api.record(r, "")
		category := r.URL.Query().Get("category")
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		api.mu.Lock()
		pages := api.pages[category]
		api.mu.Unlock()

		envelope := map[string]interface{}{
			"data": []fakeItem{
				{ID: fmt.Sprintf("%v-%v-a", category, page), Name: "a", Category: category},
				{ID: fmt.Sprintf("%v-%v-b", category, page), Name: "b", Category: category},
			},
			"total": pages * 2,
			"page":  page,
			"limit": r.URL.Query().Get("limit"),
		}
		if page < pages {
			envelope["nextPage"] = page + 1
		}
		writeJSON(rw, http.StatusOK, envelope)
	})
	router.GET(fakeBasePath+"/broken", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		api.record(r, "")
		writeJSON(rw, http.StatusOK, map[string]interface{}{"items": []string{}, "page": 1})
	})
	router.GET(fakeBasePath+"/coins/list", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		api.record(r, "")
		writeJSON(rw, http.StatusOK, []fakeItem{{ID: "bitcoin", Name: "Bitcoin"}, {ID: "ethereum", Name: "Ethereum"}})
	})
	router.GET(fakeBasePath+"/items/:id", func(rw http.ResponseWriter, r *http.Request, p httprouter.Params) {
		api.record(r, "")
		if p.ByName("id") == "missing" {
			writeJSON(rw, http.StatusNotFound, map[string]string{"message": "item not found"})
			return
		}
		writeJSON(rw, http.StatusOK, fakeItem{ID: p.ByName("id"), Name: "found"})
	})
	router.GET(fakeBasePath+"/blob", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		api.record(r, "")
		rw.Header().Set("Content-Type", "image/png")
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	router.GET(fakeBasePath+"/status/:code", func(rw http.ResponseWriter, r *http.Request, p httprouter.Params) {
		api.record(r, "")
		code, _ := strconv.Atoi(p.ByName("code"))
		writeJSON(rw, code, map[string]string{"message": fmt.Sprintf("status %v", code)})
	})
	router.GET(fakeBasePath+"/stream", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		api.record(r, "")
		api.mu.Lock()
		events := api.events
		api.mu.Unlock()
		rw.Header().Set("Content-Type", "text/event-stream")
		rw.WriteHeader(http.StatusOK)
		io.WriteString(rw, events)
	})

	echo := func(status int) httprouter.Handle {
		return func(rw http.ResponseWriter, r *http.Request, p httprouter.Params) {
			body, _ := io.ReadAll(r.Body)
			api.record(r, string(body))
			var item fakeItem
			if len(body) > 0 {
				if err := json.Unmarshal(body, &item); err != nil {
					writeJSON(rw, http.StatusBadRequest, map[string]string{"message": err.Error()})
					return
				}
			}
			if id := p.ByName("id"); id != "" {
				item.ID = id
			} else if item.ID == "" {
				item.ID = "generated"
			}
			writeJSON(rw, status, item)
		}
	}
	router.POST(fakeBasePath+"/items", echo(http.StatusCreated))
	router.PUT(fakeBasePath+"/items/:id", echo(http.StatusOK))
	router.PATCH(fakeBasePath+"/items", echo(http.StatusOK))
	router.POST(fakeBasePath+"/actions/run", echo(http.StatusOK))
	router.POST("/elsewhere/hook", echo(http.StatusOK))

	noContent := func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		body, _ := io.ReadAll(r.Body)
		api.record(r, string(body))
		rw.WriteHeader(http.StatusNoContent)
	}
	router.DELETE(fakeBasePath+"/items/:id", noContent)
	router.DELETE(fakeBasePath+"/items", noContent)

	router.POST(fakeBasePath+"/v1/user/login", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		api.record(r, "")
		var login LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&login); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		switch {
		case login.Email == "alice@example.com" && login.Password == "secret":
			writeJSON(rw, http.StatusOK, map[string]string{"accessToken": "access-0", "refreshToken": "refresh-0"})
		case login.Email == "partial@example.com":
			writeJSON(rw, http.StatusOK, map[string]string{"accessToken": "access-0"})
		default:
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		}
	})

	api.srv = httptest.NewServer(router)
	return api
}

func (api *FakeAPI) URL() string {
	return api.srv.URL + fakeBasePath
}

func (api *FakeAPI) Close() {
	api.srv.Close()
}

func (api *FakeAPI) SetPages(category string, pages int) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.pages[category] = pages
}

func (api *FakeAPI) SetEvents(events string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.events = events
}

func (api *FakeAPI) Requests() []recordedRequest {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]recordedRequest(nil), api.requests...)
}

func (api *FakeAPI) LastRequest() recordedRequest {
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.requests) == 0 {
		return recordedRequest{}
	}
	return api.requests[len(api.requests)-1]
}

func (api *FakeAPI) record(r *http.Request, body string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.requests = append(api.requests, recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Body:          body,
		Authorization: r.Header.Get("Authorization"),
		Accept:        r.Header.Get("Accept"),
	})
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		panic(err)
	}
}
