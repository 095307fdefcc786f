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

package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/julienschmidt/httprouter"
)

const fakeBasePath = "/api/v3"

type FakeAPI struct {
	srv *httptest.Server

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	generation   int

	// refreshStatus, when set, is returned by the refresh endpoint instead of a new pair.
	refreshStatus int
	// release, when set, blocks the refresh endpoint until closed.
	release chan struct{}

	refreshCalls  int32
	rejected      int32
	authenticated int32
}

func NewFakeAPI(accessToken, refreshToken string) *FakeAPI {
	router := httprouter.New()
	api := &FakeAPI{
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}

	router.GET(fakeBasePath+"/protected", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !api.authorized(r) {
			atomic.AddInt32(&api.rejected, 1)
			http.Error(rw, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		atomic.AddInt32(&api.authenticated, 1)
		writeJSON(rw, http.StatusOK, map[string]string{"token": bearer(r)})
	})
	router.POST(fakeBasePath+"/echo", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !api.authorized(r) {
			atomic.AddInt32(&api.rejected, 1)
			http.Error(rw, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		rw.Write(body)
	})
	router.POST(fakeBasePath+"/v1/user/login", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		atomic.AddInt32(&api.rejected, 1)
		http.Error(rw, `{"message":"bad credentials"}`, http.StatusUnauthorized)
	})
	router.POST(fakeBasePath+"/v1/elevate", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		atomic.AddInt32(&api.rejected, 1)
		http.Error(rw, `{"message":"not allowed"}`, http.StatusUnauthorized)
	})
	router.POST(fakeBasePath+"/v1/user/refresh", func(rw http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		atomic.AddInt32(&api.refreshCalls, 1)

		api.mu.Lock()
		release := api.release
		api.mu.Unlock()
		if release != nil {
			<-release
		}

		api.mu.Lock()
		defer api.mu.Unlock()
		if api.refreshStatus != 0 {
			http.Error(rw, `{"message":"refresh failed"}`, api.refreshStatus)
			return
		}
		if bearer(r) != api.refreshToken {
			http.Error(rw, `{"message":"bad refresh token"}`, http.StatusUnauthorized)
			return
		}
		api.generation++
		api.accessToken = fmt.Sprintf("access-%v", api.generation)
		api.refreshToken = fmt.Sprintf("refresh-%v", api.generation)
		writeJSON(rw, http.StatusOK, map[string]string{
			"accessToken":  api.accessToken,
			"refreshToken": api.refreshToken,
		})
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

// Hold makes the refresh endpoint block until the returned function is called.
func (api *FakeAPI) Hold() func() {
	ch := make(chan struct{})
	api.mu.Lock()
	api.release = ch
	api.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (api *FakeAPI) FailRefresh(status int) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.refreshStatus = status
}

func (api *FakeAPI) RefreshCalls() int {
	return int(atomic.LoadInt32(&api.refreshCalls))
}

func (api *FakeAPI) Rejected() int {
	return int(atomic.LoadInt32(&api.rejected))
}

func (api *FakeAPI) Authenticated() int {
	return int(atomic.LoadInt32(&api.authenticated))
}

func (api *FakeAPI) authorized(r *http.Request) bool {
	api.mu.Lock()
	defer api.mu.Unlock()
	return bearer(r) == api.accessToken
}

func bearer(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) {
		return ""
	}
	return header[len(prefix):]
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		panic(err)
	}
}
