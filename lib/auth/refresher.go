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
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"

	"github.com/gravitational/coindash/lib/credentials"
)

const (
	// LoginPath is the endpoint exchanging user credentials for a token pair.
	LoginPath = "/v1/user/login"
	// ElevatePath is the privilege elevation endpoint.
	ElevatePath = "/v1/elevate"
	// RefreshPath is the endpoint exchanging a refresh token for a new pair.
	RefreshPath = "/v1/user/refresh"

	refreshHTTPTimeout = 10 * time.Second
)

// Refresher exchanges a refresh token for a new credential pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*credentials.Credentials, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context, refreshToken string) (*credentials.Credentials, error)

// Refresh implements Refresher
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (*credentials.Credentials, error) {
	return f(ctx, refreshToken)
}

// HTTPRefresher calls the refresh endpoint of the API.
// The refresh token travels as a bearer credential, the response carries
// `accessToken` and `refreshToken`.
type HTTPRefresher struct {
	client *resty.Client
}

// NewHTTPRefresher returns a refresher talking to baseURL. The transport must
// not be the refreshing Transport itself, a nil one means http.DefaultTransport.
func NewHTTPRefresher(baseURL string, transport http.RoundTripper) *HTTPRefresher {
	if transport == nil {
		transport = http.DefaultTransport
	}
	client := resty.NewWithClient(&http.Client{
		Timeout:   refreshHTTPTimeout,
		Transport: transport,
	}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBaseURL(baseURL)

	return &HTTPRefresher{client: client}
}

// Refresh implements Refresher
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*credentials.Credentials, error) {
	if refreshToken == "" {
		return nil, trace.BadParameter("missing refresh token")
	}

	var result credentials.Credentials
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(refreshToken).
		SetResult(&result).
		Post(RefreshPath)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if resp.IsError() {
		return nil, trace.AccessDenied("token refresh rejected with HTTP %v", resp.StatusCode())
	}
	if err := result.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err, "malformed refresh response")
	}

	return &result, nil
}

var _ Refresher = &HTTPRefresher{}
