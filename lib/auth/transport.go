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
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/gravitational/coindash/lib/logger"
)

// RequestIDHeader carries the request id used to correlate log records.
const RequestIDHeader = "X-Request-Id"

// Option configures a Transport.
type Option func(*Transport)

// WithBaseTransport sets the transport performing the actual requests.
func WithBaseTransport(next http.RoundTripper) Option {
	return func(t *Transport) {
		t.next = next
	}
}

// WithBaseURL sets the API base URL. Excluded paths are matched relative to it.
func WithBaseURL(baseURL string) Option {
	return func(t *Transport) {
		t.baseURL = baseURL
	}
}

// WithExcludedPaths replaces the set of paths never triggering a refresh.
func WithExcludedPaths(paths ...string) Option {
	return func(t *Transport) {
		t.excluded = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			t.excluded[p] = struct{}{}
		}
	}
}

// Transport is an http.RoundTripper attaching the session access token to
// every request. A request rejected with 401 waits for the session to renew the
// token and is replayed exactly once.
type Transport struct {
	session  *Session
	next     http.RoundTripper
	baseURL  string
	basePath string
	excluded map[string]struct{}
}

// NewTransport creates a Transport for the session.
func NewTransport(session *Session, options ...Option) (*Transport, error) {
	if session == nil {
		return nil, trace.BadParameter("missing session")
	}
	t := &Transport{
		session: session,
		next:    http.DefaultTransport,
	}
	WithExcludedPaths(LoginPath, ElevatePath)(t)

	for _, opt := range options {
		opt(t)
	}

	if t.baseURL != "" {
		u, err := url.Parse(t.baseURL)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		t.basePath = strings.TrimSuffix(u.Path, "/")
	}

	return t, nil
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := drainBody(req)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx, log := logger.WithFields(req.Context(), logger.Fields{
		"request_id": requestID,
		"path":       req.URL.Path,
	})

	token := t.session.AccessToken(ctx)
	resp, err := t.next.RoundTrip(withBody(req, body, requestID, token))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || t.isExcluded(req.URL) {
		return resp, nil
	}

	log.Debug("Request rejected with 401, renewing access token")
	fresh, err := t.session.Refresh(ctx, token)
	if IsNoRefreshToken(err) {
		// Nothing to renew, the caller sees the original rejection.
		return resp, nil
	}
	resp.Body.Close()
	if err != nil {
		return nil, trace.Wrap(err)
	}

	log.Debug("Replaying request with renewed access token")
	return t.next.RoundTrip(withBody(req, body, requestID, fresh))
}

func (t *Transport) isExcluded(u *url.URL) bool {
	p := strings.TrimPrefix(u.Path, t.basePath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	_, ok := t.excluded[p]
	return ok
}

// drainBody reads and closes the request body so it can be replayed.
func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// withBody clones the request with a fresh copy of the body and the
// authorization header set to the token, if any.
func withBody(req *http.Request, body []byte, requestID, token string) *http.Request {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}
	out.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out
}
