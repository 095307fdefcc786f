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
	"context"
	"net/http"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"

	"github.com/gravitational/coindash/lib/logger"
)

// RateLimitConfig configures RateLimitTransport.
type RateLimitConfig struct {
	// Tokens is the number of requests allowed per Interval and host. Zero
	// disables limiting.
	Tokens uint64
	// Interval is the refill interval.
	Interval time.Duration
	// Clock schedules the wait. The limiter store tracks its buckets on the
	// wall clock, so the wait itself is measured against time.Now.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *RateLimitConfig) CheckAndSetDefaults() error {
	if c.Tokens > 0 && c.Interval <= 0 {
		return trace.BadParameter("rate limit interval must be positive")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// minRateLimitWait keeps the transport from spinning when the bucket reset
// time is already due but the store has not refilled yet.
const minRateLimitWait = time.Millisecond

// RateLimitTransport delays outgoing requests exceeding the per host budget
// until the budget is refilled.
type RateLimitTransport struct {
	next  http.RoundTripper
	store limiter.Store
	clock clockwork.Clock
}

// NewRateLimitTransport wraps next. With zero tokens next is returned as is.
func NewRateLimitTransport(next http.RoundTripper, conf RateLimitConfig) (http.RoundTripper, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if conf.Tokens == 0 {
		return next, nil
	}

	store, err := memorystore.New(&memorystore.Config{
		Tokens:   conf.Tokens,
		Interval: conf.Interval,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &RateLimitTransport{next: next, store: store, clock: conf.Clock}, nil
}

// RoundTrip implements http.RoundTripper
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for {
		_, _, reset, ok, err := t.store.Take(ctx, req.URL.Host)
		if err != nil {
			closeBody(req)
			return nil, trace.Wrap(err)
		}
		if ok {
			return t.next.RoundTrip(req)
		}

		wait := time.Until(time.Unix(0, int64(reset)))
		if wait < minRateLimitWait {
			wait = minRateLimitWait
		}
		logger.Get(ctx).WithField("wait", wait).Debug("Rate limit reached, delaying request")
		select {
		case <-t.clock.After(wait):
		case <-ctx.Done():
			closeBody(req)
			return nil, trace.Wrap(ctx.Err())
		}
	}
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

// Close releases the limiter resources.
func (t *RateLimitTransport) Close(ctx context.Context) error {
	return trace.Wrap(t.store.Close(ctx))
}
