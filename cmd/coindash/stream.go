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
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/coindash/lib/backoff"
	"github.com/gravitational/coindash/lib/logger"
	"github.com/gravitational/coindash/lib/rest"
)

const defaultStreamRetry = 3 * time.Second

// StreamCmd prints server-sent events of a resource
type StreamCmd struct {
	Resource   string        `arg:"true" help:"Resource path relative to the API base URL" required:"true"`
	Reconnect  bool          `help:"Reconnect when the stream ends"`
	MaxBackoff time.Duration `help:"Maximum delay between reconnects" default:"30s"`
}

func (c *StreamCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	s := &streamer{
		api:        app.api,
		out:        app.out,
		clock:      app.clock,
		reconnect:  c.Reconnect,
		maxBackoff: c.MaxBackoff,
	}
	return trace.Wrap(s.Run(app.ctx, c.Resource))
}

type streamer struct {
	api        *rest.Client
	out        io.Writer
	clock      clockwork.Clock
	reconnect  bool
	maxBackoff time.Duration
}

// Run prints events until the stream ends or, when reconnecting, until the
// context is done or the server refuses the stream.
func (s *streamer) Run(ctx context.Context, resource string) error {
	log := logger.Get(ctx).WithField("resource", resource)
	retry := defaultStreamRetry

	for {
		err := s.consume(ctx, resource, &retry)
		if ctx.Err() != nil {
			return nil
		}
		if !s.reconnect || !retriable(err) {
			return trace.Wrap(err)
		}

		log.WithError(err).WithField("retry", retry).Info("Event stream ended, reconnecting")
		// A fresh sequence per drop keeps the server hint as the base delay.
		if err := backoff.NewDecorr(retry, s.maxBackoff, s.clock).Do(ctx); err != nil {
			return nil
		}
	}
}

func (s *streamer) consume(ctx context.Context, resource string, retry *time.Duration) error {
	es, err := s.api.NewEventSource(ctx, resource)
	if err != nil {
		return trace.Wrap(err)
	}
	defer es.Close()

	for evt := range es.Events() {
		if evt.Retry > 0 {
			*retry = evt.Retry
		}
		if _, err := fmt.Fprintf(s.out, "[%v] %v: %v\n", formatTime(s.clock.Now()), evt.Type, evt.Data); err != nil {
			return trace.Wrap(err)
		}
	}
	return trace.Wrap(es.Err())
}

// retriable reports whether a stream failure may go away on reconnect.
func retriable(err error) bool {
	code := rest.StatusCode(err)
	switch {
	case code == 0:
		return true
	case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}
