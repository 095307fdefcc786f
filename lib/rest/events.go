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
	"bufio"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gravitational/trace"

	"github.com/gravitational/coindash/lib/logger"
)

const (
	eventStreamContentType = "text/event-stream"
	defaultEventType       = "message"
	maxEventLineSize       = 1 << 20
)

// Event is a single server-sent event.
type Event struct {
	ID    string
	Type  string
	Data  string
	Retry time.Duration
}

// EventSource reads server-sent events pushed by a resource.
type EventSource struct {
	body   io.ReadCloser
	events chan Event
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// NewEventSource opens an event stream on {baseURL}/{resource}. The request
// goes through the client transport, so an expired token is renewed as for
// any other request.
func (c *Client) NewEventSource(ctx context.Context, resource string) (*EventSource, error) {
	ctx, cancel := context.WithCancel(ctx)
	req := c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", eventStreamContentType).
		SetHeader("Cache-Control", "no-cache")
	resp, err := req.Execute(http.MethodGet, resourcePath(resource))
	if err != nil {
		cancel()
		return nil, c.fail(trace.Wrap(err))
	}

	// Response middleware does not run for unparsed responses.
	body := resp.RawBody()
	if resp.StatusCode() >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(body, maxEventLineSize))
		body.Close()
		cancel()
		return nil, c.fail(newStatusError(resp.StatusCode(), data))
	}

	es := &EventSource{
		body:   body,
		events: make(chan Event),
		cancel: cancel,
	}
	go es.run(ctx)
	return es, nil
}

// Events returns the channel of received events. It is closed when the stream
// ends, check Err afterwards.
func (es *EventSource) Events() <-chan Event {
	return es.events
}

// Err returns the error which terminated the stream, nil on a clean end or Close.
func (es *EventSource) Err() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.err
}

// Close stops reading the stream.
func (es *EventSource) Close() error {
	es.cancel()
	return trace.Wrap(es.body.Close())
}

func (es *EventSource) run(ctx context.Context) {
	defer close(es.events)
	log := logger.Get(ctx)

	err := parseEvents(es.body, func(evt Event) bool {
		select {
		case es.events <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	})
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Debug("Event stream terminated")
		es.mu.Lock()
		es.err = trace.Wrap(err)
		es.mu.Unlock()
	}
}

// parseEvents reads the text/event-stream format and calls emit for every
// dispatched event until the reader is exhausted or emit returns false.
func parseEvents(r io.Reader, emit func(Event) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxEventLineSize)

	var (
		evt     Event
		data    []string
		hasData bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if hasData {
				evt.Data = strings.Join(data, "\n")
				if evt.Type == "" {
					evt.Type = defaultEventType
				}
				if !emit(evt) {
					return nil
				}
			}
			// The id persists across events, everything else is per event.
			evt = Event{ID: evt.ID}
			data, hasData = nil, false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			evt.Type = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				evt.ID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				evt.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	return trace.Wrap(scanner.Err())
}
