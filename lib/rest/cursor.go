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

import "sync"

// Cursor remembers where a paginated listing is.
type Cursor struct {
	// CurrentPage is the page last returned by the server.
	CurrentPage int
	// NextPage is the page to fetch next, nil when the listing is exhausted.
	NextPage *int
}

// HasNext reports whether there is a page after the current one.
func (c Cursor) HasNext() bool {
	return c.NextPage != nil
}

// cursors is the cursor map keyed by resource and filters. Reads and writes
// are individually atomic, concurrent fetches of the same listing are
// last-writer-wins.
type cursors struct {
	mu sync.Mutex
	m  map[string]Cursor
}

func newCursors() *cursors {
	return &cursors{m: make(map[string]Cursor)}
}

// getOrCreate returns the cursor for the key, creating one at page 1.
func (c *cursors) getOrCreate(key string) Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.m[key]
	if !ok {
		cur = Cursor{CurrentPage: 1}
		c.m[key] = cur
	}
	return cur
}

func (c *cursors) get(key string) (Cursor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.m[key]
	return cur, ok
}

func (c *cursors) set(key string, cur Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = cur
}

func (c *cursors) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]Cursor)
}
