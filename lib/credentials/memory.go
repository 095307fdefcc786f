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

package credentials

import (
	"context"
	"sync"

	"github.com/gravitational/trace"
)

// MemoryStore keeps the credential pair in memory. Good enough for tests and
// one-shot commands.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryStore returns a store optionally seeded with the given pair.
func NewMemoryStore(initial *Credentials) *MemoryStore {
	store := &MemoryStore{}
	if initial != nil {
		store.creds = *initial
	}
	return store
}

func (m *MemoryStore) GetCredentials(_ context.Context) (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	creds := m.creds
	return &creds, nil
}

func (m *MemoryStore) PutCredentials(_ context.Context, creds *Credentials) error {
	if err := creds.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = *creds
	return nil
}

func (m *MemoryStore) DeleteCredentials(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
	return nil
}
