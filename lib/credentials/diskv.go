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
	"github.com/peterbourgon/diskv/v3"
)

// cacheSizeMaxBytes max memory cache
const cacheSizeMaxBytes = 1024

// DiskvStore persists the credential pair in a directory, one file per token.
type DiskvStore struct {
	// mu serializes writes so that both keys change together
	mu sync.Mutex
	dv *diskv.Diskv
}

// NewDiskvStore creates a store rooted at dir.
func NewDiskvStore(dir string) (*DiskvStore, error) {
	if dir == "" {
		return nil, trace.BadParameter("missing credentials storage dir")
	}

	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		FilePerm:     0600,
		PathPerm:     0700,
	})

	return &DiskvStore{dv: dv}, nil
}

// GetCredentials reads both tokens. Absent keys yield empty strings.
func (s *DiskvStore) GetCredentials(_ context.Context) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accessToken, err := s.read(AccessTokenKey)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	refreshToken, err := s.read(RefreshTokenKey)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &Credentials{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// PutCredentials writes both tokens. If the second write fails the first one
// is rolled back.
func (s *DiskvStore) PutCredentials(_ context.Context, creds *Credentials) error {
	if err := creds.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dv.Write(RefreshTokenKey, []byte(creds.RefreshToken)); err != nil {
		return trace.Wrap(err)
	}
	if err := s.dv.Write(AccessTokenKey, []byte(creds.AccessToken)); err != nil {
		return trace.NewAggregate(err, s.erase(RefreshTokenKey))
	}
	return nil
}

// DeleteCredentials erases both tokens.
func (s *DiskvStore) DeleteCredentials(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return trace.NewAggregate(s.erase(AccessTokenKey), s.erase(RefreshTokenKey))
}

func (s *DiskvStore) read(key string) (string, error) {
	if !s.dv.Has(key) {
		return "", nil
	}

	b, err := s.dv.Read(key)
	if err != nil {
		return "", trace.ConvertSystemError(err)
	}

	return string(b), nil
}

func (s *DiskvStore) erase(key string) error {
	if !s.dv.Has(key) {
		return nil
	}
	return trace.ConvertSystemError(s.dv.Erase(key))
}
