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
	"errors"
	"sync"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/gravitational/coindash/lib/credentials"
	"github.com/gravitational/coindash/lib/logger"
)

// DefaultLoginRoute is where the user is sent when the session cannot be renewed.
const DefaultLoginRoute = "/login"

// ErrNoRefreshToken is returned when a refresh is required but no complete
// credential pair is stored.
var ErrNoRefreshToken = &trace.AccessDeniedError{Message: "no refresh token available, login required"}

// IsNoRefreshToken checks whether the error is caused by missing credentials.
func IsNoRefreshToken(err error) bool {
	return errors.Is(trace.Unwrap(err), ErrNoRefreshToken)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Store persists the credential pair.
	Store credentials.Store
	// Refresher exchanges a refresh token for a new pair.
	Refresher Refresher
	// Navigator is notified when the user must log in again. Optional.
	Navigator Navigator
	// LoginRoute is passed to the Navigator.
	LoginRoute string
	// OnTokenRefreshed is called with the new access token after every
	// successful refresh, and with an empty string when the session is cleared.
	OnTokenRefreshed func(accessToken string)
	// Log is the session logger.
	Log logrus.FieldLogger
}

// CheckAndSetDefaults validates the config and sets defaults.
func (c *SessionConfig) CheckAndSetDefaults() error {
	if c.Store == nil {
		return trace.BadParameter("missing credentials store")
	}
	if c.Refresher == nil {
		return trace.BadParameter("missing refresher")
	}
	if c.LoginRoute == "" {
		c.LoginRoute = DefaultLoginRoute
	}
	if c.Log == nil {
		c.Log = logger.Standard()
	}
	return nil
}

type refreshResult struct {
	accessToken string
	err         error
}

// Session owns the credential pair and coordinates token refreshes: at most one
// refresh call is in flight at any time, every other caller waiting for a new
// token is queued and settled by the outcome of that call.
type Session struct {
	SessionConfig

	mu         sync.Mutex // protects the below fields
	refreshing bool
	queue      []chan refreshResult
}

// NewSession creates a Session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Session{SessionConfig: cfg}, nil
}

// AccessToken returns the stored access token or an empty string.
func (s *Session) AccessToken(ctx context.Context) string {
	creds, err := s.Store.GetCredentials(ctx)
	if err != nil {
		logger.Get(ctx).WithError(err).Warn("Failed to read stored credentials")
		return ""
	}
	return creds.AccessToken
}

// Credentials returns the stored credential pair, possibly partial.
func (s *Session) Credentials(ctx context.Context) (*credentials.Credentials, error) {
	creds, err := s.Store.GetCredentials(ctx)
	return creds, trace.Wrap(err)
}

// SetCredentials persists a new credential pair.
func (s *Session) SetCredentials(ctx context.Context, creds *credentials.Credentials) error {
	return trace.Wrap(s.Store.PutCredentials(ctx, creds))
}

// Clear removes the stored credential pair.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.Store.DeleteCredentials(ctx); err != nil {
		return trace.Wrap(err)
	}
	s.notifyToken("")
	return nil
}

// IsRefreshing reports whether a refresh call is in flight.
func (s *Session) IsRefreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// Refresh returns a fresh access token for a request rejected with the
// given token. The first caller performs the refresh, callers arriving while it
// is in flight wait for its outcome. A caller whose token has already been
// replaced gets the current token without a refresh call.
func (s *Session) Refresh(ctx context.Context, rejectedToken string) (string, error) {
	log := logger.Get(ctx)

	s.mu.Lock()
	if s.refreshing {
		wait := make(chan refreshResult, 1)
		s.queue = append(s.queue, wait)
		queued := len(s.queue)
		s.mu.Unlock()

		log.WithField("queued", queued).Debug("Refresh in progress, waiting for its outcome")
		select {
		case res := <-wait:
			return res.accessToken, trace.Wrap(res.err)
		case <-ctx.Done():
			return "", trace.Wrap(ctx.Err())
		}
	}

	creds, err := s.Store.GetCredentials(ctx)
	if err != nil {
		s.mu.Unlock()
		return "", trace.Wrap(err)
	}
	if creds.AccessToken != "" && creds.AccessToken != rejectedToken {
		s.mu.Unlock()
		log.Debug("Access token was renewed concurrently, skipping refresh")
		return creds.AccessToken, nil
	}
	s.refreshing = true
	s.mu.Unlock()

	// The refresh settles every queued caller, it must outlive the initiator.
	accessToken, err := s.refresh(context.WithoutCancel(ctx), creds)

	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.refreshing = false
	s.mu.Unlock()

	log.WithField("queued", len(queue)).Debug("Settling queued requests")
	for _, wait := range queue {
		wait <- refreshResult{accessToken: accessToken, err: err}
	}

	return accessToken, trace.Wrap(err)
}

func (s *Session) refresh(ctx context.Context, creds *credentials.Credentials) (string, error) {
	log := logger.Get(ctx)

	if !creds.IsComplete() {
		log.Warn("No refresh token stored, login required")
		s.logout(ctx)
		return "", ErrNoRefreshToken
	}

	log.Debug("Refreshing access token")
	fresh, err := s.Refresher.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		log.WithError(err).Error("Failed to refresh access token")
		s.logout(ctx)
		return "", trace.Wrap(err)
	}

	if err := s.Store.PutCredentials(ctx, fresh); err != nil {
		log.WithError(err).Error("Failed to store refreshed credentials")
		s.logout(ctx)
		return "", trace.Wrap(err)
	}
	s.notifyToken(fresh.AccessToken)

	log.Debug("Access token refreshed")
	return fresh.AccessToken, nil
}

// logout clears the stored credentials and sends the user to the login route.
func (s *Session) logout(ctx context.Context) {
	log := logger.Get(ctx)

	if err := s.Clear(ctx); err != nil {
		log.WithError(err).Error("Failed to clear stored credentials")
	}

	if s.Navigator == nil {
		return
	}
	if err := s.Navigator.Navigate(ctx, s.LoginRoute); err != nil {
		log.WithError(err).WithField("route", s.LoginRoute).Error("Failed to navigate")
	}
}

func (s *Session) notifyToken(accessToken string) {
	if s.OnTokenRefreshed != nil {
		s.OnTokenRefreshed(accessToken)
	}
}
