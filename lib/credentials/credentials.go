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
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gravitational/trace"
)

const (
	// AccessTokenKey is the storage key of the access token.
	AccessTokenKey = "authToken"
	// RefreshTokenKey is the storage key of the refresh token.
	RefreshTokenKey = "refreshToken"
)

// Credentials represents the API credential pair.
type Credentials struct {
	// AccessToken is the Bearer token used to access the API.
	AccessToken string `json:"accessToken"`
	// RefreshToken is used to acquire a new access token.
	RefreshToken string `json:"refreshToken"`
}

// IsComplete reports whether both tokens are present. A partial pair is
// treated as if no credentials were stored.
func (c *Credentials) IsComplete() bool {
	return c != nil && c.AccessToken != "" && c.RefreshToken != ""
}

// CheckAndSetDefaults makes sure both tokens are set.
func (c *Credentials) CheckAndSetDefaults() error {
	if c == nil {
		return trace.BadParameter("missing credentials")
	}
	if c.AccessToken == "" {
		return trace.BadParameter("missing access token")
	}
	if c.RefreshToken == "" {
		return trace.BadParameter("missing refresh token")
	}
	return nil
}

// ExpiresAt returns the expiration time of the access token when it is a JWT
// carrying an `exp` claim. The signature is not verified. Zero time is returned
// for opaque tokens.
func (c *Credentials) ExpiresAt() time.Time {
	if c == nil || c.AccessToken == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Store persists the credential pair. Implementations must write and clear
// both tokens together.
type Store interface {
	// GetCredentials returns whatever is stored, possibly a partial pair.
	// Missing tokens are returned as empty strings, not as an error.
	GetCredentials(context.Context) (*Credentials, error)
	// PutCredentials stores both tokens.
	PutCredentials(context.Context, *Credentials) error
	// DeleteCredentials removes both tokens.
	DeleteCredentials(context.Context) error
}
