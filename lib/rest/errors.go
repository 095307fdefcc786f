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
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gravitational/trace"
	"github.com/tidwall/gjson"
)

// StatusError is returned for every non-2xx response. It wraps the trace error
// matching the status so trace.IsNotFound and friends work on it.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
	// Message is the server-provided message or the status text.
	Message string

	err error
}

// Error implements error
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %v: %v", e.Code, e.Message)
}

// OrigError returns the trace error matching the status code.
func (e *StatusError) OrigError() error {
	return e.err
}

// Unwrap returns the trace error matching the status code.
func (e *StatusError) Unwrap() error {
	return e.err
}

// newStatusError converts the response status and body into an error.
func newStatusError(code int, body []byte) *StatusError {
	message := errorMessage(body)
	if message == "" {
		message = http.StatusText(code)
	}

	var err error
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		err = &trace.AccessDeniedError{Message: message}
	case http.StatusNotFound:
		err = &trace.NotFoundError{Message: message}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		err = &trace.BadParameterError{Message: message}
	case http.StatusConflict:
		err = &trace.AlreadyExistsError{Message: message}
	case http.StatusTooManyRequests:
		err = &trace.LimitExceededError{Message: message}
	default:
		err = errors.New(message)
	}
	return &StatusError{Code: code, Message: message, err: err}
}

// errorMessage extracts the message from the common API error shapes.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, path := range []string{"message", "error.message", "error", "status.error_message"} {
		if res := gjson.GetBytes(body, path); res.Type == gjson.String && res.Str != "" {
			return res.Str
		}
	}
	return ""
}

// StatusCode returns the HTTP status code carried by the error or 0 when the
// error does not come from a response.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}
