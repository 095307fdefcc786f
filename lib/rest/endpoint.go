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
	"net/url"
	"path"
	"strings"
)

// Endpoint is the target of Execute: either a resource under the base URL or
// an absolute URL used verbatim.
type Endpoint struct {
	resource string
	absolute string
}

// Resource targets {baseURL}/{name}.
func Resource(name string) Endpoint {
	return Endpoint{resource: name}
}

// Absolute targets the URL as is, bypassing the base URL.
func Absolute(rawURL string) Endpoint {
	return Endpoint{absolute: rawURL}
}

// IsAbsolute reports whether the endpoint bypasses the base URL.
func (e Endpoint) IsAbsolute() bool {
	return e.absolute != ""
}

// String returns the request URL, relative to the base URL unless absolute.
func (e Endpoint) String() string {
	if e.absolute != "" {
		return e.absolute
	}
	return resourcePath(e.resource)
}

// resourcePath builds the request path from a resource name, which may contain
// slashes, and optional path-escaped identifiers.
func resourcePath(resource string, ids ...string) string {
	segments := strings.Split(strings.Trim(resource, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	for _, id := range ids {
		segments = append(segments, url.PathEscape(id))
	}
	return "/" + path.Join(segments...)
}
