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
	"reflect"
	"strconv"

	"github.com/google/go-querystring/query"
	"github.com/gravitational/trace"
)

const (
	pageParam  = "page"
	takeParam  = "take"
	limitParam = "limit"
)

// PageQuery holds the pagination parameters. Embed it into resource queries.
type PageQuery struct {
	Page  int `url:"page,omitempty"`
	Take  int `url:"take,omitempty"`
	Limit int `url:"limit,omitempty"`
}

// encodeQuery converts a query struct into url.Values. A nil params value
// yields an empty set.
func encodeQuery(params interface{}) (url.Values, error) {
	if params == nil {
		return url.Values{}, nil
	}
	if v := reflect.ValueOf(params); v.Kind() == reflect.Ptr && v.IsNil() {
		return url.Values{}, nil
	}
	if values, ok := params.(url.Values); ok {
		return cloneValues(values), nil
	}
	values, err := query.Values(params)
	if err != nil {
		return nil, trace.Wrap(err, "encoding query")
	}
	return values, nil
}

// cursorKey identifies a paginated listing by resource and filters. Page and
// take do not change which listing is being walked.
func cursorKey(resource string, values url.Values) string {
	filters := cloneValues(values)
	filters.Del(pageParam)
	filters.Del(takeParam)
	if len(filters) == 0 {
		return resource
	}
	// Encode sorts by key so the result does not depend on field order.
	return resource + "?" + filters.Encode()
}

// requestedPage returns the page explicitly set by the caller, 0 if none.
func requestedPage(values url.Values) int {
	page, err := strconv.Atoi(values.Get(pageParam))
	if err != nil {
		return 0
	}
	return page
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	return out
}
