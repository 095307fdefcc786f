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

import "context"

// List fetches a listing of T.
func List[T any](ctx context.Context, c *Client, resource string, params interface{}) ([]T, error) {
	var items []T
	if err := c.GetAll(ctx, resource, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Page fetches one page of a paginated listing of T.
func Page[T any](ctx context.Context, c *Client, resource string, params interface{}) ([]T, error) {
	var items []T
	if err := c.GetAllPaginated(ctx, resource, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// NextPage fetches the next page of a paginated listing of T. The boolean is
// false when there is no next page.
func NextPage[T any](ctx context.Context, c *Client, resource string, params interface{}) ([]T, bool, error) {
	items := []T{}
	ok, err := c.GetNextPage(ctx, resource, params, &items)
	if err != nil {
		return nil, false, err
	}
	return items, ok, nil
}

// Get fetches a single T by id.
func Get[T any](ctx context.Context, c *Client, resource, id string) (*T, error) {
	var item T
	if err := c.GetOne(ctx, resource, id, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
