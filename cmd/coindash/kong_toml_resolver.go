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

package main

import (
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"
	"github.com/pelletier/go-toml"
)

// configSections are the TOML tables flags are looked up in. A flag named
// "api-base-url" resolves to "base_url" within the [api] table.
var configSections = []string{"api", "storage", "cache", "log"}

// KongTOMLResolver is the kong resolver function for toml configuration file
func KongTOMLResolver(r io.Reader) (kong.Resolver, error) {
	config, err := toml.LoadReader(r)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	// ResolverFunc reads configuration variables from the external source, TOML file in this case
	var f kong.ResolverFunc = func(context *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		name := flag.Name

		if key, ok := sectionKey(name); ok {
			if value := config.Get(key); value != nil {
				return value, nil
			}
		}

		return config.Get(name), nil
	}

	return f, nil
}

// sectionKey maps a flag name to its dotted key within a config section.
func sectionKey(name string) (string, bool) {
	for _, section := range configSections {
		prefix := section + "-"
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return section + "." + strings.ReplaceAll(name[len(prefix):], "-", "_"), true
		}
	}
	return "", false
}
