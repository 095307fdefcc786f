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
	"errors"
	"strings"

	"github.com/gravitational/trace"
	"github.com/manifoldco/promptui"
)

// ask displays a prompt for a required value
func ask(label string, secret bool) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}
	if secret {
		prompt.Mask = '*'
	}

	result, err := prompt.Run()
	if err != nil {
		return "", trace.Wrap(err)
	}

	return strings.TrimSpace(result), nil
}

// yesNo displays Y/N prompt
func yesNo(message string) bool {
	prompt := promptui.Prompt{
		Label:     message,
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		return false
	}

	return strings.EqualFold(result, "y")
}
