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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"

	"github.com/gravitational/coindash/lib/logger"
)

const (
	appName        = "coindash"
	appDescription = "Crypto market dashboard in the terminal"
)

// Set with -ldflags at build time.
var (
	Version = "dev"
	Sha     = ""
)

var cli CLI

func main() {
	logger.Init()

	kctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Configuration(KongTOMLResolver),
		kong.Name(appName),
		kong.Description(appDescription),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := NewApp(ctx, &cli, os.Stdout)

	// See respective commands Run() methods
	err := kctx.Run(app)
	if closeErr := app.Close(); err == nil {
		err = closeErr
	}
	cancel()

	if cli.Debug {
		fmt.Printf("%v\n", trace.DebugReport(err))
	}
	kctx.FatalIfErrorf(err)
}
