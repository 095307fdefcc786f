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
	"io"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/coindash/coingecko"
	"github.com/gravitational/coindash/lib/auth"
	"github.com/gravitational/coindash/lib/cache"
	"github.com/gravitational/coindash/lib/credentials"
	"github.com/gravitational/coindash/lib/logger"
	"github.com/gravitational/coindash/lib/rest"
)

const (
	credentialsDir = "credentials"
	cacheDir       = "cache"
)

// App holds the clients shared by commands. Nothing is built until a command
// calls Setup.
type App struct {
	ctx   context.Context
	cli   *CLI
	out   io.Writer
	clock clockwork.Clock

	session *auth.Session
	api     *rest.Client
	gecko   *coingecko.Client
	cache   *cache.Cache
	limiter *rest.RateLimitTransport
}

// NewApp creates an App writing command output to out.
func NewApp(ctx context.Context, cli *CLI, out io.Writer) *App {
	return &App{
		ctx:   ctx,
		cli:   cli,
		out:   out,
		clock: clockwork.NewRealClock(),
	}
}

// Setup builds the client stack: rate limiter, token refreshing transport,
// resource client, market data client and cache.
func (a *App) Setup() error {
	if a.api != nil {
		return nil
	}
	if err := a.cli.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	if err := logger.Setup(a.cli.LoggerConfig()); err != nil {
		return trace.Wrap(err)
	}

	conf := a.cli.RESTConfig()
	if err := conf.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	base, err := rest.NewBaseTransport(conf)
	if err != nil {
		return trace.Wrap(err)
	}
	limited, err := rest.NewRateLimitTransport(base, a.cli.RateLimitConfig())
	if err != nil {
		return trace.Wrap(err)
	}
	if limiter, ok := limited.(*rest.RateLimitTransport); ok {
		a.limiter = limiter
	}

	store, err := credentials.NewDiskvStore(a.cli.CredentialsDir())
	if err != nil {
		return trace.Wrap(err)
	}

	var api *rest.Client
	session, err := auth.NewSession(auth.SessionConfig{
		Store:     store,
		Refresher: auth.NewHTTPRefresher(conf.BaseURL, limited),
		Navigator: auth.NavigatorFunc(a.navigate),
		OnTokenRefreshed: func(accessToken string) {
			if api != nil {
				api.SetAuthToken(accessToken)
			}
		},
		Log: logger.Standard().WithField("component", "session"),
	})
	if err != nil {
		return trace.Wrap(err)
	}

	transport, err := auth.NewTransport(session, auth.WithBaseTransport(limited), auth.WithBaseURL(conf.BaseURL))
	if err != nil {
		return trace.Wrap(err)
	}
	api, err = rest.NewClient(conf,
		rest.WithTransport(transport),
		rest.WithSession(session),
		rest.WithErrorHook(a.onError),
		rest.WithLogger(logger.Standard().WithField("component", "rest")),
	)
	if err != nil {
		return trace.Wrap(err)
	}
	api.SetAuthToken(session.AccessToken(a.ctx))

	cacheConf := a.cli.CacheConf()
	cacheConf.Clock = a.clock
	c, err := cache.New(cacheConf)
	if err != nil {
		return trace.Wrap(err)
	}

	a.session = session
	a.api = api
	a.gecko = coingecko.New(api)
	a.cache = c
	return nil
}

// Close releases the resources held by the client stack.
func (a *App) Close() error {
	if a.limiter == nil {
		return nil
	}
	return trace.Wrap(a.limiter.Close(context.Background()))
}

// navigate is where an expired session ends up.
func (a *App) navigate(ctx context.Context, route string) error {
	logger.Get(ctx).WithField("route", route).Warnf("Session expired, run `%v login`", appName)
	return nil
}

func (a *App) onError(err error) {
	logger.Get(a.ctx).WithError(err).Debug("API request failed")
}
