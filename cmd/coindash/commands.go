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
	"fmt"
	"sort"
	"strings"

	"github.com/gravitational/trace"

	"github.com/gravitational/coindash/coingecko"
	"github.com/gravitational/coindash/lib/rest"
)

// VersionCmd prints the version
type VersionCmd struct{}

func (c *VersionCmd) Run(app *App) error {
	_, err := fmt.Fprintf(app.out, "%v %v %v\n", appName, Version, Sha)
	return trace.Wrap(err)
}

// LoginCmd exchanges user credentials for a session
type LoginCmd struct {
	Email    string `help:"Account email, prompted for when missing" env:"COINDASH_EMAIL"`
	Password string `help:"Account password, prompted for when missing" env:"COINDASH_PASSWORD"`
}

func (c *LoginCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}

	var err error
	if c.Email == "" {
		if c.Email, err = ask("Email", false); err != nil {
			return trace.Wrap(err)
		}
	}
	if c.Password == "" {
		if c.Password, err = ask("Password", true); err != nil {
			return trace.Wrap(err)
		}
	}

	creds, err := app.api.Login(app.ctx, rest.LoginRequest{Email: c.Email, Password: c.Password})
	if err != nil {
		return trace.Wrap(err)
	}

	fmt.Fprintf(app.out, "Logged in as %v\n", c.Email)
	if expires := creds.ExpiresAt(); !expires.IsZero() {
		fmt.Fprintf(app.out, "Access token expires at %v\n", formatTime(expires))
	}
	return nil
}

// LogoutCmd forgets the session
type LogoutCmd struct {
	PurgeCache bool `help:"Also remove every cached entry"`
}

func (c *LogoutCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	if err := app.session.Clear(app.ctx); err != nil {
		return trace.Wrap(err)
	}
	if c.PurgeCache {
		if err := app.cache.Purge(); err != nil {
			return trace.Wrap(err)
		}
	}
	fmt.Fprintln(app.out, "Logged out")
	return nil
}

// StatusCmd prints the session status
type StatusCmd struct{}

func (c *StatusCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	creds, err := app.session.Credentials(app.ctx)
	if err != nil {
		return trace.Wrap(err)
	}

	table := newTable(app.out, "Field", "Value")
	table.Append([]string{"API", app.api.BaseURL()})
	if !creds.IsComplete() {
		table.Append([]string{"Session", "none"})
		table.Render()
		return nil
	}
	table.Append([]string{"Session", "active"})
	if expires := creds.ExpiresAt(); !expires.IsZero() {
		state := "valid"
		if !expires.After(app.clock.Now()) {
			state = "expired, renewed on next request"
		}
		table.Append([]string{"Access token", fmt.Sprintf("%v until %v", state, formatTime(expires))})
	}
	table.Render()
	return nil
}

// CoinsCmd lists known coins
type CoinsCmd struct {
	Filter string `help:"Only show coins whose id, symbol or name contains the filter" short:"f"`
}

func (c *CoinsCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	coins, err := app.gecko.Coins(app.ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	renderCoins(app.out, filterCoins(coins, c.Filter))
	return nil
}

func filterCoins(coins []coingecko.Coin, filter string) []coingecko.Coin {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return coins
	}
	var out []coingecko.Coin
	for _, coin := range coins {
		if strings.Contains(strings.ToLower(coin.ID), filter) ||
			strings.Contains(strings.ToLower(coin.Symbol), filter) ||
			strings.Contains(strings.ToLower(coin.Name), filter) {
			out = append(out, coin)
		}
	}
	return out
}

// MarketsCmd lists coin markets page by page
type MarketsCmd struct {
	Page        int      `help:"Page to start from, the current page of the listing when unset"`
	Limit       int      `help:"Markets per page" default:"10"`
	Currency    string   `help:"Quote currency" default:"usd"`
	Category    string   `help:"Only list coins of the category"`
	IDs         []string `help:"Comma-separated list of coin ids" name:"ids"`
	Order       string   `help:"Listing order" default:"market_cap_desc"`
	All         bool     `help:"Follow next pages until the listing is exhausted"`
	Interactive bool     `help:"Ask before fetching every next page" short:"i"`
}

func (c *MarketsCmd) Run(app *App) error {
	if c.All && c.Interactive {
		return trace.BadParameter("--all and --interactive are mutually exclusive")
	}
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}

	query := coingecko.MarketsQuery{
		PageQuery:  rest.PageQuery{Page: c.Page, Limit: c.Limit},
		VsCurrency: c.Currency,
		IDs:        c.IDs,
		Category:   c.Category,
		Order:      c.Order,
	}
	markets, err := app.gecko.Markets(app.ctx, query)
	if err != nil {
		return trace.Wrap(err)
	}
	c.render(app, query, markets)

	for c.All || (c.Interactive && yesNo("Fetch next page")) {
		markets, ok, err := app.gecko.NextMarkets(app.ctx, query)
		if err != nil {
			return trace.Wrap(err)
		}
		if !ok {
			break
		}
		c.render(app, query, markets)
	}
	return nil
}

func (c *MarketsCmd) render(app *App, query coingecko.MarketsQuery, markets []coingecko.Market) {
	renderMarkets(app.out, c.Currency, markets)
	cursor, ok := app.gecko.MarketsCursor(query)
	if !ok {
		return
	}
	if cursor.HasNext() {
		fmt.Fprintf(app.out, "Page %v, next page %v\n", cursor.CurrentPage, *cursor.NextPage)
	} else {
		fmt.Fprintf(app.out, "Page %v, last page\n", cursor.CurrentPage)
	}
}

// CoinCmd prints coin details
type CoinCmd struct {
	ID       string `arg:"true" help:"Coin id" required:"true"`
	Currency string `help:"Quote currency" default:"usd"`
}

func (c *CoinCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	coin, err := app.gecko.Coin(app.ctx, c.ID)
	if err != nil {
		return trace.Wrap(err)
	}
	renderCoin(app.out, c.Currency, coin)
	return nil
}

// ChartCmd prints the price series of a coin
type ChartCmd struct {
	ID       string `arg:"true" help:"Coin id" required:"true"`
	Days     string `help:"Number of days or max" default:"1"`
	Currency string `help:"Quote currency" default:"usd"`
	Interval string `help:"Sampling interval, e.g. daily"`
	Points   int    `help:"Number of most recent points to print, 0 prints all" default:"24"`
}

func (c *ChartCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	chart, err := app.gecko.MarketChart(app.ctx, c.ID, coingecko.MarketChartQuery{
		VsCurrency: c.Currency,
		Days:       c.Days,
		Interval:   c.Interval,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	renderSeries(app.out, "Price "+strings.ToUpper(c.Currency), chart.Prices, c.Points)
	return nil
}

// PriceCmd prints current coin prices
type PriceCmd struct {
	IDs      []string `arg:"true" help:"Coin ids" required:"true" name:"ids"`
	Currency []string `help:"Comma-separated list of quote currencies" default:"usd"`
}

func (c *PriceCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	prices, err := app.gecko.SimplePrice(app.ctx, c.IDs, c.Currency)
	if err != nil {
		return trace.Wrap(err)
	}
	ids := append([]string(nil), c.IDs...)
	sort.Strings(ids)
	renderPrices(app.out, ids, c.Currency, prices)
	return nil
}

// DashboardCmd prints the dashboard of a coin
type DashboardCmd struct {
	Coin     string `help:"Coin id" default:"bitcoin"`
	Currency string `help:"Quote currency" default:"usd"`
	Points   int    `help:"Number of most recent price history points to print, 0 prints all" default:"10"`
}

func (c *DashboardCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	loader := &DashboardLoader{Gecko: app.gecko, Cache: app.cache, Clock: app.clock}
	dashboard, err := loader.Load(app.ctx, c.Coin, c.Currency)
	if err != nil {
		return trace.Wrap(err)
	}
	dashboard.Render(app.out, c.Points)
	return nil
}

// CacheCmd groups cache maintenance commands
type CacheCmd struct {
	Prune CachePruneCmd `cmd:"true" help:"Remove expired entries"`
	Purge CachePurgeCmd `cmd:"true" help:"Remove every entry"`
}

// CachePruneCmd removes expired cache entries
type CachePruneCmd struct{}

func (c *CachePruneCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(app.cache.Prune(app.ctx))
}

// CachePurgeCmd removes every cache entry
type CachePurgeCmd struct{}

func (c *CachePurgeCmd) Run(app *App) error {
	if err := app.Setup(); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(app.cache.Purge())
}
