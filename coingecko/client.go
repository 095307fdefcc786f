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

package coingecko

import (
	"context"
	"strings"

	"github.com/gravitational/trace"
	"github.com/tidwall/gjson"

	"github.com/gravitational/coindash/lib/rest"
)

const (
	// DefaultCurrency is the quote currency used when none is given.
	DefaultCurrency = "usd"
	// DefaultOrder is the default markets order.
	DefaultOrder = "market_cap_desc"

	coinsListResource           = "coins/list"
	coinsMarketsResource        = "coins/markets"
	coinsResource               = "coins"
	simplePriceResource         = "simple/price"
	supportedCurrenciesResource = "simple/supported_vs_currencies"
	globalResource              = "global"
)

// Client exposes market data resources.
type Client struct {
	api *rest.Client
}

// New creates a Client on top of the resource client.
func New(api *rest.Client) *Client {
	return &Client{api: api}
}

// Coins lists every known coin.
func (c *Client) Coins(ctx context.Context) ([]Coin, error) {
	coins, err := rest.List[Coin](ctx, c.api, coinsListResource, nil)
	return coins, trace.Wrap(err)
}

// Markets fetches a page of market snapshots. Without an explicit page the
// current page of the listing is fetched.
func (c *Client) Markets(ctx context.Context, query MarketsQuery) ([]Market, error) {
	if err := query.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	markets, err := rest.Page[Market](ctx, c.api, coinsMarketsResource, query)
	return markets, trace.Wrap(err)
}

// NextMarkets fetches the page after the current one of the listing selected
// by the query. The boolean is false when there is no such page.
func (c *Client) NextMarkets(ctx context.Context, query MarketsQuery) ([]Market, bool, error) {
	if err := query.CheckAndSetDefaults(); err != nil {
		return nil, false, trace.Wrap(err)
	}
	markets, ok, err := rest.NextPage[Market](ctx, c.api, coinsMarketsResource, query)
	return markets, ok, trace.Wrap(err)
}

// MarketsCursor returns the position of the listing selected by the query.
func (c *Client) MarketsCursor(query MarketsQuery) (rest.Cursor, bool) {
	if err := query.CheckAndSetDefaults(); err != nil {
		return rest.Cursor{}, false
	}
	return c.api.Cursor(coinsMarketsResource, query)
}

// Coin fetches the description of a coin.
func (c *Client) Coin(ctx context.Context, id string) (*CoinDetail, error) {
	if id == "" {
		return nil, trace.BadParameter("missing coin id")
	}
	coin, err := rest.Get[CoinDetail](ctx, c.api, coinsResource, id)
	return coin, trace.Wrap(err)
}

// MarketChart fetches the price, market cap and volume series of a coin.
func (c *Client) MarketChart(ctx context.Context, id string, query MarketChartQuery) (*MarketChart, error) {
	if id == "" {
		return nil, trace.BadParameter("missing coin id")
	}
	if err := query.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	var chart MarketChart
	if err := c.api.GetAll(ctx, coinsResource+"/"+id+"/market_chart", query, &chart); err != nil {
		return nil, trace.Wrap(err)
	}
	return &chart, nil
}

// MarketChartRange fetches the series of a coin between two unix timestamps.
func (c *Client) MarketChartRange(ctx context.Context, id string, query MarketChartRangeQuery) (*MarketChart, error) {
	if id == "" {
		return nil, trace.BadParameter("missing coin id")
	}
	if err := query.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	var chart MarketChart
	if err := c.api.GetAll(ctx, coinsResource+"/"+id+"/market_chart/range", query, &chart); err != nil {
		return nil, trace.Wrap(err)
	}
	return &chart, nil
}

// SimplePrice fetches the current price of the coins in the currencies.
func (c *Client) SimplePrice(ctx context.Context, ids, currencies []string) (SimplePrices, error) {
	if len(ids) == 0 {
		return nil, trace.BadParameter("missing coin ids")
	}
	if len(currencies) == 0 {
		currencies = []string{DefaultCurrency}
	}
	query := simplePriceQuery{IDs: ids, VsCurrencies: lower(currencies)}

	var prices SimplePrices
	if err := c.api.GetAll(ctx, simplePriceResource, query, &prices); err != nil {
		return nil, trace.Wrap(err)
	}
	return prices, nil
}

// SupportedCurrencies lists the quote currencies.
func (c *Client) SupportedCurrencies(ctx context.Context) ([]string, error) {
	currencies, err := rest.List[string](ctx, c.api, supportedCurrenciesResource, nil)
	return currencies, trace.Wrap(err)
}

// Global fetches the global market summary.
func (c *Client) Global(ctx context.Context) (*Global, error) {
	blob, err := c.api.GetBlob(ctx, globalResource, nil)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	// The summary is wrapped in a data envelope.
	data := gjson.GetBytes(blob.Data, "data")
	if !data.Exists() {
		return nil, trace.BadParameter("global summary carries no data")
	}
	var global Global
	if err := codec.UnmarshalFromString(data.Raw, &global); err != nil {
		return nil, trace.Wrap(err)
	}
	return &global, nil
}

func lower(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
