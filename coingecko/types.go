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
	"strings"
	"time"

	"github.com/gravitational/trace"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/gravitational/coindash/lib/rest"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Coin is an entry of the coins listing.
type Coin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// ResourceID implements rest.Identifiable
func (c *Coin) ResourceID() string {
	return c.ID
}

// Market is the market snapshot of a coin.
type Market struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	Image                    string          `json:"image,omitempty"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	MarketCapRank            int             `json:"market_cap_rank"`
	TotalVolume              decimal.Decimal `json:"total_volume"`
	High24h                  decimal.Decimal `json:"high_24h"`
	Low24h                   decimal.Decimal `json:"low_24h"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
	LastUpdated              time.Time       `json:"last_updated"`
}

// MarketsQuery filters the markets listing.
type MarketsQuery struct {
	rest.PageQuery
	VsCurrency string   `url:"vs_currency"`
	IDs        []string `url:"ids,comma,omitempty"`
	Category   string   `url:"category,omitempty"`
	Order      string   `url:"order,omitempty"`
}

// CheckAndSetDefaults validates the query and sets defaults.
func (q *MarketsQuery) CheckAndSetDefaults() error {
	q.VsCurrency = strings.ToLower(q.VsCurrency)
	if q.VsCurrency == "" {
		q.VsCurrency = DefaultCurrency
	}
	if q.Order == "" {
		q.Order = DefaultOrder
	}
	if q.Page < 0 || q.Limit < 0 || q.Take < 0 {
		return trace.BadParameter("pagination parameters must not be negative")
	}
	return nil
}

// CoinDetail is the full description of a coin.
type CoinDetail struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Name          string            `json:"name"`
	Categories    []string          `json:"categories"`
	Description   map[string]string `json:"description"`
	MarketCapRank int               `json:"market_cap_rank"`
	MarketData    CoinMarketData    `json:"market_data"`
	LastUpdated   time.Time         `json:"last_updated"`
}

// CoinMarketData holds per currency market figures of a coin.
type CoinMarketData struct {
	CurrentPrice             map[string]decimal.Decimal `json:"current_price"`
	MarketCap                map[string]decimal.Decimal `json:"market_cap"`
	TotalVolume              map[string]decimal.Decimal `json:"total_volume"`
	PriceChangePercentage24h decimal.Decimal            `json:"price_change_percentage_24h"`
}

// MarketChartQuery selects the chart window.
type MarketChartQuery struct {
	VsCurrency string `url:"vs_currency"`
	// Days is a number of days or "max".
	Days     string `url:"days"`
	Interval string `url:"interval,omitempty"`
}

// CheckAndSetDefaults validates the query and sets defaults.
func (q *MarketChartQuery) CheckAndSetDefaults() error {
	q.VsCurrency = strings.ToLower(q.VsCurrency)
	if q.VsCurrency == "" {
		q.VsCurrency = DefaultCurrency
	}
	if q.Days == "" {
		q.Days = "1"
	}
	return nil
}

// MarketChartRangeQuery selects the chart window by unix timestamps.
type MarketChartRangeQuery struct {
	VsCurrency string `url:"vs_currency"`
	From       int64  `url:"from"`
	To         int64  `url:"to"`
}

// CheckAndSetDefaults validates the query and sets defaults.
func (q *MarketChartRangeQuery) CheckAndSetDefaults() error {
	q.VsCurrency = strings.ToLower(q.VsCurrency)
	if q.VsCurrency == "" {
		q.VsCurrency = DefaultCurrency
	}
	if q.From <= 0 || q.To <= q.From {
		return trace.BadParameter("invalid chart range [%v, %v]", q.From, q.To)
	}
	return nil
}

// MarketChart holds time series of a coin.
type MarketChart struct {
	Prices       []Point `json:"prices"`
	MarketCaps   []Point `json:"market_caps"`
	TotalVolumes []Point `json:"total_volumes"`
}

// Point is a single sample of a time series, encoded as [unix_ms, value].
type Point struct {
	Time  time.Time
	Value decimal.Decimal
}

// UnmarshalJSON decodes the [unix_ms, value] pair.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw []decimal.Decimal
	if err := codec.Unmarshal(data, &raw); err != nil {
		return trace.Wrap(err)
	}
	if len(raw) != 2 {
		return trace.BadParameter("expected [time, value] pair, got %v elements", len(raw))
	}
	p.Time = time.UnixMilli(raw[0].IntPart()).UTC()
	p.Value = raw[1]
	return nil
}

// MarshalJSON encodes the point as a [unix_ms, value] pair.
func (p Point) MarshalJSON() ([]byte, error) {
	return codec.Marshal([]interface{}{p.Time.UnixMilli(), p.Value})
}

// Global is the global market summary.
type Global struct {
	ActiveCryptocurrencies          int                        `json:"active_cryptocurrencies"`
	Markets                         int                        `json:"markets"`
	TotalMarketCap                  map[string]decimal.Decimal `json:"total_market_cap"`
	TotalVolume                     map[string]decimal.Decimal `json:"total_volume"`
	MarketCapPercentage             map[string]decimal.Decimal `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD decimal.Decimal            `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt                       int64                      `json:"updated_at"`
}

// SimplePrices maps coin id to currency to price.
type SimplePrices map[string]map[string]decimal.Decimal

type simplePriceQuery struct {
	IDs          []string `url:"ids,comma"`
	VsCurrencies []string `url:"vs_currencies,comma"`
}
