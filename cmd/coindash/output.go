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
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/gravitational/coindash/coingecko"
)

const timeFormat = "2006-01-02 15:04"

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoFormatHeaders(false)
	return table
}

func renderCoins(w io.Writer, coins []coingecko.Coin) {
	table := newTable(w, "ID", "Symbol", "Name")
	for _, coin := range coins {
		table.Append([]string{coin.ID, coin.Symbol, coin.Name})
	}
	table.Render()
}

func renderMarkets(w io.Writer, currency string, markets []coingecko.Market) {
	currency = strings.ToUpper(currency)
	table := newTable(w, "#", "Coin", "Price "+currency, "24h", "Market cap "+currency, "Volume "+currency)
	for _, market := range markets {
		table.Append([]string{
			rank(market.MarketCapRank),
			fmt.Sprintf("%v (%v)", market.Name, strings.ToUpper(market.Symbol)),
			formatPrice(market.CurrentPrice),
			formatPercent(market.PriceChangePercentage24h),
			market.MarketCap.StringFixed(0),
			market.TotalVolume.StringFixed(0),
		})
	}
	table.Render()
}

func renderCoin(w io.Writer, currency string, coin *coingecko.CoinDetail) {
	currency = strings.ToLower(currency)
	table := newTable(w, "Field", "Value")
	table.AppendBulk([][]string{
		{"ID", coin.ID},
		{"Name", fmt.Sprintf("%v (%v)", coin.Name, strings.ToUpper(coin.Symbol))},
		{"Rank", rank(coin.MarketCapRank)},
		{"Categories", strings.Join(coin.Categories, ", ")},
		{"Price " + strings.ToUpper(currency), formatPrice(coin.MarketData.CurrentPrice[currency])},
		{"Market cap " + strings.ToUpper(currency), coin.MarketData.MarketCap[currency].StringFixed(0)},
		{"Volume " + strings.ToUpper(currency), coin.MarketData.TotalVolume[currency].StringFixed(0)},
		{"24h", formatPercent(coin.MarketData.PriceChangePercentage24h)},
		{"Updated", formatTime(coin.LastUpdated)},
	})
	table.Render()
}

// renderSeries prints at most the last n points, all of them when n is not positive.
func renderSeries(w io.Writer, title string, points []coingecko.Point, n int) {
	if n > 0 && len(points) > n {
		points = points[len(points)-n:]
	}
	table := newTable(w, "Time", title)
	for _, point := range points {
		table.Append([]string{formatTime(point.Time), formatPrice(point.Value)})
	}
	table.Render()
}

func renderPrices(w io.Writer, ids, currencies []string, prices coingecko.SimplePrices) {
	header := []string{"Coin"}
	for _, currency := range currencies {
		header = append(header, strings.ToUpper(currency))
	}
	table := newTable(w, header...)
	for _, id := range ids {
		row := []string{id}
		for _, currency := range currencies {
			price, ok := prices[id][strings.ToLower(currency)]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, formatPrice(price))
		}
		table.Append(row)
	}
	table.Render()
}

func formatPrice(d decimal.Decimal) string {
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		return d.StringFixed(6)
	}
	return d.StringFixed(2)
}

func formatPercent(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeFormat)
}

func rank(r int) string {
	if r <= 0 {
		return "-"
	}
	return fmt.Sprint(r)
}
