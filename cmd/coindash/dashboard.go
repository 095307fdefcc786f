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
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/gravitational/coindash/coingecko"
	"github.com/gravitational/coindash/lib/cache"
	"github.com/gravitational/coindash/lib/logger"
)

const (
	cryptosCacheKey       = "dashboard_cryptos_cache"
	currenciesCacheKey    = "dashboard_currencies_cache"
	tradingVolumeCacheKey = "dashboard_trading_volume_cache"
	priceHistoryCacheKey  = "dashboard_price_history_cache"
	currentPriceCacheKey  = "dashboard_current_price_cache"

	priceHistoryWindow = 30 * 24 * time.Hour

	sectionCoins         = "coins"
	sectionCurrencies    = "currencies"
	sectionCurrentPrice  = "current price"
	sectionTradingVolume = "trading volume"
	sectionPriceHistory  = "price history"
)

// Dashboard is the data shown for a coin in a quote currency.
type Dashboard struct {
	Coin     string
	Currency string

	Coins         []coingecko.Coin
	Currencies    []string
	CurrentPrice  *coingecko.MarketChart
	TradingVolume *coingecko.MarketChart
	PriceHistory  *coingecko.MarketChart

	// Failed holds the error of every section left empty.
	Failed map[string]error
}

// DashboardLoader fetches dashboard sections concurrently. Every section goes
// through the cache: fresh entries are served as is, stale ones only when the
// fetch fails.
type DashboardLoader struct {
	Gecko *coingecko.Client
	Cache *cache.Cache
	Clock clockwork.Clock
}

// Load fetches the dashboard of the coin. It fails only when every section
// fails or the context is done.
func (l *DashboardLoader) Load(ctx context.Context, coin, currency string) (*Dashboard, error) {
	if coin == "" {
		return nil, trace.BadParameter("missing coin id")
	}
	currency = strings.ToLower(currency)
	if currency == "" {
		currency = coingecko.DefaultCurrency
	}
	clock := l.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	d := &Dashboard{Coin: coin, Currency: currency, Failed: make(map[string]error)}
	suffix := "_" + coin + "_" + currency
	log := logger.Get(ctx).WithFields(logger.Fields{"coin": coin, "currency": currency})

	var mu sync.Mutex
	var sections int
	group, gctx := errgroup.WithContext(ctx)
	section := func(name string, load func(context.Context) error) {
		sections++
		group.Go(func() error {
			err := load(gctx)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return trace.Wrap(ctx.Err())
			}
			log.WithError(err).WithField("section", name).Warn("Dashboard section unavailable")
			mu.Lock()
			d.Failed[name] = err
			mu.Unlock()
			return nil
		})
	}

	section(sectionCoins, func(ctx context.Context) (err error) {
		d.Coins, err = cache.Load(ctx, l.Cache, cryptosCacheKey, l.Gecko.Coins)
		return err
	})
	section(sectionCurrencies, func(ctx context.Context) (err error) {
		d.Currencies, err = cache.Load(ctx, l.Cache, currenciesCacheKey, l.Gecko.SupportedCurrencies)
		return err
	})
	section(sectionCurrentPrice, func(ctx context.Context) (err error) {
		d.CurrentPrice, err = cache.Load(ctx, l.Cache, currentPriceCacheKey+suffix, func(ctx context.Context) (*coingecko.MarketChart, error) {
			return l.Gecko.MarketChart(ctx, coin, coingecko.MarketChartQuery{VsCurrency: currency, Days: "1"})
		})
		return err
	})
	section(sectionTradingVolume, func(ctx context.Context) (err error) {
		d.TradingVolume, err = cache.Load(ctx, l.Cache, tradingVolumeCacheKey+suffix, func(ctx context.Context) (*coingecko.MarketChart, error) {
			return l.Gecko.MarketChart(ctx, coin, coingecko.MarketChartQuery{VsCurrency: currency, Days: "1"})
		})
		return err
	})
	section(sectionPriceHistory, func(ctx context.Context) (err error) {
		d.PriceHistory, err = cache.Load(ctx, l.Cache, priceHistoryCacheKey+suffix, func(ctx context.Context) (*coingecko.MarketChart, error) {
			now := clock.Now()
			return l.Gecko.MarketChartRange(ctx, coin, coingecko.MarketChartRangeQuery{
				VsCurrency: currency,
				From:       now.Add(-priceHistoryWindow).Unix(),
				To:         now.Unix(),
			})
		})
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, trace.Wrap(err)
	}
	if len(d.Failed) == sections {
		errs := make([]error, 0, len(d.Failed))
		for _, err := range d.Failed {
			errs = append(errs, err)
		}
		return nil, trace.NewAggregate(errs...)
	}
	return d, nil
}

// Render prints the dashboard, showing at most points samples per series.
func (d *Dashboard) Render(w io.Writer, points int) {
	currency := strings.ToUpper(d.Currency)
	fmt.Fprintf(w, "%v / %v\n\n", d.Coin, currency)

	if d.CurrentPrice != nil && len(d.CurrentPrice.Prices) > 0 {
		prices := d.CurrentPrice.Prices
		last := prices[len(prices)-1]
		fmt.Fprintf(w, "Price: %v %v (%v over 24h)\n", formatPrice(last.Value), currency, formatPercent(change(prices[0].Value, last.Value)))
	}
	if d.TradingVolume != nil && len(d.TradingVolume.TotalVolumes) > 0 {
		last := d.TradingVolume.TotalVolumes[len(d.TradingVolume.TotalVolumes)-1]
		fmt.Fprintf(w, "Volume: %v %v\n", last.Value.StringFixed(0), currency)
	}
	if d.Coins != nil {
		fmt.Fprintf(w, "Known coins: %v\n", len(d.Coins))
	}
	if d.Currencies != nil {
		fmt.Fprintf(w, "Quote currencies: %v\n", len(d.Currencies))
	}

	if d.PriceHistory != nil && len(d.PriceHistory.Prices) > 0 {
		fmt.Fprintln(w)
		renderSeries(w, "Price "+currency, d.PriceHistory.Prices, points)
	}

	if len(d.Failed) > 0 {
		names := make([]string, 0, len(d.Failed))
		for name := range d.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w)
		for _, name := range names {
			fmt.Fprintf(w, "Unavailable %v: %v\n", name, d.Failed[name])
		}
	}
}

// change returns the percentage change from first to last.
func change(first, last decimal.Decimal) decimal.Decimal {
	if first.IsZero() {
		return decimal.Zero
	}
	return last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
}
