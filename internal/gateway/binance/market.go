package binance

import (
	"context"
	"fmt"
	"math"

	symbolpkg "palisade/internal/pkg/symbol"

	"github.com/markcheno/go-talib"
)

const (
	volatilityInterval = "1d"
	volatilityWindow   = 30
)

// CurrentPrice returns the latest traded price for a symbol. A symbol the
// exchange doesn't return a ticker for reports ok=false rather than an error
// so the caller can skip it for the tick.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, bool, error) {
	exchangeSymbol := symbolpkg.ToExchange(symbol)
	prices, err := c.api.NewListPricesService().Symbol(exchangeSymbol).Do(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("binance: ticker %s: %w", exchangeSymbol, err)
	}
	for _, p := range prices {
		if p == nil || p.Symbol != exchangeSymbol {
			continue
		}
		price := parseFloat(p.Price)
		if price <= 0 {
			return 0, false, nil
		}
		return price, true, nil
	}
	return 0, false, nil
}

// Closes returns the most recent close prices for a symbol, oldest first.
func (c *Client) Closes(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	exchangeSymbol := symbolpkg.ToExchange(symbol)
	klines, err := c.api.NewKlinesService().
		Symbol(exchangeSymbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", exchangeSymbol, err)
	}
	closes := make([]float64, 0, len(klines))
	for _, kl := range klines {
		if kl == nil {
			continue
		}
		if v := parseFloat(kl.Close); v > 0 {
			closes = append(closes, v)
		}
	}
	return closes, nil
}

// HistoricalVolatility computes the standard deviation of daily log returns
// over the trailing window. ok=false means there isn't enough candle history
// yet; sizing then skips the volatility throttle for the symbol.
func (c *Client) HistoricalVolatility(ctx context.Context, symbol string) (float64, bool, error) {
	closes, err := c.Closes(ctx, symbol, volatilityInterval, volatilityWindow+1)
	if err != nil {
		return 0, false, err
	}
	returns := logReturns(closes)
	if len(returns) < volatilityWindow/2 {
		return 0, false, nil
	}
	dev := talib.StdDev(returns, len(returns), 1.0)
	vol := dev[len(dev)-1]
	if vol <= 0 || math.IsNaN(vol) {
		return 0, false, nil
	}
	return vol, true, nil
}

func logReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out = append(out, math.Log(closes[i]/closes[i-1]))
	}
	return out
}
