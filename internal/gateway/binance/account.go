package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"palisade/internal/gateway/exchange"
	symbolpkg "palisade/internal/pkg/symbol"
	"palisade/internal/pkg/trading"
)

const avgBuyTradeLimit = 200

// QuoteBalance returns the free quote-asset balance available for new entries.
func (c *Client) QuoteBalance(ctx context.Context) (float64, error) {
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance: account: %w", err)
	}
	for _, bal := range account.Balances {
		if strings.EqualFold(bal.Asset, c.quoteAsset) {
			return parseFloat(bal.Free), nil
		}
	}
	return 0, nil
}

// AssetBalances returns every non-zero spot wallet entry, quote asset included.
func (c *Client) AssetBalances(ctx context.Context) ([]exchange.AssetBalance, error) {
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: account: %w", err)
	}
	now := time.Now()
	out := make([]exchange.AssetBalance, 0, len(account.Balances))
	for _, bal := range account.Balances {
		free := parseFloat(bal.Free)
		locked := parseFloat(bal.Locked)
		if free+locked <= 0 {
			continue
		}
		out = append(out, exchange.AssetBalance{
			Asset:     strings.ToUpper(strings.TrimSpace(bal.Asset)),
			Free:      free,
			Locked:    locked,
			UpdatedAt: now,
		})
	}
	return out, nil
}

// AverageBuyPrice reconstructs a cost basis from the most recent buy fills of
// the symbol. ok=false means no buy history is visible through the API; the
// caller falls back to the current market price.
func (c *Client) AverageBuyPrice(ctx context.Context, symbol string) (float64, bool, error) {
	exchangeSymbol := symbolpkg.ToExchange(symbol)
	trades, err := c.api.NewListTradesService().
		Symbol(exchangeSymbol).
		Limit(avgBuyTradeLimit).
		Do(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("binance: trades %s: %w", exchangeSymbol, err)
	}
	prices := make([]float64, 0, len(trades))
	quantities := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t == nil || !t.IsBuyer {
			continue
		}
		price := parseFloat(t.Price)
		qty := parseFloat(t.Quantity)
		if price <= 0 || qty <= 0 {
			continue
		}
		prices = append(prices, price)
		quantities = append(quantities, qty)
	}
	if len(prices) == 0 {
		return 0, false, nil
	}
	return trading.VolumeWeightedPrice(prices, quantities), true, nil
}
