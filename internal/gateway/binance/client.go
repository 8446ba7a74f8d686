// Package binance implements the exchange collaborator interfaces on top of
// the Binance spot REST API.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"palisade/internal/config"
	"palisade/internal/gateway/exchange"
	"palisade/internal/pkg/circuit"

	"github.com/adshao/go-binance/v2"
)

const (
	defaultRESTBaseURL = "https://api.binance.com"
	defaultHTTPTimeout = 15 * time.Second

	breakerThreshold = 5
	breakerCooldown  = 2 * time.Minute
)

// Client wraps a spot REST client plus the symbol filter cache every service
// on top of it shares. Order placement goes through a circuit breaker so a
// broken exchange connection stops producing requests instead of hammering.
type Client struct {
	api        *binance.Client
	breaker    *circuit.Breaker
	quoteAsset string

	filterMu sync.Mutex
	filters  map[string]symbolFilters
}

type symbolFilters struct {
	stepSize    float64
	minQuantity float64
}

var (
	_ exchange.TradeExecutor    = (*Client)(nil)
	_ exchange.MarketDataSource = (*Client)(nil)
	_ exchange.AccountSource    = (*Client)(nil)
)

func New(cfg config.ExchangeConfig, quoteAsset string) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	apiSecret := strings.TrimSpace(cfg.APISecret)
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("binance: api credentials are required")
	}
	quoteAsset = strings.ToUpper(strings.TrimSpace(quoteAsset))
	if quoteAsset == "" {
		return nil, fmt.Errorf("binance: quote asset is required")
	}
	binance.UseTestnet = cfg.Testnet
	api := binance.NewClient(apiKey, apiSecret)
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		api.BaseURL = base
	} else if !cfg.Testnet {
		api.BaseURL = defaultRESTBaseURL
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	api.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		api:        api,
		breaker:    circuit.NewBreaker("binance-orders", breakerThreshold, breakerCooldown),
		quoteAsset: quoteAsset,
		filters:    make(map[string]symbolFilters),
	}, nil
}

// BreakerState reports the order circuit state for the status API.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// symbolFilters fetches and caches the lot-size and notional constraints for
// an exchange-format symbol. Filters only change on exchange maintenance, so
// the cache has no expiry.
func (c *Client) symbolFilters(ctx context.Context, exchangeSymbol string) (symbolFilters, error) {
	c.filterMu.Lock()
	if f, ok := c.filters[exchangeSymbol]; ok {
		c.filterMu.Unlock()
		return f, nil
	}
	c.filterMu.Unlock()

	info, err := c.api.NewExchangeInfoService().Symbol(exchangeSymbol).Do(ctx)
	if err != nil {
		return symbolFilters{}, fmt.Errorf("binance: exchange info %s: %w", exchangeSymbol, err)
	}
	var out symbolFilters
	for _, sym := range info.Symbols {
		if !strings.EqualFold(sym.Symbol, exchangeSymbol) {
			continue
		}
		if lot := sym.LotSizeFilter(); lot != nil {
			out.stepSize = parseFloat(lot.StepSize)
			out.minQuantity = parseFloat(lot.MinQuantity)
		}
		break
	}
	c.filterMu.Lock()
	c.filters[exchangeSymbol] = out
	c.filterMu.Unlock()
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func formatQuantity(q, step float64) string {
	precision := 8
	if step > 0 {
		precision = 0
		for step < 1 && precision < 8 {
			step *= 10
			precision++
		}
	}
	return strconv.FormatFloat(q, 'f', precision, 64)
}
