package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"palisade/internal/gateway/exchange"
	"palisade/internal/logger"
	symbolpkg "palisade/internal/pkg/symbol"
	"palisade/internal/pkg/trading"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

// Binance error codes that mean the order itself was refused rather than the
// transport failing.
const (
	codeNewOrderRejected = -2010
	codeInvalidQuantity  = -1013
)

// ExecuteMarketOrder places a spot market order and returns the executed base
// quantity. The requested quantity is rounded down to the symbol's lot step
// first; a quantity that rounds to zero or below the exchange minimum is a
// rejection, not a transport error.
func (c *Client) ExecuteMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity float64) (float64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: non-positive quantity %.8f", exchange.ErrOrderRejected, quantity)
	}
	if !c.breaker.Allow() {
		return 0, fmt.Errorf("%w: order circuit open", exchange.ErrOrderRejected)
	}
	exchangeSymbol := symbolpkg.ToExchange(symbol)

	filters, err := c.symbolFilters(ctx, exchangeSymbol)
	if err != nil {
		c.breaker.RecordFailure(err)
		return 0, err
	}
	rounded := trading.RoundToStep(quantity, filters.stepSize)
	if rounded <= 0 || (filters.minQuantity > 0 && rounded < filters.minQuantity) {
		return 0, fmt.Errorf("%w: quantity %.8f below lot minimum for %s",
			exchange.ErrOrderRejected, quantity, exchangeSymbol)
	}

	orderSide := binance.SideTypeBuy
	if side == exchange.SideSell {
		orderSide = binance.SideTypeSell
	}
	resp, err := c.api.NewCreateOrderService().
		Symbol(exchangeSymbol).
		Side(orderSide).
		Type(binance.OrderTypeMarket).
		Quantity(formatQuantity(rounded, filters.stepSize)).
		Do(ctx)
	if err != nil {
		mapped := mapOrderError(err)
		if errors.Is(mapped, exchange.ErrOrderRejected) || errors.Is(mapped, exchange.ErrInsufficientFunds) {
			// Refusals are the exchange working as intended, not a fault.
			c.breaker.RecordSuccess()
		} else {
			c.breaker.RecordFailure(err)
		}
		return 0, mapped
	}
	c.breaker.RecordSuccess()

	executed := parseFloat(resp.ExecutedQuantity)
	if executed <= 0 {
		executed = rounded
	}
	logger.Infof("[binance] %s %s filled qty=%.8f avg=%.8f",
		orderSide, exchangeSymbol, executed, fillAveragePrice(resp.Fills))
	return executed, nil
}

func mapOrderError(err error) error {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case codeNewOrderRejected:
		if strings.Contains(strings.ToLower(apiErr.Message), "insufficient") {
			return fmt.Errorf("%w: %s", exchange.ErrInsufficientFunds, apiErr.Message)
		}
		return fmt.Errorf("%w: %s", exchange.ErrOrderRejected, apiErr.Message)
	case codeInvalidQuantity:
		return fmt.Errorf("%w: %s", exchange.ErrOrderRejected, apiErr.Message)
	default:
		return err
	}
}

func fillAveragePrice(fills []*binance.Fill) float64 {
	prices := make([]float64, 0, len(fills))
	quantities := make([]float64, 0, len(fills))
	for _, fill := range fills {
		if fill == nil {
			continue
		}
		prices = append(prices, parseFloat(fill.Price))
		quantities = append(quantities, parseFloat(fill.Quantity))
	}
	return trading.VolumeWeightedPrice(prices, quantities)
}
