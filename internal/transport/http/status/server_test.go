package statushttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"palisade/internal/config"
	"palisade/internal/gateway/exchange"
	"palisade/internal/position"
	"palisade/internal/risk"
	"palisade/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccount struct {
	balance float64
	err     error
}

func (s *stubAccount) QuoteBalance(context.Context) (float64, error) { return s.balance, s.err }

func (s *stubAccount) AssetBalances(context.Context) ([]exchange.AssetBalance, error) {
	return nil, nil
}

func (s *stubAccount) AverageBuyPrice(context.Context, string) (float64, bool, error) {
	return 0, false, nil
}

func newTestRiskManager() *risk.Manager {
	return risk.NewManager(config.RiskConfig{DailyLossLimit: 0.05}, config.TradingConfig{}, false,
		risk.NewTracker(), risk.NewDailyState(), position.NewLedger(nil), nil, nil)
}

func TestRiskEndpointUsesLiveEquityForBreaker(t *testing.T) {
	mgr := newTestRiskManager()
	now := time.Now()
	// A restart replays the day's loss; the day-start equity is unknown
	// until the first caller supplies a live balance.
	mgr.SeedFromHistory([]store.TradeRecord{
		{Side: "sell", Reason: "stop_loss", PnL: -600, Timestamp: now},
	}, now)

	srv, err := NewServer(ServerConfig{
		Ledger:  position.NewLedger(nil),
		Risk:    mgr,
		Account: &stubAccount{balance: 9_400},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/risk", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		DailyPnL      float64 `json:"daily_pnl"`
		BreakerActive bool    `json:"breaker_active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, -600, body.DailyPnL, 1e-9)
	// 600 lost against 9.4k of equity is past the 5% limit. With a zero
	// equity the breaker could not be evaluated at all.
	assert.True(t, body.BreakerActive)
}

func TestRiskEndpointToleratesBalanceFailure(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Ledger:  position.NewLedger(nil),
		Risk:    newTestRiskManager(),
		Account: &stubAccount{err: context.DeadlineExceeded},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/risk", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthReportsOrderBreaker(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Ledger:       position.NewLedger(nil),
		Risk:         newTestRiskManager(),
		OrderBreaker: func() string { return "closed" },
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "closed", body["order_breaker"])
}
