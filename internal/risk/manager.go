package risk

import (
	"context"
	"math"
	"sync"
	"time"

	"palisade/internal/config"
	"palisade/internal/gateway/exchange"
	"palisade/internal/logger"
	"palisade/internal/position"
	"palisade/internal/store"
)

// volatilityEpsilon guards the volatility divisor.
const volatilityEpsilon = 1e-6

// Manager combines trade statistics, Kelly sizing, the regime multiplier,
// and the daily loss breaker into one sizing decision per candidate entry,
// and evaluates protective exits for open positions. All decisions are pure
// computations over in-memory state; collaborator unavailability downgrades
// to "skip the adjustment", never to a crash.
type Manager struct {
	cfgMu      sync.RWMutex
	riskCfg    config.RiskConfig
	tradingCfg config.TradingConfig
	// breakevenStop switches the stop-loss reference to the volume-weighted
	// entry once a position has pyramid adds.
	breakevenStop bool

	tracker *Tracker
	daily   *DailyState
	ledger  *position.Ledger
	market  exchange.MarketDataSource
	regime  exchange.RegimeClassifier
}

func NewManager(riskCfg config.RiskConfig, tradingCfg config.TradingConfig, breakevenStop bool,
	tracker *Tracker, daily *DailyState, ledger *position.Ledger,
	market exchange.MarketDataSource, regime exchange.RegimeClassifier) *Manager {
	return &Manager{
		riskCfg:       riskCfg,
		tradingCfg:    tradingCfg,
		breakevenStop: breakevenStop,
		tracker:       tracker,
		daily:         daily,
		ledger:        ledger,
		market:        market,
		regime:        regime,
	}
}

// UpdateRiskConfig swaps in a new risk parameter set, used by the preset
// hot-reload path. Decisions already in flight keep the set they started
// with.
func (m *Manager) UpdateRiskConfig(cfg config.RiskConfig) {
	if m == nil {
		return
	}
	m.cfgMu.Lock()
	m.riskCfg = cfg
	m.cfgMu.Unlock()
}

func (m *Manager) risk() config.RiskConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.riskCfg
}

// SeedFromHistory replays persisted closed trades into the statistics
// tracker and the daily loss state, so a restart does not clear the Kelly
// inputs, the loss streak, or today's breaker accumulation. Records arrive
// newest first from the store and are replayed in close order. Partial
// exits never feed the tracker at runtime and are skipped here too.
func (m *Manager) SeedFromHistory(records []store.TradeRecord, now time.Time) {
	if m == nil {
		return
	}
	today := now.UTC().Format(dayLayout)
	seeded := 0
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.Side != string(exchange.SideSell) || rec.Reason == store.TradeReasonPartialExit {
			continue
		}
		m.tracker.RecordTrade(rec.PnL)
		if rec.Timestamp.UTC().Format(dayLayout) == today {
			m.daily.RecordPnL(rec.PnL, now, 0)
		}
		seeded++
	}
	if seeded > 0 {
		logger.Infof("risk: seeded %d closed trades from history, daily pnl=%.2f loss streak=%d",
			seeded, m.daily.RealizedPnL(now, 0), m.tracker.LossStreak())
	}
}

// Tracker exposes the statistics tracker for the status API.
func (m *Manager) Tracker() *Tracker {
	if m == nil {
		return nil
	}
	return m.tracker
}

// DailyPnL returns today's realized PnL.
func (m *Manager) DailyPnL(now time.Time, equity float64) float64 {
	if m == nil {
		return 0
	}
	return m.daily.RealizedPnL(now, equity)
}

// BreakerActive reports whether the daily loss breaker is refusing entries.
func (m *Manager) BreakerActive(now time.Time, equity float64) bool {
	if m == nil {
		return false
	}
	return m.daily.BreakerTripped(m.risk().DailyLossLimit, now, equity)
}

// SizePosition produces the sizing decision for a candidate entry. Balance
// is the free quote balance; price the current price for the symbol. A
// refusal is normal control flow and carries its reason.
func (m *Manager) SizePosition(ctx context.Context, symbol string, score, balance, price float64, now time.Time) SizeDecision {
	cfg := m.risk()
	if m.daily.BreakerTripped(cfg.DailyLossLimit, now, balance) {
		return SizeDecision{Reason: ReasonDailyLossBreaker}
	}
	if m.ledger.Count() >= cfg.MaxPositions {
		return SizeDecision{Reason: ReasonMaxPositions}
	}

	adjusted := m.regime.ScoreAdjustment(score)
	threshold := m.tradingCfg.EntryScoreThreshold
	if m.regime.CurrentRegime() == exchange.RegimeNeutral {
		// Sideways markets demand a stronger signal before entering.
		threshold += cfg.NeutralScoreDelta
	}
	if adjusted < threshold {
		return SizeDecision{Reason: ReasonScoreBelowMin, AdjustedScore: adjusted}
	}

	kellyFrac := m.kellyFraction()
	value := balance * math.Min(cfg.MaxPositionFraction, kellyFrac)

	if m.tradingCfg.IsDynamic(symbol) {
		value *= cfg.DynamicSymbolDiscount
	}
	value *= m.regime.SizeMultiplier()
	if vol, ok, err := m.market.HistoricalVolatility(ctx, symbol); err != nil {
		logger.Warnf("risk: volatility for %s unavailable, skipping adjustment: %v", symbol, err)
	} else if ok && vol > 0 {
		value *= math.Min(1, cfg.TargetVolatility/math.Max(vol, volatilityEpsilon))
	}
	if streak := m.tracker.LossStreak(); streak > 0 {
		value /= 1 + float64(streak)*cfg.LossStreakPenalty
	}

	if limit := balance * cfg.MaxPositionFraction; value > limit {
		value = limit
	}
	if value < m.tradingCfg.MinOrderValue || price <= 0 {
		return SizeDecision{Reason: ReasonBelowMinOrder, AdjustedScore: adjusted}
	}
	if value > balance {
		return SizeDecision{Reason: ReasonInsufficientFunds, AdjustedScore: adjusted}
	}

	fraction := 0.0
	if balance > 0 {
		fraction = value / balance
	}
	return SizeDecision{
		Approved:      true,
		Reason:        ReasonOK,
		Fraction:      fraction,
		QuoteValue:    value,
		AdjustedScore: adjusted,
	}
}

// OnPositionClosed folds a realized PnL into the statistics and the daily
// loss state.
func (m *Manager) OnPositionClosed(pnl float64, now time.Time, equity float64) {
	if m == nil {
		return
	}
	m.tracker.RecordTrade(pnl)
	m.daily.RecordPnL(pnl, now, equity)
}

func (m *Manager) kellyFraction() float64 {
	cfg := m.risk()
	if m.tracker.TradeCount() < cfg.MinTradesForKelly {
		return cfg.DefaultPositionFraction
	}
	return KellyFraction(
		m.tracker.WinRate(),
		m.tracker.PayoffRatio(),
		cfg.DefaultPositionFraction,
		cfg.MinPositionFraction,
		cfg.MaxPositionFraction,
	)
}
