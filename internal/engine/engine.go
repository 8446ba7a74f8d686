// Package engine runs the evaluation loop: one tick at a time, exits
// evaluated before entries, symbols processed sequentially so shared risk
// state is never mutated concurrently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"palisade/internal/config"
	"palisade/internal/gateway/exchange"
	"palisade/internal/gateway/notifier"
	"palisade/internal/logger"
	"palisade/internal/metrics"
	"palisade/internal/position"
	"palisade/internal/risk"
	"palisade/internal/scheduler"
	"palisade/internal/store"
	"palisade/internal/strategy/partialexit"
	"palisade/internal/strategy/pyramid"

	"github.com/google/uuid"
)

// Engine orchestrates the per-tick data flow: market inputs into the risk
// manager, decisions applied through the ledger, fills recorded against the
// statistics tracker and trade history.
type Engine struct {
	tradingCfg config.TradingConfig

	ledger  *position.Ledger
	riskMgr *risk.Manager
	partial *partialexit.Engine
	pyramid *pyramid.Engine

	executor exchange.TradeExecutor
	market   exchange.MarketDataSource
	account  exchange.AccountSource
	signals  exchange.SignalSource
	regime   exchange.RegimeClassifier

	store  store.Store
	notify notifier.Notifier

	// halted refuses new entries after a fatal state inconsistency. Exits
	// keep running; only operator intervention (restart) clears it.
	halted atomic.Bool
}

func New(tradingCfg config.TradingConfig, ledger *position.Ledger, riskMgr *risk.Manager,
	partial *partialexit.Engine, pyr *pyramid.Engine,
	executor exchange.TradeExecutor, market exchange.MarketDataSource,
	account exchange.AccountSource, signals exchange.SignalSource,
	regime exchange.RegimeClassifier, st store.Store, notify notifier.Notifier) *Engine {
	if notify == nil {
		notify = notifier.Noop{}
	}
	return &Engine{
		tradingCfg: tradingCfg,
		ledger:     ledger,
		riskMgr:    riskMgr,
		partial:    partial,
		pyramid:    pyr,
		executor:   executor,
		market:     market,
		account:    account,
		signals:    signals,
		regime:     regime,
		store:      st,
		notify:     notify,
	}
}

// Run ticks until the context is cancelled. Ticks align to wall-clock
// interval boundaries; the first tick fires immediately rather than waiting
// out the alignment.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(e.tradingCfg.TickIntervalSeconds) * time.Second
	sched := scheduler.NewAlignedScheduler(ctx, interval, 0)
	sched.RunImmediately = true
	sched.Start(func() { e.Tick(ctx) })
	return ctx.Err()
}

// Halted reports whether new entries are refused after a fatal
// inconsistency.
func (e *Engine) Halted() bool {
	return e.halted.Load()
}

// Tick runs one full evaluation pass: all open positions' exits first, then
// entry and pyramid candidates.
func (e *Engine) Tick(ctx context.Context) {
	now := time.Now()
	balance, err := e.account.QuoteBalance(ctx)
	if err != nil {
		// Exits must still run; sizing will refuse on the zero balance.
		logger.Warnf("engine: quote balance unavailable this tick: %v", err)
		balance = 0
	}

	e.evaluateExits(ctx, balance, now)
	e.evaluateEntries(ctx, balance, now)

	metrics.TicksTotal.Inc()
	metrics.OpenPositions.Set(float64(e.ledger.Count()))
	metrics.DailyRealizedPnL.Set(e.riskMgr.DailyPnL(now, balance))
}

func (e *Engine) evaluateExits(ctx context.Context, balance float64, now time.Time) {
	for _, pos := range e.ledger.List() {
		price, ok, err := e.market.CurrentPrice(ctx, pos.Symbol)
		if err != nil || !ok {
			// Transient: skip this symbol this tick, never crash an exit pass.
			logger.Warnf("engine: price unavailable for %s, skipping exit checks: %v", pos.Symbol, err)
			continue
		}
		if err := e.ledger.UpdateHighWater(ctx, pos.Symbol, price); err != nil {
			logger.Errorf("engine: high-water update for %s failed: %v", pos.Symbol, err)
		}

		if dec := e.riskMgr.EvaluateExit(pos, price, now); dec.Exit {
			e.closePosition(ctx, pos, price, string(dec.Reason), balance, now)
			continue
		}

		if pd := e.partial.Evaluate(pos, price, now); pd.Fire {
			e.executePartialExit(ctx, pos, price, pd, now)
		}
	}
}

func (e *Engine) closePosition(ctx context.Context, pos *position.Position, price float64, reason string, balance float64, now time.Time) {
	filled, err := e.executor.ExecuteMarketOrder(ctx, pos.Symbol, exchange.SideSell, pos.Quantity)
	if err != nil {
		// Ledger untouched: the exit re-fires next tick.
		metrics.OrderFailures.WithLabelValues(string(exchange.SideSell)).Inc()
		logger.Errorf("engine: %s exit order for %s failed: %v", reason, pos.Symbol, err)
		return
	}
	pnl := (price - pos.AvgEntryPrice) * filled
	if _, err := e.ledger.Close(ctx, pos.Symbol); err != nil {
		e.halt(fmt.Sprintf("close of %s not applied: %v", pos.Symbol, err))
		return
	}
	e.riskMgr.OnPositionClosed(pnl, now, balance)
	e.appendTrade(ctx, store.TradeRecord{
		Symbol:    pos.Symbol,
		Side:      string(exchange.SideSell),
		Price:     price,
		Quantity:  filled,
		PnL:       pnl,
		Reason:    reason,
		Timestamp: now,
	})
	metrics.ExitsTotal.WithLabelValues(reason).Inc()
	logger.Infof("engine: closed %s reason=%s qty=%.8f pnl=%.2f", pos.Symbol, reason, filled, pnl)
	e.notifyText(fmt.Sprintf("closed %s (%s) qty=%.6f pnl=%.2f", pos.Symbol, reason, filled, pnl))
}

func (e *Engine) executePartialExit(ctx context.Context, pos *position.Position, price float64, pd partialexit.Decision, now time.Time) {
	filled, err := e.executor.ExecuteMarketOrder(ctx, pos.Symbol, exchange.SideSell, pd.SellQuantity)
	if err != nil {
		metrics.OrderFailures.WithLabelValues(string(exchange.SideSell)).Inc()
		logger.Errorf("engine: partial exit order for %s failed: %v", pos.Symbol, err)
		return
	}
	// Tier marked only now that the sell is confirmed.
	if _, err := e.ledger.ApplyPartialExit(ctx, pos.Symbol, filled, pd.TierIndex); err != nil {
		e.halt(fmt.Sprintf("partial exit of %s not applied: %v", pos.Symbol, err))
		return
	}
	pnl := (price - pos.AvgEntryPrice) * filled
	e.appendTrade(ctx, store.TradeRecord{
		Symbol:    pos.Symbol,
		Side:      string(exchange.SideSell),
		Price:     price,
		Quantity:  filled,
		PnL:       pnl,
		Reason:    store.TradeReasonPartialExit,
		Timestamp: now,
	})
	metrics.PartialExitsTotal.Inc()
	logger.Infof("engine: partial exit %s tier=%d qty=%.8f profit=%.4f", pos.Symbol, pd.TierIndex, filled, pd.ProfitRate)
}

func (e *Engine) evaluateEntries(ctx context.Context, balance float64, now time.Time) {
	if e.Halted() {
		logger.Warnf("engine: entries halted, evaluating exits only")
		return
	}
	signals, err := e.signals.Scores(ctx, e.tradingCfg.Symbols())
	if err != nil {
		logger.Warnf("engine: entry signals unavailable this tick: %v", err)
		return
	}
	for _, sig := range signals {
		price, ok, err := e.market.CurrentPrice(ctx, sig.Symbol)
		if err != nil || !ok {
			logger.Warnf("engine: price unavailable for %s, skipping entry: %v", sig.Symbol, err)
			continue
		}
		// Keep the running balance honest within the tick: quote spent on
		// one symbol is not available to the next.
		if pos, open := e.ledger.Get(sig.Symbol); open {
			balance -= e.tryPyramid(ctx, pos, price, sig.Score, balance, now)
			continue
		}
		balance -= e.tryEntry(ctx, sig, price, balance, now)
	}
}

func (e *Engine) tryEntry(ctx context.Context, sig exchange.EntrySignal, price, balance float64, now time.Time) float64 {
	dec := e.riskMgr.SizePosition(ctx, sig.Symbol, sig.Score, balance, price, now)
	metrics.SizingDecisions.WithLabelValues(string(dec.Reason)).Inc()
	if !dec.Approved {
		logger.Debugf("engine: entry refused for %s: %s", sig.Symbol, dec.Reason)
		return 0
	}
	quantity := dec.QuoteValue / price
	filled, err := e.executor.ExecuteMarketOrder(ctx, sig.Symbol, exchange.SideBuy, quantity)
	if err != nil {
		metrics.OrderFailures.WithLabelValues(string(exchange.SideBuy)).Inc()
		logger.Errorf("engine: entry order for %s failed: %v", sig.Symbol, err)
		return 0
	}
	pos := &position.Position{
		Symbol:     sig.Symbol,
		EntryPrice: price,
		Quantity:   filled,
		EntryTime:  now,
		EntryScore: dec.AdjustedScore,
	}
	if err := e.ledger.Open(ctx, pos); err != nil {
		if errors.Is(err, position.ErrPositionExists) {
			e.halt(fmt.Sprintf("double open on %s: %v", sig.Symbol, err))
		} else {
			logger.Errorf("engine: persist new position %s failed: %v", sig.Symbol, err)
		}
		return 0
	}
	e.appendTrade(ctx, store.TradeRecord{
		Symbol:    sig.Symbol,
		Side:      string(exchange.SideBuy),
		Price:     price,
		Quantity:  filled,
		Reason:    store.TradeReasonEntry,
		Timestamp: now,
	})
	logger.Infof("engine: opened %s qty=%.8f value=%.2f score=%.3f", sig.Symbol, filled, dec.QuoteValue, dec.AdjustedScore)
	e.notifyText(fmt.Sprintf("opened %s qty=%.6f value=%.2f", sig.Symbol, filled, dec.QuoteValue))
	return filled * price
}

// tryPyramid returns the quote value spent so the tick loop can deduct it
// from the balance later entries size against.
func (e *Engine) tryPyramid(ctx context.Context, pos *position.Position, price, score, balance float64, now time.Time) float64 {
	adjusted := e.regime.ScoreAdjustment(score)
	dec := e.pyramid.Evaluate(pos, price, adjusted, e.regime.CurrentRegime(), balance)
	if !dec.Approved {
		logger.Debugf("engine: pyramid refused for %s: %s", pos.Symbol, dec.Reason)
		return 0
	}
	quantity := dec.AddValue / price
	filled, err := e.executor.ExecuteMarketOrder(ctx, pos.Symbol, exchange.SideBuy, quantity)
	if err != nil {
		metrics.OrderFailures.WithLabelValues(string(exchange.SideBuy)).Inc()
		logger.Errorf("engine: pyramid order for %s failed: %v", pos.Symbol, err)
		return 0
	}
	if _, err := e.ledger.ApplyPyramid(ctx, pos.Symbol, position.PyramidAdd{
		Price:    price,
		Quantity: filled,
		Score:    adjusted,
		Time:     now,
	}); err != nil {
		e.halt(fmt.Sprintf("pyramid on %s not applied: %v", pos.Symbol, err))
		return filled * price
	}
	e.appendTrade(ctx, store.TradeRecord{
		Symbol:    pos.Symbol,
		Side:      string(exchange.SideBuy),
		Price:     price,
		Quantity:  filled,
		Reason:    store.TradeReasonPyramid,
		Timestamp: now,
	})
	metrics.PyramidAddsTotal.Inc()
	logger.Infof("engine: pyramid add %s qty=%.8f value=%.2f score=%.3f", pos.Symbol, filled, dec.AddValue, adjusted)
	return filled * price
}

func (e *Engine) appendTrade(ctx context.Context, rec store.TradeRecord) {
	if e.store == nil {
		return
	}
	if rec.TradeID == "" {
		rec.TradeID = uuid.NewString()
	}
	if err := e.store.AppendTradeRecord(ctx, rec); err != nil {
		logger.Errorf("engine: append trade record for %s failed: %v", rec.Symbol, err)
	}
}

func (e *Engine) notifyText(text string) {
	if err := e.notify.SendText(text); err != nil {
		logger.Warnf("engine: notification failed: %v", err)
	}
}

func (e *Engine) halt(cause string) {
	if e.halted.CompareAndSwap(false, true) {
		metrics.EntriesHalted.Set(1)
		logger.Errorf("engine: FATAL state inconsistency, new entries halted: %s", cause)
		e.notifyText("new entries halted: " + cause)
	}
}
