package position

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"palisade/internal/gateway/exchange"
	"palisade/internal/logger"
	"palisade/internal/pkg/symbol"
	"palisade/internal/store"

	"golang.org/x/sync/errgroup"
)

// dustTolerance is the relative quantity mismatch below which a persisted
// position and the exchange balance are considered the same position.
const dustTolerance = 0.01

// RecoveryOptions bounds what balances become synthesized positions.
type RecoveryOptions struct {
	QuoteAsset    string
	MinOrderValue float64
	// TrackedSymbols limits synthesis to symbols the bot actually trades.
	TrackedSymbols []string
}

// Recoverer reconciles persisted positions against live exchange balances
// once at startup. It never runs concurrently with the tick loop.
type Recoverer struct {
	ledger  *Ledger
	store   store.Store
	account exchange.AccountSource
	market  exchange.MarketDataSource
	opts    RecoveryOptions

	once sync.Once
}

func NewRecoverer(ledger *Ledger, st store.Store, account exchange.AccountSource, market exchange.MarketDataSource, opts RecoveryOptions) *Recoverer {
	if opts.QuoteAsset == "" {
		opts.QuoteAsset = "USDT"
	}
	return &Recoverer{
		ledger:  ledger,
		store:   st,
		account: account,
		market:  market,
		opts:    opts,
	}
}

// Recover runs the reconciliation exactly once. Later calls are no-ops.
func (r *Recoverer) Recover(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("recoverer: not initialized")
	}
	var err error
	r.once.Do(func() { err = r.run(ctx) })
	return err
}

func (r *Recoverer) run(ctx context.Context) error {
	records, err := r.store.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("recovery: load persisted positions: %w", err)
	}
	balances, err := r.account.AssetBalances(ctx)
	if err != nil {
		return fmt.Errorf("recovery: fetch exchange balances: %w", err)
	}

	balanceByAsset := make(map[string]exchange.AssetBalance, len(balances))
	for _, bal := range balances {
		balanceByAsset[strings.ToUpper(bal.Asset)] = bal
	}

	matchedAssets := make(map[string]bool)
	restored, adjusted, dropped := 0, 0, 0
	for _, rec := range records {
		base := symbol.BaseAsset(rec.Symbol)
		bal, ok := balanceByAsset[base]
		held := bal.Total()
		if !ok || held <= 0 {
			// The asset left the account entirely while we were down.
			logger.Warnf("recovery: dropping flat position %s (recorded %.8f, held %.8f)", rec.Symbol, rec.Quantity, held)
			if err := r.store.DeletePosition(ctx, rec.Symbol); err != nil {
				return fmt.Errorf("recovery: drop flat position %s: %w", rec.Symbol, err)
			}
			dropped++
			continue
		}
		matchedAssets[base] = true
		pos := fromRecord(rec)
		if math.Abs(held-pos.Quantity) > pos.Quantity*dustTolerance {
			// The balance moved while we were down. The exchange owns the
			// quantity; the record keeps its entry price and time.
			logger.Warnf("recovery: adopting exchange quantity for %s: %.8f -> %.8f", rec.Symbol, pos.Quantity, held)
			pos.Quantity = held
			pos.OriginalQuantity = held
			if err := r.store.SavePosition(ctx, pos.toRecord(time.Now())); err != nil {
				return fmt.Errorf("recovery: persist adjusted position %s: %w", rec.Symbol, err)
			}
			adjusted++
		} else if held < pos.Quantity {
			// Dust-level shortfall, trust the exchange quietly.
			pos.Quantity = held
		}
		r.ledger.Restore(pos)
		restored++
	}

	synthesized, err := r.synthesize(ctx, balanceByAsset, matchedAssets)
	if err != nil {
		return err
	}
	logger.Infof("recovery: restored=%d adjusted=%d dropped=%d synthesized=%d", restored, adjusted, dropped, synthesized)
	return nil
}

// synthesize creates weak-provenance positions for tracked balances that
// have no persisted record. Entry price comes from the exchange trade
// history when available, otherwise the current price.
func (r *Recoverer) synthesize(ctx context.Context, balances map[string]exchange.AssetBalance, matched map[string]bool) (int, error) {
	tracked := make(map[string]string, len(r.opts.TrackedSymbols))
	for _, sym := range r.opts.TrackedSymbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		tracked[symbol.BaseAsset(sym)] = sym
	}

	type candidate struct {
		symbol   string
		quantity float64
	}
	var candidates []candidate
	for asset, bal := range balances {
		if matched[asset] || asset == strings.ToUpper(r.opts.QuoteAsset) {
			continue
		}
		sym, ok := tracked[asset]
		if !ok || bal.Total() <= 0 {
			continue
		}
		candidates = append(candidates, candidate{symbol: sym, quantity: bal.Total()})
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	results := make([]*Position, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, cand := range candidates {
		g.Go(func() error {
			price, _, err := r.market.CurrentPrice(gctx, cand.symbol)
			if err != nil {
				return fmt.Errorf("recovery: price for %s: %w", cand.symbol, err)
			}
			if price*cand.quantity < r.opts.MinOrderValue {
				// Dust holding, not worth managing.
				return nil
			}
			entry := price
			if avg, ok, err := r.account.AverageBuyPrice(gctx, cand.symbol); err != nil {
				logger.Warnf("recovery: average buy price for %s unavailable, using current price: %v", cand.symbol, err)
			} else if ok && avg > 0 {
				entry = avg
			}
			results[i] = &Position{
				Symbol:           cand.symbol,
				EntryPrice:       entry,
				AvgEntryPrice:    entry,
				Quantity:         cand.quantity,
				OriginalQuantity: cand.quantity,
				EntryTime:        time.Now(),
				HighWaterPrice:   price,
				ExecutedTiers:    make(map[int]bool),
				Recovered:        true,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, pos := range results {
		if pos == nil {
			continue
		}
		if err := r.ledger.Open(ctx, pos); err != nil {
			return count, fmt.Errorf("recovery: register synthesized position %s: %w", pos.Symbol, err)
		}
		logger.Infof("recovery: synthesized position %s qty=%.8f entry=%.8f", pos.Symbol, pos.Quantity, pos.EntryPrice)
		count++
	}
	return count, nil
}
