package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"palisade/internal/analysis"
	"palisade/internal/config"
	cfgloader "palisade/internal/config/loader"
	"palisade/internal/engine"
	"palisade/internal/gateway/binance"
	"palisade/internal/gateway/notifier"
	"palisade/internal/logger"
	"palisade/internal/position"
	"palisade/internal/risk"
	"palisade/internal/store"
	"palisade/internal/store/gormstore"
	"palisade/internal/strategy/partialexit"
	"palisade/internal/strategy/pyramid"
	statushttp "palisade/internal/transport/http/status"
)

// riskSeedDepth bounds how many persisted trades replay into the
// statistics tracker at startup.
const riskSeedDepth = 500

// Builder wires the trading stack from config. Collaborator overrides exist
// so tests and replay harnesses can swap the exchange-facing pieces.
type Builder struct {
	cfg *config.Config

	storeOverride  store.Store
	gatewayFn      func(config.ExchangeConfig, string) (*binance.Client, error)
	notifierFn     func(config.NotifyConfig) notifier.Notifier
	presetLoaderFn func(string) (*cfgloader.PresetLoader, error)
}

type BuilderOption func(*Builder)

// WithStore replaces the sqlite store, used by tests.
func WithStore(st store.Store) BuilderOption {
	return func(b *Builder) { b.storeOverride = st }
}

func NewBuilder(cfg *config.Config, opts ...BuilderOption) *Builder {
	b := &Builder{
		cfg:            cfg,
		gatewayFn:      binance.New,
		notifierFn:     buildNotifier,
		presetLoaderFn: cfgloader.NewPresetLoader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildNotifier(cfg config.NotifyConfig) notifier.Notifier {
	if !cfg.Telegram.Enabled {
		return notifier.Noop{}
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func (b *Builder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	st := b.storeOverride
	if st == nil {
		var err error
		st, err = gormstore.NewGormStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	gateway, err := b.gatewayFn(cfg.Exchange, cfg.Trading.QuoteAsset)
	if err != nil {
		return nil, fmt.Errorf("build exchange gateway: %w", err)
	}

	ledger := position.NewLedger(st)
	recoverer := position.NewRecoverer(ledger, st, gateway, gateway, position.RecoveryOptions{
		QuoteAsset:     cfg.Trading.QuoteAsset,
		MinOrderValue:  cfg.Trading.MinOrderValue,
		TrackedSymbols: cfg.Trading.Symbols(),
	})

	regime := analysis.NewEMARegime(analysis.RegimeConfig{
		BenchmarkSymbol: benchmarkSymbol(cfg.Trading),
	}, gateway)
	scorer := analysis.NewMomentumScorer(analysis.MomentumConfig{}, gateway)

	riskMgr := risk.NewManager(cfg.Risk, cfg.Trading, cfg.Pyramid.BreakevenStop,
		risk.NewTracker(), risk.NewDailyState(), ledger, gateway, regime)
	history, err := st.ListTradeRecords(ctx, riskSeedDepth)
	if err != nil {
		return nil, fmt.Errorf("load trade history: %w", err)
	}
	riskMgr.SeedFromHistory(history, time.Now())

	notify := b.notifierFn(cfg.Notify)
	eng := engine.New(cfg.Trading, ledger, riskMgr,
		partialexit.New(cfg.Exits.Tiers), pyramid.New(cfg.Pyramid, cfg.Trading.MinOrderValue),
		gateway, gateway, gateway, scorer, regime, st, notify)

	httpSrv, err := statushttp.NewServer(statushttp.ServerConfig{
		Addr:         cfg.App.HTTPAddr,
		Ledger:       ledger,
		Risk:         riskMgr,
		Store:        st,
		Account:      gateway,
		Halted:       eng.Halted,
		OrderBreaker: gateway.BreakerState,
		Started:      time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("build status server: %w", err)
	}

	presets, err := b.loadPresets(cfg, riskMgr)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		store:     st,
		engine:    eng,
		regime:    regime,
		recoverer: recoverer,
		httpSrv:   httpSrv,
		presets:   presets,
	}, nil
}

// loadPresets attaches the risk preset hot-reload when the preset file
// exists. A missing file is not an error; the base risk section applies.
func (b *Builder) loadPresets(cfg *config.Config, riskMgr *risk.Manager) (*cfgloader.PresetLoader, error) {
	path := strings.TrimSpace(cfg.Presets.Path)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Infof("risk presets not found at %s, using base risk config", path)
		return nil, nil
	}
	loader, err := b.presetLoaderFn(path)
	if err != nil {
		return nil, fmt.Errorf("load risk presets: %w", err)
	}
	base := cfg.Risk
	loader.Subscribe(func(snap cfgloader.PresetSnapshot) {
		effective := base
		if def, ok := snap.ActivePreset(); ok {
			candidate := def.Apply(base)
			if err := candidate.Validate(); err != nil {
				// Keep the last good parameter set in place.
				logger.Errorf("risk preset %q rejected (version %d): %v", def.Name, snap.Version, err)
				return
			}
			effective = candidate
			logger.Infof("risk preset %q applied (version %d)", def.Name, snap.Version)
		} else {
			logger.Infof("no active risk preset, base risk config applied (version %d)", snap.Version)
		}
		riskMgr.UpdateRiskConfig(effective)
	})
	return loader, nil
}

func benchmarkSymbol(cfg config.TradingConfig) string {
	if len(cfg.CoreSymbols) > 0 {
		return cfg.CoreSymbols[0]
	}
	return "BTCUSDT"
}
