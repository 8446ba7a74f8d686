// Package app wires configuration into the running trading stack and owns
// its lifecycle: recovery first, then the tick loop, regime refresher, and
// status HTTP server together.
package app

import (
	"context"
	"fmt"

	"palisade/internal/analysis"
	"palisade/internal/config"
	cfgloader "palisade/internal/config/loader"
	"palisade/internal/engine"
	"palisade/internal/logger"
	"palisade/internal/position"
	"palisade/internal/store"
	statushttp "palisade/internal/transport/http/status"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg       *config.Config
	store     store.Store
	engine    *engine.Engine
	regime    *analysis.EMARegime
	recoverer *position.Recoverer
	httpSrv   *statushttp.Server
	presets   *cfgloader.PresetLoader
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return NewBuilder(cfg).Build(context.Background())
}

// Run recovers the ledger, then serves until ctx is cancelled or a component
// fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	// Reconciliation must finish before any sizing or exit evaluation.
	if err := a.recoverer.Recover(ctx); err != nil {
		return fmt.Errorf("position recovery: %w", err)
	}
	logger.Infof("✓ position recovery complete, %d symbols tracked", len(a.cfg.Trading.Symbols()))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("status http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		a.regime.Run(ctx)
		return nil
	})

	group.Go(func() error {
		return a.engine.Run(ctx)
	})

	err := group.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("store close failed: %v", err)
		}
	}
}
