package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9982"
	defaultAppLogPath  = "/data/logs/palisade.log"

	defaultExchangeREST    = "https://api.binance.com"
	defaultExchangeTimeout = 15

	defaultQuoteAsset     = "USDT"
	defaultTickInterval   = 60
	defaultMinOrderValue  = 10
	defaultScoreThreshold = 0.6

	defaultMaxPositionFraction = 0.10
	defaultMinPositionFraction = 0.01
	defaultPositionFraction    = 0.02
	defaultMinTradesForKelly   = 10
	defaultBaseStopLoss        = 0.05
	defaultStopDecayHours      = 24
	defaultStopDecayMax        = 0.30
	defaultTrailingActivation  = 0.02
	defaultTrailingDistance    = 0.03
	defaultDailyLossLimit      = 0.05
	defaultMaxPositions        = 5
	defaultTargetVolatility    = 0.03
	defaultDynamicDiscount     = 0.6
	defaultLossStreakPenalty   = 0.2

	defaultPyramidMaxAdds      = 2
	defaultPyramidMinProfit    = 0.03
	defaultPyramidMinScoreInc  = 0.05
	defaultPyramidSizeRatio    = 0.5
	defaultPyramidMaxTotalFrac = 0.15

	defaultStorePath   = "/data/db/palisade.db"
	defaultPresetsPath = "configs/risk_presets.yaml"
)

// applyDefaults fills defaults for all sub-configs.
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Exits.applyDefaults(keys)
	c.Pyramid.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Presets.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.rest_base_url", &e.RESTBaseURL, defaultExchangeREST),
		fieldDefault{
			key:   "exchange.timeout_seconds",
			need:  func() bool { return e.TimeoutSeconds <= 0 },
			apply: func() { e.TimeoutSeconds = defaultExchangeTimeout },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.quote_asset", &t.QuoteAsset, defaultQuoteAsset),
		fieldDefault{
			key:   "trading.tick_interval_seconds",
			need:  func() bool { return t.TickIntervalSeconds <= 0 },
			apply: func() { t.TickIntervalSeconds = defaultTickInterval },
		},
		fieldDefault{
			key:   "trading.min_order_value",
			need:  func() bool { return t.MinOrderValue <= 0 },
			apply: func() { t.MinOrderValue = defaultMinOrderValue },
		},
		fieldDefault{
			key:   "trading.entry_score_threshold",
			need:  func() bool { return t.EntryScoreThreshold <= 0 },
			apply: func() { t.EntryScoreThreshold = defaultScoreThreshold },
		},
	)
	t.QuoteAsset = strings.ToUpper(strings.TrimSpace(t.QuoteAsset))
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.max_position_fraction",
			need:  func() bool { return r.MaxPositionFraction <= 0 || r.MaxPositionFraction > 1 },
			apply: func() { r.MaxPositionFraction = defaultMaxPositionFraction },
		},
		fieldDefault{
			key:   "risk.min_position_fraction",
			need:  func() bool { return r.MinPositionFraction <= 0 },
			apply: func() { r.MinPositionFraction = defaultMinPositionFraction },
		},
		fieldDefault{
			key:   "risk.default_position_fraction",
			need:  func() bool { return r.DefaultPositionFraction <= 0 },
			apply: func() { r.DefaultPositionFraction = defaultPositionFraction },
		},
		fieldDefault{
			key:   "risk.min_trades_for_kelly",
			need:  func() bool { return r.MinTradesForKelly <= 0 },
			apply: func() { r.MinTradesForKelly = defaultMinTradesForKelly },
		},
		fieldDefault{
			key:   "risk.base_stop_loss",
			need:  func() bool { return r.BaseStopLoss <= 0 },
			apply: func() { r.BaseStopLoss = defaultBaseStopLoss },
		},
		fieldDefault{
			key:   "risk.stop_decay_hours",
			need:  func() bool { return r.StopDecayHours <= 0 },
			apply: func() { r.StopDecayHours = defaultStopDecayHours },
		},
		fieldDefault{
			key:   "risk.stop_decay_max",
			need:  func() bool { return r.StopDecayMax <= 0 },
			apply: func() { r.StopDecayMax = defaultStopDecayMax },
		},
		fieldDefault{
			key:   "risk.trailing_activation",
			need:  func() bool { return r.TrailingActivation <= 0 },
			apply: func() { r.TrailingActivation = defaultTrailingActivation },
		},
		fieldDefault{
			key:   "risk.trailing_distance",
			need:  func() bool { return r.TrailingDistance <= 0 },
			apply: func() { r.TrailingDistance = defaultTrailingDistance },
		},
		fieldDefault{
			key:   "risk.daily_loss_limit",
			need:  func() bool { return r.DailyLossLimit <= 0 },
			apply: func() { r.DailyLossLimit = defaultDailyLossLimit },
		},
		fieldDefault{
			key:   "risk.max_positions",
			need:  func() bool { return r.MaxPositions <= 0 },
			apply: func() { r.MaxPositions = defaultMaxPositions },
		},
		fieldDefault{
			key:   "risk.target_volatility",
			need:  func() bool { return r.TargetVolatility <= 0 },
			apply: func() { r.TargetVolatility = defaultTargetVolatility },
		},
		fieldDefault{
			key:   "risk.dynamic_symbol_discount",
			need:  func() bool { return r.DynamicSymbolDiscount <= 0 || r.DynamicSymbolDiscount > 1 },
			apply: func() { r.DynamicSymbolDiscount = defaultDynamicDiscount },
		},
		fieldDefault{
			key:   "risk.loss_streak_penalty",
			need:  func() bool { return r.LossStreakPenalty <= 0 },
			apply: func() { r.LossStreakPenalty = defaultLossStreakPenalty },
		},
	)
	// neutral_score_delta may legitimately be zero; leave it alone.
	if r.NeutralScoreDelta < 0 {
		r.NeutralScoreDelta = 0
	}
}

func (e *ExitConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	if keys.isSet("exits.tiers") {
		return
	}
	if len(e.Tiers) == 0 {
		e.Tiers = []TierConfig{
			{ProfitThreshold: 0.05, ExitFraction: 0.25},
			{ProfitThreshold: 0.10, ExitFraction: 0.25},
			{ProfitThreshold: 0.20, ExitFraction: 0.25},
		}
	}
}

func (p *PyramidConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "pyramid.max_adds",
			need:  func() bool { return p.MaxAdds <= 0 },
			apply: func() { p.MaxAdds = defaultPyramidMaxAdds },
		},
		fieldDefault{
			key:   "pyramid.min_profit",
			need:  func() bool { return p.MinProfit <= 0 },
			apply: func() { p.MinProfit = defaultPyramidMinProfit },
		},
		fieldDefault{
			key:   "pyramid.min_score_increase",
			need:  func() bool { return p.MinScoreIncrease <= 0 },
			apply: func() { p.MinScoreIncrease = defaultPyramidMinScoreInc },
		},
		fieldDefault{
			key:   "pyramid.size_ratio",
			need:  func() bool { return p.SizeRatio <= 0 || p.SizeRatio > 1 },
			apply: func() { p.SizeRatio = defaultPyramidSizeRatio },
		},
		fieldDefault{
			key:   "pyramid.max_total_fraction",
			need:  func() bool { return p.MaxTotalFraction <= 0 || p.MaxTotalFraction > 1 },
			apply: func() { p.MaxTotalFraction = defaultPyramidMaxTotalFrac },
		},
	)
	if len(p.AllowedRegimes) == 0 && !keys.isSet("pyramid.allowed_regimes") {
		p.AllowedRegimes = []string{"bullish"}
	}
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (p *PresetConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("presets.path", &p.Path, defaultPresetsPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
