package config

import "strings"

// Config is the root configuration carrier.
type Config struct {
	App      AppConfig      `toml:"app"`
	Exchange ExchangeConfig `toml:"exchange"`
	Trading  TradingConfig  `toml:"trading"`
	Risk     RiskConfig     `toml:"risk"`
	Exits    ExitConfig     `toml:"exits"`
	Pyramid  PyramidConfig  `toml:"pyramid"`
	Notify   NotifyConfig   `toml:"notify"`
	Store    StoreConfig    `toml:"store"`
	Presets  PresetConfig   `toml:"presets"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// ExchangeConfig describes the spot exchange connection.
type ExchangeConfig struct {
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Testnet        bool   `toml:"testnet"`
}

// TradingConfig drives the tick loop and entry gating.
type TradingConfig struct {
	QuoteAsset          string   `toml:"quote_asset"`
	CoreSymbols         []string `toml:"core_symbols"`
	DynamicSymbols      []string `toml:"dynamic_symbols"`
	TickIntervalSeconds int      `toml:"tick_interval_seconds"`
	MinOrderValue       float64  `toml:"min_order_value"`
	EntryScoreThreshold float64  `toml:"entry_score_threshold"`
}

// Symbols returns core plus dynamic symbols, deduplicated, core first.
func (t TradingConfig) Symbols() []string {
	out := make([]string, 0, len(t.CoreSymbols)+len(t.DynamicSymbols))
	seen := make(map[string]bool, cap(out))
	for _, group := range [][]string{t.CoreSymbols, t.DynamicSymbols} {
		for _, sym := range group {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

// IsDynamic reports whether sym is a dynamic (non-core) symbol.
func (t TradingConfig) IsDynamic(sym string) bool {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	for _, core := range t.CoreSymbols {
		if strings.ToUpper(strings.TrimSpace(core)) == sym {
			return false
		}
	}
	return true
}

// RiskConfig bounds position sizing and loss controls.
type RiskConfig struct {
	MaxPositionFraction     float64 `toml:"max_position_fraction"`     // Kelly clamp upper bound
	MinPositionFraction     float64 `toml:"min_position_fraction"`     // Kelly clamp lower bound
	DefaultPositionFraction float64 `toml:"default_position_fraction"` // used before enough history
	MinTradesForKelly       int     `toml:"min_trades_for_kelly"`
	BaseStopLoss            float64 `toml:"base_stop_loss"`
	StopDecayHours          float64 `toml:"stop_decay_hours"`
	StopDecayMax            float64 `toml:"stop_decay_max"`
	TrailingActivation      float64 `toml:"trailing_activation"`
	TrailingDistance        float64 `toml:"trailing_distance"`
	DailyLossLimit          float64 `toml:"daily_loss_limit"`
	MaxPositions            int     `toml:"max_positions"`
	TargetVolatility        float64 `toml:"target_volatility"`
	DynamicSymbolDiscount   float64 `toml:"dynamic_symbol_discount"`
	LossStreakPenalty       float64 `toml:"loss_streak_penalty"`
	NeutralScoreDelta       float64 `toml:"neutral_score_delta"`
}

// ExitConfig lists the partial exit tiers, evaluated in order.
type ExitConfig struct {
	Tiers []TierConfig `toml:"tiers"`
}

// TierConfig is one take-profit tier. ExitFraction is relative to the
// original position size.
type TierConfig struct {
	ProfitThreshold float64 `toml:"profit_threshold"`
	ExitFraction    float64 `toml:"exit_fraction"`
	MinHoldSeconds  int     `toml:"min_hold_seconds"`
}

// PyramidConfig controls scaling into winners.
type PyramidConfig struct {
	Enabled          bool     `toml:"enabled"`
	MaxAdds          int      `toml:"max_adds"`
	MinProfit        float64  `toml:"min_profit"`
	MinScoreIncrease float64  `toml:"min_score_increase"`
	SizeRatio        float64  `toml:"size_ratio"`
	MaxTotalFraction float64  `toml:"max_total_fraction"`
	AllowedRegimes   []string `toml:"allowed_regimes"`
	BreakevenStop    bool     `toml:"breakeven_stop"`
}

// RegimeAllowed reports whether pyramiding is permitted in the given regime.
func (p PyramidConfig) RegimeAllowed(regime string) bool {
	regime = strings.ToLower(strings.TrimSpace(regime))
	for _, allowed := range p.AllowedRegimes {
		if strings.ToLower(strings.TrimSpace(allowed)) == regime {
			return true
		}
	}
	return false
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// PresetConfig points at the hot-reloadable risk preset file.
type PresetConfig struct {
	Path string `toml:"path"`
}

// keySet tracks field paths explicitly present in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
