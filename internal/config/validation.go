package config

import (
	"fmt"
	"strings"
)

// validate performs basic sanity checks across sections.
func validate(c *Config) error {
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Exits.validate(); err != nil {
		return err
	}
	if err := c.Pyramid.validate(&c.Risk); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if len(t.CoreSymbols) == 0 && len(t.DynamicSymbols) == 0 {
		return fmt.Errorf("trading requires at least one symbol in core_symbols or dynamic_symbols")
	}
	if t.TickIntervalSeconds <= 0 {
		return fmt.Errorf("trading.tick_interval_seconds must be > 0")
	}
	if t.MinOrderValue <= 0 {
		return fmt.Errorf("trading.min_order_value must be > 0")
	}
	if t.EntryScoreThreshold <= 0 || t.EntryScoreThreshold > 1 {
		return fmt.Errorf("trading.entry_score_threshold must be in (0, 1]")
	}
	return nil
}

// Validate checks a risk section on its own. Preset overlays applied at
// runtime go through this before they reach the risk manager.
func (r *RiskConfig) Validate() error {
	return r.validate()
}

func (r *RiskConfig) validate() error {
	if r.MinPositionFraction <= 0 || r.MinPositionFraction >= r.MaxPositionFraction {
		return fmt.Errorf("risk requires 0 < min_position_fraction < max_position_fraction")
	}
	if r.MaxPositionFraction > 1 {
		return fmt.Errorf("risk.max_position_fraction must be <= 1")
	}
	if r.DefaultPositionFraction < r.MinPositionFraction || r.DefaultPositionFraction > r.MaxPositionFraction {
		return fmt.Errorf("risk.default_position_fraction must be within [min, max] position fraction")
	}
	if r.BaseStopLoss <= 0 || r.BaseStopLoss >= 1 {
		return fmt.Errorf("risk.base_stop_loss must be in (0, 1)")
	}
	if r.StopDecayMax < 0 || r.StopDecayMax >= 1 {
		return fmt.Errorf("risk.stop_decay_max must be in [0, 1)")
	}
	if r.StopDecayHours <= 0 {
		return fmt.Errorf("risk.stop_decay_hours must be > 0")
	}
	if r.TrailingActivation <= 0 {
		return fmt.Errorf("risk.trailing_activation must be > 0")
	}
	if r.TrailingDistance <= 0 || r.TrailingDistance >= 1 {
		return fmt.Errorf("risk.trailing_distance must be in (0, 1)")
	}
	if r.DailyLossLimit <= 0 || r.DailyLossLimit >= 1 {
		return fmt.Errorf("risk.daily_loss_limit must be in (0, 1)")
	}
	if r.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be > 0")
	}
	if r.DynamicSymbolDiscount <= 0 || r.DynamicSymbolDiscount > 1 {
		return fmt.Errorf("risk.dynamic_symbol_discount must be in (0, 1]")
	}
	return nil
}

func (e *ExitConfig) validate() error {
	prev := 0.0
	totalFraction := 0.0
	for i, tier := range e.Tiers {
		if tier.ProfitThreshold <= prev {
			return fmt.Errorf("exits.tiers[%d]: profit_threshold must be strictly increasing", i)
		}
		if tier.ExitFraction <= 0 || tier.ExitFraction >= 1 {
			return fmt.Errorf("exits.tiers[%d]: exit_fraction must be in (0, 1)", i)
		}
		if tier.MinHoldSeconds < 0 {
			return fmt.Errorf("exits.tiers[%d]: min_hold_seconds must be >= 0", i)
		}
		prev = tier.ProfitThreshold
		totalFraction += tier.ExitFraction
	}
	if totalFraction >= 1 {
		return fmt.Errorf("exits.tiers: exit fractions sum to %.2f, must stay below 1", totalFraction)
	}
	return nil
}

func (p *PyramidConfig) validate(r *RiskConfig) error {
	if !p.Enabled {
		return nil
	}
	if p.MaxAdds <= 0 {
		return fmt.Errorf("pyramid.max_adds must be > 0")
	}
	if p.MinProfit <= 0 {
		return fmt.Errorf("pyramid.min_profit must be > 0")
	}
	if p.SizeRatio <= 0 || p.SizeRatio > 1 {
		return fmt.Errorf("pyramid.size_ratio must be in (0, 1]")
	}
	if r != nil && p.MaxTotalFraction < r.MaxPositionFraction {
		return fmt.Errorf("pyramid.max_total_fraction must be >= risk.max_position_fraction")
	}
	for _, regime := range p.AllowedRegimes {
		switch strings.ToLower(strings.TrimSpace(regime)) {
		case "bullish", "bearish", "neutral":
		default:
			return fmt.Errorf("pyramid.allowed_regimes contains unknown regime: %s", regime)
		}
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
