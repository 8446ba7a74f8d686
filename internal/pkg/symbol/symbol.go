// Package symbol normalizes trading pair identifiers between the internal
// "BASE/QUOTE" form and the exchange's concatenated form.
package symbol

import (
	"strings"
)

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Parse accepts "btc/usdt", "BTCUSDT" or a bare base asset and returns the
// split pair. Concatenated symbols are split against the known quote list.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}

	quoteCurrencies := []string{"USDT", "USDC", "TUSD", "BTC", "ETH", "BNB"}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: strings.TrimSuffix(s, quote), Quote: quote}
		}
	}
	return Symbol{Base: s}
}

// Normalize returns the canonical internal form, or "" for garbage input.
func Normalize(s string) string {
	return Parse(s).Internal()
}

// ToExchange converts the internal form into Binance's concatenated form.
func ToExchange(internal string) string {
	s := strings.ToUpper(strings.TrimSpace(internal))
	return strings.ReplaceAll(s, "/", "")
}

// FromExchange converts a Binance symbol back to the internal form.
func FromExchange(raw string) string {
	return Parse(raw).Internal()
}

// BaseAsset returns the base asset, e.g. "BTC" for "BTC/USDT".
func BaseAsset(internal string) string {
	return Parse(internal).Base
}

// ForAsset builds the internal pair for a wallet asset against a quote.
func ForAsset(asset, quote string) string {
	return Symbol{
		Base:  strings.ToUpper(strings.TrimSpace(asset)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}.Internal()
}
