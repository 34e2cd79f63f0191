// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// CanonicalSymbol is the normalized identifier set derived once from a raw
// user-supplied token. Each downstream source consumes its own field:
// MarketDataID for fundamentals, ChartID for chart rendering, FilingID for
// the exchange filing repository.
type CanonicalSymbol struct {
	// Raw is the original user input, untouched.
	Raw string
	// Base is the bare instrument code (e.g. "RELIANCE").
	Base string
	// MarketDataID is the market-data provider symbol (e.g. "RELIANCE.NS").
	MarketDataID string
	// ChartID is the exchange-qualified chart symbol (e.g. "NSE:RELIANCE").
	ChartID string
	// FilingID is the identifier used against the filing repository. For
	// all-digit input this is the scrip code itself.
	FilingID string
}

// DefaultExchange is the exchange tag used when building chart symbols.
// Can be overridden via [markets] config in TOML.
var DefaultExchange = "NSE"

// DefaultMarketSuffix is the market-data provider suffix appended to bare codes.
var DefaultMarketSuffix = ".NS"

// SetDefaultExchange sets the exchange tag for chart symbols.
// Called during app initialization from config.
func SetDefaultExchange(exchange string) {
	if exchange != "" {
		DefaultExchange = strings.ToUpper(exchange)
	}
}

// SetDefaultMarketSuffix sets the market-data symbol suffix.
func SetDefaultMarketSuffix(suffix string) {
	if suffix != "" {
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		DefaultMarketSuffix = strings.ToUpper(suffix)
	}
}

// NormalizeSymbol derives the canonical identifier set from a raw token.
// Rules are applied in priority order, case-insensitive, whitespace-trimmed:
//
//  1. "NSE:RELIANCE" (exchange prefix) -> base is the part after the colon
//  2. "RELIANCE.NS" (market suffix)    -> base is the part before the suffix
//  3. "500325" (all digits)            -> treated as a scrip code directly;
//     market-data and chart ids pass through unvalidated
//  4. "RELIANCE" (bare name)           -> base as-is
//
// This is a total function: it never fails and never performs I/O. An
// unresolvable filing identifier surfaces later as a not-found from the
// filing repository, not here.
func NormalizeSymbol(raw string) CanonicalSymbol {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == "" {
		return CanonicalSymbol{Raw: raw}
	}

	// Rule 1: exchange-qualified (EXCHANGE:CODE)
	if idx := strings.Index(token, ":"); idx > 0 && idx < len(token)-1 {
		base := token[idx+1:]
		return CanonicalSymbol{
			Raw:          raw,
			Base:         base,
			MarketDataID: base + DefaultMarketSuffix,
			ChartID:      DefaultExchange + ":" + base,
			FilingID:     base,
		}
	}

	// Rule 2: market-data suffixed (CODE.NS)
	if strings.HasSuffix(token, DefaultMarketSuffix) && len(token) > len(DefaultMarketSuffix) {
		base := strings.TrimSuffix(token, DefaultMarketSuffix)
		return CanonicalSymbol{
			Raw:          raw,
			Base:         base,
			MarketDataID: token,
			ChartID:      DefaultExchange + ":" + base,
			FilingID:     base,
		}
	}

	// Rule 3: all digits is a scrip code. Market-data and chart ids are
	// passed through unvalidated; callers treat empty results from those
	// sources as expected.
	if isAllDigits(token) {
		return CanonicalSymbol{
			Raw:          raw,
			Base:         token,
			MarketDataID: token,
			ChartID:      token,
			FilingID:     token,
		}
	}

	// Rule 4: bare instrument name.
	return CanonicalSymbol{
		Raw:          raw,
		Base:         token,
		MarketDataID: token + DefaultMarketSuffix,
		ChartID:      DefaultExchange + ":" + token,
		FilingID:     token,
	}
}

// IsScripCode reports whether the canonical symbol came from an all-digit
// token, meaning market-data and chart identifiers are best-effort only.
func (c CanonicalSymbol) IsScripCode() bool {
	return c.Base != "" && isAllDigits(c.Base)
}

// String returns the cache key form of the symbol (the market-data id).
func (c CanonicalSymbol) String() string {
	return c.MarketDataID
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
