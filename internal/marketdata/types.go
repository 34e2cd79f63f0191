// Package marketdata provides a client for the fundamentals API used by the
// ratio engine. Statement rows are normalized to human-readable labels so
// the engine's synonym lists work across provider field-name variants.
package marketdata

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// quoteSummaryResponse is the fundamentals envelope.
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			BalanceSheetHistory struct {
				Statements []rawStatement `json:"balanceSheetStatements"`
			} `json:"balanceSheetHistory"`
			IncomeStatementHistory struct {
				Statements []rawStatement `json:"incomeStatementHistory"`
			} `json:"incomeStatementHistory"`
			CashflowStatementHistory struct {
				Statements []rawStatement `json:"cashflowStatements"`
			} `json:"cashflowStatementHistory"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// rawStatement is one reporting period: a map of field name to value
// wrapper. Non-numeric fields (endDate, maxAge) are skipped during
// normalization.
type rawStatement map[string]json.RawMessage

// rawValue is the provider's numeric wrapper ({"raw": n, "fmt": "..."}).
type rawValue struct {
	Raw *float64 `json:"raw"`
}

// numericValue extracts the raw numeric value of a field, reporting false
// for absent or non-numeric fields.
func (s rawStatement) numericValue(field string) (float64, bool) {
	msg, ok := s[field]
	if !ok {
		return 0, false
	}
	var v rawValue
	if err := json.Unmarshal(msg, &v); err != nil || v.Raw == nil {
		return 0, false
	}
	return *v.Raw, true
}

// humanizeField converts a provider field name to the row label form used
// by the ratio engine ("totalStockholderEquity" -> "Total Stockholder
// Equity").
func humanizeField(field string) string {
	if field == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range field {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// APIError represents an error from the fundamentals API.
type APIError struct {
	StatusCode int
	Message    string
	Symbol     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fundamentals API error: %s (status: %d, symbol: %s)", e.Message, e.StatusCode, e.Symbol)
}

// ErrNoFundamentals indicates the provider returned no statement data for
// the symbol (common for scrip-code pass-through identifiers).
type ErrNoFundamentals struct {
	Symbol string
}

func (e *ErrNoFundamentals) Error() string {
	return fmt.Sprintf("no fundamentals available for %s", e.Symbol)
}
