package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected CanonicalSymbol
	}{
		{
			name:  "bare name",
			input: "RELIANCE",
			expected: CanonicalSymbol{
				Raw:          "RELIANCE",
				Base:         "RELIANCE",
				MarketDataID: "RELIANCE.NS",
				ChartID:      "NSE:RELIANCE",
				FilingID:     "RELIANCE",
			},
		},
		{
			name:  "lowercase with whitespace",
			input: "  reliance ",
			expected: CanonicalSymbol{
				Raw:          "  reliance ",
				Base:         "RELIANCE",
				MarketDataID: "RELIANCE.NS",
				ChartID:      "NSE:RELIANCE",
				FilingID:     "RELIANCE",
			},
		},
		{
			name:  "exchange prefix",
			input: "NSE:TCS",
			expected: CanonicalSymbol{
				Raw:          "NSE:TCS",
				Base:         "TCS",
				MarketDataID: "TCS.NS",
				ChartID:      "NSE:TCS",
				FilingID:     "TCS",
			},
		},
		{
			name:  "bse exchange prefix still normalizes to default exchange chart id",
			input: "BSE:INFY",
			expected: CanonicalSymbol{
				Raw:          "BSE:INFY",
				Base:         "INFY",
				MarketDataID: "INFY.NS",
				ChartID:      "NSE:INFY",
				FilingID:     "INFY",
			},
		},
		{
			name:  "market data suffix",
			input: "TCS.NS",
			expected: CanonicalSymbol{
				Raw:          "TCS.NS",
				Base:         "TCS",
				MarketDataID: "TCS.NS",
				ChartID:      "NSE:TCS",
				FilingID:     "TCS",
			},
		},
		{
			name:  "all digit scrip code passes through",
			input: "500325",
			expected: CanonicalSymbol{
				Raw:          "500325",
				Base:         "500325",
				MarketDataID: "500325",
				ChartID:      "500325",
				FilingID:     "500325",
			},
		},
		{
			name:     "empty input",
			input:    "",
			expected: CanonicalSymbol{Raw: ""},
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: CanonicalSymbol{Raw: "   "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeSymbol(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNormalizeSymbolDeterministic(t *testing.T) {
	first := NormalizeSymbol("NSE:RELIANCE")
	second := NormalizeSymbol("NSE:RELIANCE")
	assert.Equal(t, first, second)
}

func TestIsScripCode(t *testing.T) {
	assert.True(t, NormalizeSymbol("500325").IsScripCode())
	assert.False(t, NormalizeSymbol("RELIANCE").IsScripCode())
	assert.False(t, NormalizeSymbol("").IsScripCode())
}
