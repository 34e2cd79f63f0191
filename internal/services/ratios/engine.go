// Package ratios computes financial ratios from fundamentals statement
// tables. Field extraction is fault tolerant: row labels vary across data
// sources, so each field is resolved through an ordered synonym list and a
// wholly missing field resolves to zero rather than an error.
package ratios

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/models"
)

// Ratio names. The full set is always present in a computed result.
const (
	RatioDebtEquity         = "Debt/Equity"
	RatioDebtAssets         = "Debt/Assets"
	RatioInterestCoverage   = "Interest Coverage"
	RatioEBITDAMargin       = "EBITDA Margin"
	RatioEBITMargin         = "EBIT Margin"
	RatioNetProfitMargin    = "Net Profit Margin"
	RatioROE                = "ROE"
	RatioROA                = "ROA"
	RatioROCE               = "ROCE"
	RatioCurrentRatio       = "Current Ratio"
	RatioQuickRatio         = "Quick Ratio"
	RatioInventoryTurnover  = "Inventory Turnover"
	RatioAssetTurnover      = "Asset Turnover"
	RatioReceivableTurnover = "Receivable Turnover"
)

// Engine implements interfaces.RatioService.
type Engine struct {
	logger arbor.ILogger
}

// NewEngine creates a ratio computation engine.
func NewEngine(logger arbor.ILogger) *Engine {
	return &Engine{logger: logger}
}

// Compute derives the full ratio set from the statement tables. The only
// error case is absent statements; individual missing rows degrade to zero
// values instead.
func (e *Engine) Compute(statements *models.FinancialStatements) (map[string]float64, error) {
	if statements == nil || (len(statements.BalanceSheet) == 0 && len(statements.IncomeStmt) == 0) {
		return nil, fmt.Errorf("no statement data to compute ratios from")
	}

	bs := statements.BalanceSheet
	inc := statements.IncomeStmt

	// Balance sheet fields, latest year unless noted.
	totalDebt := field(bs, 0, "Total Debt", "Long Term Debt And Capital Lease Obligation", "Total Liab")
	if totalDebt == 0 {
		totalDebt = field(bs, 0, "Long Term Debt") + field(bs, 0, "Current Debt")
	}
	totalEquity := field(bs, 0, "Stockholders Equity", "Total Stockholder Equity", "Total Equity Gross Minority Interest")
	totalAssets := field(bs, 0, "Total Assets")
	assetsPrev := field(bs, 1, "Total Assets")
	currAssets := field(bs, 0, "Current Assets", "Total Current Assets")
	currLiab := field(bs, 0, "Current Liabilities", "Total Current Liabilities")
	inventoryCurr := field(bs, 0, "Inventory")
	inventoryPrev := field(bs, 1, "Inventory")
	receivablesCurr := field(bs, 0, "Receivables", "Net Receivables", "Accounts Receivable")
	receivablesPrev := field(bs, 1, "Receivables", "Net Receivables", "Accounts Receivable")

	// Income statement fields.
	revenue := field(inc, 0, "Total Revenue", "Operating Revenue")
	ebit := field(inc, 0, "EBIT", "Operating Income", "Net Income From Continuing And Discontinued Operation")
	if ebit == 0 {
		ebit = field(inc, 0, "Pretax Income") + field(inc, 0, "Interest Expense")
	}
	interestExpense := field(inc, 0, "Interest Expense", "Interest Expense Non Operating")
	if interestExpense < 0 {
		interestExpense = -interestExpense
	}
	netIncome := field(inc, 0, "Net Income", "Net Income Common Stockholders")
	ebitda := field(inc, 0, "EBITDA", "Normalized EBITDA")
	cogs := field(inc, 0, "Cost Of Revenue", "Cost Of Goods Sold")

	ratios := map[string]float64{
		// Leverage
		RatioDebtEquity:       safeDiv(totalDebt, totalEquity),
		RatioDebtAssets:       safeDiv(totalDebt, totalAssets),
		RatioInterestCoverage: safeDiv(ebit, interestExpense),

		// Profitability (%)
		RatioEBITDAMargin:    safeDiv(ebitda, revenue) * 100,
		RatioEBITMargin:      safeDiv(ebit, revenue) * 100,
		RatioNetProfitMargin: safeDiv(netIncome, revenue) * 100,
		RatioROE:             safeDiv(netIncome, totalEquity) * 100,
		RatioROA:             safeDiv(netIncome, totalAssets) * 100,
		RatioROCE:            safeDiv(ebit, totalAssets-currLiab) * 100,

		// Liquidity
		RatioCurrentRatio: safeDiv(currAssets, currLiab),
		RatioQuickRatio:   safeDiv(currAssets-inventoryCurr, currLiab),
	}

	// Efficiency ratios average the current and prior year when a prior
	// year exists.
	ratios[RatioInventoryTurnover] = safeDiv(cogs, average(inventoryCurr, inventoryPrev))
	ratios[RatioAssetTurnover] = safeDiv(revenue, average(totalAssets, assetsPrev))
	ratios[RatioReceivableTurnover] = safeDiv(revenue, average(receivablesCurr, receivablesPrev))

	e.logger.Debug().
		Str("symbol", statements.Symbol).
		Int("ratios", len(ratios)).
		Msg("Computed financial ratios")

	return ratios, nil
}

// field resolves a statement value by trying each row-label synonym in
// order, case-insensitively. yearOffset 0 is the latest year, 1 the prior
// year. Missing rows and missing years resolve to 0.
func field(table models.StatementTable, yearOffset int, synonyms ...string) float64 {
	if table == nil {
		return 0
	}
	for _, synonym := range synonyms {
		values, ok := table[synonym]
		if !ok {
			values, ok = lookupFold(table, synonym)
		}
		if !ok {
			continue
		}
		if yearOffset >= len(values) {
			return 0
		}
		return values[yearOffset]
	}
	return 0
}

// lookupFold is the case-insensitive fallback: upstream label humanization
// can disagree with synonym casing (e.g. "Ebit" vs "EBIT").
func lookupFold(table models.StatementTable, label string) ([]float64, bool) {
	for key, values := range table {
		if strings.EqualFold(key, label) {
			return values, true
		}
	}
	return nil, false
}

// safeDiv divides with a zero-denominator guard. Never returns NaN or Inf.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0.0
	}
	return a / b
}

// average returns the mean of the current and prior year values, falling
// back to the current year when the prior year is absent (zero).
func average(curr, prev float64) float64 {
	if prev == 0 {
		return curr
	}
	return (curr + prev) / 2
}
