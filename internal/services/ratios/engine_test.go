package ratios

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/models"
)

func fullStatements() *models.FinancialStatements {
	return &models.FinancialStatements{
		Symbol: "TCS.NS",
		BalanceSheet: models.StatementTable{
			"Total Debt":          {200, 180},
			"Stockholders Equity": {1000, 900},
			"Total Assets":        {2000, 1800},
			"Current Assets":      {800, 700},
			"Current Liabilities": {400, 350},
			"Inventory":           {100, 80},
			"Receivables":         {150, 130},
		},
		IncomeStmt: models.StatementTable{
			"Total Revenue":    {3000, 2700},
			"EBIT":             {600, 540},
			"Interest Expense": {-50, -45},
			"Net Income":       {450, 400},
			"EBITDA":           {700, 630},
			"Cost Of Revenue":  {1800, 1650},
		},
	}
}

func TestComputeFullStatementSet(t *testing.T) {
	engine := NewEngine(arbor.NewLogger())

	ratios, err := engine.Compute(fullStatements())
	require.NoError(t, err)
	require.Len(t, ratios, 14)

	assert.InDelta(t, 0.2, ratios[RatioDebtEquity], 1e-9)
	assert.InDelta(t, 0.1, ratios[RatioDebtAssets], 1e-9)
	// Interest expense is reported negative and must be used as magnitude.
	assert.InDelta(t, 12.0, ratios[RatioInterestCoverage], 1e-9)

	assert.InDelta(t, 700.0/3000*100, ratios[RatioEBITDAMargin], 1e-9)
	assert.InDelta(t, 20.0, ratios[RatioEBITMargin], 1e-9)
	assert.InDelta(t, 15.0, ratios[RatioNetProfitMargin], 1e-9)
	assert.InDelta(t, 45.0, ratios[RatioROE], 1e-9)
	assert.InDelta(t, 22.5, ratios[RatioROA], 1e-9)
	assert.InDelta(t, 600.0/(2000-400)*100, ratios[RatioROCE], 1e-9)

	assert.InDelta(t, 2.0, ratios[RatioCurrentRatio], 1e-9)
	assert.InDelta(t, 1.75, ratios[RatioQuickRatio], 1e-9)

	// Turnover ratios average current and prior year values.
	assert.InDelta(t, 1800.0/90, ratios[RatioInventoryTurnover], 1e-9)
	assert.InDelta(t, 3000.0/1900, ratios[RatioAssetTurnover], 1e-9)
	assert.InDelta(t, 3000.0/140, ratios[RatioReceivableTurnover], 1e-9)
}

func TestComputeTurnoverFallsBackWithoutPriorYear(t *testing.T) {
	statements := fullStatements()
	statements.BalanceSheet["Inventory"] = []float64{100}
	statements.BalanceSheet["Total Assets"] = []float64{2000}
	statements.BalanceSheet["Receivables"] = []float64{150}

	engine := NewEngine(arbor.NewLogger())
	ratios, err := engine.Compute(statements)
	require.NoError(t, err)

	assert.InDelta(t, 1800.0/100, ratios[RatioInventoryTurnover], 1e-9)
	assert.InDelta(t, 3000.0/2000, ratios[RatioAssetTurnover], 1e-9)
	assert.InDelta(t, 3000.0/150, ratios[RatioReceivableTurnover], 1e-9)
}

func TestComputeDebtComposite(t *testing.T) {
	statements := fullStatements()
	delete(statements.BalanceSheet, "Total Debt")
	statements.BalanceSheet["Long Term Debt"] = []float64{120}
	statements.BalanceSheet["Current Debt"] = []float64{80}

	engine := NewEngine(arbor.NewLogger())
	ratios, err := engine.Compute(statements)
	require.NoError(t, err)

	assert.InDelta(t, 0.2, ratios[RatioDebtEquity], 1e-9)
}

func TestComputeEBITComposite(t *testing.T) {
	statements := fullStatements()
	delete(statements.IncomeStmt, "EBIT")
	statements.IncomeStmt["Pretax Income"] = []float64{550}
	statements.IncomeStmt["Interest Expense"] = []float64{50}

	engine := NewEngine(arbor.NewLogger())
	ratios, err := engine.Compute(statements)
	require.NoError(t, err)

	assert.InDelta(t, 20.0, ratios[RatioEBITMargin], 1e-9)
}

func TestComputeCaseInsensitiveRowLabels(t *testing.T) {
	statements := fullStatements()
	delete(statements.IncomeStmt, "EBIT")
	statements.IncomeStmt["Ebit"] = []float64{600, 540}

	engine := NewEngine(arbor.NewLogger())
	ratios, err := engine.Compute(statements)
	require.NoError(t, err)

	assert.InDelta(t, 20.0, ratios[RatioEBITMargin], 1e-9)
}

func TestComputeMissingFieldsYieldZeroNotError(t *testing.T) {
	statements := &models.FinancialStatements{
		Symbol: "EMPTY.NS",
		IncomeStmt: models.StatementTable{
			"Total Revenue": {1000},
		},
	}

	engine := NewEngine(arbor.NewLogger())
	ratios, err := engine.Compute(statements)
	require.NoError(t, err)
	require.Len(t, ratios, 14)

	for name, value := range ratios {
		assert.False(t, math.IsNaN(value), "ratio %s is NaN", name)
		assert.False(t, math.IsInf(value, 0), "ratio %s is Inf", name)
	}
	assert.Zero(t, ratios[RatioDebtEquity])
	assert.Zero(t, ratios[RatioCurrentRatio])
	assert.Zero(t, ratios[RatioROE])
}

func TestComputeNoStatementsReturnsError(t *testing.T) {
	engine := NewEngine(arbor.NewLogger())

	_, err := engine.Compute(nil)
	require.Error(t, err)

	_, err = engine.Compute(&models.FinancialStatements{Symbol: "X"})
	require.Error(t, err)
}

func TestSafeDiv(t *testing.T) {
	assert.Equal(t, 0.0, safeDiv(10, 0))
	assert.Equal(t, 0.0, safeDiv(0, 0))
	assert.Equal(t, 2.5, safeDiv(5, 2))
}
