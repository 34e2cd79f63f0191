package models

import (
	"time"
)

// StockCacheEntry is the per-symbol aggregation record persisted to storage
// and returned to clients. Field names are part of the client contract and
// must not change.
type StockCacheEntry struct {
	// Identity
	Symbol        string `json:"symbol"`         // Canonical market-data symbol (cache key)
	RawSymbol     string `json:"raw_symbol"`     // Original user input
	BaseSymbol    string `json:"base_symbol"`    // Bare instrument code
	TVSymbol      string `json:"tv_symbol"`      // Exchange-qualified chart symbol
	BSEIdentifier string `json:"bse_identifier"` // Filing repository identifier

	// Source payloads
	ChartImageBase64 string             `json:"chart_image_base64,omitempty"`
	ChartPattern     *ChartPattern      `json:"chart_pattern,omitempty"`
	BSESummaries     *FilingSummarySet  `json:"bse_summaries,omitempty"`
	Ratios           map[string]float64 `json:"ratios,omitempty"`
	Signal           *SignalResult      `json:"signal,omitempty"`

	// Per-source errors. A failed source never blocks the others; its
	// error string lands here and the rest of the entry still persists.
	BSEError    string `json:"bse_error,omitempty"`
	ChartError  string `json:"chart_error,omitempty"`
	RatiosError string `json:"ratios_error,omitempty"`
	SignalError string `json:"signal_error,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// ChartPattern is the vision-model verdict on a rendered chart image.
type ChartPattern struct {
	PatternFound bool   `json:"pattern_found"`
	PatternName  string `json:"pattern_name"`
	Confidence   string `json:"confidence"` // Label: "low", "moderate" or "high"
	Explanation  string `json:"explanation"`
}

// FilingSummarySet groups the summarized exchange filings for one stock.
type FilingSummarySet struct {
	Stock     string          `json:"stock"`
	ScripCode string          `json:"scripcode"`
	News      []FilingSummary `json:"news"`
	Error     string          `json:"error,omitempty"`
}

// FilingSummary is one summarized filing. A filing that failed during
// download, extraction or summarization keeps its slot with Error set;
// failures count toward the per-refresh filing budget, skips do not.
type FilingSummary struct {
	Index          int    `json:"index"`
	Heading        string `json:"heading"`
	Date           string `json:"date"`
	PDFURL         string `json:"pdf_url"`
	Summary        string `json:"summary,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SignalResult is the synthesized trading signal. Validated against the
// strict schema before persisting; a result that fails validation is
// discarded and surfaces as signal_error instead. Bias and confidence are
// always required; the list fields may be empty.
type SignalResult struct {
	Ticker          string   `json:"ticker" validate:"required"`
	Bias            string   `json:"bias" validate:"required,oneof=bullish bearish neutral"`
	Confidence      float64  `json:"confidence" validate:"gte=0,lte=100"`
	Reasons         []string `json:"reasons"`
	Risks           []string `json:"risks"`
	LatestHeadlines []string `json:"latest_headlines"`
	Note            string   `json:"note"`
}

// Announcement is a raw filing listing row from the exchange repository,
// before summarization.
type Announcement struct {
	Heading        string    `json:"heading"`
	Category       string    `json:"category"`
	Date           string    `json:"date"` // Raw date string as published
	ParsedDate     time.Time `json:"-"`    // Zero when the raw date is unparsable
	AttachmentName string    `json:"attachment_name"`
	PDFURL         string    `json:"pdf_url"`
}

// HasParsedDate reports whether the listing row carried a parsable date.
// Rows without one sort after all dated rows.
func (a Announcement) HasParsedDate() bool {
	return !a.ParsedDate.IsZero()
}

// FinancialStatements holds the fundamentals tables used by the ratio
// engine. Each table maps a row label to per-year values, newest year at
// offset 0.
type FinancialStatements struct {
	Symbol       string
	BalanceSheet StatementTable
	IncomeStmt   StatementTable
	CashFlow     StatementTable
}

// StatementTable maps a statement row label to its yearly values, ordered
// newest first.
type StatementTable map[string][]float64

// Watchlist is a user's saved symbol list.
type Watchlist struct {
	UserID    string    `json:"user_id"`
	Symbols   []string  `json:"symbols"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contains reports whether the watchlist already holds the given canonical
// symbol.
func (w *Watchlist) Contains(symbol string) bool {
	for _, s := range w.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// RefreshStatus describes an asynchronous watchlist refresh run.
type RefreshStatus struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"` // "running", "completed", "failed"
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

const (
	// RefreshStatusRunning indicates a refresh run in progress
	RefreshStatusRunning = "running"
	// RefreshStatusCompleted indicates a refresh run that finished
	RefreshStatusCompleted = "completed"
	// RefreshStatusFailed indicates a refresh run that aborted
	RefreshStatusFailed = "failed"
)
