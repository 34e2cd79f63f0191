package interfaces

import (
	"context"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/models"
)

// AnnouncementProvider fetches the raw filing listing for a scrip. Providers
// are tried in configured order; the first that returns rows wins.
type AnnouncementProvider interface {
	// FetchAnnouncements returns listing rows within the lookback window,
	// already paginated to completion. Order is as published.
	FetchAnnouncements(ctx context.Context, scripCode string, lookbackDays int) ([]models.Announcement, error)

	// Name identifies the provider for logging ("api", "html").
	Name() string
}

// FilingsService produces summarized filings for a symbol.
type FilingsService interface {
	// Summarize fetches, downloads, extracts and summarizes the newest
	// filings for the symbol, up to the configured per-refresh budget.
	Summarize(ctx context.Context, symbol common.CanonicalSymbol) (*models.FilingSummarySet, error)
}

// ChartService renders a chart and detects patterns in it.
type ChartService interface {
	// Capture renders the chart page headless and returns the chart
	// canvas as a PNG.
	Capture(ctx context.Context, chartID string) ([]byte, error)

	// DetectPattern runs the two-stage vision analysis on a chart image.
	DetectPattern(ctx context.Context, symbol string, image []byte) (*models.ChartPattern, error)
}

// MarketDataService fetches fundamentals statements for a symbol.
type MarketDataService interface {
	GetFinancialStatements(ctx context.Context, marketDataID string) (*models.FinancialStatements, error)
}

// RatioService computes financial ratios from fundamentals statements.
type RatioService interface {
	// Compute returns the ratio map for the newest reporting year. Every
	// ratio name is always present; missing inputs and zero denominators
	// yield 0.0, never an absent key or a non-finite value.
	Compute(statements *models.FinancialStatements) (map[string]float64, error)
}

// SignalService synthesizes a trading signal from the per-source outputs.
type SignalService interface {
	Synthesize(ctx context.Context, entry *models.StockCacheEntry) (*models.SignalResult, error)
}

// WatchlistService manages user watchlists.
type WatchlistService interface {
	GetWatchlist(ctx context.Context, userID string) (*models.Watchlist, error)
	AddSymbol(ctx context.Context, userID, rawSymbol string) (*models.Watchlist, error)
	RemoveSymbol(ctx context.Context, userID, symbol string) (*models.Watchlist, error)
}

// AuthService resolves bearer tokens to user identities.
type AuthService interface {
	// Authenticate returns the user id for a bearer token, or an error
	// when the token is unknown.
	Authenticate(ctx context.Context, token string) (string, error)
}

// OrchestratorService coordinates a full per-symbol refresh and watchlist
// wide refreshes.
type OrchestratorService interface {
	// RefreshSymbol runs the full aggregation for one raw symbol and
	// persists the resulting entry. Always returns the entry it
	// persisted; err is non-nil only when nothing could be persisted.
	RefreshSymbol(ctx context.Context, userID, rawSymbol string) (*models.StockCacheEntry, error)

	// RefreshWatchlist refreshes every watchlist symbol with bounded
	// concurrency, synchronously. Symbols whose refresh could not be
	// persisted are reported in the errors map keyed by watchlist symbol;
	// they never silently vanish from the result.
	RefreshWatchlist(ctx context.Context, userID string) (map[string]*models.StockCacheEntry, map[string]string, error)

	// StartWatchlistRefresh launches RefreshWatchlist in the background
	// and returns a run id for status polling.
	StartWatchlistRefresh(userID string) (string, error)
}
