package interfaces

import (
	"context"

	"github.com/ternarybob/marketlens/internal/models"
)

// StockCacheStorage persists per-symbol aggregation entries. Writes are
// atomic at entry granularity: a refresh either replaces the whole entry or
// leaves the previous one intact.
type StockCacheStorage interface {
	// PutEntry stores the full cache entry for a user and symbol,
	// replacing any previous entry in one write.
	PutEntry(ctx context.Context, userID string, entry *models.StockCacheEntry) error

	// GetEntry returns the cached entry, or nil when none exists.
	GetEntry(ctx context.Context, userID, symbol string) (*models.StockCacheEntry, error)

	// GetEntries returns all cached entries for a user keyed by symbol.
	GetEntries(ctx context.Context, userID string) (map[string]*models.StockCacheEntry, error)

	// DeleteEntry removes the cached entry for a symbol.
	DeleteEntry(ctx context.Context, userID, symbol string) error
}

// WatchlistStorage persists user watchlists.
type WatchlistStorage interface {
	GetWatchlist(ctx context.Context, userID string) (*models.Watchlist, error)
	SaveWatchlist(ctx context.Context, watchlist *models.Watchlist) error
}

// AuthStorage persists API token mappings.
type AuthStorage interface {
	GetToken(ctx context.Context, token string) (*models.APIToken, error)
	SaveToken(ctx context.Context, token *models.APIToken) error
	DeleteToken(ctx context.Context, token string) error
}

// RefreshStatusStorage tracks asynchronous refresh runs.
type RefreshStatusStorage interface {
	SaveStatus(ctx context.Context, status *models.RefreshStatus) error
	GetStatus(ctx context.Context, id string) (*models.RefreshStatus, error)
}

// StorageManager provides access to all storage implementations and manages
// the underlying database lifecycle.
type StorageManager interface {
	StockCache() StockCacheStorage
	Watchlists() WatchlistStorage
	Auth() AuthStorage
	RefreshStatuses() RefreshStatusStorage
	Close() error
}
