// Package watchlist manages per-user symbol lists. Adding a symbol is the
// trigger for a background refresh; removal also drops the cached entry.
package watchlist

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// Service implements interfaces.WatchlistService.
type Service struct {
	watchlists interfaces.WatchlistStorage
	cache      interfaces.StockCacheStorage
	logger     arbor.ILogger
}

// NewService creates a watchlist service.
func NewService(watchlists interfaces.WatchlistStorage, cache interfaces.StockCacheStorage, logger arbor.ILogger) *Service {
	return &Service{
		watchlists: watchlists,
		cache:      cache,
		logger:     logger,
	}
}

// GetWatchlist implements interfaces.WatchlistService. A user without a
// saved watchlist gets an empty one.
func (s *Service) GetWatchlist(ctx context.Context, userID string) (*models.Watchlist, error) {
	return s.watchlists.GetWatchlist(ctx, userID)
}

// AddSymbol normalizes and appends a symbol. Adding a symbol that is
// already present is a no-op, not an error.
func (s *Service) AddSymbol(ctx context.Context, userID, rawSymbol string) (*models.Watchlist, error) {
	canonical := common.NormalizeSymbol(rawSymbol)
	if canonical.Base == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	watchlist, err := s.watchlists.GetWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	if watchlist.Contains(canonical.MarketDataID) {
		return watchlist, nil
	}

	watchlist.Symbols = append(watchlist.Symbols, canonical.MarketDataID)
	watchlist.UpdatedAt = time.Now()
	if err := s.watchlists.SaveWatchlist(ctx, watchlist); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("symbol", canonical.MarketDataID).
		Msg("Added symbol to watchlist")

	return watchlist, nil
}

// RemoveSymbol drops a symbol from the watchlist and deletes its cached
// entry. Removing a symbol that is not present is a no-op.
func (s *Service) RemoveSymbol(ctx context.Context, userID, symbol string) (*models.Watchlist, error) {
	canonical := common.NormalizeSymbol(symbol)

	watchlist, err := s.watchlists.GetWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := make([]string, 0, len(watchlist.Symbols))
	removed := false
	for _, existing := range watchlist.Symbols {
		if existing == canonical.MarketDataID {
			removed = true
			continue
		}
		filtered = append(filtered, existing)
	}
	if !removed {
		return watchlist, nil
	}

	watchlist.Symbols = filtered
	watchlist.UpdatedAt = time.Now()
	if err := s.watchlists.SaveWatchlist(ctx, watchlist); err != nil {
		return nil, err
	}

	if err := s.cache.DeleteEntry(ctx, userID, canonical.MarketDataID); err != nil {
		s.logger.Warn().
			Str("user_id", userID).
			Str("symbol", canonical.MarketDataID).
			Err(err).
			Msg("Failed to delete cache entry for removed symbol")
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("symbol", canonical.MarketDataID).
		Msg("Removed symbol from watchlist")

	return watchlist, nil
}
