package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// WatchlistStorage implements the WatchlistStorage interface for Badger
type WatchlistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWatchlistStorage creates a new WatchlistStorage instance
func NewWatchlistStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WatchlistStorage {
	return &WatchlistStorage{
		db:     db,
		logger: logger,
	}
}

func watchlistKey(userID string) string {
	return "users/" + userID + "/watchlist"
}

// GetWatchlist returns the user's watchlist. A user without one gets an
// empty watchlist, not an error.
func (s *WatchlistStorage) GetWatchlist(ctx context.Context, userID string) (*models.Watchlist, error) {
	var watchlist models.Watchlist
	err := s.db.Store().Get(watchlistKey(userID), &watchlist)
	if err == badgerhold.ErrNotFound {
		return &models.Watchlist{UserID: userID, Symbols: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}

	return &watchlist, nil
}

// SaveWatchlist stores the watchlist, replacing any previous one.
func (s *WatchlistStorage) SaveWatchlist(ctx context.Context, watchlist *models.Watchlist) error {
	if watchlist == nil || watchlist.UserID == "" {
		return fmt.Errorf("watchlist requires a user id")
	}
	watchlist.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(watchlistKey(watchlist.UserID), watchlist); err != nil {
		return fmt.Errorf("failed to store watchlist: %w", err)
	}

	s.logger.Debug().
		Str("user_id", watchlist.UserID).
		Int("symbols", len(watchlist.Symbols)).
		Msg("Stored watchlist")

	return nil
}
