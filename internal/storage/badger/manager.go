package badger

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	cache      interfaces.StockCacheStorage
	watchlists interfaces.WatchlistStorage
	auth       interfaces.AuthStorage
	refreshes  interfaces.RefreshStatusStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		cache:      NewCacheStorage(db, logger),
		watchlists: NewWatchlistStorage(db, logger),
		auth:       NewAuthStorage(db, logger),
		refreshes:  NewRefreshStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// StockCache returns the stock cache storage interface
func (m *Manager) StockCache() interfaces.StockCacheStorage {
	return m.cache
}

// Watchlists returns the watchlist storage interface
func (m *Manager) Watchlists() interfaces.WatchlistStorage {
	return m.watchlists
}

// Auth returns the auth storage interface
func (m *Manager) Auth() interfaces.AuthStorage {
	return m.auth
}

// RefreshStatuses returns the refresh status storage interface
func (m *Manager) RefreshStatuses() interfaces.RefreshStatusStorage {
	return m.refreshes
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// SeedTokens loads configured bearer tokens into storage on startup so the
// auth service has a single lookup path.
func (m *Manager) SeedTokens(ctx context.Context, tokens map[string]string) error {
	for token, userID := range tokens {
		record := &models.APIToken{
			Token:     token,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		}
		if err := m.auth.SaveToken(ctx, record); err != nil {
			return err
		}
	}

	if len(tokens) > 0 {
		m.logger.Info().Int("tokens", len(tokens)).Msg("Seeded API tokens from config")
	}

	return nil
}
