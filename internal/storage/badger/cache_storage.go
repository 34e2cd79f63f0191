package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// cacheRecord wraps a StockCacheEntry with its composite key so entries can
// be queried per-user.
type cacheRecord struct {
	Key    string `badgerhold:"key"`
	UserID string `badgerhold:"index"`
	Entry  models.StockCacheEntry
}

// CacheStorage implements StockCacheStorage on Badger. Each entry is stored
// under "users/{user}/stock_cache/{symbol}" and written in a single upsert,
// so a refresh either lands completely or not at all.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.StockCacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

func cacheKey(userID, symbol string) string {
	return fmt.Sprintf("users/%s/stock_cache/%s", userID, strings.ToUpper(strings.TrimSpace(symbol)))
}

// PutEntry stores the full cache entry in one write, replacing any previous
// entry for the symbol. Last write wins across concurrent refreshes.
func (s *CacheStorage) PutEntry(ctx context.Context, userID string, entry *models.StockCacheEntry) error {
	if entry == nil || entry.Symbol == "" {
		return fmt.Errorf("cache entry requires a symbol")
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	record := cacheRecord{
		Key:    cacheKey(userID, entry.Symbol),
		UserID: userID,
		Entry:  *entry,
	}

	if err := s.db.Store().Upsert(record.Key, &record); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("symbol", entry.Symbol).
		Msg("Stored stock cache entry")

	return nil
}

// GetEntry returns the cached entry, or nil when none exists.
func (s *CacheStorage) GetEntry(ctx context.Context, userID, symbol string) (*models.StockCacheEntry, error) {
	var record cacheRecord
	err := s.db.Store().Get(cacheKey(userID, symbol), &record)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry := record.Entry
	return &entry, nil
}

// GetEntries returns all cached entries for a user keyed by symbol.
func (s *CacheStorage) GetEntries(ctx context.Context, userID string) (map[string]*models.StockCacheEntry, error) {
	var records []cacheRecord
	err := s.db.Store().Find(&records, badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	entries := make(map[string]*models.StockCacheEntry, len(records))
	for i := range records {
		entry := records[i].Entry
		entries[entry.Symbol] = &entry
	}

	return entries, nil
}

// DeleteEntry removes the cached entry for a symbol. Missing entries are
// not an error.
func (s *CacheStorage) DeleteEntry(ctx context.Context, userID, symbol string) error {
	err := s.db.Store().Delete(cacheKey(userID, symbol), &cacheRecord{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
