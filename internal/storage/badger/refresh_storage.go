package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// RefreshStorage implements the RefreshStatusStorage interface for Badger
type RefreshStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRefreshStorage creates a new RefreshStorage instance
func NewRefreshStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RefreshStatusStorage {
	return &RefreshStorage{
		db:     db,
		logger: logger,
	}
}

func refreshKey(id string) string {
	return "refreshes/" + id
}

// SaveStatus stores the refresh run status, replacing any previous state.
func (s *RefreshStorage) SaveStatus(ctx context.Context, status *models.RefreshStatus) error {
	if status == nil || status.ID == "" {
		return fmt.Errorf("refresh status requires an id")
	}

	if err := s.db.Store().Upsert(refreshKey(status.ID), status); err != nil {
		return fmt.Errorf("failed to store refresh status: %w", err)
	}
	return nil
}

// GetStatus returns the refresh run status, or nil when unknown.
func (s *RefreshStorage) GetStatus(ctx context.Context, id string) (*models.RefreshStatus, error) {
	var status models.RefreshStatus
	err := s.db.Store().Get(refreshKey(id), &status)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh status: %w", err)
	}
	return &status, nil
}
