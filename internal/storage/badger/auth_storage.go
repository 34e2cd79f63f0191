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

// AuthStorage implements the AuthStorage interface for Badger
type AuthStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAuthStorage creates a new AuthStorage instance
func NewAuthStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AuthStorage {
	return &AuthStorage{
		db:     db,
		logger: logger,
	}
}

func tokenKey(token string) string {
	return "auth/tokens/" + token
}

// GetToken resolves a bearer token, or nil when unknown.
func (s *AuthStorage) GetToken(ctx context.Context, token string) (*models.APIToken, error) {
	var record models.APIToken
	err := s.db.Store().Get(tokenKey(token), &record)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &record, nil
}

// SaveToken stores the token mapping, preserving CreatedAt on update.
func (s *AuthStorage) SaveToken(ctx context.Context, token *models.APIToken) error {
	if token == nil || token.Token == "" || token.UserID == "" {
		return fmt.Errorf("token and user id are required")
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	var existing models.APIToken
	if err := s.db.Store().Get(tokenKey(token.Token), &existing); err == nil {
		token.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(tokenKey(token.Token), token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return nil
}

// DeleteToken removes a token mapping. Missing tokens are not an error.
func (s *AuthStorage) DeleteToken(ctx context.Context, token string) error {
	err := s.db.Store().Delete(tokenKey(token), &models.APIToken{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
