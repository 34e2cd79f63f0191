// Package auth resolves bearer tokens to user identities.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/interfaces"
)

// ErrInvalidToken is returned for unknown or empty tokens.
var ErrInvalidToken = errors.New("invalid or unknown token")

// Service implements interfaces.AuthService against token storage.
type Service struct {
	tokens interfaces.AuthStorage
	logger arbor.ILogger
}

// NewService creates an auth service.
func NewService(tokens interfaces.AuthStorage, logger arbor.ILogger) *Service {
	return &Service{
		tokens: tokens,
		logger: logger,
	}
}

// Authenticate implements interfaces.AuthService. Accepts the raw token
// with or without a "Bearer " prefix.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}

	record, err := s.tokens.GetToken(ctx, token)
	if err != nil {
		return "", err
	}
	if record == nil {
		s.logger.Debug().Msg("Rejected unknown API token")
		return "", ErrInvalidToken
	}

	return record.UserID, nil
}
