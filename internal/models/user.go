package models

import (
	"time"
)

// APIToken maps a bearer token to a user. Tokens are seeded from config on
// startup and can be added at runtime through storage.
type APIToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
