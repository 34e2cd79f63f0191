package common

import (
	"github.com/google/uuid"
)

// NewRefreshID generates a unique refresh run ID with the "refresh_" prefix
// Format: refresh_<uuid>
func NewRefreshID() string {
	return "refresh_" + uuid.New().String()
}
