package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered player profile
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
