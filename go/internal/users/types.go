package users

import (
	"github.com/google/uuid"
)

// CreateUserRequest is the payload for creating a user profile.
type CreateUserRequest struct {
	Name string `json:"name"`
}

// UpdateNameRequest is the payload for renaming a user.
type UpdateNameRequest struct {
	NewName string `json:"new_name"`
}

// UserStats aggregates a player's archived results.
type UserStats struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	TotalGames int       `json:"total_games"`
	TotalWins  int       `json:"total_wins"`
	WinRate    float64   `json:"win_rate"`
}
