package models

import (
	"time"
)

// PlayerResult is one roster entry of a finished session.
type PlayerResult struct {
	StableID string `json:"stable_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// SessionSummary is the finalized record handed to the archive once a game
// fully ends. Winner is nil when the top score is tied.
type SessionSummary struct {
	Code      string         `json:"code"`
	Players   []PlayerResult `json:"players"`
	Winner    *string        `json:"winner,omitempty"`
	Questions []Question     `json:"questions"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}
