package models

// RoundPhase defines where a session is in its round lifecycle.
type RoundPhase string

const (
	RoundPhaseIdle             RoundPhase = "IDLE"
	RoundPhaseAwaitingQuestion RoundPhase = "AWAITING_QUESTION"
	RoundPhaseActive           RoundPhase = "ACTIVE"
	RoundPhaseEnding           RoundPhase = "ENDING"
)

// Question is a single round's prompt.
type Question struct {
	Text        string `json:"text"`
	Answer      string `json:"answer"`
	DurationSec int    `json:"duration_sec"`
}
