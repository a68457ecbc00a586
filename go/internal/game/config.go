package game

import "time"

// Config holds the tuning knobs of the round lifecycle.
type Config struct {
	// DefaultQuestionDuration applies when a submitted question carries
	// no duration of its own.
	DefaultQuestionDuration time.Duration

	// AwaitingMasterWindow is how long the new master has to submit the
	// next question before a single forced rotation.
	AwaitingMasterWindow time.Duration

	// DisconnectGrace is the reclaim window after a transient transport
	// disconnect before the participant counts as departed.
	DisconnectGrace time.Duration

	// MaxAttempts is the per-round guess budget of each participant.
	MaxAttempts int

	// PointsPerCorrectGuess is awarded to the round winner.
	PointsPerCorrectGuess int

	// MinParticipantsToStart is the connected-roster floor for start_game.
	MinParticipantsToStart int
}

// DefaultConfig returns the default game tuning.
func DefaultConfig() Config {
	return Config{
		DefaultQuestionDuration: 60 * time.Second,
		AwaitingMasterWindow:    60 * time.Second,
		DisconnectGrace:         3 * time.Second,
		MaxAttempts:             3,
		PointsPerCorrectGuess:   10,
		MinParticipantsToStart:  3,
	}
}
