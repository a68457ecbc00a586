package game

import (
	"github.com/mcourt/quizclash/go/internal/game/events"
	"github.com/mcourt/quizclash/go/internal/models"
)

// command is one discrete unit of work for a session actor. Participant
// actions and timer firings both arrive as commands, which is what serializes
// human input against clock expiry.
type command interface{}

// request pairs a command with an optional reply channel. Timer-fired
// commands carry no reply.
type request struct {
	cmd   command
	reply chan error
}

type announceCreatedCmd struct{}

type joinCmd struct {
	name         string
	stableID     string
	connectionID string
}

type rejoinCmd struct {
	stableID     string
	connectionID string
}

type startGameCmd struct {
	stableID string
}

type submitQuestionCmd struct {
	stableID string
	question models.Question
}

type submitGuessCmd struct {
	stableID string
	guess    string
}

type chatCmd struct {
	stableID string
	message  string
}

type disconnectCmd struct {
	connectionID string
	reason       DisconnectReason
}

type snapshotCmd struct {
	result chan *events.SnapshotPayload
}

// roundTimeoutCmd fires when the round-duration timer expires. The
// generation guards against a timer that was superseded by a winning guess
// but had already queued its firing.
type roundTimeoutCmd struct {
	generation uint64
}

// awaitTimeoutCmd fires when the awaiting-master window expires.
type awaitTimeoutCmd struct {
	generation uint64
}

// graceExpiredCmd fires when a transient disconnect was not reclaimed in
// time.
type graceExpiredCmd struct {
	connectionID string
}
