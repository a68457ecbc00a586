package game

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/game/events"
	"github.com/mcourt/quizclash/go/internal/models"
)

// Broadcaster defines what the game core needs from the transport layer.
type Broadcaster interface {
	// BroadcastToSession delivers an event to every connection bound to
	// the session.
	BroadcastToSession(code string, event *events.Event)
	// SendToConnection delivers an event to a single connection.
	SendToConnection(connectionID string, event *events.Event)
}

// Archiver receives the finalized summary of a fully ended game. The call
// happens after in-memory teardown and its outcome never feeds back into
// live state.
type Archiver interface {
	SaveSummary(ctx context.Context, summary models.SessionSummary) error
}

// DisconnectReason classifies why a transport connection went away.
type DisconnectReason string

const (
	// ReasonTransient covers dropped connections and keepalive timeouts;
	// the participant gets a grace window to reclaim the slot before
	// counting as departed.
	ReasonTransient DisconnectReason = "transient"
	// ReasonDeparture covers deliberate leaves and clean closes.
	ReasonDeparture DisconnectReason = "departure"
)

// App coordinates all live sessions. Every session runs as its own actor
// goroutine and processes one command at a time; App only routes commands,
// so no lock is ever held across sessions and a stuck session cannot
// corrupt another.
type App struct {
	mu       sync.RWMutex
	sessions map[string]*session

	cfg         Config
	clock       clockwork.Clock
	broadcaster Broadcaster
	archiver    Archiver // optional
}

// NewApp creates the session coordinator. Pass clockwork.NewRealClock() in
// production; tests drive timers with a fake clock.
func NewApp(cfg Config, clock clockwork.Clock, broadcaster Broadcaster, archiver Archiver) *App {
	return &App{
		sessions:    make(map[string]*session),
		cfg:         cfg,
		clock:       clock,
		broadcaster: broadcaster,
		archiver:    archiver,
	}
}

// CreateSession creates a session with the caller as its master. Creating a
// code that is already live is rejected rather than silently replacing the
// running game.
func (a *App) CreateSession(code, name, stableID, connectionID string) error {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(name) == "" || stableID == "" {
		return fmt.Errorf("%w: session code, display name and stable id are required", ErrValidation)
	}

	a.mu.Lock()
	if _, ok := a.sessions[code]; ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionExists, code)
	}
	s := newSession(a, code, strings.TrimSpace(name), stableID, connectionID)
	a.sessions[code] = s
	a.mu.Unlock()

	go s.run()

	log.Info().
		Str("session", code).
		Str("stable_id", stableID).
		Msg("session created")

	return a.send(s, &announceCreatedCmd{})
}

// JoinSession adds a new participant, or rebinds an existing one that
// reconnects with a previously seen stable ID.
func (a *App) JoinSession(code, name, stableID, connectionID string) error {
	if strings.TrimSpace(name) == "" || stableID == "" {
		return fmt.Errorf("%w: display name and stable id are required", ErrValidation)
	}
	return a.dispatch(code, &joinCmd{name: strings.TrimSpace(name), stableID: stableID, connectionID: connectionID})
}

// Rejoin rebinds a known participant to a fresh connection, restoring role
// and score. Unlike JoinSession it is also valid mid-round.
func (a *App) Rejoin(code, stableID, connectionID string) error {
	if stableID == "" {
		return fmt.Errorf("%w: stable id is required", ErrValidation)
	}
	return a.dispatch(code, &rejoinCmd{stableID: stableID, connectionID: connectionID})
}

// StartGame moves the session out of Idle. Master only; requires the
// connected-roster floor.
func (a *App) StartGame(code, stableID string) error {
	return a.dispatch(code, &startGameCmd{stableID: stableID})
}

// SubmitQuestion starts a guessing round with the given question.
func (a *App) SubmitQuestion(code, stableID string, q models.Question) error {
	return a.dispatch(code, &submitQuestionCmd{stableID: stableID, question: q})
}

// SubmitGuess validates a guess against the active question.
func (a *App) SubmitGuess(code, stableID, guess string) error {
	return a.dispatch(code, &submitGuessCmd{stableID: stableID, guess: guess})
}

// Chat broadcasts a chat message, attributing the sender by stable ID so a
// reconnected participant keeps their display name.
func (a *App) Chat(code, stableID, message string) error {
	return a.dispatch(code, &chatCmd{stableID: stableID, message: message})
}

// Disconnect reports that a transport connection went away. Transient
// reasons open a grace window; departures take effect immediately.
func (a *App) Disconnect(code, connectionID string, reason DisconnectReason) {
	// Teardown races make not-found normal here.
	_ = a.dispatch(code, &disconnectCmd{connectionID: connectionID, reason: reason})
}

// Snapshot returns the current session state as broadcast to participants.
func (a *App) Snapshot(code string) (*events.SnapshotPayload, error) {
	cmd := &snapshotCmd{result: make(chan *events.SnapshotPayload, 1)}
	if err := a.dispatch(code, cmd); err != nil {
		return nil, err
	}
	return <-cmd.result, nil
}

// SessionCount reports how many sessions are live.
func (a *App) SessionCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

func (a *App) dispatch(code string, cmd command) error {
	a.mu.RLock()
	s := a.sessions[code]
	a.mu.RUnlock()
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	}
	return a.send(s, cmd)
}

// send serializes a command through the session actor and waits for its
// reply. A session that tears down while the command is in flight answers
// not-found instead of blocking the caller.
func (a *App) send(s *session, cmd command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case s.cmds <- req:
	case <-s.done:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.code)
	}
	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.code)
	}
}

// remove drops a torn-down session from the registry. Called by the actor
// itself as its final act.
func (a *App) remove(code string) {
	a.mu.Lock()
	delete(a.sessions, code)
	a.mu.Unlock()
}
