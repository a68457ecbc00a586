package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/game/events"
	"github.com/mcourt/quizclash/go/internal/models"
)

// session is the actor owning one live game. All mutation happens on the
// run goroutine; timers re-enter through the command channel, never
// directly.
type session struct {
	app  *App
	code string

	phase         models.RoundPhase
	masterID      string // stable ID of the current master
	participants  []*models.Participant
	questions     []models.Question // every question asked, in order
	current       *models.Question
	roundDeadline time.Time
	winnerID      string // stable ID of the current round's winner
	ended         bool   // terminal guard: one resolution per round
	startTime     time.Time

	// Timer generations invalidate firings that were already queued when
	// the timer got cancelled or replaced.
	roundGen uint64
	awaitGen uint64

	roundTimer  clockwork.Timer
	awaitTimer  clockwork.Timer
	graceTimers map[string]clockwork.Timer // keyed by connection ID

	cmds   chan request
	done   chan struct{}
	closed bool
}

func newSession(app *App, code, name, stableID, connectionID string) *session {
	s := &session{
		app:         app,
		code:        code,
		phase:       models.RoundPhaseIdle,
		masterID:    stableID,
		startTime:   app.clock.Now(),
		graceTimers: make(map[string]clockwork.Timer),
		cmds:        make(chan request, 64),
		done:        make(chan struct{}),
	}
	s.participants = append(s.participants, &models.Participant{
		StableID:     stableID,
		ConnectionID: connectionID,
		Name:         name,
		AttemptsLeft: app.cfg.MaxAttempts,
		Connected:    true,
		Role:         models.RoleMaster,
	})
	return s
}

// run processes commands one at a time until teardown. This serialization is
// the sole source of the state machine's correctness: a guess and a timer
// firing can never interleave their mutations.
func (s *session) run() {
	for req := range s.cmds {
		err := s.handle(req.cmd)
		if req.reply != nil {
			req.reply <- err
		}
		if s.closed {
			close(s.done)
			return
		}
	}
}

// enqueue feeds a timer firing back into the actor. Safe to call from timer
// goroutines; a torn-down session drops the command.
func (s *session) enqueue(cmd command) {
	select {
	case s.cmds <- request{cmd: cmd}:
	case <-s.done:
	}
}

func (s *session) handle(cmd command) error {
	switch c := cmd.(type) {
	case *announceCreatedCmd:
		return s.handleAnnounceCreated()
	case *joinCmd:
		return s.handleJoin(c)
	case *rejoinCmd:
		return s.handleRejoin(c)
	case *startGameCmd:
		return s.handleStartGame(c)
	case *submitQuestionCmd:
		return s.handleSubmitQuestion(c)
	case *submitGuessCmd:
		return s.handleSubmitGuess(c)
	case *chatCmd:
		return s.handleChat(c)
	case *disconnectCmd:
		return s.handleDisconnect(c)
	case *snapshotCmd:
		c.result <- s.snapshotPayload()
		return nil
	case *roundTimeoutCmd:
		return s.handleRoundTimeout(c)
	case *awaitTimeoutCmd:
		return s.handleAwaitTimeout(c)
	case *graceExpiredCmd:
		return s.handleGraceExpired(c)
	default:
		log.Warn().Str("session", s.code).Msgf("unknown command %T", cmd)
		return nil
	}
}

func (s *session) handleAnnounceCreated() error {
	master := s.participants[0]
	s.unicast(master.ConnectionID, events.TypeRoleAssigned, events.RoleAssignedPayload{Role: string(models.RoleMaster)})
	s.emit(events.TypeSessionCreated, events.SessionCreatedPayload{
		SessionCode: s.code,
		Text:        fmt.Sprintf("Session created by %s", master.Name),
	})
	s.broadcastState()
	return nil
}

func (s *session) handleJoin(c *joinCmd) error {
	existing := s.byStable(c.stableID)
	if existing == nil && s.roundActive() {
		return fmt.Errorf("%w: cannot join %s mid-round", ErrGameInProgress, s.code)
	}

	if existing != nil {
		// Reconnection: rebind, never duplicate the roster entry. Role
		// and score are preserved.
		s.reclaim(existing, c.connectionID)
		s.unicast(existing.ConnectionID, events.TypeRoleAssigned, events.RoleAssignedPayload{Role: string(existing.Role)})
		s.unicastChat(existing.ConnectionID, fmt.Sprintf("Welcome back, %s!", existing.Name))
		s.broadcastState()
		log.Info().
			Str("session", s.code).
			Str("stable_id", c.stableID).
			Msg("participant reconnected via join")
		return nil
	}

	p := &models.Participant{
		StableID:     c.stableID,
		ConnectionID: c.connectionID,
		Name:         c.name,
		AttemptsLeft: s.app.cfg.MaxAttempts,
		Connected:    true,
		Role:         models.RolePlayer,
	}
	s.participants = append(s.participants, p)

	s.unicast(p.ConnectionID, events.TypeRoleAssigned, events.RoleAssignedPayload{Role: string(models.RolePlayer)})
	s.systemChat(fmt.Sprintf("%s joined the session.", p.Name))
	s.broadcastState()
	log.Info().
		Str("session", s.code).
		Str("stable_id", c.stableID).
		Int("roster_size", len(s.participants)).
		Msg("participant joined")
	return nil
}

func (s *session) handleRejoin(c *rejoinCmd) error {
	p := s.byStable(c.stableID)
	if p == nil {
		return fmt.Errorf("%w: unknown participant for rejoin", ErrValidation)
	}
	s.reclaim(p, c.connectionID)
	s.unicast(p.ConnectionID, events.TypeRoleAssigned, events.RoleAssignedPayload{Role: string(p.Role)})
	s.unicastChat(p.ConnectionID, fmt.Sprintf("%s reconnected and restored", p.Name))
	s.broadcastState()
	log.Info().
		Str("session", s.code).
		Str("stable_id", c.stableID).
		Msg("participant rejoined")
	return nil
}

func (s *session) handleStartGame(c *startGameCmd) error {
	caller := s.byStable(c.stableID)
	if caller == nil || caller.Role != models.RoleMaster {
		return fmt.Errorf("%w: only the master can start the game", ErrAuthorization)
	}
	if s.phase != models.RoundPhaseIdle {
		return fmt.Errorf("%w: game already started", ErrPrecondition)
	}
	if n := s.connectedCount(); n < s.app.cfg.MinParticipantsToStart {
		return fmt.Errorf("%w: need at least %d connected participants, have %d",
			ErrPrecondition, s.app.cfg.MinParticipantsToStart, n)
	}

	s.phase = models.RoundPhaseAwaitingQuestion
	s.armAwaitTimer()
	s.emit(events.TypeAwaitingQuestion, events.AwaitingQuestionPayload{
		NextMasterName: caller.Name,
		Message:        "Waiting for the master to submit a question.",
		WindowSec:      int(s.app.cfg.AwaitingMasterWindow.Seconds()),
	})
	s.broadcastState()
	log.Info().Str("session", s.code).Msg("game started")
	return nil
}

func (s *session) handleSubmitQuestion(c *submitQuestionCmd) error {
	caller := s.byStable(c.stableID)
	if caller == nil || caller.Role != models.RoleMaster {
		return fmt.Errorf("%w: only the master can submit a question", ErrAuthorization)
	}
	if s.phase != models.RoundPhaseIdle && s.phase != models.RoundPhaseAwaitingQuestion {
		return fmt.Errorf("%w: round already active", ErrPrecondition)
	}

	q := c.question
	q.Text = strings.TrimSpace(q.Text)
	q.Answer = strings.TrimSpace(q.Answer)
	if q.Text == "" || q.Answer == "" {
		return fmt.Errorf("%w: question text and answer are required", ErrValidation)
	}
	if q.DurationSec <= 0 {
		q.DurationSec = int(s.app.cfg.DefaultQuestionDuration.Seconds())
	}

	s.stopAwaitTimer()

	// Round start: fresh attempts for everyone, prior winner cleared.
	for _, p := range s.participants {
		p.AttemptsLeft = s.app.cfg.MaxAttempts
	}
	s.winnerID = ""
	s.ended = false
	s.questions = append(s.questions, q)
	s.current = &q

	duration := time.Duration(q.DurationSec) * time.Second
	s.roundDeadline = s.app.clock.Now().Add(duration)
	s.armRoundTimer(duration)
	s.phase = models.RoundPhaseActive

	s.emit(events.TypeQuestionStarted, events.QuestionStartedPayload{
		Text:         q.Text,
		DurationSec:  q.DurationSec,
		Deadline:     s.roundDeadline,
		Participants: s.rosterState(),
	})
	s.broadcastState()
	log.Info().
		Str("session", s.code).
		Int("round", len(s.questions)).
		Int("duration_sec", q.DurationSec).
		Msg("round started")
	return nil
}

func (s *session) handleSubmitGuess(c *submitGuessCmd) error {
	p := s.byStable(c.stableID)
	if p == nil || !p.Connected {
		return fmt.Errorf("%w: unknown or disconnected participant", ErrValidation)
	}
	if s.phase != models.RoundPhaseActive || s.current == nil {
		return fmt.Errorf("%w: no active round", ErrPrecondition)
	}
	if s.winnerID != "" {
		// A winning guess already landed this round; absorb silently.
		return nil
	}
	if p.AttemptsLeft <= 0 {
		return fmt.Errorf("%w: no attempts left this round", ErrPrecondition)
	}

	guess := strings.TrimSpace(c.guess)
	if guess == "" {
		return fmt.Errorf("%w: guess must not be empty", ErrValidation)
	}

	if strings.EqualFold(guess, strings.TrimSpace(s.current.Answer)) {
		p.Score += s.app.cfg.PointsPerCorrectGuess
		s.winnerID = p.StableID
		// Cancel the round timer before resolving so a concurrent expiry
		// cannot queue a second terminal transition.
		s.stopRoundTimer()
		s.unicast(p.ConnectionID, events.TypeGuessResult, events.GuessResultPayload{
			Correct:      true,
			AttemptsLeft: p.AttemptsLeft,
		})
		s.resolveRound(p)
		return nil
	}

	p.AttemptsLeft--
	s.unicast(p.ConnectionID, events.TypeGuessResult, events.GuessResultPayload{
		Correct:      false,
		AttemptsLeft: p.AttemptsLeft,
	})
	s.broadcastState()
	return nil
}

func (s *session) handleChat(c *chatCmd) error {
	if strings.TrimSpace(c.message) == "" {
		return fmt.Errorf("%w: message must not be empty", ErrValidation)
	}
	// Resolve the sender by stable ID so a reconnected participant's
	// messages stay correctly attributed.
	name := "Unknown"
	if p := s.byStable(c.stableID); p != nil {
		name = p.Name
	}
	s.emit(events.TypeChatNew, events.ChatPayload{
		Sender:    name,
		Message:   c.message,
		Timestamp: s.app.clock.Now(),
	})
	return nil
}

func (s *session) handleDisconnect(c *disconnectCmd) error {
	p := s.byConn(c.connectionID)
	if p == nil || !p.Connected {
		return nil
	}

	if c.reason == ReasonTransient {
		if _, pending := s.graceTimers[c.connectionID]; pending {
			return nil
		}
		connID := c.connectionID
		s.graceTimers[connID] = s.app.clock.AfterFunc(s.app.cfg.DisconnectGrace, func() {
			s.enqueue(&graceExpiredCmd{connectionID: connID})
		})
		log.Debug().
			Str("session", s.code).
			Str("stable_id", p.StableID).
			Dur("grace", s.app.cfg.DisconnectGrace).
			Msg("transient disconnect, grace window open")
		return nil
	}

	s.markDisconnected(p)
	return nil
}

func (s *session) handleGraceExpired(c *graceExpiredCmd) error {
	delete(s.graceTimers, c.connectionID)
	// A reclaim rebinds the participant to a new connection ID, so a
	// lookup by the old one coming up empty means the slot was reclaimed.
	p := s.byConn(c.connectionID)
	if p == nil || !p.Connected {
		return nil
	}
	s.markDisconnected(p)
	return nil
}

func (s *session) handleRoundTimeout(c *roundTimeoutCmd) error {
	if c.generation != s.roundGen || s.phase != models.RoundPhaseActive || s.ended {
		return nil
	}
	log.Info().Str("session", s.code).Msg("round timed out with no winner")
	s.resolveRound(nil)
	return nil
}

func (s *session) handleAwaitTimeout(c *awaitTimeoutCmd) error {
	if c.generation != s.awaitGen || s.phase != models.RoundPhaseAwaitingQuestion {
		return nil
	}
	s.awaitTimer = nil

	// Forced rotation advances through the roster regardless of
	// connectivity and fires once; it does not re-arm itself.
	chosen := s.nextInRoster()
	if chosen == nil {
		return nil
	}
	applyMaster(s.participants, chosen)
	s.masterID = chosen.StableID
	if !chosen.Connected {
		log.Warn().
			Str("session", s.code).
			Str("stable_id", chosen.StableID).
			Msg("forced master rotation landed on a disconnected participant")
	}
	s.emit(events.TypeMasterChanged, events.MasterChangedPayload{
		NewMasterName: chosen.Name,
		Participants:  s.rosterState(),
	})
	s.notifyRoles()
	s.emit(events.TypeAwaitingQuestion, events.AwaitingQuestionPayload{
		NextMasterName: chosen.Name,
		Message:        "The master did not submit a question in time; the role moved on.",
		WindowSec:      0,
	})
	s.broadcastState()
	log.Info().
		Str("session", s.code).
		Str("new_master", chosen.StableID).
		Msg("awaiting-master window expired, master rotated")
	return nil
}

// resolveRound is the single terminal transition of a round. The ended flag
// makes it idempotent even if a winning guess and a timer firing race
// through the command queue.
func (s *session) resolveRound(winner *models.Participant) {
	if s.ended {
		return
	}
	s.ended = true
	s.phase = models.RoundPhaseEnding

	answer := ""
	if s.current != nil {
		answer = s.current.Answer
	}
	var winnerName *string
	message := "Time out! No winner this round."
	winnerStableID := ""
	if winner != nil {
		n := winner.Name
		winnerName = &n
		winnerStableID = winner.StableID
		message = fmt.Sprintf("%s won this round!", winner.Name)
	}

	s.emit(events.TypeRoundEnded, events.RoundEndedPayload{
		WinnerName:   winnerName,
		Answer:       answer,
		Message:      message,
		Participants: s.rosterState(),
	})

	s.rotateMaster(winnerStableID)

	s.current = nil
	s.roundDeadline = time.Time{}
	s.phase = models.RoundPhaseAwaitingQuestion
	s.broadcastState()

	s.armAwaitTimer()
	masterName := ""
	if m := s.byStable(s.masterID); m != nil {
		masterName = m.Name
	}
	s.emit(events.TypeAwaitingQuestion, events.AwaitingQuestionPayload{
		NextMasterName: masterName,
		Message:        "Waiting for the next question.",
		WindowSec:      int(s.app.cfg.AwaitingMasterWindow.Seconds()),
	})
	log.Info().
		Str("session", s.code).
		Bool("had_winner", winner != nil).
		Msg("round resolved")
}

// rotateMaster applies the rotation policy and announces the result: one
// session-wide master_changed plus a role notice to each participant, each
// learning only its own role.
func (s *session) rotateMaster(winnerStableID string) {
	chosen := nextMaster(s.participants, winnerStableID)
	if !applyMaster(s.participants, chosen) {
		return
	}
	s.masterID = chosen.StableID
	s.emit(events.TypeMasterChanged, events.MasterChangedPayload{
		NewMasterName: chosen.Name,
		Participants:  s.rosterState(),
	})
	s.notifyRoles()
}

func (s *session) markDisconnected(p *models.Participant) {
	p.Connected = false
	log.Info().
		Str("session", s.code).
		Str("stable_id", p.StableID).
		Msg("participant disconnected")

	if s.connectedCount() == 0 {
		s.finishGame()
		return
	}
	if p.Role == models.RoleMaster {
		// Master reassignment is immediate, independent of round phase.
		s.rotateMaster("")
	}
	s.broadcastState()
}

// finishGame ends the whole session: announces the overall result, stops
// every timer, tears down in-memory state and hands the summary to the
// archive without waiting on it.
func (s *session) finishGame() {
	winnerName := s.overallWinner()
	s.emit(events.TypeGameEnded, events.GameEndedPayload{
		Participants: s.rosterState(),
		WinnerName:   winnerName,
	})

	s.stopRoundTimer()
	s.stopAwaitTimer()
	for _, t := range s.graceTimers {
		t.Stop()
	}

	players := make([]models.PlayerResult, 0, len(s.participants))
	for _, p := range s.participants {
		players = append(players, models.PlayerResult{
			StableID: p.StableID,
			Name:     p.Name,
			Score:    p.Score,
		})
	}
	summary := models.SessionSummary{
		Code:      s.code,
		Players:   players,
		Winner:    winnerName,
		Questions: s.questions,
		StartedAt: s.startTime,
		EndedAt:   s.app.clock.Now(),
	}

	s.closed = true
	s.app.remove(s.code)

	if s.app.archiver != nil {
		archiver := s.app.archiver
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := archiver.SaveSummary(ctx, summary); err != nil {
				log.Error().
					Err(err).
					Str("session", summary.Code).
					Msg("failed to archive session summary")
			}
		}()
	}

	log.Info().
		Str("session", s.code).
		Int("rounds", len(s.questions)).
		Msg("session ended")
}

// overallWinner returns the name of the unique top scorer, or nil on a tie.
func (s *session) overallWinner() *string {
	if len(s.participants) == 0 {
		return nil
	}
	max := s.participants[0].Score
	for _, p := range s.participants[1:] {
		if p.Score > max {
			max = p.Score
		}
	}
	var winner *models.Participant
	for _, p := range s.participants {
		if p.Score == max {
			if winner != nil {
				return nil // tied top score resolves to no winner
			}
			winner = p
		}
	}
	name := winner.Name
	return &name
}

// --- timers ---

func (s *session) armRoundTimer(d time.Duration) {
	s.stopRoundTimer()
	gen := s.roundGen
	s.roundTimer = s.app.clock.AfterFunc(d, func() {
		s.enqueue(&roundTimeoutCmd{generation: gen})
	})
}

func (s *session) stopRoundTimer() {
	s.roundGen++
	if s.roundTimer != nil {
		s.roundTimer.Stop()
		s.roundTimer = nil
	}
}

func (s *session) armAwaitTimer() {
	s.stopAwaitTimer()
	gen := s.awaitGen
	s.awaitTimer = s.app.clock.AfterFunc(s.app.cfg.AwaitingMasterWindow, func() {
		s.enqueue(&awaitTimeoutCmd{generation: gen})
	})
}

func (s *session) stopAwaitTimer() {
	s.awaitGen++
	if s.awaitTimer != nil {
		s.awaitTimer.Stop()
		s.awaitTimer = nil
	}
}

// --- roster helpers ---

func (s *session) reclaim(p *models.Participant, connectionID string) {
	if t, ok := s.graceTimers[p.ConnectionID]; ok {
		t.Stop()
		delete(s.graceTimers, p.ConnectionID)
	}
	p.ConnectionID = connectionID
	p.Connected = true
}

func (s *session) byStable(stableID string) *models.Participant {
	for _, p := range s.participants {
		if p.StableID == stableID {
			return p
		}
	}
	return nil
}

func (s *session) byConn(connectionID string) *models.Participant {
	for _, p := range s.participants {
		if p.ConnectionID == connectionID {
			return p
		}
	}
	return nil
}

func (s *session) connectedCount() int {
	n := 0
	for _, p := range s.participants {
		if p.Connected {
			n++
		}
	}
	return n
}

// nextInRoster returns the roster member after the current master in join
// order, wrapping around, connectivity ignored.
func (s *session) nextInRoster() *models.Participant {
	if len(s.participants) == 0 {
		return nil
	}
	masterIdx := 0
	for i, p := range s.participants {
		if p.StableID == s.masterID {
			masterIdx = i
			break
		}
	}
	return s.participants[(masterIdx+1)%len(s.participants)]
}

func (s *session) roundActive() bool {
	return s.phase == models.RoundPhaseActive || s.phase == models.RoundPhaseEnding
}

// --- broadcast helpers ---

func (s *session) emit(t events.Type, payload any) {
	s.app.broadcaster.BroadcastToSession(s.code, events.New(s.code, t, payload, s.app.clock.Now()))
}

func (s *session) unicast(connectionID string, t events.Type, payload any) {
	s.app.broadcaster.SendToConnection(connectionID, events.New(s.code, t, payload, s.app.clock.Now()))
}

func (s *session) systemChat(text string) {
	s.emit(events.TypeChatNew, events.ChatPayload{
		Sender:    "system",
		Message:   text,
		Timestamp: s.app.clock.Now(),
	})
}

func (s *session) unicastChat(connectionID, text string) {
	s.unicast(connectionID, events.TypeChatNew, events.ChatPayload{
		Sender:    "system",
		Message:   text,
		Timestamp: s.app.clock.Now(),
	})
}

// notifyRoles unicasts each connected participant its own role.
func (s *session) notifyRoles() {
	for _, p := range s.participants {
		if p.Connected {
			s.unicast(p.ConnectionID, events.TypeRoleAssigned, events.RoleAssignedPayload{Role: string(p.Role)})
		}
	}
}

func (s *session) broadcastState() {
	s.emit(events.TypeSessionState, *s.snapshotPayload())
}

func (s *session) rosterState() []events.ParticipantState {
	roster := make([]events.ParticipantState, 0, len(s.participants))
	for _, p := range s.participants {
		roster = append(roster, events.ParticipantState{
			StableID:     p.StableID,
			Name:         p.Name,
			Score:        p.Score,
			AttemptsLeft: p.AttemptsLeft,
			Connected:    p.Connected,
			Role:         string(p.Role),
		})
	}
	return roster
}

func (s *session) snapshotPayload() *events.SnapshotPayload {
	masterName := ""
	if m := s.byStable(s.masterID); m != nil {
		masterName = m.Name
	}
	snap := &events.SnapshotPayload{
		SessionCode:    s.code,
		MasterID:       s.masterID,
		MasterName:     masterName,
		Phase:          string(s.phase),
		Participants:   s.rosterState(),
		ConnectedCount: s.connectedCount(),
		QuestionsAsked: len(s.questions),
	}
	if s.current != nil {
		snap.Question = &events.QuestionState{
			Text:        s.current.Text,
			DurationSec: s.current.DurationSec,
			Deadline:    s.roundDeadline,
		}
	}
	return snap
}
