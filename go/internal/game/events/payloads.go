package events

import (
	"time"
)

// ParticipantState is the roster view included in session-wide events.
type ParticipantState struct {
	StableID     string `json:"stable_id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	AttemptsLeft int    `json:"attempts_left"`
	Connected    bool   `json:"connected"`
	Role         string `json:"role"`
}

// QuestionState describes the active question without exposing its answer.
type QuestionState struct {
	Text        string    `json:"text"`
	DurationSec int       `json:"duration_sec"`
	Deadline    time.Time `json:"deadline"`
}

// SessionCreatedPayload is the payload for a session_created event
type SessionCreatedPayload struct {
	SessionCode string `json:"session_code"`
	Text        string `json:"text"`
}

// SnapshotPayload is the payload for a session_state event. It is recomputed
// and broadcast after every state-affecting operation.
type SnapshotPayload struct {
	SessionCode    string             `json:"session_code"`
	MasterID       string             `json:"master_id"`
	MasterName     string             `json:"master_name,omitempty"`
	Phase          string             `json:"phase"`
	Participants   []ParticipantState `json:"participants"` // full roster including disconnected
	ConnectedCount int                `json:"connected_count"`
	Question       *QuestionState     `json:"question,omitempty"`
	QuestionsAsked int                `json:"questions_asked"`
}

// RoleAssignedPayload is the payload for a role_assigned event (unicast).
type RoleAssignedPayload struct {
	Role string `json:"role"`
}

// QuestionStartedPayload is the payload for a question_started event
type QuestionStartedPayload struct {
	Text         string             `json:"text"`
	DurationSec  int                `json:"duration_sec"`
	Deadline     time.Time          `json:"deadline"`
	Participants []ParticipantState `json:"participants"`
}

// RoundEndedPayload is the payload for a round_ended event
type RoundEndedPayload struct {
	WinnerName   *string            `json:"winner_name,omitempty"`
	Answer       string             `json:"answer"`
	Message      string             `json:"message"`
	Participants []ParticipantState `json:"participants"`
}

// MasterChangedPayload is the payload for a master_changed event
type MasterChangedPayload struct {
	NewMasterName string             `json:"new_master_name"`
	Participants  []ParticipantState `json:"participants"`
}

// AwaitingQuestionPayload is the payload for an awaiting_question event
type AwaitingQuestionPayload struct {
	NextMasterName string `json:"next_master_name"`
	Message        string `json:"message"`
	WindowSec      int    `json:"window_sec"`
}

// GuessResultPayload is the payload for a guess_result event (unicast).
type GuessResultPayload struct {
	Correct      bool `json:"correct"`
	AttemptsLeft int  `json:"attempts_left"`
}

// ChatPayload is the payload for a chat_new event
type ChatPayload struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// GameEndedPayload is the payload for a game_ended event
type GameEndedPayload struct {
	Participants []ParticipantState `json:"participants"`
	WinnerName   *string            `json:"winner_name,omitempty"`
}

// ErrorPayload is the payload for an error event (unicast).
type ErrorPayload struct {
	Text string `json:"text"`
}
