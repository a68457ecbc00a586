package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for everything the server pushes to participants.
type Event struct {
	ID          string          `json:"id"`           // Event UUID
	SessionCode string          `json:"session_code"` // Session the event belongs to
	Type        Type            `json:"type"`         // Event type
	Timestamp   time.Time       `json:"timestamp"`    // Event creation time
	Data        json.RawMessage `json:"data"`         // Event-specific payload
}

// Type represents the type of session event.
type Type string

const (
	TypeSessionCreated   Type = "session_created"
	TypeSessionState     Type = "session_state"
	TypeRoleAssigned     Type = "role_assigned"
	TypeQuestionStarted  Type = "question_started"
	TypeRoundEnded       Type = "round_ended"
	TypeMasterChanged    Type = "master_changed"
	TypeAwaitingQuestion Type = "awaiting_question"
	TypeGuessResult      Type = "guess_result"
	TypeChatNew          Type = "chat_new"
	TypeGameEnded        Type = "game_ended"
	TypeError            Type = "error"
)

// New wraps a payload into an Event envelope. Payloads are plain local
// structs, so marshaling cannot fail at runtime.
func New(sessionCode string, t Type, payload any, now time.Time) *Event {
	data, _ := json.Marshal(payload)
	return &Event{
		ID:          uuid.New().String(),
		SessionCode: sessionCode,
		Type:        t,
		Timestamp:   now,
		Data:        data,
	}
}

// ParsePayload decodes an event's data into the payload struct for its type.
func ParsePayload(event *Event) (interface{}, error) {
	switch event.Type {
	case TypeSessionCreated:
		var p SessionCreatedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeSessionState:
		var p SnapshotPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeRoleAssigned:
		var p RoleAssignedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeQuestionStarted:
		var p QuestionStartedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeRoundEnded:
		var p RoundEndedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeMasterChanged:
		var p MasterChangedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeAwaitingQuestion:
		var p AwaitingQuestionPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeGuessResult:
		var p GuessResultPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeChatNew:
		var p ChatPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeGameEnded:
		var p GameEndedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	case TypeError:
		var p ErrorPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, nil // Unknown event type
	}
}
