package models

// Role defines a participant's role within a session.
type Role string

const (
	RoleMaster Role = "master"
	RolePlayer Role = "player"
)

// Participant is one roster member of a session. StableID survives
// reconnects; ConnectionID is rebound on every new transport connection.
// Disconnected participants stay on the roster until session teardown.
type Participant struct {
	StableID     string `json:"stable_id"`
	ConnectionID string `json:"connection_id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	AttemptsLeft int    `json:"attempts_left"`
	Connected    bool   `json:"connected"`
	Role         Role   `json:"role"`
}
