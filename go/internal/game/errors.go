package game

import "errors"

// Error taxonomy for inbound participant actions. Every failure leaves
// session state untouched and is reported only to the originating caller.
var (
	// ErrValidation is returned for missing or malformed payloads.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization is returned when a non-master attempts a
	// master-only action.
	ErrAuthorization = errors.New("not authorized")

	// ErrSessionNotFound is returned for unknown session codes.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session whose code is
	// already live.
	ErrSessionExists = errors.New("session already exists")

	// ErrPrecondition is returned when the session is in the wrong phase
	// or has too few connected participants for the requested action.
	ErrPrecondition = errors.New("precondition failed")

	// ErrGameInProgress is returned when a new participant tries to join
	// a session with an active round.
	ErrGameInProgress = errors.New("game in progress")
)
