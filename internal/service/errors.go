package service

import "errors"

// Engine error taxonomy. Handlers map these onto response codes with
// errors.Is; the engine itself never returns partial success.
var (
	// ErrQuizNotFound indicates the quiz definition does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound indicates no session matches the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuestionNotFound indicates the question id has no ledger entry.
	ErrQuestionNotFound = errors.New("question not found in session")
	// ErrForbidden indicates the acting user does not own the session.
	ErrForbidden = errors.New("session belongs to another user")
	// ErrInvalidState indicates the operation is not permitted from the
	// session's current status.
	ErrInvalidState = errors.New("operation not permitted in current session state")
	// ErrSessionExpired indicates the session aged past the inactivity
	// threshold. The expired transition is persisted before this is
	// returned, so later reads observe the corrected status.
	ErrSessionExpired = errors.New("session has expired")
	// ErrInvalidIndex indicates a navigation index outside the ledger.
	ErrInvalidIndex = errors.New("question index out of range")
	// ErrInvalidSyncPayload indicates a sync patch whose replacement
	// ledger does not mirror the session's question set.
	ErrInvalidSyncPayload = errors.New("sync payload does not match session ledger")
)
