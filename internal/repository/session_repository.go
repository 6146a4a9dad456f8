package repository

import (
	"context"
	"errors"
	"time"

	"github.com/prepmate/prepmate-backend/internal/model"
)

// Session repository errors.
var (
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateActiveSession is returned by Insert when the user
	// already holds a non-terminal session for the same quiz. The
	// storage layer enforces this atomically so two concurrent creates
	// cannot both succeed.
	ErrDuplicateActiveSession = errors.New("active session already exists for user and quiz")
)

// HistoryFilter narrows and pages a session history query.
type HistoryFilter struct {
	Page   int
	Limit  int
	Status model.SessionStatus // optional
	QuizID string              // optional
}

// SessionRepository persists quiz attempt documents. All mutable state
// for one attempt lives in one document, so per-document atomicity is
// the only storage guarantee the engine relies on.
type SessionRepository interface {
	// Insert adds a new session, failing with ErrDuplicateActiveSession
	// when a non-terminal session for the same (user, quiz) pair exists.
	Insert(ctx context.Context, session *model.Session) error
	// FindByID returns the session or ErrSessionNotFound.
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindActive returns the user's non-terminal session for the quiz,
	// or ErrSessionNotFound.
	FindActive(ctx context.Context, userID, quizID string) (*model.Session, error)
	// Replace writes the full session document back.
	Replace(ctx context.Context, session *model.Session) error
	// ListActive returns all non-terminal sessions for a user.
	ListActive(ctx context.Context, userID string) ([]model.Session, error)
	// ListHistory returns a page of the user's sessions, newest first,
	// with the total match count.
	ListHistory(ctx context.Context, userID string, filter HistoryFilter) ([]model.Session, int64, error)
	// ExpireStale transitions every in_progress/paused session whose
	// last activity predates cutoff to expired. Returns the count.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
	// PurgeOld hard-deletes terminal sessions whose terminal timestamp
	// predates cutoff. Returns the count.
	PurgeOld(ctx context.Context, cutoff time.Time) (int64, error)
}
