package model

import (
	"time"
)

// SessionStatus enumerates quiz session states.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "not_started"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusPaused     SessionStatus = "paused"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusExpired    SessionStatus = "expired"
)

// sessionTransitions is the single transition table every operation
// consults. Illegal transitions are rejected uniformly instead of by
// per-method guards.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusNotStarted: {SessionStatusInProgress, SessionStatusExpired},
	SessionStatusInProgress: {SessionStatusPaused, SessionStatusCompleted, SessionStatusExpired},
	SessionStatusPaused:     {SessionStatusInProgress, SessionStatusCompleted, SessionStatusExpired},
	SessionStatusCompleted:  {},
	SessionStatusExpired:    {},
}

// CanTransition reports whether the state machine permits moving from
// s to the target status.
func (s SessionStatus) CanTransition(to SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further mutation is permitted.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusExpired
}

// ActiveStatuses lists the non-terminal statuses. At most one session
// per (user, quiz) pair may hold one of these at any time.
func ActiveStatuses() []SessionStatus {
	return []SessionStatus{SessionStatusNotStarted, SessionStatusInProgress, SessionStatusPaused}
}

// AnswerEntry is one question's recorded state within a session.
// Exactly one entry exists per quiz question, created with the session
// in catalog order and never added or removed afterward.
type AnswerEntry struct {
	QuestionID string `bson:"question_id" json:"question_id"`
	// Selected is nil until answered. A non-nil Selected and
	// Skipped==true are mutually exclusive at any instant.
	Selected         interface{} `bson:"selected" json:"selected"`
	IsCorrect        *bool       `bson:"is_correct" json:"is_correct"`
	TimeSpentSeconds int         `bson:"time_spent_seconds" json:"time_spent_seconds"`
	Flagged          bool        `bson:"flagged" json:"flagged"`
	Skipped          bool        `bson:"skipped" json:"skipped"`
	AnsweredAt       *time.Time  `bson:"answered_at" json:"answered_at,omitempty"`
}

// DeviceMeta carries client sync metadata.
type DeviceMeta struct {
	Platform string     `bson:"platform" json:"platform"`
	LastSync *time.Time `bson:"last_sync" json:"last_sync,omitempty"`
}

// Session is one user's timed attempt at one quiz, stored as a single
// document with the embedded answer ledger.
type Session struct {
	ID                   string        `bson:"_id" json:"id"`
	UserID               string        `bson:"user_id" json:"user_id"`
	QuizID               string        `bson:"quiz_id" json:"quiz_id"`
	Status               SessionStatus `bson:"status" json:"status"`
	CurrentIndex         int           `bson:"current_index" json:"current_index"`
	TimeRemainingSeconds int           `bson:"time_remaining_seconds" json:"time_remaining_seconds"`
	StartTime            *time.Time    `bson:"start_time" json:"start_time,omitempty"`
	EndTime              *time.Time    `bson:"end_time" json:"end_time,omitempty"`
	LastActive           time.Time     `bson:"last_active" json:"last_active"`
	Score                *float64      `bson:"score" json:"score,omitempty"`
	TimeTakenSeconds     *int          `bson:"time_taken_seconds" json:"time_taken_seconds,omitempty"`
	Answers              []AnswerEntry `bson:"answers" json:"answers"`
	Device               DeviceMeta    `bson:"device" json:"device"`
	CreatedAt            time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `bson:"updated_at" json:"updated_at"`
}

// AnswerIndex builds the question-id → ledger-position map. The ledger
// is fixed-size, so the index is built once per document load and
// reused for every lookup within the operation.
func (s *Session) AnswerIndex() map[string]int {
	idx := make(map[string]int, len(s.Answers))
	for i := range s.Answers {
		idx[s.Answers[i].QuestionID] = i
	}
	return idx
}

// Progress summarizes the ledger for the client.
type Progress struct {
	Answered  int `json:"answered"`
	Flagged   int `json:"flagged"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// Progress counts answered, flagged and skipped entries. Remaining is
// what has been neither answered nor skipped.
func (s *Session) Progress() Progress {
	p := Progress{Total: len(s.Answers)}
	for i := range s.Answers {
		if s.Answers[i].Selected != nil {
			p.Answered++
		}
		if s.Answers[i].Flagged {
			p.Flagged++
		}
		if s.Answers[i].Skipped {
			p.Skipped++
		}
	}
	p.Remaining = p.Total - p.Answered - p.Skipped
	return p
}

// ─── Request payloads ───────────────────────────────────────────────

// CreateSessionRequest is the payload for create-or-resume.
type CreateSessionRequest struct {
	Platform string `json:"platform" binding:"omitempty,oneof=ios android web"`
}

// SubmitAnswerRequest records a selection for one question.
type SubmitAnswerRequest struct {
	QuestionID string      `json:"question_id" binding:"required,uuid"`
	Answer     interface{} `json:"answer" binding:"required"`
}

// QuestionRefRequest targets one question (flag toggle, skip).
type QuestionRefRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
}

// NavigateRequest moves the current question pointer.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// SyncRequest is the reconnect reconciliation patch. Every provided
// field overwrites the server copy wholesale; omitted fields are left
// untouched.
type SyncRequest struct {
	Answers              []AnswerEntry `json:"answers" binding:"omitempty"`
	CurrentIndex         *int          `json:"current_index" binding:"omitempty,min=0"`
	TimeRemainingSeconds *int          `json:"time_remaining_seconds" binding:"omitempty,min=0"`
	Device               *DeviceMeta   `json:"device" binding:"omitempty"`
}

// PurgeRequest is the admin payload for the age-based purge.
type PurgeRequest struct {
	DaysOld int `json:"days_old" binding:"omitempty,min=1,max=3650"`
}
