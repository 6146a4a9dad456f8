package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prepmate/prepmate-backend/internal/model"
)

// MemorySessionRepository is an in-memory SessionRepository used by
// unit tests and local development. It enforces the same
// one-active-session-per-(user,quiz) contract as the Mongo partial
// unique index, atomically under its lock.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewMemorySessionRepository creates an empty MemorySessionRepository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*model.Session)}
}

func (r *MemorySessionRepository) Insert(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sessions {
		if existing.UserID == session.UserID &&
			existing.QuizID == session.QuizID &&
			!existing.Status.Terminal() {
			return ErrDuplicateActiveSession
		}
	}

	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *MemorySessionRepository) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (r *MemorySessionRepository) FindActive(_ context.Context, userID, quizID string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.UserID == userID && session.QuizID == quizID && !session.Status.Terminal() {
			return cloneSession(session), nil
		}
	}
	return nil, ErrSessionNotFound
}

func (r *MemorySessionRepository) Replace(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *MemorySessionRepository) ListActive(_ context.Context, userID string) ([]model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []model.Session
	for _, session := range r.sessions {
		if session.UserID == userID && !session.Status.Terminal() {
			result = append(result, *cloneSession(session))
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (r *MemorySessionRepository) ListHistory(_ context.Context, userID string, filter HistoryFilter) ([]model.Session, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []model.Session
	for _, session := range r.sessions {
		if session.UserID != userID {
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		if filter.QuizID != "" && session.QuizID != filter.QuizID {
			continue
		}
		matches = append(matches, *cloneSession(session))
	}
	sortNewestFirst(matches)

	total := int64(len(matches))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matches) {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

func (r *MemorySessionRepository) ExpireStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, session := range r.sessions {
		if (session.Status == model.SessionStatusInProgress || session.Status == model.SessionStatusPaused) &&
			session.LastActive.Before(cutoff) {
			session.Status = model.SessionStatusExpired
			session.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

func (r *MemorySessionRepository) PurgeOld(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, session := range r.sessions {
		switch session.Status {
		case model.SessionStatusCompleted:
			if session.EndTime != nil && session.EndTime.Before(cutoff) {
				delete(r.sessions, id)
				count++
			}
		case model.SessionStatusExpired:
			if session.LastActive.Before(cutoff) {
				delete(r.sessions, id)
				count++
			}
		}
	}
	return count, nil
}

// cloneSession copies a session and its ledger so callers never alias
// repository-held state.
func cloneSession(s *model.Session) *model.Session {
	clone := *s
	clone.Answers = make([]model.AnswerEntry, len(s.Answers))
	copy(clone.Answers, s.Answers)
	return &clone
}

func sortNewestFirst(sessions []model.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}
