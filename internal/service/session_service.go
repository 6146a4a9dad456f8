package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prepmate/prepmate-backend/internal/config"
	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/repository"
	"github.com/rs/zerolog"
)

// QuizCatalog is the read-only quiz definition source the session
// engine depends on.
type QuizCatalog interface {
	GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
}

// SessionService owns the attempt lifecycle: creation, the state
// machine, navigation, sync reconciliation, scoring at completion, and
// the maintenance sweeps.
type SessionService struct {
	sessions   repository.SessionRepository
	quizzes    QuizCatalog
	inactivity time.Duration
	purgeDays  int
	log        zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions repository.SessionRepository, quizzes QuizCatalog, cfg *config.Config, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions:   sessions,
		quizzes:    quizzes,
		inactivity: cfg.InactivityThreshold,
		purgeDays:  cfg.PurgeAfterDays,
		log:        log.With().Str("component", "session_service").Logger(),
	}
}

// CreateOrResume returns the user's existing active session for the
// quiz unchanged, or materializes a new one from the quiz definition.
// The storage layer's uniqueness contract makes this safe under
// concurrent calls: the loser of an insert race fetches the winner's
// session instead of creating a second one.
func (s *SessionService) CreateOrResume(ctx context.Context, userID string, quizID uuid.UUID, platform string) (*model.Session, error) {
	existing, err := s.sessions.FindActive(ctx, userID, quizID.String())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	// Unpublished quizzes are invisible to attempt creation, matching
	// the paper endpoint; otherwise a session could exist for a quiz
	// whose questions can never be fetched.
	if !quiz.Published {
		return nil, ErrQuizNotFound
	}

	now := time.Now()
	session := &model.Session{
		ID:                   uuid.NewString(),
		UserID:               userID,
		QuizID:               quizID.String(),
		Status:               model.SessionStatusNotStarted,
		CurrentIndex:         0,
		TimeRemainingSeconds: quiz.TimeLimitSeconds,
		LastActive:           now,
		Answers:              make([]model.AnswerEntry, 0, len(quiz.Questions)),
		Device:               model.DeviceMeta{Platform: platform},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for _, question := range quiz.Questions {
		session.Answers = append(session.Answers, model.AnswerEntry{
			QuestionID: question.ID.String(),
		})
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveSession) {
			// Lost a concurrent create; the other request's session wins.
			winner, findErr := s.sessions.FindActive(ctx, userID, quizID.String())
			if findErr != nil {
				return nil, fmt.Errorf("concurrent create detected, fetch failed: %w", findErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID).
		Str("quiz_id", session.QuizID).
		Str("user_id", userID).
		Msg("Session created")

	return session, nil
}

// Get returns a session after the ownership check.
func (s *SessionService) Get(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	return loadOwned(ctx, s.sessions, sessionID, userID)
}

// Start moves a session into in_progress from not_started or paused.
// A session idle past the inactivity threshold is expired (and the
// transition persisted) before the call fails with ErrSessionExpired.
func (s *SessionService) Start(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.expireIfStale(ctx, session); err != nil {
		return nil, err
	}

	if session.Status != model.SessionStatusNotStarted && session.Status != model.SessionStatusPaused {
		return nil, fmt.Errorf("start from %s: %w", session.Status, ErrInvalidState)
	}

	now := time.Now()
	session.Status = model.SessionStatusInProgress
	if session.StartTime == nil {
		session.StartTime = &now
	}
	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, fmt.Errorf("persist start: %w", err)
	}
	return session, nil
}

// Pause freezes an in_progress session. The clock stops: wall-clock
// time spent in_progress since the last activity is deducted from the
// remaining time, and nothing is deducted while paused.
func (s *SessionService) Pause(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if session.Status != model.SessionStatusInProgress {
		return nil, fmt.Errorf("pause from %s: %w", session.Status, ErrInvalidState)
	}

	now := time.Now()
	deductElapsed(session, now)
	session.Status = model.SessionStatusPaused
	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, fmt.Errorf("persist pause: %w", err)
	}
	return session, nil
}

// Resume reactivates a paused session, with the same staleness check
// as Start.
func (s *SessionService) Resume(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.expireIfStale(ctx, session); err != nil {
		return nil, err
	}

	if session.Status != model.SessionStatusPaused {
		return nil, fmt.Errorf("resume from %s: %w", session.Status, ErrInvalidState)
	}

	now := time.Now()
	session.Status = model.SessionStatusInProgress
	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, fmt.Errorf("persist resume: %w", err)
	}
	return session, nil
}

// Complete scores the attempt and freezes the session. Completing an
// already-completed session returns the frozen result unchanged rather
// than recomputing it.
func (s *SessionService) Complete(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if session.Status == model.SessionStatusCompleted {
		return session, nil
	}
	if !session.Status.CanTransition(model.SessionStatusCompleted) {
		return nil, fmt.Errorf("complete from %s: %w", session.Status, ErrInvalidState)
	}

	quizID, err := uuid.Parse(session.QuizID)
	if err != nil {
		return nil, fmt.Errorf("parse quiz id: %w", err)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if session.Status == model.SessionStatusInProgress {
		deductElapsed(session, now)
	}

	score := scoreSession(quiz, session)
	session.Score = &score
	session.Status = model.SessionStatusCompleted
	session.EndTime = &now
	if session.StartTime != nil {
		taken := int(now.Sub(*session.StartTime).Seconds())
		session.TimeTakenSeconds = &taken
	}
	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, fmt.Errorf("persist completion: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID).
		Float64("score", score).
		Msg("Session completed")

	return session, nil
}

// NavigateTo moves the current question pointer, validating bounds
// against the ledger length.
func (s *SessionService) NavigateTo(ctx context.Context, sessionID, userID string, index int) (*model.Session, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if session.Status != model.SessionStatusInProgress && session.Status != model.SessionStatusPaused {
		return nil, fmt.Errorf("navigate from %s: %w", session.Status, ErrInvalidState)
	}
	if index < 0 || index >= len(session.Answers) {
		return nil, fmt.Errorf("index %d of %d answers: %w", index, len(session.Answers), ErrInvalidIndex)
	}

	now := time.Now()
	if session.Status == model.SessionStatusInProgress {
		deductElapsed(session, now)
	}
	session.CurrentIndex = index
	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, fmt.Errorf("persist navigation: %w", err)
	}
	return session, nil
}

// Sync reconciles client-held state after a reconnect. Every provided
// field overwrites the server copy wholesale — the client is
// authoritative after a reconnect — except correctness, which is
// always recomputed from the answer key so the ledger never carries
// client-asserted grades.
func (s *SessionService) Sync(ctx context.Context, sessionID, userID string, req *model.SyncRequest) (*model.Session, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if session.Status != model.SessionStatusInProgress && session.Status != model.SessionStatusPaused {
		return nil, fmt.Errorf("sync from %s: %w", session.Status, ErrInvalidState)
	}

	if req.Answers != nil {
		if err := s.overwriteLedger(ctx, session, req.Answers); err != nil {
			return nil, err
		}
	}
	if req.CurrentIndex != nil {
		if *req.CurrentIndex < 0 || *req.CurrentIndex >= len(session.Answers) {
			return nil, fmt.Errorf("index %d of %d answers: %w", *req.CurrentIndex, len(session.Answers), ErrInvalidIndex)
		}
		session.CurrentIndex = *req.CurrentIndex
	}
	if req.TimeRemainingSeconds != nil {
		session.TimeRemainingSeconds = *req.TimeRemainingSeconds
	}
	if req.Device != nil {
		session.Device = *req.Device
	}

	now := time.Now()
	session.Device.LastSync = &now
	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, fmt.Errorf("persist sync: %w", err)
	}
	return session, nil
}

// overwriteLedger replaces the answer ledger with the client's copy.
// The replacement must mirror the session's question set exactly; the
// ledger is fixed at creation and sync cannot grow or shrink it.
func (s *SessionService) overwriteLedger(ctx context.Context, session *model.Session, replacement []model.AnswerEntry) error {
	if len(replacement) != len(session.Answers) {
		return fmt.Errorf("ledger length %d, expected %d: %w", len(replacement), len(session.Answers), ErrInvalidSyncPayload)
	}
	for i := range replacement {
		if replacement[i].QuestionID != session.Answers[i].QuestionID {
			return fmt.Errorf("ledger question mismatch at %d: %w", i, ErrInvalidSyncPayload)
		}
	}

	quizID, err := uuid.Parse(session.QuizID)
	if err != nil {
		return fmt.Errorf("parse quiz id: %w", err)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	questions := quiz.QuestionByID()

	session.Answers = replacement
	for i := range session.Answers {
		entry := &session.Answers[i]
		if entry.Skipped {
			// Skip wins over any stale selection in the client copy.
			entry.Selected = nil
		}
		if entry.Selected == nil {
			entry.IsCorrect = nil
			continue
		}
		question, ok := questions[entry.QuestionID]
		if !ok {
			return fmt.Errorf("question %s: %w", entry.QuestionID, ErrQuestionNotFound)
		}
		correct := model.GradeAnswer(question.Format, question.CorrectAnswer, entry.Selected)
		entry.IsCorrect = &correct
	}
	return nil
}

// VerifyActiveSession confirms the user holds an active session for
// the quiz. Gates access to the quiz paper.
func (s *SessionService) VerifyActiveSession(ctx context.Context, userID string, quizID uuid.UUID) error {
	if _, err := s.sessions.FindActive(ctx, userID, quizID.String()); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("verify active session: %w", err)
	}
	return nil
}

// ListActive returns the user's non-terminal sessions.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]model.Session, error) {
	sessions, err := s.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// ListHistory returns a page of the user's sessions, newest first.
func (s *SessionService) ListHistory(ctx context.Context, userID string, filter repository.HistoryFilter) ([]model.Session, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	sessions, total, err := s.sessions.ListHistory(ctx, userID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list session history: %w", err)
	}
	return sessions, total, nil
}

// ExpireStale bulk-expires every active session idle past the
// inactivity threshold.
func (s *SessionService) ExpireStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.inactivity)
	count, err := s.sessions.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire stale sessions: %w", err)
	}
	if count > 0 {
		s.log.Info().Int64("count", count).Msg("Stale sessions expired")
	}
	return count, nil
}

// PurgeOld hard-deletes terminal sessions older than daysOld days.
// Zero falls back to the configured default.
func (s *SessionService) PurgeOld(ctx context.Context, daysOld int) (int64, error) {
	if daysOld <= 0 {
		daysOld = s.purgeDays
	}
	cutoff := time.Now().AddDate(0, 0, -daysOld)
	count, err := s.sessions.PurgeOld(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old sessions: %w", err)
	}
	if count > 0 {
		s.log.Info().Int64("count", count).Int("days_old", daysOld).Msg("Terminal sessions purged")
	}
	return count, nil
}

// expireIfStale lazily applies the inactivity timeout. The expired
// status is persisted before the caller's request fails, so the next
// reader observes the corrected state even though this request errors.
func (s *SessionService) expireIfStale(ctx context.Context, session *model.Session) error {
	if session.Status.Terminal() {
		return nil
	}
	if time.Since(session.LastActive) <= s.inactivity {
		return nil
	}

	session.Status = model.SessionStatusExpired
	session.UpdatedAt = time.Now()
	if err := s.sessions.Replace(ctx, session); err != nil {
		return fmt.Errorf("persist expiry: %w", err)
	}
	return fmt.Errorf("session %s: %w", session.ID, ErrSessionExpired)
}

// deductElapsed folds wall-clock time spent in_progress since the last
// activity into the remaining-time counter. Called on every mutation of
// an in_progress session so the counter stays honest without a timer.
func deductElapsed(session *model.Session, now time.Time) {
	elapsed := int(now.Sub(session.LastActive).Seconds())
	if elapsed <= 0 {
		return
	}
	session.TimeRemainingSeconds -= elapsed
	if session.TimeRemainingSeconds < 0 {
		session.TimeRemainingSeconds = 0
	}
}

// scoreSession sums the point values of correctly answered entries.
// Skipped and unanswered entries contribute zero. The raw sum is the
// score; percentage normalization is a presentation concern.
func scoreSession(quiz *model.Quiz, session *model.Session) float64 {
	questions := quiz.QuestionByID()
	var score float64
	for i := range session.Answers {
		entry := &session.Answers[i]
		if entry.IsCorrect == nil || !*entry.IsCorrect {
			continue
		}
		if question, ok := questions[entry.QuestionID]; ok {
			score += question.PointValue
		}
	}
	return score
}

// loadOwned fetches a session and enforces that the acting user owns
// it. Shared by every per-session operation.
func loadOwned(ctx context.Context, sessions repository.SessionRepository, sessionID, userID string) (*model.Session, error) {
	session, err := sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return session, nil
}
