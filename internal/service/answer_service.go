package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/repository"
	"github.com/rs/zerolog"
)

// AnswerService mutates individual ledger entries: answering, flagging
// for review, and skipping.
type AnswerService struct {
	sessions repository.SessionRepository
	quizzes  QuizCatalog
	log      zerolog.Logger
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(sessions repository.SessionRepository, quizzes QuizCatalog, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		sessions: sessions,
		quizzes:  quizzes,
		log:      log.With().Str("component", "answer_service").Logger(),
	}
}

// SubmitAnswer records a selection for one question, grades it against
// the answer key, and returns the updated progress summary. Answering
// clears any prior skip mark on the entry. Resubmitting overwrites the
// earlier selection and regrades.
func (s *AnswerService) SubmitAnswer(ctx context.Context, sessionID, userID, questionID string, answer interface{}) (*model.Session, *model.Progress, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}

	if session.Status != model.SessionStatusInProgress {
		return nil, nil, fmt.Errorf("answer from %s: %w", session.Status, ErrInvalidState)
	}

	entry, err := ledgerEntry(session, questionID)
	if err != nil {
		return nil, nil, err
	}

	quizID, err := uuid.Parse(session.QuizID)
	if err != nil {
		return nil, nil, fmt.Errorf("parse quiz id: %w", err)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	question, ok := quiz.QuestionByID()[questionID]
	if !ok {
		return nil, nil, fmt.Errorf("question %s: %w", questionID, ErrQuestionNotFound)
	}

	now := time.Now()
	deductElapsed(session, now)

	// First touch is decided before the entry mutates. A fast first
	// answer can legitimately record zero seconds, so the recorded
	// value itself is no signal of whether the question was touched.
	firstTouch := entry.Selected == nil && !entry.Skipped

	correct := model.GradeAnswer(question.Format, question.CorrectAnswer, answer)
	entry.Selected = answer
	entry.IsCorrect = &correct
	entry.Skipped = false
	entry.AnsweredAt = &now
	if firstTouch {
		// Later resubmissions keep the original time so dwell time is
		// not inflated by revisits.
		entry.TimeSpentSeconds = int(now.Sub(session.LastActive).Seconds())
	}

	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("persist answer: %w", err)
	}

	progress := session.Progress()
	return session, &progress, nil
}

// ToggleFlag flips the review flag on one question. Allowed while
// in_progress or paused; flagging is annotation, not answering, so the
// paused state does not block it.
func (s *AnswerService) ToggleFlag(ctx context.Context, sessionID, userID, questionID string) (*model.Session, *model.Progress, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}

	if session.Status != model.SessionStatusInProgress && session.Status != model.SessionStatusPaused {
		return nil, nil, fmt.Errorf("flag from %s: %w", session.Status, ErrInvalidState)
	}

	entry, err := ledgerEntry(session, questionID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if session.Status == model.SessionStatusInProgress {
		deductElapsed(session, now)
	}
	entry.Flagged = !entry.Flagged
	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("persist flag: %w", err)
	}

	progress := session.Progress()
	return session, &progress, nil
}

// Skip marks one question as deliberately passed over, clearing any
// selection so an entry is never both answered and skipped.
func (s *AnswerService) Skip(ctx context.Context, sessionID, userID, questionID string) (*model.Session, *model.Progress, error) {
	session, err := loadOwned(ctx, s.sessions, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}

	if session.Status != model.SessionStatusInProgress {
		return nil, nil, fmt.Errorf("skip from %s: %w", session.Status, ErrInvalidState)
	}

	entry, err := ledgerEntry(session, questionID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	deductElapsed(session, now)
	entry.Skipped = true
	entry.Selected = nil
	entry.IsCorrect = nil
	entry.AnsweredAt = &now
	session.LastActive = now
	session.UpdatedAt = now

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("persist skip: %w", err)
	}

	progress := session.Progress()
	return session, &progress, nil
}

// ledgerEntry resolves a question id to its ledger slot. The ledger is
// fixed at session creation, so a miss means the question does not
// belong to this quiz.
func ledgerEntry(session *model.Session, questionID string) (*model.AnswerEntry, error) {
	idx, ok := session.AnswerIndex()[questionID]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", questionID, ErrQuestionNotFound)
	}
	return &session.Answers[idx], nil
}
