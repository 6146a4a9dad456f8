package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/repository"
)

func newSession(id, userID, quizID string, status model.SessionStatus) *model.Session {
	now := time.Now()
	return &model.Session{
		ID:         id,
		UserID:     userID,
		QuizID:     quizID,
		Status:     status,
		LastActive: now,
		Answers:    []model.AnswerEntry{{QuestionID: "q1"}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestInsertRejectsSecondActiveSession(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepository()

	if err := repo.Insert(ctx, newSession("s1", "u1", "quiz-1", model.SessionStatusNotStarted)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := repo.Insert(ctx, newSession("s2", "u1", "quiz-1", model.SessionStatusNotStarted))
	if !errors.Is(err, repository.ErrDuplicateActiveSession) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	// A terminal session does not block a new attempt.
	done := newSession("s3", "u1", "quiz-2", model.SessionStatusCompleted)
	if err := repo.Insert(ctx, done); err != nil {
		t.Fatalf("insert completed session failed: %v", err)
	}
	if err := repo.Insert(ctx, newSession("s4", "u1", "quiz-2", model.SessionStatusNotStarted)); err != nil {
		t.Fatalf("insert after terminal failed: %v", err)
	}
}

func TestConcurrentInsertsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepository()

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners int

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newSession(fmt.Sprintf("s%d", i), "u1", "quiz-1", model.SessionStatusNotStarted)
			if err := repo.Insert(ctx, s); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestRepositoryDoesNotAliasCallerState(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepository()

	original := newSession("s1", "u1", "quiz-1", model.SessionStatusNotStarted)
	if err := repo.Insert(ctx, original); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	original.Answers[0].Flagged = true

	stored, err := repo.FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if stored.Answers[0].Flagged {
		t.Fatal("repository state aliased the caller's slice")
	}
}

func TestListHistoryFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepository()

	base := time.Now()
	for i := 0; i < 5; i++ {
		s := newSession(fmt.Sprintf("s%d", i), "u1", fmt.Sprintf("quiz-%d", i), model.SessionStatusCompleted)
		s.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	page, total, err := repo.ListHistory(ctx, "u1", repository.HistoryFilter{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	if page[0].ID != "s4" {
		t.Errorf("expected newest first, got %s", page[0].ID)
	}

	filtered, total, err := repo.ListHistory(ctx, "u1", repository.HistoryFilter{Page: 1, Limit: 10, QuizID: "quiz-3"})
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if total != 1 || len(filtered) != 1 || filtered[0].QuizID != "quiz-3" {
		t.Fatalf("quiz filter mismatch: total=%d page=%v", total, filtered)
	}
}

func TestExpireStaleAndPurge(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySessionRepository()

	stale := newSession("stale", "u1", "quiz-1", model.SessionStatusInProgress)
	stale.LastActive = time.Now().Add(-48 * time.Hour)
	fresh := newSession("fresh", "u1", "quiz-2", model.SessionStatusInProgress)
	untouched := newSession("idle", "u1", "quiz-3", model.SessionStatusNotStarted)
	untouched.LastActive = time.Now().Add(-48 * time.Hour)

	for _, s := range []*model.Session{stale, fresh, untouched} {
		if err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	count, err := repo.ExpireStale(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired = %d, want 1", count)
	}

	got, _ := repo.FindByID(ctx, "stale")
	if got.Status != model.SessionStatusExpired {
		t.Fatalf("stale session status = %s, want expired", got.Status)
	}
	got, _ = repo.FindByID(ctx, "fresh")
	if got.Status != model.SessionStatusInProgress {
		t.Fatalf("fresh session status = %s, want in_progress", got.Status)
	}

	// The expired session is old enough to purge; fresh ones stay.
	purged, err := repo.PurgeOld(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if _, err := repo.FindByID(ctx, "stale"); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected stale session gone, got %v", err)
	}
}
