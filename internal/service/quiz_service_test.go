package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prepmate/prepmate-backend/internal/config"
	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/repository"
	"github.com/prepmate/prepmate-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type countingStore struct {
	quiz  *model.Quiz
	calls int
}

func (s *countingStore) GetByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	s.calls++
	if s.quiz == nil || s.quiz.ID != id {
		return nil, repository.ErrQuizNotFound
	}
	return s.quiz, nil
}

func (s *countingStore) ListPublishedIDs(_ context.Context) ([]uuid.UUID, error) {
	if s.quiz == nil || !s.quiz.Published {
		return nil, nil
	}
	return []uuid.UUID{s.quiz.ID}, nil
}

func newQuizService(t *testing.T, store *countingStore) (*service.QuizService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &config.Config{QuizCacheTTL: 30 * time.Minute}
	return service.NewQuizService(store, rdb, cfg, zerolog.Nop()), mr
}

func TestGetQuizCachesDefinition(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{quiz: testQuiz()}
	svc, _ := newQuizService(t, store)

	first, err := svc.GetQuiz(ctx, store.quiz.ID)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("catalog calls = %d, want 1", store.calls)
	}

	second, err := svc.GetQuiz(ctx, store.quiz.ID)
	if err != nil {
		t.Fatalf("cached load failed: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("cached read hit the catalog: calls = %d", store.calls)
	}
	if second.ID != first.ID || len(second.Questions) != len(first.Questions) {
		t.Fatal("cached quiz does not match original")
	}
}

func TestGetQuizSelfHealsCorruptCache(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{quiz: testQuiz()}
	svc, mr := newQuizService(t, store)

	key := config.CacheKey.QuizDefinitionKey(store.quiz.ID.String())
	mr.Set(key, "{not json")

	quiz, err := svc.GetQuiz(ctx, store.quiz.ID)
	if err != nil {
		t.Fatalf("load with corrupt cache failed: %v", err)
	}
	if quiz.ID != store.quiz.ID {
		t.Fatal("wrong quiz returned")
	}
	if store.calls != 1 {
		t.Fatalf("catalog calls = %d, want 1 fallback read", store.calls)
	}

	// The corrupt entry was replaced with a valid one.
	healed, err := mr.Get(key)
	if err != nil {
		t.Fatalf("healed entry missing: %v", err)
	}
	if healed == "{not json" {
		t.Fatal("corrupt entry was not replaced")
	}
}

func TestGetQuizExpiredCacheFallsBack(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{quiz: testQuiz()}
	svc, mr := newQuizService(t, store)

	if _, err := svc.GetQuiz(ctx, store.quiz.ID); err != nil {
		t.Fatalf("first load failed: %v", err)
	}

	mr.FastForward(31 * time.Minute)

	if _, err := svc.GetQuiz(ctx, store.quiz.ID); err != nil {
		t.Fatalf("load after expiry failed: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("catalog calls = %d, want 2 after TTL expiry", store.calls)
	}
}

func TestGetQuizNotFound(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	svc, _ := newQuizService(t, store)

	_, err := svc.GetQuiz(ctx, uuid.New())
	if !errors.Is(err, service.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestGetPaperHidesUnpublishedAndAnswers(t *testing.T) {
	ctx := context.Background()
	quiz := testQuiz()
	quiz.Published = false
	store := &countingStore{quiz: quiz}
	svc, mr := newQuizService(t, store)

	if _, err := svc.GetPaper(ctx, quiz.ID); !errors.Is(err, service.ErrQuizNotFound) {
		t.Fatalf("unpublished paper should be hidden, got %v", err)
	}

	quiz.Published = true
	mr.FlushAll() // drop the cached unpublished copy

	paper, err := svc.GetPaper(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("paper load failed: %v", err)
	}
	if len(paper.Questions) != len(quiz.Questions) {
		t.Fatalf("paper questions = %d, want %d", len(paper.Questions), len(quiz.Questions))
	}
}

func TestPrewarmAllCaches(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{quiz: testQuiz()}
	svc, mr := newQuizService(t, store)

	if err := svc.PrewarmAllCaches(ctx); err != nil {
		t.Fatalf("prewarm failed: %v", err)
	}

	key := config.CacheKey.QuizDefinitionKey(store.quiz.ID.String())
	if !mr.Exists(key) {
		t.Fatal("prewarm did not populate the cache")
	}
}
