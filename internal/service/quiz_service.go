package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prepmate/prepmate-backend/internal/config"
	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QuizStore is the catalog read interface QuizService caches over.
type QuizStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
	ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error)
}

// QuizService is the read-only quiz catalog accessor. Definitions are
// served from Redis with a Postgres fallback that self-heals the cache,
// so the hot path of session creation rarely touches the catalog
// database.
type QuizService struct {
	store QuizStore
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(store QuizStore, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *QuizService {
	return &QuizService{
		store: store,
		rdb:   rdb,
		ttl:   cfg.QuizCacheTTL,
		log:   log.With().Str("component", "quiz_service").Logger(),
	}
}

// GetQuiz returns the full quiz definition, answer key included. Never
// expose the result to clients directly; use GetPaper for that.
func (s *QuizService) GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	key := config.CacheKey.QuizDefinitionKey(id.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var quiz model.Quiz
		if err := json.Unmarshal([]byte(raw), &quiz); err == nil {
			return &quiz, nil
		}
		// Corrupt cache entry. Drop it and fall through to the catalog.
		s.log.Warn().Str("quiz_id", id.String()).Msg("Discarding corrupt cached quiz")
		_ = s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read quiz cache: %w", err)
	}

	quiz, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrQuizNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}

	// Self-heal: put the definition back so the next request is fast.
	if payload, err := json.Marshal(quiz); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Quiz cache write failed")
		}
	}

	return quiz, nil
}

// GetPaper returns the student-facing quiz payload with the answer key
// stripped. Papers are cached under their own key so the stripped
// rendition is not rebuilt on every request.
func (s *QuizService) GetPaper(ctx context.Context, id uuid.UUID) (*model.QuizPaper, error) {
	key := config.CacheKey.QuizPaperKey(id.String())

	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var paper model.QuizPaper
		if err := json.Unmarshal([]byte(raw), &paper); err == nil {
			return &paper, nil
		}
		_ = s.rdb.Del(ctx, key)
	}

	quiz, err := s.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quiz.Published {
		return nil, ErrQuizNotFound
	}

	paper := quiz.Paper()
	if payload, err := json.Marshal(paper); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Paper cache write failed")
		}
	}
	return paper, nil
}

// PrewarmAllCaches loads every published quiz into Redis. Run before
// accepting traffic so cold starts do not stampede the catalog.
func (s *QuizService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.store.ListPublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list published quizzes: %w", err)
	}

	for _, id := range ids {
		quiz, err := s.store.GetByID(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Prewarm skip")
			continue
		}
		payload, err := json.Marshal(quiz)
		if err != nil {
			continue
		}
		if err := s.rdb.Set(ctx, config.CacheKey.QuizDefinitionKey(id.String()), payload, s.ttl).Err(); err != nil {
			return fmt.Errorf("prewarm quiz %s: %w", id, err)
		}
	}

	s.log.Info().Int("count", len(ids)).Msg("Quiz caches prewarmed")
	return nil
}
