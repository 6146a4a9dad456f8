package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepmate/prepmate-backend/internal/model"
)

// ErrQuizNotFound is returned when no quiz exists for the given id.
var ErrQuizNotFound = errors.New("quiz not found")

// QuizRepository reads quiz definitions from the catalog database.
// The session engine never writes through this repository.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetByID loads a quiz definition with its questions in catalog order.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, time_limit_seconds, published, created_at, updated_at
		 FROM quizzes
		 WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.TimeLimitSeconds, &q.Published, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, text, format, options, correct_answer, point_value, order_num
		 FROM questions
		 WHERE quiz_id = $1
		 ORDER BY order_num ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var question model.Question
		if err := rows.Scan(
			&question.ID, &question.QuizID, &question.Text, &question.Format,
			&question.Options, &question.CorrectAnswer, &question.PointValue, &question.OrderNum,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Questions = append(q.Questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return q, nil
}

// ListPublishedIDs returns the ids of all published quizzes, used to
// prewarm the definition cache at startup.
func (r *QuizRepository) ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM quizzes WHERE published = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("list published quizzes: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
