package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionFormat enumerates the supported question formats. The format
// decides which equality rule grading applies to a submitted answer.
type QuestionFormat string

const (
	FormatSingleChoice QuestionFormat = "single_choice"
	FormatTrueFalse    QuestionFormat = "true_false"
	FormatMatching     QuestionFormat = "matching"
)

// Quiz is the immutable definition of a quiz: the ordered question
// list, per-question point values and answer key, and the time limit.
// The session engine only ever reads quizzes.
type Quiz struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	Published        bool       `json:"published"`
	Questions        []Question `json:"questions"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Question is one entry of a quiz definition.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	QuizID        uuid.UUID       `json:"quiz_id"`
	Text          string          `json:"text"`
	Format        QuestionFormat  `json:"format"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer,omitempty"`
	PointValue    float64         `json:"point_value"`
	OrderNum      int             `json:"order_num"`
}

// QuestionByID builds a lookup map from question id to definition.
// Built once per quiz load; operations must not scan linearly.
func (q *Quiz) QuestionByID() map[string]*Question {
	m := make(map[string]*Question, len(q.Questions))
	for i := range q.Questions {
		m[q.Questions[i].ID.String()] = &q.Questions[i]
	}
	return m
}

// QuizPaper is the student-facing rendition of a quiz: the answer key
// is stripped before it ever leaves the server.
type QuizPaper struct {
	QuizID           uuid.UUID       `json:"quiz_id"`
	Title            string          `json:"title"`
	TimeLimitSeconds int             `json:"time_limit_seconds"`
	Questions        []PaperQuestion `json:"questions"`
}

// PaperQuestion is a question without its correct answer.
type PaperQuestion struct {
	ID         uuid.UUID       `json:"id"`
	Text       string          `json:"text"`
	Format     QuestionFormat  `json:"format"`
	Options    json.RawMessage `json:"options"`
	PointValue float64         `json:"point_value"`
	OrderNum   int             `json:"order_num"`
}

// Paper derives the answer-key-free paper from a quiz definition.
func (q *Quiz) Paper() *QuizPaper {
	paper := &QuizPaper{
		QuizID:           q.ID,
		Title:            q.Title,
		TimeLimitSeconds: q.TimeLimitSeconds,
		Questions:        make([]PaperQuestion, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		paper.Questions = append(paper.Questions, PaperQuestion{
			ID:         question.ID,
			Text:       question.Text,
			Format:     question.Format,
			Options:    question.Options,
			PointValue: question.PointValue,
			OrderNum:   question.OrderNum,
		})
	}
	return paper
}
