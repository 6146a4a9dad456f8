package model_test

import (
	"testing"

	"github.com/prepmate/prepmate-backend/internal/model"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    model.SessionStatus
		to      model.SessionStatus
		allowed bool
	}{
		{model.SessionStatusNotStarted, model.SessionStatusInProgress, true},
		{model.SessionStatusNotStarted, model.SessionStatusExpired, true},
		{model.SessionStatusNotStarted, model.SessionStatusCompleted, false},
		{model.SessionStatusNotStarted, model.SessionStatusPaused, false},
		{model.SessionStatusInProgress, model.SessionStatusPaused, true},
		{model.SessionStatusInProgress, model.SessionStatusCompleted, true},
		{model.SessionStatusInProgress, model.SessionStatusExpired, true},
		{model.SessionStatusInProgress, model.SessionStatusNotStarted, false},
		{model.SessionStatusPaused, model.SessionStatusInProgress, true},
		{model.SessionStatusPaused, model.SessionStatusCompleted, true},
		{model.SessionStatusPaused, model.SessionStatusExpired, true},
		{model.SessionStatusCompleted, model.SessionStatusInProgress, false},
		{model.SessionStatusCompleted, model.SessionStatusExpired, false},
		{model.SessionStatusExpired, model.SessionStatusInProgress, false},
		{model.SessionStatusExpired, model.SessionStatusCompleted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !model.SessionStatusCompleted.Terminal() {
		t.Error("completed should be terminal")
	}
	if !model.SessionStatusExpired.Terminal() {
		t.Error("expired should be terminal")
	}
	for _, status := range model.ActiveStatuses() {
		if status.Terminal() {
			t.Errorf("%s should not be terminal", status)
		}
	}
}

func TestProgressCounts(t *testing.T) {
	yes := true
	session := &model.Session{
		Answers: []model.AnswerEntry{
			{QuestionID: "q1", Selected: "a", IsCorrect: &yes},
			{QuestionID: "q2", Flagged: true},
			{QuestionID: "q3", Skipped: true},
			{QuestionID: "q4", Selected: "b", Flagged: true},
			{QuestionID: "q5"},
		},
	}

	p := session.Progress()
	if p.Total != 5 {
		t.Fatalf("total = %d, want 5", p.Total)
	}
	if p.Answered != 2 {
		t.Errorf("answered = %d, want 2", p.Answered)
	}
	if p.Flagged != 2 {
		t.Errorf("flagged = %d, want 2", p.Flagged)
	}
	if p.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", p.Skipped)
	}
	if p.Remaining != 2 {
		t.Errorf("remaining = %d, want 2", p.Remaining)
	}
}

func TestAnswerIndex(t *testing.T) {
	session := &model.Session{
		Answers: []model.AnswerEntry{
			{QuestionID: "q1"},
			{QuestionID: "q2"},
			{QuestionID: "q3"},
		},
	}

	idx := session.AnswerIndex()
	if len(idx) != 3 {
		t.Fatalf("index size = %d, want 3", len(idx))
	}
	if idx["q2"] != 1 {
		t.Errorf("q2 position = %d, want 1", idx["q2"])
	}
	if _, ok := idx["q9"]; ok {
		t.Error("unknown question should not be indexed")
	}
}
