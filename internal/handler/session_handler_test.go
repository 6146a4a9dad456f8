package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prepmate/prepmate-backend/internal/config"
	"github.com/prepmate/prepmate-backend/internal/handler"
	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/repository"
	"github.com/prepmate/prepmate-backend/internal/router"
	"github.com/prepmate/prepmate-backend/internal/service"
	"github.com/prepmate/prepmate-backend/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fixedStore struct {
	quiz *model.Quiz
}

func (s *fixedStore) GetByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	if s.quiz == nil || s.quiz.ID != id {
		return nil, repository.ErrQuizNotFound
	}
	return s.quiz, nil
}

func (s *fixedStore) ListPublishedIDs(_ context.Context) ([]uuid.UUID, error) {
	return []uuid.UUID{s.quiz.ID}, nil
}

type testEnv struct {
	router     *gin.Engine
	auth       *service.AuthService
	quiz       *model.Quiz
	userToken  string
	adminToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	validator.Setup()

	quizID := uuid.New()
	quiz := &model.Quiz{
		ID:               quizID,
		Title:            "Geometry",
		TimeLimitSeconds: 300,
		Published:        true,
		Questions: []model.Question{
			{ID: uuid.New(), QuizID: quizID, Format: model.FormatSingleChoice, CorrectAnswer: json.RawMessage(`"a"`), PointValue: 10, OrderNum: 0},
			{ID: uuid.New(), QuizID: quizID, Format: model.FormatTrueFalse, CorrectAnswer: json.RawMessage(`false`), PointValue: 15, OrderNum: 1},
		},
	}

	cfg := &config.Config{
		GinMode:             gin.TestMode,
		JWTSecret:           "test-secret",
		JWTExpiry:           time.Hour,
		QuizCacheTTL:        time.Minute,
		InactivityThreshold: 24 * time.Hour,
		PurgeAfterDays:      30,
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := zerolog.Nop()

	sessionRepo := repository.NewMemorySessionRepository()
	authService := service.NewAuthService(cfg)
	quizService := service.NewQuizService(&fixedStore{quiz: quiz}, rdb, cfg, log)
	sessionService := service.NewSessionService(sessionRepo, quizService, cfg, log)
	answerService := service.NewAnswerService(sessionRepo, quizService, log)

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, answerService),
		Quiz:    handler.NewQuizHandler(quizService, sessionService),
		Admin:   handler.NewAdminHandler(sessionService),
		WS:      handler.NewWSHandler(sessionService, log, nil),
	}

	userToken, err := authService.GenerateToken("user-1", service.TokenTypeUser)
	if err != nil {
		t.Fatalf("generate user token: %v", err)
	}
	adminToken, err := authService.GenerateToken("admin-1", service.TokenTypeAdmin)
	if err != nil {
		t.Fatalf("generate admin token: %v", err)
	}

	return &testEnv{
		router:     router.SetupRouter(authService, handlers, cfg),
		auth:       authService,
		quiz:       quiz,
		userToken:  userToken,
		adminToken: adminToken,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  map[string]json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
	Pagination *struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, w.Body.String())
	}
	return env
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/sessions/active", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/active", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for garbage token", w.Code)
	}
}

func TestAdminRoutesRejectUserToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/admin/maintenance/expire-stale", env.userToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/admin/maintenance/expire-stale", env.adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for admin", w.Code)
	}
}

func TestFullSessionFlow(t *testing.T) {
	env := newTestEnv(t)
	quizPath := "/api/v1/quizzes/" + env.quiz.ID.String()

	// Create.
	w := env.do(t, http.MethodPost, quizPath+"/sessions", env.userToken, gin.H{"platform": "web"})
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID     string              `json:"id"`
		Status model.SessionStatus `json:"status"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data["session"], &created); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if created.Status != model.SessionStatusNotStarted {
		t.Fatalf("status = %s, want not_started", created.Status)
	}
	base := "/api/v1/sessions/" + created.ID

	// Creating again resumes the same session.
	w = env.do(t, http.MethodPost, quizPath+"/sessions", env.userToken, gin.H{"platform": "web"})
	var resumed struct {
		ID string `json:"id"`
	}
	json.Unmarshal(decodeEnvelope(t, w).Data["session"], &resumed)
	if resumed.ID != created.ID {
		t.Fatalf("resume returned %s, want %s", resumed.ID, created.ID)
	}

	// Paper is gated on the active session and carries no answer key.
	w = env.do(t, http.MethodGet, quizPath+"/paper", env.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("paper status = %d: %s", w.Code, w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("correct_answer")) {
		t.Fatal("paper response leaked the answer key")
	}

	// Start.
	w = env.do(t, http.MethodPost, base+"/start", env.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}

	// Answer the first question correctly.
	w = env.do(t, http.MethodPost, base+"/answers", env.userToken, gin.H{
		"question_id": env.quiz.Questions[0].ID.String(),
		"answer":      "a",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("answer status = %d: %s", w.Code, w.Body.String())
	}
	var progress struct {
		Answered int `json:"answered"`
	}
	json.Unmarshal(decodeEnvelope(t, w).Data["progress"], &progress)
	if progress.Answered != 1 {
		t.Fatalf("answered = %d, want 1", progress.Answered)
	}

	// Flag and navigate.
	w = env.do(t, http.MethodPost, base+"/flags", env.userToken, gin.H{
		"question_id": env.quiz.Questions[1].ID.String(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("flag status = %d: %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPut, base+"/position", env.userToken, gin.H{"index": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("position status = %d: %s", w.Code, w.Body.String())
	}

	// Out-of-range navigation is a 400.
	w = env.do(t, http.MethodPut, base+"/position", env.userToken, gin.H{"index": 5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad position status = %d, want 400", w.Code)
	}

	// Complete and check the score.
	w = env.do(t, http.MethodPost, base+"/complete", env.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete status = %d: %s", w.Code, w.Body.String())
	}
	var score float64
	json.Unmarshal(decodeEnvelope(t, w).Data["score"], &score)
	if score != 10 {
		t.Fatalf("score = %v, want 10", score)
	}

	// Mutations after completion are conflicts.
	w = env.do(t, http.MethodPost, base+"/answers", env.userToken, gin.H{
		"question_id": env.quiz.Questions[1].ID.String(),
		"answer":      false,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("answer after complete status = %d, want 409", w.Code)
	}
}

func TestHistoryClampsPageAndLimit(t *testing.T) {
	env := newTestEnv(t)

	// A zero limit must not reach the pagination arithmetic.
	w := env.do(t, http.MethodGet, "/api/v1/sessions/history?limit=0&page=0", env.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decodeEnvelope(t, w)
	if resp.Pagination == nil {
		t.Fatal("pagination metadata missing")
	}
	if resp.Pagination.Page != 1 || resp.Pagination.PerPage != 20 {
		t.Fatalf("pagination = %+v, want page 1 per_page 20", resp.Pagination)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/history?limit=-5&page=-1", env.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for negative values: %s", w.Code, w.Body.String())
	}
	resp = decodeEnvelope(t, w)
	if resp.Pagination == nil || resp.Pagination.Page != 1 || resp.Pagination.PerPage != 20 {
		t.Fatalf("pagination = %+v, want clamped defaults", resp.Pagination)
	}

	// Oversized limits fall back to the default as well.
	w = env.do(t, http.MethodGet, "/api/v1/sessions/history?limit=9999", env.userToken, nil)
	if resp = decodeEnvelope(t, w); resp.Pagination == nil || resp.Pagination.PerPage != 20 {
		t.Fatalf("pagination = %+v, want per_page 20 for oversized limit", resp.Pagination)
	}
}

func TestOtherUsersSessionIsForbidden(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/quizzes/"+env.quiz.ID.String()+"/sessions", env.userToken, gin.H{})
	var created struct {
		ID string `json:"id"`
	}
	json.Unmarshal(decodeEnvelope(t, w).Data["session"], &created)

	otherToken, err := env.auth.GenerateToken("user-2", service.TokenTypeUser)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID, otherToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestValidationErrorsCarryFieldDetails(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/quizzes/"+env.quiz.ID.String()+"/sessions", env.userToken,
		gin.H{"platform": "vax"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env2 := decodeEnvelope(t, w); env2.Error == nil || env2.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/quizzes/not-a-uuid/sessions", env.userToken, gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad quiz id", w.Code)
	}
	if env2 := decodeEnvelope(t, w); env2.Error == nil || env2.Error.Code != "INVALID_ID" {
		t.Fatalf("expected INVALID_ID, got %s", w.Body.String())
	}
}
