package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prepmate/prepmate-backend/internal/middleware"
	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/repository"
	"github.com/prepmate/prepmate-backend/internal/response"
	"github.com/prepmate/prepmate-backend/internal/service"
	"github.com/prepmate/prepmate-backend/internal/validator"
)

// SessionHandler handles attempt lifecycle and answer endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
	answerService  *service.AnswerService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessionService *service.SessionService,
	answerService *service.AnswerService,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		answerService:  answerService,
	}
}

// CreateSession godoc
// POST /api/v1/quizzes/:quiz_id/sessions
// Creates a session for the quiz, or returns the caller's existing
// active one (idempotent).
func (h *SessionHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := uuid.Parse(c.Param("quiz_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.CreateOrResume(c.Request.Context(), claims.UserID, quizID, req.Platform)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), c.Param("session_id"), claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session, "progress": session.Progress()})
}

// StartSession godoc
// POST /api/v1/sessions/:session_id/start
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.transition(c, h.sessionService.Start)
}

// PauseSession godoc
// POST /api/v1/sessions/:session_id/pause
func (h *SessionHandler) PauseSession(c *gin.Context) {
	h.transition(c, h.sessionService.Pause)
}

// ResumeSession godoc
// POST /api/v1/sessions/:session_id/resume
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	h.transition(c, h.sessionService.Resume)
}

// CompleteSession godoc
// POST /api/v1/sessions/:session_id/complete
// Grades and freezes the session. Completing twice returns the same
// frozen result.
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, err := h.sessionService.Complete(c.Request.Context(), c.Param("session_id"), claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":  session,
		"score":    session.Score,
		"progress": session.Progress(),
	})
}

// ListActiveSessions godoc
// GET /api/v1/sessions/active
func (h *SessionHandler) ListActiveSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessionService.ListActive(c.Request.Context(), claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}

	if sessions == nil {
		sessions = []model.Session{}
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// ListSessionHistory godoc
// GET /api/v1/sessions/history?page=&limit=&status=&quiz_id=
func (h *SessionHandler) ListSessionHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	// Clamp before the filter is built: the pagination metadata below
	// divides by the limit, so out-of-range values must never survive.
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	filter := repository.HistoryFilter{
		Page:   page,
		Limit:  limit,
		Status: model.SessionStatus(c.Query("status")),
		QuizID: c.Query("quiz_id"),
	}

	sessions, total, err := h.sessionService.ListHistory(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		failDomain(c, err)
		return
	}

	if sessions == nil {
		sessions = []model.Session{}
	}
	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, &response.Pagination{
		Page:       filter.Page,
		PerPage:    filter.Limit,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// UpdatePosition godoc
// PUT /api/v1/sessions/:session_id/position
func (h *SessionHandler) UpdatePosition(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.NavigateTo(c.Request.Context(), c.Param("session_id"), claims.UserID, *req.Index)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// SyncSession godoc
// PUT /api/v1/sessions/:session_id/sync
// Reconciles client-held state after a reconnect.
func (h *SessionHandler) SyncSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SyncRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Sync(c.Request.Context(), c.Param("session_id"), claims.UserID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session, "progress": session.Progress()})
}

// SubmitAnswer godoc
// POST /api/v1/sessions/:session_id/answers
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, progress, err := h.answerService.SubmitAnswer(
		c.Request.Context(), c.Param("session_id"), claims.UserID, req.QuestionID, req.Answer)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session, "progress": progress})
}

// ToggleFlag godoc
// POST /api/v1/sessions/:session_id/flags
func (h *SessionHandler) ToggleFlag(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.QuestionRefRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, progress, err := h.answerService.ToggleFlag(
		c.Request.Context(), c.Param("session_id"), claims.UserID, req.QuestionID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session, "progress": progress})
}

// SkipQuestion godoc
// POST /api/v1/sessions/:session_id/skips
func (h *SessionHandler) SkipQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.QuestionRefRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, progress, err := h.answerService.Skip(
		c.Request.Context(), c.Param("session_id"), claims.UserID, req.QuestionID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session, "progress": progress})
}

// transition factors the shared shape of start/pause/resume.
func (h *SessionHandler) transition(c *gin.Context, op func(ctx context.Context, sessionID, userID string) (*model.Session, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, err := op(c.Request.Context(), c.Param("session_id"), claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// failDomain maps service sentinel errors onto HTTP statuses and
// response codes.
func failDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuizNotFound), errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidSessionState)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, service.ErrInvalidIndex):
		response.Fail(c, http.StatusBadRequest, response.ErrIndexOutOfRange)
	case errors.Is(err, service.ErrInvalidSyncPayload):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrSyncRejected)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
