package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prepmate/prepmate-backend/internal/middleware"
	"github.com/prepmate/prepmate-backend/internal/response"
	"github.com/prepmate/prepmate-backend/internal/service"
)

// QuizHandler serves quiz definitions to session holders.
type QuizHandler struct {
	quizService    *service.QuizService
	sessionService *service.SessionService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService, sessionService *service.SessionService) *QuizHandler {
	return &QuizHandler{
		quizService:    quizService,
		sessionService: sessionService,
	}
}

// GetQuizPaper godoc
// GET /api/v1/quizzes/:quiz_id/paper
// Returns the quiz questions with the answer key stripped. Requires
// an active session for the quiz so answer papers cannot be browsed
// outside an attempt.
func (h *QuizHandler) GetQuizPaper(c *gin.Context) {
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

	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), claims.UserID, quizID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	paper, err := h.quizService.GetPaper(c.Request.Context(), quizID)
	if err != nil {
		if errors.Is(err, service.ErrQuizNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, paper)
}
