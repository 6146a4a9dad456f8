package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/response"
	"github.com/prepmate/prepmate-backend/internal/service"
	"github.com/prepmate/prepmate-backend/internal/validator"
)

// AdminHandler exposes maintenance operations usually driven by the
// background sweeper, for operators who need to run them on demand.
type AdminHandler struct {
	sessionService *service.SessionService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sessionService *service.SessionService) *AdminHandler {
	return &AdminHandler{sessionService: sessionService}
}

// ExpireStaleSessions godoc
// POST /api/v1/admin/maintenance/expire-stale
// Bulk-expires active sessions idle past the inactivity threshold.
func (h *AdminHandler) ExpireStaleSessions(c *gin.Context) {
	count, err := h.sessionService.ExpireStale(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"expired": count})
}

// PurgeSessions godoc
// POST /api/v1/admin/maintenance/purge
// Hard-deletes terminal sessions older than the requested age.
func (h *AdminHandler) PurgeSessions(c *gin.Context) {
	var req model.PurgeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	count, err := h.sessionService.PurgeOld(c.Request.Context(), req.DaysOld)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"purged": count})
}
