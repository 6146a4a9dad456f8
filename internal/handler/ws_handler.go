package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/prepmate/prepmate-backend/internal/middleware"
	"github.com/prepmate/prepmate-backend/internal/model"
	"github.com/prepmate/prepmate-backend/internal/service"
	ws "github.com/prepmate/prepmate-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live session state to connected clients.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionWebSocketStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Upgrades to WebSocket and serves session state snapshots on request.
// Clients poll with state actions after reconnects instead of refetching
// the full REST representation.
func (h *WSHandler) SessionWebSocketStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("session_id")
	userID := claims.UserID

	// Ownership check before the upgrade so unauthorized callers get a
	// plain HTTP error instead of a half-open socket.
	if _, err := h.sessionService.Get(c.Request.Context(), sessionID, userID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no access to this session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", userID).
		Str("session_id", sessionID).
		Logger()

	wsLog.Info().Msg("Client connected")

	for {
		var msg ws.RequestEnvelope
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionState:
			h.handleState(conn, sessionID, userID)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleState fetches the current snapshot and pushes it down the socket.
func (h *WSHandler) handleState(conn *websocket.Conn, sessionID, userID string) {
	session, err := h.sessionService.Get(context.Background(), sessionID, userID)
	if err != nil {
		ws.WriteError(conn, "session unavailable")
		return
	}

	ws.WriteTyped(conn, snapshotResponse(session))
}

func snapshotResponse(session *model.Session) ws.StateResponse {
	progress := session.Progress()
	return ws.StateResponse{
		Event:                ws.EventState,
		Status:               string(session.Status),
		CurrentIndex:         session.CurrentIndex,
		TimeRemainingSeconds: session.TimeRemainingSeconds,
		Progress: ws.StateProgress{
			Total:     progress.Total,
			Answered:  progress.Answered,
			Flagged:   progress.Flagged,
			Skipped:   progress.Skipped,
			Remaining: progress.Remaining,
		},
	}
}
