package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/domain/entities"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 100
)

// SessionLister reads the caller's query sessions.
type SessionLister interface {
	GetSession(principal, sessionID string) (*entities.QuerySession, error)
	UserSessions(principal string, limit int) ([]*entities.QuerySession, error)
}

// SessionStatusHandler serves query session history.
type SessionStatusHandler struct {
	sessions SessionLister
}

// NewSessionStatusHandler creates a new SessionStatusHandler with injected dependencies
func NewSessionStatusHandler(sessions SessionLister) *SessionStatusHandler {
	return &SessionStatusHandler{sessions: sessions}
}

func (h *SessionStatusHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/council/sessions", h.HandleList)
	router.GET("/council/sessions/:id", h.HandleSingle)
}

// HandleSingle returns one session owned by the caller.
func (h *SessionStatusHandler) HandleSingle(c *gin.Context) {
	session, err := h.sessions.GetSession(PrincipalOf(c), c.Param("id"))
	if err != nil {
		respondError(c, "HandleSingle", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// HandleList returns the caller's most recent sessions, newest first.
func (h *SessionStatusHandler) HandleList(c *gin.Context) {
	limit := defaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxSessionLimit)
	}

	sessions, err := h.sessions.UserSessions(PrincipalOf(c), limit)
	if err != nil {
		respondError(c, "HandleList", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  sessions,
		"total": len(sessions),
	})
}
