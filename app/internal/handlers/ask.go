package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/ask"
	"github.com/marketconnect/llm-council/app/internal/metrics"
)

// AskService answers queries across every configured provider.
type AskService interface {
	QueryAICouncil(ctx context.Context, principal, query, systemPrompt string, history []entities.ChatMessage) (*entities.QuerySession, error)
	Chat(ctx context.Context, principal, agentID, message, systemPrompt string) (*ask.ChatReply, error)
	Health() metrics.HealthReport
	Metrics() metrics.Snapshot
}

// AskHandler serves the multi-provider query endpoints.
type AskHandler struct {
	service AskService
}

func NewAskHandler(service AskService) *AskHandler {
	return &AskHandler{service: service}
}

func (h *AskHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/council/query", h.Query)
	router.POST("/council/chat", h.Chat)
	router.GET("/health", h.Health)
	router.GET("/metrics", h.Metrics)
}

// QueryRequest is the body of a council query.
type QueryRequest struct {
	Query        string                 `json:"query" binding:"required"`
	SystemPrompt string                 `json:"system_prompt"`
	History      []entities.ChatMessage `json:"history"`
}

// ChatRequest is the body of an agent chat message.
type ChatRequest struct {
	AgentID      string `json:"agent_id" binding:"required"`
	Message      string `json:"message" binding:"required"`
	SystemPrompt string `json:"system_prompt"`
}

// Query fans the query out and returns the stored session.
func (h *AskHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Query", err)
		return
	}

	session, err := h.service.QueryAICouncil(c.Request.Context(), PrincipalOf(c), req.Query, req.SystemPrompt, req.History)
	if err != nil {
		respondError(c, "Query", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Chat answers one message in an agent conversation.
func (h *AskHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Chat", err)
		return
	}

	reply, err := h.service.Chat(c.Request.Context(), PrincipalOf(c), req.AgentID, req.Message, req.SystemPrompt)
	if err != nil {
		respondError(c, "Chat", err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// Health reports provider health. Unhealthy services answer 503.
func (h *AskHandler) Health(c *gin.Context) {
	report := h.service.Health()
	status := http.StatusOK
	if report.Status == metrics.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (h *AskHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Metrics())
}
