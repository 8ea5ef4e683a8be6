package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/domain/entities"
)

// CouncilManager steps council sessions through their stages.
type CouncilManager interface {
	Config() entities.CouncilConfig
	CreateSession(query entities.CouncilQuery) (string, error)
	AddResponse(sessionID string, response entities.LLMResponse) error
	AddReview(sessionID string, review entities.ResponseReview) error
	SetFinalResponse(sessionID, response, summary string) (*entities.CouncilResult, error)
	Fail(sessionID, reason string) error
	GetSession(sessionID string) (*entities.CouncilSession, error)
	ListSessions() ([]*entities.CouncilSession, error)
	ChairmanPrompt(sessionID string) (string, error)
}

// CouncilRunner deliberates a query end to end.
type CouncilRunner interface {
	Run(ctx context.Context, query entities.CouncilQuery) (*entities.CouncilResult, error)
}

// DeliberationHandler exposes council sessions.
type DeliberationHandler struct {
	manager CouncilManager
	runner  CouncilRunner
}

func NewDeliberationHandler(manager CouncilManager, runner CouncilRunner) *DeliberationHandler {
	return &DeliberationHandler{manager: manager, runner: runner}
}

func (h *DeliberationHandler) RegisterRoutes(router *gin.RouterGroup) {
	d := router.Group("/deliberations")
	d.GET("/config", h.Config)
	d.POST("", h.Create)
	d.POST("/run", h.Run)
	d.GET("", h.List)
	d.GET("/:id", h.Get)
	d.POST("/:id/responses", h.AddResponse)
	d.POST("/:id/reviews", h.AddReview)
	d.POST("/:id/finalize", h.Finalize)
	d.POST("/:id/fail", h.Fail)
	d.GET("/:id/chairman-prompt", h.ChairmanPrompt)
}

// DeliberationRequest opens a council session.
type DeliberationRequest struct {
	QueryID  string `json:"query_id"`
	Query    string `json:"user_query" binding:"required"`
	Context  string `json:"context"`
	Priority string `json:"priority"`
}

func (r DeliberationRequest) toQuery() entities.CouncilQuery {
	return entities.CouncilQuery{
		QueryID:   r.QueryID,
		UserQuery: r.Query,
		Context:   r.Context,
		Priority:  entities.ParsePriority(r.Priority),
	}
}

// FinalizeRequest carries the chairman's synthesis.
type FinalizeRequest struct {
	FinalResponse string `json:"final_response" binding:"required"`
	Summary       string `json:"summary"`
}

// FailRequest carries the reason a session was abandoned.
type FailRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *DeliberationHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Config())
}

// Create opens a pending session that callers fill in step by step.
func (h *DeliberationHandler) Create(c *gin.Context) {
	var req DeliberationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreateDeliberation", err)
		return
	}
	id, err := h.manager.CreateSession(req.toQuery())
	if err != nil {
		respondError(c, "CreateDeliberation", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// Run asks every member, collects reviews and returns the chairman's answer.
func (h *DeliberationHandler) Run(c *gin.Context) {
	var req DeliberationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "RunDeliberation", err)
		return
	}
	result, err := h.runner.Run(c.Request.Context(), req.toQuery())
	if err != nil {
		respondError(c, "RunDeliberation", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *DeliberationHandler) List(c *gin.Context) {
	sessions, err := h.manager.ListSessions()
	if err != nil {
		respondError(c, "ListDeliberations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  sessions,
		"total": len(sessions),
	})
}

func (h *DeliberationHandler) Get(c *gin.Context) {
	session, err := h.manager.GetSession(c.Param("id"))
	if err != nil {
		respondError(c, "GetDeliberation", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *DeliberationHandler) AddResponse(c *gin.Context) {
	var resp entities.LLMResponse
	if err := c.ShouldBindJSON(&resp); err != nil {
		badRequest(c, "AddResponse", err)
		return
	}
	if resp.ProviderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider_id is required"})
		return
	}
	if err := h.manager.AddResponse(c.Param("id"), resp); err != nil {
		respondError(c, "AddResponse", err)
		return
	}
	h.Get(c)
}

func (h *DeliberationHandler) AddReview(c *gin.Context) {
	var review entities.ResponseReview
	if err := c.ShouldBindJSON(&review); err != nil {
		badRequest(c, "AddReview", err)
		return
	}
	if err := h.manager.AddReview(c.Param("id"), review); err != nil {
		respondError(c, "AddReview", err)
		return
	}
	h.Get(c)
}

func (h *DeliberationHandler) Finalize(c *gin.Context) {
	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Finalize", err)
		return
	}
	result, err := h.manager.SetFinalResponse(c.Param("id"), req.FinalResponse, req.Summary)
	if err != nil {
		respondError(c, "Finalize", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *DeliberationHandler) Fail(c *gin.Context) {
	var req FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "FailDeliberation", err)
		return
	}
	if err := h.manager.Fail(c.Param("id"), req.Reason); err != nil {
		respondError(c, "FailDeliberation", err)
		return
	}
	h.Get(c)
}

func (h *DeliberationHandler) ChairmanPrompt(c *gin.Context) {
	prompt, err := h.manager.ChairmanPrompt(c.Param("id"))
	if err != nil {
		respondError(c, "ChairmanPrompt", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}
