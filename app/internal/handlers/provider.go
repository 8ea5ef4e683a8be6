package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/resilience"
)

// ProviderRegistry manages provider rows.
type ProviderRegistry interface {
	List(ctx context.Context) ([]*entities.Provider, error)
	Get(ctx context.Context, name string) (*entities.Provider, error)
	Upsert(ctx context.Context, p *entities.Provider) error
	SetAPIKey(ctx context.Context, name, key string) (*entities.Provider, error)
	SetEnabled(ctx context.Context, name string, enabled bool) error
}

// BreakerStates reports circuit breaker state per provider.
type BreakerStates interface {
	State(provider string) resilience.BreakerState
}

// ProviderHandler lists providers and lets admins change them.
type ProviderHandler struct {
	registry   ProviderRegistry
	breakers   BreakerStates
	isAdmin    func(principal string) bool
	adminToken string
}

func NewProviderHandler(registry ProviderRegistry, breakers BreakerStates, isAdmin func(string) bool, adminToken string) *ProviderHandler {
	return &ProviderHandler{registry: registry, breakers: breakers, isAdmin: isAdmin, adminToken: adminToken}
}

func (h *ProviderHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/providers", h.List)
	router.GET("/providers/:name", h.Get)

	admin := router.Group("/providers", AdminAuth(h.adminToken, h.isAdmin))
	admin.PUT("/:name", h.Upsert)
	admin.PUT("/:name/api-key", h.SetAPIKey)
	admin.PATCH("/:name/status", h.SetStatus)
}

// UpsertProviderRequest creates or replaces a provider.
type UpsertProviderRequest struct {
	Kind        string  `json:"kind"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model" binding:"required"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Weight      float64 `json:"weight"`
	Enabled     *bool   `json:"enabled"`
	Priority    int     `json:"priority"`
}

// APIKeyRequest sets a provider's key.
type APIKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// StatusRequest enables or disables a provider.
type StatusRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ProviderResponse is a provider with its key masked.
type ProviderResponse struct {
	Name         string                  `json:"name"`
	Kind         string                  `json:"kind"`
	BaseURL      string                  `json:"base_url"`
	APIKey       string                  `json:"api_key"`
	Model        string                  `json:"model"`
	MaxTokens    int                     `json:"max_tokens"`
	Temperature  float32                 `json:"temperature"`
	Weight       float64                 `json:"weight"`
	Enabled      bool                    `json:"enabled"`
	Configured   bool                    `json:"configured"`
	Priority     int                     `json:"priority"`
	RequestCount int                     `json:"request_count"`
	ErrorCount   int                     `json:"error_count"`
	LastUsedAt   *time.Time              `json:"last_used_at"`
	Breaker      resilience.BreakerState `json:"circuit_breaker"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func (h *ProviderHandler) toResponse(p *entities.Provider) *ProviderResponse {
	resp := &ProviderResponse{
		Name:         p.Name,
		Kind:         p.Kind,
		BaseURL:      p.BaseURL,
		Model:        p.Model,
		MaxTokens:    p.MaxTokens,
		Temperature:  p.Temperature,
		Weight:       p.Weight,
		Enabled:      p.Enabled,
		Configured:   p.Configured(),
		Priority:     p.Priority,
		RequestCount: p.RequestCount,
		ErrorCount:   p.ErrorCount,
		LastUsedAt:   p.LastUsedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.APIKey != "" {
		resp.APIKey = p.MaskAPIKey()
	}
	if h.breakers != nil {
		resp.Breaker = h.breakers.State(p.Name)
	}
	return resp
}

func (h *ProviderHandler) List(c *gin.Context) {
	providers, err := h.registry.List(c.Request.Context())
	if err != nil {
		respondError(c, "ListProviders", err)
		return
	}
	responses := make([]*ProviderResponse, 0, len(providers))
	for _, p := range providers {
		responses = append(responses, h.toResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  responses,
		"total": len(responses),
	})
}

func (h *ProviderHandler) Get(c *gin.Context) {
	p, err := h.registry.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, "GetProvider", err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(p))
}

// Upsert creates or replaces a provider. Counters are preserved and an
// empty key keeps the stored one.
func (h *ProviderHandler) Upsert(c *gin.Context) {
	var req UpsertProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "UpsertProvider", err)
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = entities.KindOpenAI
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	p := &entities.Provider{
		Name:        c.Param("name"),
		Kind:        kind,
		BaseURL:     req.BaseURL,
		APIKey:      req.APIKey,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Weight:      req.Weight,
		Enabled:     enabled,
		Priority:    req.Priority,
	}
	if err := h.registry.Upsert(c.Request.Context(), p); err != nil {
		respondError(c, "UpsertProvider", err)
		return
	}
	h.Get(c)
}

func (h *ProviderHandler) SetAPIKey(c *gin.Context) {
	var req APIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "SetAPIKey", err)
		return
	}
	p, err := h.registry.SetAPIKey(c.Request.Context(), c.Param("name"), req.APIKey)
	if err != nil {
		respondError(c, "SetAPIKey", err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(p))
}

func (h *ProviderHandler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "SetProviderStatus", err)
		return
	}
	if err := h.registry.SetEnabled(c.Request.Context(), c.Param("name"), *req.Enabled); err != nil {
		respondError(c, "SetProviderStatus", err)
		return
	}
	h.Get(c)
}
