package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"github.com/marketconnect/llm-council/app/internal/memory"
)

// MemoryService reads and writes agent memories.
type MemoryService interface {
	Remember(principal, agentID string, in memory.RememberInput) (string, error)
	Recall(principal, agentID, query string, limit int) ([]*memory.Memory, error)
	Get(principal, agentID, memoryID string) (*memory.Memory, error)
	SearchByTags(principal, agentID string, tags []string) ([]*memory.Memory, error)
	Recent(principal, agentID string, count int) ([]*memory.Memory, error)
	AddContext(principal, agentID, content string) error
	Context(principal, agentID string) (string, error)
	AddNode(principal, agentID string, in memory.NodeInput) (string, error)
	AddEdge(principal, agentID string, in memory.EdgeInput) (string, error)
	FindNode(principal, agentID, label string) (*memory.KnowledgeNode, error)
	Neighbors(principal, agentID, nodeID string) ([]*memory.KnowledgeNode, error)
	FindPath(principal, agentID, from, to string) ([]string, error)
	Subgraph(principal, agentID, center string, hops int) ([]*memory.KnowledgeNode, []*memory.KnowledgeEdge, error)
	AddVector(principal, agentID string, vector []float64, content string, metadata map[string]string) (string, error)
	SearchVectors(principal, agentID string, query []float64, topK int) ([]memory.ScoredEntry, error)
	Maintain(principal, agentID string) (memory.MaintenanceReport, error)
	Stats(principal, agentID string) (memory.Stats, error)
	ShareKnowledge(principal, fromAgent, toAgent string, nodeIDs []string) (int, error)
}

// MemoryHandler serves per-agent memory.
type MemoryHandler struct {
	service MemoryService
}

func NewMemoryHandler(service MemoryService) *MemoryHandler {
	return &MemoryHandler{service: service}
}

func (h *MemoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	m := router.Group("/agents/:agent")
	m.POST("/memories", h.Remember)
	m.GET("/memories", h.Recall)
	m.GET("/memories/recent", h.Recent)
	m.GET("/memories/:id", h.Get)
	m.POST("/context", h.AddContext)
	m.GET("/context", h.Context)
	m.POST("/nodes", h.AddNode)
	m.GET("/nodes", h.FindNode)
	m.GET("/nodes/:node/neighbors", h.Neighbors)
	m.GET("/nodes/:node/subgraph", h.Subgraph)
	m.POST("/edges", h.AddEdge)
	m.GET("/path", h.FindPath)
	m.POST("/vectors", h.AddVector)
	m.POST("/vectors/search", h.SearchVectors)
	m.POST("/maintain", h.Maintain)
	m.GET("/stats", h.Stats)
	m.POST("/share", h.Share)
}

// ContextRequest appends to the context window.
type ContextRequest struct {
	Content string `json:"content" binding:"required"`
}

// VectorRequest stores an embedding.
type VectorRequest struct {
	Vector   []float64         `json:"vector" binding:"required"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// VectorSearchRequest looks up similar embeddings.
type VectorSearchRequest struct {
	Vector []float64 `json:"vector" binding:"required"`
	TopK   int       `json:"top_k"`
}

// ShareRequest copies nodes into another agent's graph.
type ShareRequest struct {
	ToAgent string   `json:"to_agent" binding:"required"`
	NodeIDs []string `json:"node_ids" binding:"required"`
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return n, true
}

func (h *MemoryHandler) Remember(c *gin.Context) {
	var in memory.RememberInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Remember", err)
		return
	}
	id, err := h.service.Remember(PrincipalOf(c), c.Param("agent"), in)
	if err != nil {
		respondError(c, "Remember", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *MemoryHandler) Recall(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 10)
	if !ok {
		return
	}
	var memories []*memory.Memory
	var err error
	if tags := c.Query("tags"); tags != "" {
		memories, err = h.service.SearchByTags(PrincipalOf(c), c.Param("agent"), splitTags(tags))
		if len(memories) > limit {
			memories = memories[:limit]
		}
	} else {
		memories, err = h.service.Recall(PrincipalOf(c), c.Param("agent"), c.Query("q"), limit)
	}
	if err != nil {
		respondError(c, "Recall", err)
		return
	}
	respondMemories(c, memories)
}

func (h *MemoryHandler) Recent(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 10)
	if !ok {
		return
	}
	memories, err := h.service.Recent(PrincipalOf(c), c.Param("agent"), limit)
	if err != nil {
		respondError(c, "RecentMemories", err)
		return
	}
	respondMemories(c, memories)
}

// Get returns one memory and marks it accessed.
func (h *MemoryHandler) Get(c *gin.Context) {
	m, err := h.service.Get(PrincipalOf(c), c.Param("agent"), c.Param("id"))
	if err != nil {
		respondError(c, "GetMemory", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func respondMemories(c *gin.Context, memories []*memory.Memory) {
	if memories == nil {
		memories = []*memory.Memory{}
	}
	c.JSON(http.StatusOK, gin.H{"data": memories, "total": len(memories)})
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (h *MemoryHandler) AddContext(c *gin.Context) {
	var req ContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AddContext", err)
		return
	}
	if err := h.service.AddContext(PrincipalOf(c), c.Param("agent"), req.Content); err != nil {
		respondError(c, "AddContext", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MemoryHandler) Context(c *gin.Context) {
	ctx, err := h.service.Context(PrincipalOf(c), c.Param("agent"))
	if err != nil {
		respondError(c, "Context", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": ctx})
}

func (h *MemoryHandler) AddNode(c *gin.Context) {
	var in memory.NodeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "AddNode", err)
		return
	}
	id, err := h.service.AddNode(PrincipalOf(c), c.Param("agent"), in)
	if err != nil {
		respondError(c, "AddNode", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// FindNode looks a node up by the label query parameter.
func (h *MemoryHandler) FindNode(c *gin.Context) {
	label := c.Query("label")
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return
	}
	node, err := h.service.FindNode(PrincipalOf(c), c.Param("agent"), label)
	if err != nil {
		respondError(c, "FindNode", err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (h *MemoryHandler) Neighbors(c *gin.Context) {
	nodes, err := h.service.Neighbors(PrincipalOf(c), c.Param("agent"), c.Param("node"))
	if err != nil {
		respondError(c, "Neighbors", err)
		return
	}
	if nodes == nil {
		nodes = []*memory.KnowledgeNode{}
	}
	c.JSON(http.StatusOK, gin.H{"data": nodes, "total": len(nodes)})
}

func (h *MemoryHandler) Subgraph(c *gin.Context) {
	hops, ok := intQuery(c, "hops", 1)
	if !ok {
		return
	}
	nodes, edges, err := h.service.Subgraph(PrincipalOf(c), c.Param("agent"), c.Param("node"), hops)
	if err != nil {
		respondError(c, "Subgraph", err)
		return
	}
	if nodes == nil {
		nodes = []*memory.KnowledgeNode{}
	}
	if edges == nil {
		edges = []*memory.KnowledgeEdge{}
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "edges": edges})
}

func (h *MemoryHandler) AddEdge(c *gin.Context) {
	var in memory.EdgeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "AddEdge", err)
		return
	}
	id, err := h.service.AddEdge(PrincipalOf(c), c.Param("agent"), in)
	if err != nil {
		respondError(c, "AddEdge", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// FindPath returns the shortest path between the from and to nodes.
func (h *MemoryHandler) FindPath(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}
	path, err := h.service.FindPath(PrincipalOf(c), c.Param("agent"), from, to)
	if err != nil {
		respondError(c, "FindPath", err)
		return
	}
	if path == nil {
		respondError(c, "FindPath", entities.ErrNodeNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (h *MemoryHandler) AddVector(c *gin.Context) {
	var req VectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AddVector", err)
		return
	}
	id, err := h.service.AddVector(PrincipalOf(c), c.Param("agent"), req.Vector, req.Content, req.Metadata)
	if err != nil {
		respondError(c, "AddVector", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *MemoryHandler) SearchVectors(c *gin.Context) {
	var req VectorSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "SearchVectors", err)
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	hits, err := h.service.SearchVectors(PrincipalOf(c), c.Param("agent"), req.Vector, req.TopK)
	if err != nil {
		respondError(c, "SearchVectors", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": hits, "total": len(hits)})
}

func (h *MemoryHandler) Maintain(c *gin.Context) {
	report, err := h.service.Maintain(PrincipalOf(c), c.Param("agent"))
	if err != nil {
		respondError(c, "Maintain", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *MemoryHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(PrincipalOf(c), c.Param("agent"))
	if err != nil {
		respondError(c, "MemoryStats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *MemoryHandler) Share(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ShareKnowledge", err)
		return
	}
	n, err := h.service.ShareKnowledge(PrincipalOf(c), c.Param("agent"), req.ToAgent, req.NodeIDs)
	if err != nil {
		respondError(c, "ShareKnowledge", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shared": n})
}
