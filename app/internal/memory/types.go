// Package memory implements per-agent memory: a short-term buffer that
// consolidates into long-term memory, a knowledge graph and a vector store.
package memory

import "time"

// MemoryType classifies a memory.
type MemoryType string

const (
	ShortTerm  MemoryType = "short_term"
	LongTerm   MemoryType = "long_term"
	Episodic   MemoryType = "episodic"
	Semantic   MemoryType = "semantic"
	Procedural MemoryType = "procedural"
)

// ParseMemoryType maps free text onto a type, defaulting to short-term.
func ParseMemoryType(s string) MemoryType {
	switch t := MemoryType(s); t {
	case LongTerm, Episodic, Semantic, Procedural:
		return t
	default:
		return ShortTerm
	}
}

// Memory is one remembered item.
type Memory struct {
	ID              string            `json:"id"`
	Type            MemoryType        `json:"memory_type"`
	Content         string            `json:"content"`
	Summary         string            `json:"summary,omitempty"`
	Importance      float64           `json:"importance"`
	AccessCount     int               `json:"access_count"`
	LastAccessed    time.Time         `json:"last_accessed"`
	CreatedAt       time.Time         `json:"created_at"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	RelatedMemories []string          `json:"related_memories,omitempty"`
	Tags            []string          `json:"tags"`
}

// NodeType classifies a knowledge graph node.
type NodeType string

const (
	Entity    NodeType = "entity"
	Concept   NodeType = "concept"
	Event     NodeType = "event"
	Action    NodeType = "action"
	Attribute NodeType = "attribute"
)

// KnowledgeNode is a vertex of the knowledge graph.
type KnowledgeNode struct {
	ID         string            `json:"id"`
	Type       NodeType          `json:"node_type"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// KnowledgeEdge is a relationship between two nodes.
type KnowledgeEdge struct {
	ID           string            `json:"id"`
	SourceID     string            `json:"source_id"`
	TargetID     string            `json:"target_id"`
	Relationship string            `json:"relationship"`
	Weight       float64           `json:"weight"`
	Properties   map[string]string `json:"properties,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// VectorEntry is an embedding with the text it was computed from.
type VectorEntry struct {
	ID        string            `json:"id"`
	Vector    []float64         `json:"vector"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ScoredEntry is a vector search hit.
type ScoredEntry struct {
	Entry      VectorEntry `json:"entry"`
	Similarity float64     `json:"similarity"`
}
