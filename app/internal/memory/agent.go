package memory

import (
	"sort"
	"strings"
	"time"
)

const (
	DefaultBufferSize  = 100
	DefaultDimension   = 768
	DefaultContextSize = 20
	DecayPerDay        = 0.01
)

// Agent bundles everything one agent remembers for one principal.
type Agent struct {
	AgentID       string       `json:"agent_id"`
	Store         *Store       `json:"memory_store"`
	Graph         *Graph       `json:"knowledge_graph"`
	Vectors       *VectorStore `json:"vector_store"`
	ContextWindow []string     `json:"context_window"`
	ContextSize   int          `json:"max_context_size"`
}

// NewAgent creates an empty agent memory with default capacities.
func NewAgent(agentID string) *Agent {
	return &Agent{
		AgentID:       agentID,
		Store:         NewStore(DefaultBufferSize),
		Graph:         NewGraph(),
		Vectors:       NewVectorStore(DefaultDimension),
		ContextWindow: []string{},
		ContextSize:   DefaultContextSize,
	}
}

// AddContext appends an utterance, dropping the oldest beyond ContextSize.
func (a *Agent) AddContext(content string) {
	a.ContextWindow = append(a.ContextWindow, content)
	if over := len(a.ContextWindow) - a.ContextSize; over > 0 {
		a.ContextWindow = a.ContextWindow[over:]
	}
}

// Context returns the context window joined by newlines.
func (a *Agent) Context() string {
	return strings.Join(a.ContextWindow, "\n")
}

// Recall returns up to limit memories containing any word of query, ranked
// by how many words they contain.
func (a *Agent) Recall(query string, limit int) []*Memory {
	words := strings.Fields(strings.ToLower(query))
	type hit struct {
		m       *Memory
		matches int
	}
	var hits []hit
	for _, m := range a.Store.Memories {
		content := strings.ToLower(m.Content)
		n := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{m: m, matches: n})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].matches != hits[j].matches {
			return hits[i].matches > hits[j].matches
		}
		if hits[i].m.Importance != hits[j].m.Importance {
			return hits[i].m.Importance > hits[j].m.Importance
		}
		return hits[i].m.ID < hits[j].m.ID
	})
	out := make([]*Memory, 0, min(len(hits), max(limit, 0)))
	for i := 0; i < len(hits) && i < limit; i++ {
		out = append(out, hits[i].m)
	}
	return out
}

// MaintenanceReport describes one Maintain pass.
type MaintenanceReport struct {
	Consolidated int `json:"consolidated"`
	Forgotten    int `json:"forgotten"`
}

// Maintain consolidates, decays and forgets.
func (a *Agent) Maintain(now time.Time) MaintenanceReport {
	r := MaintenanceReport{Consolidated: a.Store.Consolidate()}
	a.Store.Decay(DecayPerDay, now)
	r.Forgotten = a.Store.Forget()
	return r
}

// Stats summarizes the size of an agent memory.
type Stats struct {
	TotalMemories      int `json:"total_memories"`
	ShortTermCount     int `json:"short_term_count"`
	LongTermCount      int `json:"long_term_count"`
	KnowledgeNodes     int `json:"knowledge_nodes"`
	KnowledgeEdges     int `json:"knowledge_edges"`
	VectorEntries      int `json:"vector_entries"`
	ContextWindowCount int `json:"context_window_size"`
}

func (a *Agent) Stats() Stats {
	s := Stats{
		TotalMemories:      len(a.Store.Memories),
		KnowledgeNodes:     len(a.Graph.Nodes),
		KnowledgeEdges:     len(a.Graph.Edges),
		VectorEntries:      len(a.Vectors.Entries),
		ContextWindowCount: len(a.ContextWindow),
	}
	for _, m := range a.Store.Memories {
		switch m.Type {
		case ShortTerm:
			s.ShortTermCount++
		case LongTerm:
			s.LongTermCount++
		}
	}
	return s
}
