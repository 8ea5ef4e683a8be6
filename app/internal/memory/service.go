package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"k8s.io/klog/v2"
)

// AnonymousPrincipal is the caller identity used when none is supplied.
const AnonymousPrincipal = entities.AnonymousPrincipal

// Documents persists serialized agent memories.
type Documents interface {
	GetMemoryDocument(principal, agentID string) ([]byte, error)
	SaveMemoryDocument(principal, agentID string, doc []byte) error
}

// RememberInput describes a new memory.
type RememberInput struct {
	Content    string            `json:"content"`
	Type       string            `json:"memory_type"`
	Importance float64           `json:"importance"`
	Tags       []string          `json:"tags"`
	Metadata   map[string]string `json:"metadata"`
}

// NodeInput describes a new knowledge node.
type NodeInput struct {
	Label      string            `json:"label"`
	Type       string            `json:"node_type"`
	Properties map[string]string `json:"properties"`
}

// EdgeInput describes a new relationship.
type EdgeInput struct {
	SourceID     string            `json:"source_id"`
	TargetID     string            `json:"target_id"`
	Relationship string            `json:"relationship"`
	Weight       float64           `json:"weight"`
	Properties   map[string]string `json:"properties"`
}

// Service loads, mutates and saves agent memories. Each principal and agent
// pair has its own document.
type Service struct {
	docs  Documents
	now   func() time.Time
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(docs Documents) *Service {
	return &Service{docs: docs, now: time.Now, locks: make(map[string]*sync.Mutex)}
}

func (s *Service) lock(principal, agentID string) func() {
	key := principal + "\x00" + agentID
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) load(principal, agentID string) (*Agent, error) {
	doc, err := s.docs.GetMemoryDocument(principal, agentID)
	if errors.Is(err, entities.ErrMemoryNotFound) {
		return NewAgent(agentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	a := NewAgent(agentID)
	if err := json.Unmarshal(doc, a); err != nil {
		return nil, fmt.Errorf("decode memory: %w", err)
	}
	return a, nil
}

func (s *Service) save(principal string, a *Agent) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if err := s.docs.SaveMemoryDocument(principal, a.AgentID, doc); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

func (s *Service) view(principal, agentID string, fn func(a *Agent)) error {
	unlock := s.lock(principal, agentID)
	defer unlock()
	a, err := s.load(principal, agentID)
	if err != nil {
		return err
	}
	fn(a)
	return nil
}

func (s *Service) mutate(principal, agentID string, fn func(a *Agent) error) error {
	if entities.IsAnonymous(principal) {
		return entities.ErrAnonymous
	}
	if strings.TrimSpace(agentID) == "" {
		return fmt.Errorf("agent id is required: %w", entities.ErrInvalidInput)
	}
	unlock := s.lock(principal, agentID)
	defer unlock()
	a, err := s.load(principal, agentID)
	if err != nil {
		return err
	}
	if err := fn(a); err != nil {
		return err
	}
	return s.save(principal, a)
}

// Remember stores a memory and returns its id.
func (s *Service) Remember(principal, agentID string, in RememberInput) (string, error) {
	if strings.TrimSpace(in.Content) == "" {
		return "", fmt.Errorf("content is required: %w", entities.ErrInvalidInput)
	}
	var id string
	err := s.mutate(principal, agentID, func(a *Agent) error {
		now := s.now()
		tags := in.Tags
		if tags == nil {
			tags = []string{}
		}
		id = a.Store.Add(&Memory{
			ID:           uuid.NewString(),
			Type:         ParseMemoryType(in.Type),
			Content:      in.Content,
			Importance:   min(max(in.Importance, 0), 1),
			LastAccessed: now,
			CreatedAt:    now,
			Metadata:     in.Metadata,
			Tags:         tags,
		})
		return nil
	})
	return id, err
}

// Recall returns memories matching query, best first.
func (s *Service) Recall(principal, agentID, query string, limit int) ([]*Memory, error) {
	var out []*Memory
	err := s.view(principal, agentID, func(a *Agent) { out = a.Recall(query, limit) })
	return out, err
}

// Get returns one memory and records the access, which keeps it from
// decaying during maintenance.
func (s *Service) Get(principal, agentID, memoryID string) (*Memory, error) {
	var out *Memory
	err := s.mutate(principal, agentID, func(a *Agent) error {
		m, ok := a.Store.Get(memoryID, s.now())
		if !ok {
			return fmt.Errorf("memory %s: %w", memoryID, entities.ErrMemoryNotFound)
		}
		cp := *m
		out = &cp
		return nil
	})
	return out, err
}

// SearchByTags returns memories carrying any of tags, oldest first.
func (s *Service) SearchByTags(principal, agentID string, tags []string) ([]*Memory, error) {
	var out []*Memory
	err := s.view(principal, agentID, func(a *Agent) { out = a.Store.SearchByTags(tags) })
	return out, err
}

// Recent returns up to count buffered memories, newest first.
func (s *Service) Recent(principal, agentID string, count int) ([]*Memory, error) {
	var out []*Memory
	err := s.view(principal, agentID, func(a *Agent) { out = a.Store.Recent(count) })
	return out, err
}

// AddContext appends content to the agent's context window.
func (s *Service) AddContext(principal, agentID, content string) error {
	return s.mutate(principal, agentID, func(a *Agent) error {
		a.AddContext(content)
		return nil
	})
}

// Context returns the agent's context window.
func (s *Service) Context(principal, agentID string) (string, error) {
	var out string
	err := s.view(principal, agentID, func(a *Agent) { out = a.Context() })
	return out, err
}

// AddNode adds a knowledge node and returns its id.
func (s *Service) AddNode(principal, agentID string, in NodeInput) (string, error) {
	if strings.TrimSpace(in.Label) == "" {
		return "", fmt.Errorf("label is required: %w", entities.ErrInvalidInput)
	}
	var id string
	err := s.mutate(principal, agentID, func(a *Agent) error {
		now := s.now()
		nodeType := NodeType(in.Type)
		if nodeType == "" {
			nodeType = Concept
		}
		id = a.Graph.AddNode(&KnowledgeNode{
			ID:         uuid.NewString(),
			Type:       nodeType,
			Label:      in.Label,
			Properties: in.Properties,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		return nil
	})
	return id, err
}

// AddEdge links two existing nodes and returns the edge id.
func (s *Service) AddEdge(principal, agentID string, in EdgeInput) (string, error) {
	var id string
	err := s.mutate(principal, agentID, func(a *Agent) error {
		weight := in.Weight
		if weight == 0 {
			weight = 1
		}
		var err error
		id, err = a.Graph.AddEdge(&KnowledgeEdge{
			ID:           uuid.NewString(),
			SourceID:     in.SourceID,
			TargetID:     in.TargetID,
			Relationship: in.Relationship,
			Weight:       weight,
			Properties:   in.Properties,
			CreatedAt:    s.now(),
		})
		return err
	})
	return id, err
}

// FindNode looks a node up by label.
func (s *Service) FindNode(principal, agentID, label string) (*KnowledgeNode, error) {
	var (
		node *KnowledgeNode
		ok   bool
	)
	if err := s.view(principal, agentID, func(a *Agent) { node, ok = a.Graph.FindByLabel(label) }); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("label %q: %w", label, entities.ErrNodeNotFound)
	}
	return node, nil
}

// Neighbors returns the nodes adjacent to nodeID.
func (s *Service) Neighbors(principal, agentID, nodeID string) ([]*KnowledgeNode, error) {
	var out []*KnowledgeNode
	err := s.view(principal, agentID, func(a *Agent) { out = a.Graph.Neighbors(nodeID) })
	return out, err
}

// FindPath returns a shortest path of node ids, or nil when none exists.
func (s *Service) FindPath(principal, agentID, from, to string) ([]string, error) {
	var out []string
	err := s.view(principal, agentID, func(a *Agent) { out, _ = a.Graph.FindPath(from, to) })
	return out, err
}

// Subgraph returns the neighbourhood of center up to hops edges away.
func (s *Service) Subgraph(principal, agentID, center string, hops int) ([]*KnowledgeNode, []*KnowledgeEdge, error) {
	var (
		nodes []*KnowledgeNode
		edges []*KnowledgeEdge
	)
	err := s.view(principal, agentID, func(a *Agent) { nodes, edges = a.Graph.Subgraph(center, hops) })
	return nodes, edges, err
}

// AddVector stores an embedding and returns its id.
func (s *Service) AddVector(principal, agentID string, vector []float64, content string, metadata map[string]string) (string, error) {
	var id string
	err := s.mutate(principal, agentID, func(a *Agent) error {
		var err error
		id, err = a.Vectors.Add(&VectorEntry{
			ID:        uuid.NewString(),
			Vector:    vector,
			Content:   content,
			Metadata:  metadata,
			CreatedAt: s.now(),
		})
		return err
	})
	return id, err
}

// SearchVectors returns the topK stored embeddings closest to query.
func (s *Service) SearchVectors(principal, agentID string, query []float64, topK int) ([]ScoredEntry, error) {
	var out []ScoredEntry
	err := s.view(principal, agentID, func(a *Agent) { out = a.Vectors.Search(query, topK) })
	return out, err
}

// Maintain runs consolidation, decay and forgetting.
func (s *Service) Maintain(principal, agentID string) (MaintenanceReport, error) {
	var r MaintenanceReport
	err := s.mutate(principal, agentID, func(a *Agent) error {
		r = a.Maintain(s.now())
		return nil
	})
	if err == nil {
		klog.V(2).Infof("memory maintenance for %s/%s: consolidated=%d forgotten=%d", principal, agentID, r.Consolidated, r.Forgotten)
	}
	return r, err
}

// Stats summarizes an agent memory.
func (s *Service) Stats(principal, agentID string) (Stats, error) {
	var st Stats
	err := s.view(principal, agentID, func(a *Agent) { st = a.Stats() })
	return st, err
}

// ShareKnowledge copies the given nodes, and edges between them, from one
// agent's graph into another's. It returns how many nodes were copied.
func (s *Service) ShareKnowledge(principal, fromAgent, toAgent string, nodeIDs []string) (int, error) {
	if fromAgent == toAgent {
		return 0, fmt.Errorf("cannot share knowledge with the same agent: %w", entities.ErrInvalidInput)
	}
	var (
		nodes []*KnowledgeNode
		edges []*KnowledgeEdge
	)
	if err := s.view(principal, fromAgent, func(a *Agent) {
		wanted := make(map[string]bool, len(nodeIDs))
		for _, id := range nodeIDs {
			if n, ok := a.Graph.Nodes[id]; ok {
				wanted[id] = true
				nodes = append(nodes, n)
			}
		}
		for _, e := range a.Graph.Edges {
			if wanted[e.SourceID] && wanted[e.TargetID] {
				edges = append(edges, e)
			}
		}
	}); err != nil {
		return 0, err
	}
	if len(nodes) == 0 {
		return 0, nil
	}
	err := s.mutate(principal, toAgent, func(a *Agent) error {
		for _, n := range nodes {
			a.Graph.AddNode(n)
		}
		for _, e := range edges {
			if _, err := a.Graph.AddEdge(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}
