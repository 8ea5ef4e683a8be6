package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marketconnect/llm-council/app/domain/entities"
)

// Graph is a knowledge graph with a case-insensitive label index.
type Graph struct {
	Nodes       map[string]*KnowledgeNode `json:"nodes"`
	Edges       map[string]*KnowledgeEdge `json:"edges"`
	NodeByLabel map[string]string         `json:"node_by_label"`
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:       make(map[string]*KnowledgeNode),
		Edges:       make(map[string]*KnowledgeEdge),
		NodeByLabel: make(map[string]string),
	}
}

// AddNode inserts or replaces n. A later node with the same label takes
// over the label index.
func (g *Graph) AddNode(n *KnowledgeNode) string {
	g.NodeByLabel[strings.ToLower(n.Label)] = n.ID
	g.Nodes[n.ID] = n
	return n.ID
}

// AddEdge inserts e once both of its endpoints exist.
func (g *Graph) AddEdge(e *KnowledgeEdge) (string, error) {
	if _, ok := g.Nodes[e.SourceID]; !ok {
		return "", fmt.Errorf("source node %s: %w", e.SourceID, entities.ErrNodeNotFound)
	}
	if _, ok := g.Nodes[e.TargetID]; !ok {
		return "", fmt.Errorf("target node %s: %w", e.TargetID, entities.ErrNodeNotFound)
	}
	g.Edges[e.ID] = e
	return e.ID, nil
}

// FindByLabel looks a node up by label, ignoring case.
func (g *Graph) FindByLabel(label string) (*KnowledgeNode, bool) {
	id, ok := g.NodeByLabel[strings.ToLower(label)]
	if !ok {
		return nil, false
	}
	n, ok := g.Nodes[id]
	return n, ok
}

// EdgesOf returns the edges touching nodeID, ordered by id.
func (g *Graph) EdgesOf(nodeID string) []*KnowledgeEdge {
	var out []*KnowledgeEdge
	for _, e := range g.Edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Neighbors returns the nodes one edge away from nodeID.
func (g *Graph) Neighbors(nodeID string) []*KnowledgeNode {
	var out []*KnowledgeNode
	seen := map[string]bool{}
	for _, e := range g.EdgesOf(nodeID) {
		other := e.TargetID
		if e.SourceID != nodeID {
			other = e.SourceID
		}
		if n, ok := g.Nodes[other]; ok && !seen[other] {
			seen[other] = true
			out = append(out, n)
		}
	}
	return out
}

// FindPath returns the node ids of a shortest path from start to end, or
// false when the nodes are missing or disconnected.
func (g *Graph) FindPath(start, end string) ([]string, bool) {
	if _, ok := g.Nodes[start]; !ok {
		return nil, false
	}
	if _, ok := g.Nodes[end]; !ok {
		return nil, false
	}

	type step struct {
		id   string
		path []string
	}
	visited := map[string]bool{start: true}
	queue := []step{{id: start, path: []string{start}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.id == end {
			return cur.path, true
		}
		for _, n := range g.Neighbors(cur.id) {
			if visited[n.ID] {
				continue
			}
			visited[n.ID] = true
			path := append(append([]string{}, cur.path...), n.ID)
			queue = append(queue, step{id: n.ID, path: path})
		}
	}
	return nil, false
}

// Subgraph returns every node within hops edges of center and the edges
// between them.
func (g *Graph) Subgraph(center string, hops int) ([]*KnowledgeNode, []*KnowledgeEdge) {
	included := map[string]bool{center: true}
	frontier := []string{center}
	for i := 0; i < hops && len(frontier) > 0; i++ {
		var next []string
		for _, id := range frontier {
			for _, n := range g.Neighbors(id) {
				if !included[n.ID] {
					included[n.ID] = true
					next = append(next, n.ID)
				}
			}
		}
		frontier = next
	}

	var nodes []*KnowledgeNode
	for id := range included {
		if n, ok := g.Nodes[id]; ok {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	var edges []*KnowledgeEdge
	for _, e := range g.Edges {
		if included[e.SourceID] && included[e.TargetID] {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return nodes, edges
}
