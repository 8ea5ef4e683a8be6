package memory

import (
	"fmt"
	"sort"

	"github.com/marketconnect/llm-council/app/domain/entities"
	"gonum.org/v1/gonum/floats"
)

// VectorStore holds fixed-dimension embeddings.
type VectorStore struct {
	Entries   map[string]*VectorEntry `json:"entries"`
	Dimension int                     `json:"dimension"`
}

// NewVectorStore creates a store that accepts vectors of length dimension.
func NewVectorStore(dimension int) *VectorStore {
	return &VectorStore{Entries: make(map[string]*VectorEntry), Dimension: dimension}
}

// Add stores e when its vector has the store's dimension.
func (v *VectorStore) Add(e *VectorEntry) (string, error) {
	if len(e.Vector) != v.Dimension {
		return "", fmt.Errorf("expected %d, got %d: %w", v.Dimension, len(e.Vector), entities.ErrDimensionMismatch)
	}
	v.Entries[e.ID] = e
	return e.ID, nil
}

// Remove deletes the entry with id.
func (v *VectorStore) Remove(id string) bool {
	if _, ok := v.Entries[id]; !ok {
		return false
	}
	delete(v.Entries, id)
	return true
}

// Search returns the topK entries most similar to query.
func (v *VectorStore) Search(query []float64, topK int) []ScoredEntry {
	out := make([]ScoredEntry, 0, len(v.Entries))
	for _, e := range v.Entries {
		out = append(out, ScoredEntry{Entry: *e, Similarity: CosineSimilarity(query, e.Vector)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Entry.ID < out[j].Entry.ID
	})
	if topK >= 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// CosineSimilarity is 0 for vectors of different length or zero magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	magA, magB := floats.Norm(a, 2), floats.Norm(b, 2)
	if magA == 0 || magB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (magA * magB)
}
