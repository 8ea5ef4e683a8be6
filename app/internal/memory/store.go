package memory

import (
	"slices"
	"sort"
	"time"
)

// Store holds an agent's memories. The most recent ids are tracked in a
// bounded short-term buffer.
type Store struct {
	Memories        map[string]*Memory `json:"memories"`
	ShortTermBuffer []string           `json:"short_term_buffer"`
	BufferSize      int                `json:"buffer_size"`
}

// NewStore creates a store whose short-term buffer holds bufferSize ids.
func NewStore(bufferSize int) *Store {
	return &Store{
		Memories:        make(map[string]*Memory),
		ShortTermBuffer: []string{},
		BufferSize:      bufferSize,
	}
}

// Add stores m. When the buffer overflows, the oldest ids leave it and
// short-term memories below 0.5 importance are forgotten with them.
func (s *Store) Add(m *Memory) string {
	s.ShortTermBuffer = append(s.ShortTermBuffer, m.ID)
	for len(s.ShortTermBuffer) > s.BufferSize {
		oldest := s.ShortTermBuffer[0]
		s.ShortTermBuffer = s.ShortTermBuffer[1:]
		if old, ok := s.Memories[oldest]; ok && old.Importance < 0.5 && old.Type == ShortTerm {
			delete(s.Memories, oldest)
		}
	}
	s.Memories[m.ID] = m
	return m.ID
}

// Get returns the memory and marks it accessed.
func (s *Store) Get(id string, now time.Time) (*Memory, bool) {
	m, ok := s.Memories[id]
	if !ok {
		return nil, false
	}
	m.AccessCount++
	m.LastAccessed = now
	return m, true
}

// SearchByTags returns memories carrying any of tags, oldest first.
func (s *Store) SearchByTags(tags []string) []*Memory {
	var out []*Memory
	for _, m := range s.Memories {
		for _, t := range tags {
			if slices.Contains(m.Tags, t) {
				out = append(out, m)
				break
			}
		}
	}
	sortByCreated(out)
	return out
}

// Recent returns up to count memories from the buffer, newest first.
func (s *Store) Recent(count int) []*Memory {
	var out []*Memory
	for i := len(s.ShortTermBuffer) - 1; i >= 0 && len(out) < count; i-- {
		if m, ok := s.Memories[s.ShortTermBuffer[i]]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Consolidate promotes buffered short-term memories of importance >= 0.7.
func (s *Store) Consolidate() int {
	promoted := 0
	for _, id := range s.ShortTermBuffer {
		if m, ok := s.Memories[id]; ok && m.Type == ShortTerm && m.Importance >= 0.7 {
			m.Type = LongTerm
			promoted++
		}
	}
	return promoted
}

// Decay lowers the importance of short-term memories by rate per whole day
// since they were last accessed.
func (s *Store) Decay(rate float64, now time.Time) {
	for _, m := range s.Memories {
		if m.Type != ShortTerm {
			continue
		}
		days := int(now.Sub(m.LastAccessed) / (24 * time.Hour))
		if days <= 0 {
			continue
		}
		m.Importance = max(0, m.Importance-rate*float64(days))
	}
}

// Forget drops memories whose importance reached zero.
func (s *Store) Forget() int {
	forgotten := 0
	for id, m := range s.Memories {
		if m.Importance <= 0 {
			delete(s.Memories, id)
			forgotten++
		}
	}
	s.ShortTermBuffer = slices.DeleteFunc(s.ShortTermBuffer, func(id string) bool {
		_, ok := s.Memories[id]
		return !ok
	})
	return forgotten
}

func sortByCreated(ms []*Memory) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}
