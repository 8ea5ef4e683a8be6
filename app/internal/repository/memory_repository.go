package repository

import (
	"sort"
	"sync"

	"github.com/marketconnect/llm-council/app/domain/entities"
)

type agentKey struct {
	principal string
	agentID   string
}

// MemoryRepository is an in-memory implementation of the Repository interface.
type MemoryRepository struct {
	councils map[string]*entities.CouncilSession
	queries  map[string]*entities.QuerySession
	history  map[agentKey][]entities.ChatMessage
	memories map[agentKey][]byte
	mu       sync.RWMutex
}

// NewMemoryRepository creates a new MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		councils: make(map[string]*entities.CouncilSession),
		queries:  make(map[string]*entities.QuerySession),
		history:  make(map[agentKey][]entities.ChatMessage),
		memories: make(map[agentKey][]byte),
	}
}

// Init initializes the memory repository (no-op for memory repository).
func (r *MemoryRepository) Init() error {
	return nil
}

// Close closes the memory repository (no-op for memory repository).
func (r *MemoryRepository) Close() error {
	return nil
}

// GetCouncilSession retrieves a council session by ID.
func (r *MemoryRepository) GetCouncilSession(sessionID string) (*entities.CouncilSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.councils[sessionID]
	if !exists {
		return nil, entities.ErrSessionNotFound
	}
	// Return a copy to prevent modification outside of repository methods
	return sess.Clone(), nil
}

// SaveCouncilSession creates or replaces a council session.
func (r *MemoryRepository) SaveCouncilSession(session *entities.CouncilSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.councils[session.SessionID] = session.Clone()
	return nil
}

// ListCouncilSessions returns all council sessions.
func (r *MemoryRepository) ListCouncilSessions() ([]*entities.CouncilSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.CouncilSession, 0, len(r.councils))
	for _, v := range r.councils {
		result = append(result, v.Clone())
	}
	return result, nil
}

// GetQuerySession retrieves a query session by ID.
func (r *MemoryRepository) GetQuerySession(sessionID string) (*entities.QuerySession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.queries[sessionID]
	if !exists {
		return nil, entities.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// SaveQuerySession creates or replaces a query session.
func (r *MemoryRepository) SaveQuerySession(session *entities.QuerySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries[session.SessionID] = session.Clone()
	return nil
}

// ListUserQuerySessions returns the sessions of user, newest first.
func (r *MemoryRepository) ListUserQuerySessions(user string, limit int) ([]*entities.QuerySession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*entities.QuerySession
	for _, v := range r.queries {
		if v.User == user {
			result = append(result, v.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].SessionID > result[j].SessionID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// AppendChatMessages adds msgs to the agent's history.
func (r *MemoryRepository) AppendChatMessages(principal, agentID string, msgs ...entities.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := agentKey{principal, agentID}
	r.history[k] = append(r.history[k], msgs...)
	return nil
}

// ChatHistory returns the last limit messages of the agent's history.
func (r *MemoryRepository) ChatHistory(principal, agentID string, limit int) ([]entities.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.history[agentKey{principal, agentID}]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]entities.ChatMessage{}, h...), nil
}

// GetMemoryDocument returns the stored agent memory.
func (r *MemoryRepository) GetMemoryDocument(principal, agentID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.memories[agentKey{principal, agentID}]
	if !exists {
		return nil, entities.ErrMemoryNotFound
	}
	return append([]byte(nil), doc...), nil
}

// SaveMemoryDocument replaces the stored agent memory.
func (r *MemoryRepository) SaveMemoryDocument(principal, agentID string, doc []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memories[agentKey{principal, agentID}] = append([]byte(nil), doc...)
	return nil
}
