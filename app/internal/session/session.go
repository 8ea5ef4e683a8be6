package session

import (
	"github.com/marketconnect/llm-council/app/domain/entities"
)

// DefaultHistoryLimit is how many past messages are fed back as chat context.
const DefaultHistoryLimit = 10

type Repository interface {
	Close() error
	GetQuerySession(sessionID string) (*entities.QuerySession, error)
	SaveQuerySession(session *entities.QuerySession) error
	ListUserQuerySessions(user string, limit int) ([]*entities.QuerySession, error)
	AppendChatMessages(principal, agentID string, msgs ...entities.ChatMessage) error
	ChatHistory(principal, agentID string, limit int) ([]entities.ChatMessage, error)
}

type SessionManager struct {
	repository Repository
}

// NewSessionManager creates a new SessionManager with the provided repository
func NewSessionManager(repo Repository) *SessionManager {
	return &SessionManager{
		repository: repo,
	}
}

// Close closes the underlying repository connection if applicable.
func (sm *SessionManager) Close() error {
	if sm.repository != nil {
		return sm.repository.Close()
	}
	return nil
}

// GetSession retrieves a query session by ID
func (sm *SessionManager) GetSession(sessionID string) (*entities.QuerySession, error) {
	return sm.repository.GetQuerySession(sessionID)
}

// SaveSession stores a query session
func (sm *SessionManager) SaveSession(session *entities.QuerySession) error {
	return sm.repository.SaveQuerySession(session)
}

// UserSessions returns at most limit sessions of user, newest first
func (sm *SessionManager) UserSessions(user string, limit int) ([]*entities.QuerySession, error) {
	sessions, err := sm.repository.ListUserQuerySessions(user, limit)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*entities.QuerySession{}
	}
	return sessions, nil
}

// RecordExchange appends a user message and the assistant's reply to the agent's history
func (sm *SessionManager) RecordExchange(principal, agentID string, user, assistant entities.ChatMessage) error {
	return sm.repository.AppendChatMessages(principal, agentID, user, assistant)
}

// History returns the recent messages used as chat context
func (sm *SessionManager) History(principal, agentID string) ([]entities.ChatMessage, error) {
	return sm.repository.ChatHistory(principal, agentID, DefaultHistoryLimit)
}
