package repository

import (
	"github.com/marketconnect/llm-council/app/domain/entities"
)

// Repository defines the interface for persistent state.
// This allows for different storage backends (e.g., in-memory, SQLite).
type Repository interface {
	// Init performs any necessary initialization for the repository (e.g., DB connection, table creation).
	Init() error
	// Close performs cleanup tasks (e.g., closing DB connection).
	Close() error

	GetCouncilSession(sessionID string) (*entities.CouncilSession, error)
	SaveCouncilSession(session *entities.CouncilSession) error
	ListCouncilSessions() ([]*entities.CouncilSession, error)

	GetQuerySession(sessionID string) (*entities.QuerySession, error)
	SaveQuerySession(session *entities.QuerySession) error
	// ListUserQuerySessions returns at most limit sessions of user, newest first.
	// A non-positive limit returns all of them.
	ListUserQuerySessions(user string, limit int) ([]*entities.QuerySession, error)

	AppendChatMessages(principal, agentID string, msgs ...entities.ChatMessage) error
	// ChatHistory returns the last limit messages in chronological order.
	ChatHistory(principal, agentID string, limit int) ([]entities.ChatMessage, error)

	// GetMemoryDocument returns the serialized agent memory or ErrMemoryNotFound.
	GetMemoryDocument(principal, agentID string) ([]byte, error)
	SaveMemoryDocument(principal, agentID string, doc []byte) error
}
