package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marketconnect/llm-council/app/domain/entities"
	"k8s.io/klog/v2"
)

// SQLiteRepository implements the Repository interface using an SQLite database.
// Sessions are stored as JSON documents next to the columns used for lookups.
type SQLiteRepository struct {
	db  *sql.DB
	dsn string
}

// NewSQLiteRepository creates a new SQLiteRepository.
// The DSN is the data source name for the SQLite database.
func NewSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	// The driver "sqlite3" must be registered by the application importing this package,
	// typically by a blank import like `_ "github.com/mattn/go-sqlite3"`.
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &SQLiteRepository{db: db, dsn: dsn}, nil
}

// Init initializes the SQLite repository, creating the necessary tables if they don't exist.
func (r *SQLiteRepository) Init() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS council_sessions (
            session_id TEXT PRIMARY KEY,
            stage TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            data TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS query_sessions (
            session_id TEXT PRIMARY KEY,
            user TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            data TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_query_sessions_user ON query_sessions (user, created_at);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            principal TEXT NOT NULL,
            agent_id TEXT NOT NULL,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_agent ON chat_messages (principal, agent_id, id);`,
		`CREATE TABLE IF NOT EXISTS agent_memories (
            principal TEXT NOT NULL,
            agent_id TEXT NOT NULL,
            data BLOB NOT NULL,
            updated_at INTEGER NOT NULL,
            PRIMARY KEY (principal, agent_id)
        );`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	klog.V(4).Info("SQLite tables initialized successfully.")
	return nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetCouncilSession retrieves a council session by ID.
func (r *SQLiteRepository) GetCouncilSession(sessionID string) (*entities.CouncilSession, error) {
	var data string
	err := r.db.QueryRow(`SELECT data FROM council_sessions WHERE session_id = ?;`, sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get council session: %w", err)
	}

	var sess entities.CouncilSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode council session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// SaveCouncilSession creates or replaces a council session.
func (r *SQLiteRepository) SaveCouncilSession(session *entities.CouncilSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode council session: %w", err)
	}

	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	queryUpsert := `
    INSERT INTO council_sessions (session_id, stage, created_at, data)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(session_id) DO UPDATE SET
        stage = excluded.stage,
        data = excluded.data;`

	if _, err = tx.ExecContext(ctx, queryUpsert, session.SessionID, string(session.Stage), session.CreatedAt.UnixNano(), string(data)); err != nil {
		return fmt.Errorf("failed to upsert council session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListCouncilSessions returns all council sessions.
func (r *SQLiteRepository) ListCouncilSessions() ([]*entities.CouncilSession, error) {
	rows, err := r.db.Query(`SELECT data FROM council_sessions ORDER BY created_at DESC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list council sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entities.CouncilSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan council session row: %w", err)
		}
		var sess entities.CouncilSession
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("failed to decode council session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating council session rows: %w", err)
	}
	return sessions, nil
}

// GetQuerySession retrieves a query session by ID.
func (r *SQLiteRepository) GetQuerySession(sessionID string) (*entities.QuerySession, error) {
	var data string
	err := r.db.QueryRow(`SELECT data FROM query_sessions WHERE session_id = ?;`, sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get query session: %w", err)
	}

	var sess entities.QuerySession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode query session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// SaveQuerySession creates or replaces a query session.
func (r *SQLiteRepository) SaveQuerySession(session *entities.QuerySession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode query session: %w", err)
	}

	queryUpsert := `
    INSERT INTO query_sessions (session_id, user, created_at, data)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(session_id) DO UPDATE SET
        data = excluded.data;`

	if _, err := r.db.Exec(queryUpsert, session.SessionID, session.User, session.CreatedAt.UnixNano(), string(data)); err != nil {
		return fmt.Errorf("failed to upsert query session: %w", err)
	}
	return nil
}

// ListUserQuerySessions returns the sessions of user, newest first.
func (r *SQLiteRepository) ListUserQuerySessions(user string, limit int) ([]*entities.QuerySession, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(`SELECT data FROM query_sessions WHERE user = ?
              ORDER BY created_at DESC, session_id DESC LIMIT ?;`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entities.QuerySession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan query session row: %w", err)
		}
		var sess entities.QuerySession
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("failed to decode query session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query session rows: %w", err)
	}
	return sessions, nil
}

// AppendChatMessages adds msgs to the agent's history in a single transaction.
func (r *SQLiteRepository) AppendChatMessages(principal, agentID string, msgs ...entities.ChatMessage) error {
	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range msgs {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (principal, agent_id, role, content, created_at) VALUES (?, ?, ?, ?, ?);`,
			principal, agentID, m.Role, m.Content, ts.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert chat message: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ChatHistory returns the last limit messages of the agent's history.
func (r *SQLiteRepository) ChatHistory(principal, agentID string, limit int) ([]entities.ChatMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT role, content, created_at FROM (
                  SELECT id, role, content, created_at FROM chat_messages
                  WHERE principal = ? AND agent_id = ?
                  ORDER BY id DESC LIMIT ?
              ) ORDER BY id ASC;`
	rows, err := r.db.Query(query, principal, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	history := []entities.ChatMessage{}
	for rows.Next() {
		var m entities.ChatMessage
		var ts int64
		if err := rows.Scan(&m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		m.Timestamp = time.Unix(0, ts).UTC()
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}
	return history, nil
}

// GetMemoryDocument returns the stored agent memory.
func (r *SQLiteRepository) GetMemoryDocument(principal, agentID string) ([]byte, error) {
	var doc []byte
	err := r.db.QueryRow(`SELECT data FROM agent_memories WHERE principal = ? AND agent_id = ?;`, principal, agentID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrMemoryNotFound
		}
		return nil, fmt.Errorf("failed to get agent memory: %w", err)
	}
	return doc, nil
}

// SaveMemoryDocument replaces the stored agent memory.
func (r *SQLiteRepository) SaveMemoryDocument(principal, agentID string, doc []byte) error {
	queryUpsert := `
    INSERT INTO agent_memories (principal, agent_id, data, updated_at)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(principal, agent_id) DO UPDATE SET
        data = excluded.data,
        updated_at = excluded.updated_at;`

	if _, err := r.db.Exec(queryUpsert, principal, agentID, doc, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to upsert agent memory: %w", err)
	}
	return nil
}
