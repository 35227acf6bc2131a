package history

// Store keeps conversations in SQLite, with an in-memory copy used whenever
// the database cannot be opened or a query fails. The default DSN is an
// in-memory database, so nothing outlives the process unless a file path is
// configured.

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/assistant-go/internal/logger"
)

// Store persists turns per session.
type Store struct {
	mu       sync.Mutex
	messages []Record // in-memory fallback
	nextID   int64

	db *sql.DB
}

// Open opens the store at dbPath (":memory:" or a file path). If the
// database cannot be opened the store silently uses memory only.
func Open(dbPath string) *Store {
	s := &Store{}
	if dbPath == "" {
		dbPath = ":memory:"
	}

	dsn := "file:" + dbPath + "?_busy_timeout=10000&_fk=1"
	if dbPath == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err)
		return s
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT,
        role TEXT,
        content TEXT,
        created_at DATETIME
    );`); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		_ = db.Close()
		return s
	}
	logger.L.Info("sqlite history DB initialized", "path", dbPath)
	s.db = db
	return s
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores turns at the end of the session, in order.
func (s *Store) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.insert(ctx, sessionID, now, turns); err != nil {
			logger.L.Error("failed to store turns in sqlite; falling back to memory", "error", err)
			s.db = nil
		}
	}

	for _, t := range turns {
		s.nextID++
		s.messages = append(s.messages, Record{
			ID:        s.nextID,
			SessionID: sessionID,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: now,
		})
	}
	return nil
}

func (s *Store) insert(ctx context.Context, sessionID string, at time.Time, turns []Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, t := range turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?,?,?,?);`,
			sessionID, string(t.Role), t.Content, at); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert: %w", err)
		}
	}
	return tx.Commit()
}

// Load returns the session's history in chronological order.
func (s *Store) Load(ctx context.Context, sessionID string) History {
	records := s.Records(ctx, sessionID)
	h := make(History, 0, len(records))
	for _, r := range records {
		h = append(h, Turn{Role: r.Role, Content: r.Content})
	}
	return h
}

// Records returns the stored rows of a session in chronological order.
func (s *Store) Records(ctx context.Context, sessionID string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		out, err := s.query(ctx, sessionID)
		if err == nil {
			return out
		}
		logger.L.Error("failed to read turns from sqlite; using memory", "error", err)
	}

	var out []Record
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) query(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var role string
		if err := rows.Scan(&r.ID, &r.SessionID, &role, &r.Content, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Role = Role(role)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Clear removes every turn of the session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?;`, sessionID); err != nil {
			return fmt.Errorf("clear session %s: %w", sessionID, err)
		}
	}

	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.SessionID != sessionID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}
