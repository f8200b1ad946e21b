package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/agentcore/core/pkg/types"
)

// SQLite is a Store backed by a single embedded, WAL-mode SQLite database
// via the pure-Go modernc.org/sqlite driver (no cgo). Writes are queued on
// a single background goroutine, same as File, since database/sql with
// SQLite serializes writers anyway and this keeps the two implementations'
// async-write contract identical.
type SQLite struct {
	db *sql.DB

	mu      sync.Mutex
	lastErr error

	wg    sync.WaitGroup
	queue chan func() error
	done  chan struct{}
}

// NewSQLite opens (creating if necessary) a SQLite database at path and
// applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // WAL still benefits from a single writer connection.

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}

	s := &SQLite{
		db:    db,
		queue: make(chan func() error, 256),
		done:  make(chan struct{}),
	}
	go s.worker()
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	updated INTEGER NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated DESC);

CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL,
	id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (session_id, id)
);
CREATE INDEX IF NOT EXISTS idx_messages_session_ts ON messages(session_id, timestamp ASC);
`

func (s *SQLite) worker() {
	for job := range s.queue {
		err := job()
		s.mu.Lock()
		if err != nil {
			s.lastErr = err
		}
		s.mu.Unlock()
		s.wg.Done()
	}
	close(s.done)
}

func (s *SQLite) enqueue(job func() error) {
	s.wg.Add(1)
	s.queue <- job
}

func (s *SQLite) SaveSession(ctx context.Context, session *types.Session) error {
	cp := *session
	s.enqueue(func() error {
		data, err := json.Marshal(&cp)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, updated, data) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET updated = excluded.updated, data = excluded.data`,
			cp.ID, cp.Updated, string(data))
		return err
	})
	return nil
}

func (s *SQLite) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var session types.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SQLite) ListSessions(ctx context.Context) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM sessions ORDER BY updated DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var session types.Session
		if err := json.Unmarshal([]byte(data), &session); err != nil {
			// Skip corrupt records rather than fail the whole listing.
			continue
		}
		out = append(out, &session)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteSession(ctx context.Context, id string) error {
	s.enqueue(func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id)
		return err
	})
	return nil
}

func (s *SQLite) SaveMessage(ctx context.Context, message *types.Message) error {
	cp := *message
	s.enqueue(func() error {
		data, err := json.Marshal(&cp)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO messages (session_id, id, timestamp, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT(session_id, id) DO UPDATE SET timestamp = excluded.timestamp, data = excluded.data`,
			cp.SessionID, cp.ID, cp.Timestamp, string(data))
		return err
	})
	return nil
}

func (s *SQLite) GetMessage(ctx context.Context, sessionID, messageID string) (*types.Message, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM messages WHERE session_id = ? AND id = ?`, sessionID, messageID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	var msg types.Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *SQLite) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM messages WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Message
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var msg types.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteMessages(ctx context.Context, sessionID string) error {
	s.enqueue(func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
		return err
	})
	return nil
}

func (s *SQLite) Flush(ctx context.Context) error {
	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.lastErr
	s.lastErr = nil
	return err
}

func (s *SQLite) Clear(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}

func (s *SQLite) Close() error {
	close(s.queue)
	<-s.done
	return s.db.Close()
}

var _ Store = (*SQLite)(nil)
