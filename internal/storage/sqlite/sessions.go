// Package sqlite stores session-scoped values in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"

	"github.com/xenking/schoolshop/internal/domain/session"
)

const (
	createSessionValuesSQL = `CREATE TABLE IF NOT EXISTS session_values (
		session_id TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, key)
	)`

	loadValueSQL = `SELECT value FROM session_values WHERE session_id = ? AND key = ?`

	saveValueSQL = `INSERT INTO session_values (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	touchSessionSQL = `UPDATE session_values SET updated_at = ? WHERE session_id = ?`

	dropSessionSQL = `DELETE FROM session_values WHERE session_id = ?`

	sweepSessionsSQL = `DELETE FROM session_values WHERE session_id IN (
		SELECT session_id FROM session_values GROUP BY session_id HAVING MAX(updated_at) < ?
	)`
)

var _ session.Store = (*SessionStore)(nil)

// SessionStore implements session.Store on SQLite.
type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at dsn. Use ":memory:" for a
// process-local store.
func Open(ctx context.Context, dsn string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, createSessionValuesSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating session table: %w", err)
	}
	return &SessionStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the stored value, or nil when the key is absent.
func (s *SessionStore) Load(ctx context.Context, sessionID, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, loadValueSQL, sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	return value, nil
}

// Save stores value under key.
func (s *SessionStore) Save(ctx context.Context, sessionID, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, saveValueSQL, sessionID, key, value, s.now().UnixNano()); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// Touch marks the session as active.
func (s *SessionStore) Touch(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, touchSessionSQL, s.now().UnixNano(), sessionID); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// Drop deletes every value of the session.
func (s *SessionStore) Drop(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, dropSessionSQL, sessionID); err != nil {
		return fmt.Errorf("dropping session: %w", err)
	}
	return nil
}

// Sweep deletes sessions not written or touched for longer than idle and
// returns the number of removed values.
func (s *SessionStore) Sweep(ctx context.Context, idle time.Duration) (int64, error) {
	cutoff := s.now().Add(-idle).UnixNano()
	res, err := s.db.ExecContext(ctx, sweepSessionsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}
	return n, nil
}
