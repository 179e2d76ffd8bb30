package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/senga07/xAgentic/internal/engine"
)

// timeLayout orders updated_at lexicographically in SQL comparisons.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps one row per session with the snapshot as JSON.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	schema := `CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		state TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*engine.ExecutionState, error) {
	var payload string
	query := `SELECT state FROM sessions WHERE session_id = ?`
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", engine.ErrNoSuchSession, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return decodeState(payload)
}

func (s *SQLiteStore) Put(ctx context.Context, sessionID string, st *engine.ExecutionState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrSerialization, err)
	}

	query := `INSERT INTO sessions (session_id, status, state, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET status = excluded.status,
			state = excluded.state, updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, sessionID, string(st.Status),
		string(payload), st.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) List(ctx context.Context) ([]*engine.ExecutionState, error) {
	query := `SELECT state FROM sessions ORDER BY updated_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*engine.ExecutionState
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		st, err := decodeState(payload)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", engine.ErrNoSuchSession, sessionID)
	}
	return nil
}

func (s *SQLiteStore) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM sessions WHERE status IN (?, ?) AND updated_at < ?`
	res, err := s.db.ExecContext(ctx, query,
		string(engine.StatusCompleted), string(engine.StatusFailed),
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeState(payload string) (*engine.ExecutionState, error) {
	var st engine.ExecutionState
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrSerialization, err)
	}
	return &st, nil
}
