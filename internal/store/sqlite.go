package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/domain"
	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Recorder using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed recorder.
func NewSQLite(dbPath string) (Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent poller writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_name TEXT PRIMARY KEY,
		connection_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		source_name TEXT,
		branch_name TEXT,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS status_updates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_name TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		status TEXT NOT NULL,
		details TEXT,
		create_time TEXT,
		recorded_at INTEGER NOT NULL,
		UNIQUE(session_name, activity_id)
	);
	CREATE INDEX IF NOT EXISTS idx_status_session ON status_updates(session_name, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordSession writes a new session record.
func (s *SQLiteStore) RecordSession(ctx context.Context, rec *domain.SessionRecord) error {
	query := `
	INSERT INTO sessions (session_name, connection_id, prompt, source_name, branch_name, state, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_name) DO UPDATE SET
		connection_id = excluded.connection_id,
		state = excluded.state,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		rec.SessionName, rec.ConnectionID, rec.Prompt,
		nullIfEmpty(rec.SourceName), nullIfEmpty(rec.BranchName),
		rec.State, rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// UpdateSessionState moves a session record to a final state. Retries with
// exponential backoff on SQLite concurrency errors: pollers and the cascade
// cleanup can write at the same moment.
func (s *SQLiteStore) UpdateSessionState(ctx context.Context, sessionName, state string) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.updateSessionStateOnce(ctx, sessionName, state)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("UpdateSessionState hit a locked database, retrying",
				"session", sessionName, "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("update session state for %s after %d attempts: %w", sessionName, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) updateSessionStateOnce(ctx context.Context, sessionName, state string) error {
	query := `UPDATE sessions SET state = ?, updated_at = ? WHERE session_name = ?`
	result, err := s.db.ExecContext(ctx, query, state, time.Now().Unix(), sessionName)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateSessionState affected 0 rows", "session", sessionName, "state", state)
	}
	return nil
}

// RecordStatus writes one pushed status update.
func (s *SQLiteStore) RecordStatus(ctx context.Context, rec *domain.StatusRecord) error {
	query := `
	INSERT INTO status_updates (session_name, activity_id, status, details, create_time, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_name, activity_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		rec.SessionName, rec.ActivityID, rec.Status,
		nullIfEmpty(rec.Details), nullIfEmpty(rec.CreateTime),
		rec.RecordedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record status: %w", err)
	}
	return nil
}

// ListRecentSessions returns the most recently updated session records.
func (s *SQLiteStore) ListRecentSessions(ctx context.Context, limit int) ([]*domain.SessionRecord, error) {
	query := `
	SELECT session_name, connection_id, prompt, source_name, branch_name, state, created_at, updated_at
	FROM sessions ORDER BY updated_at DESC, session_name LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sessions: %w", err)
	}
	defer closeRows(rows, "recent sessions")

	var records []*domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var sourceName, branchName sql.NullString
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&rec.SessionName, &rec.ConnectionID, &rec.Prompt,
			&sourceName, &branchName, &rec.State,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		rec.SourceName = sourceName.String
		rec.BranchName = branchName.String
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

// ListStatuses returns recorded status updates for a session, oldest first.
func (s *SQLiteStore) ListStatuses(ctx context.Context, sessionName string, limit int) ([]*domain.StatusRecord, error) {
	query := `
	SELECT session_name, activity_id, status, details, create_time, recorded_at
	FROM status_updates WHERE session_name = ? ORDER BY id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionName, limit)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer closeRows(rows, "statuses")

	var records []*domain.StatusRecord
	for rows.Next() {
		var rec domain.StatusRecord
		var details, createTime sql.NullString
		var recordedAt int64

		if err := rows.Scan(
			&rec.SessionName, &rec.ActivityID, &rec.Status,
			&details, &createTime, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}

		rec.Details = details.String
		rec.CreateTime = createTime.String
		rec.RecordedAt = time.Unix(recordedAt, 0)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}
	return records, nil
}

// PruneHistory deletes records older than maxAge.
func (s *SQLiteStore) PruneHistory(ctx context.Context, maxAge time.Duration) (int64, int64, error) {
	threshold := time.Now().Add(-maxAge).Unix()

	statusRes, err := s.db.ExecContext(ctx,
		`DELETE FROM status_updates WHERE session_name IN (SELECT session_name FROM sessions WHERE updated_at < ?)`,
		threshold)
	if err != nil {
		return 0, 0, fmt.Errorf("prune status updates: %w", err)
	}
	statusRows, err := statusRes.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("pruned status rows affected: %w", err)
	}

	sessionRes, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, 0, fmt.Errorf("prune sessions: %w", err)
	}
	sessionRows, err := sessionRes.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("pruned session rows affected: %w", err)
	}

	return sessionRows, statusRows, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
