// Package audit records data changes made through scurry.
//
// Recorders are fire-and-forget: a failure to record never fails the change itself.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	_ "modernc.org/sqlite" // sqlite driver
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Recorder receives audit events.
type Recorder interface {
	Record(ctx context.Context, e core.AuditEvent)
}

// SQLiteStore persists audit events in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the audit database at path and migrates it.
// Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create audit directory: %w", err)
			}
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Record stores e, logging instead of returning failures.
func (s *SQLiteStore) Record(ctx context.Context, e core.AuditEvent) {
	if _, err := s.Insert(ctx, e); err != nil {
		s.logger.Warn("failed to record audit event", "action", e.Action, "table", e.Table, "error", err)
	}
}

// Insert stores e and returns it with ID and At filled in.
func (s *SQLiteStore) Insert(ctx context.Context, e core.AuditEvent) (core.AuditEvent, error) {
	if s.db == nil {
		return e, fmt.Errorf("database not opened")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, action, actor, connection_id, connection, table_name, row_key, statement, rows_affected, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.Actor, e.ConnectionID, e.Connection, e.Table, e.Key, e.Statement, e.RowsAffected,
		e.At.Format(timeLayout),
	)
	if err != nil {
		return e, fmt.Errorf("failed to insert audit event: %w", err)
	}
	return e, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	ConnectionID string
	Table        string
	Action       core.AuditAction
	Since        time.Time
	Limit        int
}

// List returns matching events, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]core.AuditEvent, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var (
		where []string
		args  []any
	)
	if f.ConnectionID != "" {
		where = append(where, "connection_id = ?")
		args = append(args, f.ConnectionID)
	}
	if f.Table != "" {
		where = append(where, "table_name = ?")
		args = append(args, f.Table)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(f.Action))
	}
	if !f.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	query := `SELECT id, action, actor, connection_id, connection, table_name, row_key, statement, rows_affected, at FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []core.AuditEvent{}
	for rows.Next() {
		var (
			e      core.AuditEvent
			action string
			at     string
		)
		if err := rows.Scan(&e.ID, &action, &e.Actor, &e.ConnectionID, &e.Connection, &e.Table, &e.Key, &e.Statement, &e.RowsAffected, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Action = core.AuditAction(action)
		e.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("invalid audit timestamp %q: %w", at, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
