package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"
)

// ErrSessionClosed is returned by a Session after Close.
var ErrSessionClosed = errors.New("session is closed")

// Session holds one open connection for a sequence of writes, such as a sync run.
// Exec is safe for concurrent use outside a transaction.
type Session struct {
	adp     adapter.Adapter
	release func()

	mu     sync.Mutex
	tx     *sql.Tx
	closed bool
}

// OpenSession connects to conn and keeps the connection until Close.
func (g *Gateway) OpenSession(ctx context.Context, conn core.ConnectionConfig) (*Session, error) {
	adp, release, err := g.connect(ctx, conn)
	if err != nil {
		return nil, err
	}
	return &Session{adp: adp, release: release}, nil
}

// Dialect returns the dialect of the connected engine.
func (s *Session) Dialect() *dialect.Dialect {
	return s.adp.Dialect()
}

// Exec runs a parameterized statement, inside the open transaction if there is one.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	tx := s.tx
	s.mu.Unlock()

	if tx == nil {
		return s.adp.Exec(ctx, query, args...)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute SQL: %w", err)
	}
	return adapter.AffectedRows(res), nil
}

// Begin starts a transaction. Only one transaction can be open at a time.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx != nil {
		return errors.New("transaction already open")
	}
	tx, err := s.adp.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// Commit commits the open transaction.
func (s *Session) Commit() error {
	tx, err := s.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the open transaction.
func (s *Session) Rollback() error {
	tx, err := s.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func (s *Session) takeTx() (*sql.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil, errors.New("no transaction open")
	}
	tx := s.tx
	s.tx = nil
	return tx, nil
}

// Close rolls back any open transaction and releases the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tx := s.tx
	s.tx = nil
	s.mu.Unlock()

	var err error
	if tx != nil {
		err = tx.Rollback()
	}
	s.release()
	return err
}
