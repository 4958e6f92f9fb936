// Package schema enumerates tables and columns on a connection.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// Source is the live catalog a connection exposes. *gateway.Gateway implements it.
type Source interface {
	ListTables(ctx context.Context, conn core.ConnectionConfig) ([]string, error)
	TableMetadata(ctx context.Context, conn core.ConnectionConfig, table string) (*core.TableMetadata, error)
}

// Counter is a Source that can count the rows of a table. *gateway.Gateway implements it.
type Counter interface {
	CountRows(ctx context.Context, conn core.ConnectionConfig, table string) (int64, error)
}

// ErrCountUnsupported is returned by CountRows when the Source is not a Counter.
var ErrCountUnsupported = errors.New("row counts are not supported by this source")

// Introspector answers schema questions for preview and compare operations.
type Introspector struct {
	src    Source
	logger *slog.Logger
}

// New creates an Introspector.
func New(src Source, logger *slog.Logger) *Introspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Introspector{src: src, logger: logger}
}

// ListTables returns the table names of a connection in sorted order.
func (i *Introspector) ListTables(ctx context.Context, conn core.ConnectionConfig) ([]string, error) {
	tables, err := i.src.ListTables(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables on %s: %w", conn.DisplayName(), err)
	}
	out := append([]string(nil), tables...)
	sort.Strings(out)
	return out, nil
}

// DescribeTable returns the columns and primary key of a table.
func (i *Introspector) DescribeTable(ctx context.Context, conn core.ConnectionConfig, table string) (*core.TableMetadata, error) {
	meta, err := i.src.TableMetadata(ctx, conn, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s on %s: %w", table, conn.DisplayName(), err)
	}
	return meta, nil
}

// CountRows counts the rows of a table. It scans the table, so callers ask for it
// explicitly instead of getting it with DescribeTable.
func (i *Introspector) CountRows(ctx context.Context, conn core.ConnectionConfig, table string) (int64, error) {
	c, ok := i.src.(Counter)
	if !ok {
		return 0, ErrCountUnsupported
	}
	n, err := c.CountRows(ctx, conn, table)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows of %s on %s: %w", table, conn.DisplayName(), err)
	}
	return n, nil
}

// TableExists reports whether table is present on the connection.
func (i *Introspector) TableExists(ctx context.Context, conn core.ConnectionConfig, table string) (bool, error) {
	return i.lookup(ctx, conn, table)
}

// RequireTable returns a *core.ValidationError on field when table does not exist.
func (i *Introspector) RequireTable(ctx context.Context, conn core.ConnectionConfig, field, table string) error {
	ok, err := i.lookup(ctx, conn, table)
	if err != nil {
		return err
	}
	if !ok {
		i.logger.Debug("table not found", "connection", conn.DisplayName(), "table", table)
		return core.NewValidationError(field, fmt.Sprintf("table %q does not exist on %s", table, conn.DisplayName()))
	}
	return nil
}

// lookup matches case-insensitively. A schema-qualified request also matches its bare name
// when the catalog lists bare names, and a bare request matches a qualified catalog entry.
func (i *Introspector) lookup(ctx context.Context, conn core.ConnectionConfig, table string) (bool, error) {
	want := strings.ToLower(strings.TrimSpace(table))
	if want == "" {
		return false, nil
	}
	tables, err := i.ListTables(ctx, conn)
	if err != nil {
		return false, err
	}

	wantBare := bare(want)
	for _, t := range tables {
		have := strings.ToLower(t)
		if have == want || have == wantBare || bare(have) == want {
			return true, nil
		}
	}
	return false, nil
}

func bare(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
