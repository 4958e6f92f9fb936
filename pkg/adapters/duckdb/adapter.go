// Package duckdb provides a DuckDB database adapter.
package duckdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return dialect.ForEngine(core.EngineDuckDB)
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg core.ConnectionConfig) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}
	for _, ext := range params.Extensions {
		if !validName(ext) {
			return fmt.Errorf("invalid duckdb extension name %q", ext)
		}
	}
	for k := range params.Settings {
		if !validName(k) {
			return fmt.Errorf("invalid duckdb setting name %q", k)
		}
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	if params.ReadOnly && path != ":memory:" {
		path += "?access_mode=READ_ONLY"
	}

	a.Cfg = cfg
	if err := a.Open(ctx, "duckdb", path); err != nil {
		return err
	}

	if err := a.setup(ctx, params); err != nil {
		_ = a.Close()
		return err
	}
	return nil
}

// setup installs extensions and applies session settings.
func (a *Adapter) setup(ctx context.Context, params *Params) error {
	for _, ext := range params.Extensions {
		a.Logger.Debug("loading duckdb extension", slog.String("extension", ext))
		if _, err := a.DB.ExecContext(ctx, "INSTALL "+ext); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if _, err := a.DB.ExecContext(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	for _, stmt := range params.settingStatements() {
		if _, err := a.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting: %w", err)
		}
	}
	return nil
}

func (a *Adapter) schema() string {
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return a.Dialect().DefaultSchema
}

// ListTables lists tables and views of the configured schema.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	return a.ListTablesCommon(ctx, a.schema(), a.Dialect())
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	return a.GetTableMetadataCommon(ctx, table, a.schema(), a.Dialect())
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
