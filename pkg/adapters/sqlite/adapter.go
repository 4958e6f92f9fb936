package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return dialect.ForEngine(core.EngineSQLite)
}

// Connect opens the database file. Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg core.ConnectionConfig) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug("opening sqlite database", slog.String("path", cfg.Path))

	a.Cfg = cfg
	if err := a.Open(ctx, "sqlite", buildDSN(cfg.Path, params)); err != nil {
		return err
	}
	// One connection: an in-memory database lives and dies with its connection.
	a.DB.SetMaxOpenConns(1)
	return nil
}

// ListTables lists user tables and views.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}

	rows, err := a.DB.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// GetTableMetadata retrieves columns and primary key from pragma_table_info.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}

	schema, tableName := adapter.ParseQualifiedName(table, a.Dialect().DefaultSchema)

	rows, err := a.DB.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`,
		tableName, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	var pk []pkColumn
	for rows.Next() {
		var (
			cid, notNull, pkPos int
			col                 core.Column
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &pkPos); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Position = cid + 1
		col.Nullable = notNull == 0 && pkPos == 0
		columns = append(columns, col)
		if pkPos > 0 {
			pk = append(pk, pkColumn{name: col.Name, pos: pkPos})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	adapter.MarkPrimaryKey(columns, orderedKey(pk))

	return &core.TableMetadata{
		Schema:  schema,
		Name:    tableName,
		Columns: columns,
	}, nil
}

type pkColumn struct {
	name string
	pos  int
}

func orderedKey(pk []pkColumn) []string {
	out := make([]string, len(pk))
	for _, c := range pk {
		if c.pos-1 < len(out) {
			out[c.pos-1] = c.name
		}
	}
	return out
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
