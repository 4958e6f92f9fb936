// Package adapter defines the per-engine driver capability the query gateway runs on.
//
// This package contains the public contract that all database adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories and register
// themselves by engine kind from their init() functions.
package adapter

import (
	"context"
	"database/sql"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"
)

// Adapter defines the interface that all database adapters must implement.
// It provides methods for connecting to databases, executing SQL, and
// retrieving metadata.
type Adapter interface {
	// Connect establishes a connection to the database described by cfg.
	// Implementations must verify the connection (ping) before returning.
	Connect(ctx context.Context, cfg core.ConnectionConfig) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows and reports the number of
	// affected rows, or -1 when the driver cannot tell.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Query executes a SQL statement that returns rows. The caller closes the rows.
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// BeginTx starts a transaction on the connection.
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)

	// ListTables returns the user tables and views of the connection's default schema.
	ListTables(ctx context.Context) ([]string, error)

	// GetTableMetadata retrieves columns and primary key of a table.
	GetTableMetadata(ctx context.Context, table string) (*core.TableMetadata, error)

	// Dialect returns the identifier and placeholder rules of this engine.
	Dialect() *dialect.Dialect
}
