// Package mysql provides a MySQL and MariaDB database adapter.
package mysql

import (
	"context"
	"log/slog"

	"github.com/go-sql-driver/mysql"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"
)

// Adapter implements the adapter.Adapter interface for MySQL and MariaDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	kind core.EngineKind
}

// New creates a new adapter for kind (mysql or mariadb).
// If logger is nil, a discard logger is used.
func New(kind core.EngineKind, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
		kind:           kind,
	}
}

// Dialect returns the MySQL or MariaDB dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return dialect.ForEngine(a.kind)
}

// Connect establishes a connection to the server.
func (a *Adapter) Connect(ctx context.Context, cfg core.ConnectionConfig) error {
	a.Logger.Debug("connecting to "+string(a.kind), slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	a.Cfg = cfg
	return a.Open(ctx, "mysql", buildMySQLDSN(cfg))
}

// schema is the database unqualified table names resolve to.
func (a *Adapter) schema() string {
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return a.Cfg.Database
}

// ListTables lists tables and views of the connection database.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	return a.ListTablesCommon(ctx, a.schema(), a.Dialect())
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	return a.GetTableMetadataCommon(ctx, table, a.schema(), a.Dialect())
}

// buildMySQLDSN constructs a go-sql-driver DSN.
func buildMySQLDSN(cfg core.ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Address()
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.Timeout
	if cfg.SSL {
		mc.TLSConfig = "true"
	}

	for k, v := range cfg.Options {
		if k == "tls" {
			mc.TLSConfig = v
			continue
		}
		if mc.Params == nil {
			mc.Params = make(map[string]string)
		}
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
