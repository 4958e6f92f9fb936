// Package postgres provides a PostgreSQL database adapter.
//
// This file registers the PostgreSQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

func init() {
	adapter.Register(core.EnginePostgres, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
