// Package sqlite provides a SQLite database adapter.
//
// This file registers the SQLite adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

func init() {
	adapter.Register(core.EngineSQLite, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
