// Package mysql provides a MySQL and MariaDB database adapter.
//
// This file registers the adapter for both engine kinds.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/mysql"
package mysql

import (
	"log/slog"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

func init() {
	adapter.Register(core.EngineMySQL, func(logger *slog.Logger) adapter.Adapter { return New(core.EngineMySQL, logger) })
	adapter.Register(core.EngineMariaDB, func(logger *slog.Logger) adapter.Adapter { return New(core.EngineMariaDB, logger) })
}
