// Package duckdb provides a DuckDB database adapter.
//
// This file registers the DuckDB adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

func init() {
	adapter.Register(core.EngineDuckDB, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
