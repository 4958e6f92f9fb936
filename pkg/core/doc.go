// Package core defines the shared language of the ScurryDB reconciliation engine.
//
// This package contains:
//   - Connection descriptors (ConnectionConfig, TunnelConfig, EngineKind)
//   - Tabular results (Result, ColumnInfo, Row)
//   - Table metadata used by schema introspection (TableMetadata, Column)
//   - The error taxonomy shared by every layer (ValidationError, AccessError)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
