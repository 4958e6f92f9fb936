package core

import "time"

// =============================================================================
// Tabular result
// =============================================================================

// Row maps column name to value.
type Row map[string]any

// ColumnInfo describes one column of a result set as reported by the engine.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// AffectedRowsColumn is the synthetic column returned for mutations.
const AffectedRowsColumn = "affected_rows"

// Result is the normalized outcome of executing one statement.
//
// If Error is set, Columns and Rows are empty. Rows never exceed the requested cap;
// RowCount may be larger than len(Rows) when the cap truncated the set.
type Result struct {
	Columns       []ColumnInfo  `json:"columns"`
	Rows          []Row         `json:"rows"`
	RowCount      int           `json:"rowCount"`
	ExecutionTime time.Duration `json:"executionTime"`
	Error         string        `json:"error,omitempty"`
}

// ErrorResult builds a well-formed failed result.
func ErrorResult(msg string, elapsed time.Duration) *Result {
	return &Result{
		Columns:       []ColumnInfo{},
		Rows:          []Row{},
		ExecutionTime: elapsed,
		Error:         msg,
	}
}

// Failed reports whether the result carries an engine error.
func (r *Result) Failed() bool {
	return r != nil && r.Error != ""
}

// Truncated reports whether more rows exist server-side than were returned.
func (r *Result) Truncated() bool {
	return r != nil && r.RowCount > len(r.Rows)
}

// ColumnNames returns the column names in result order.
func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// AffectedRows returns the affected row count of a mutation result.
func (r *Result) AffectedRows() (int64, bool) {
	if r == nil || len(r.Columns) != 1 || r.Columns[0].Name != AffectedRowsColumn || len(r.Rows) != 1 {
		return 0, false
	}
	n, ok := r.Rows[0][AffectedRowsColumn].(int64)
	return n, ok
}
