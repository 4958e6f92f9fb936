package access

import (
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// FilterResult returns a copy of result without the hidden columns of the given tables.
// It backs browse endpoints that read whole tables without going through Evaluate.
// The input is returned unchanged when nothing is hidden.
func FilterResult(result *core.Result, perm Permission, tables ...string) *core.Result {
	if result == nil {
		return nil
	}
	idx := perm.hidden()
	drop := make(map[string]struct{})
	for _, t := range tables {
		for c := range idx.forTable(strings.ToLower(t)) {
			drop[c] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return result
	}

	hidden := func(name string) bool {
		_, ok := drop[strings.ToLower(name)]
		return ok
	}

	out := *result
	out.Columns = make([]core.ColumnInfo, 0, len(result.Columns))
	for _, c := range result.Columns {
		if !hidden(c.Name) {
			out.Columns = append(out.Columns, c)
		}
	}
	out.Rows = make([]core.Row, len(result.Rows))
	for i, row := range result.Rows {
		filtered := make(core.Row, len(row))
		for k, v := range row {
			if !hidden(k) {
				filtered[k] = v
			}
		}
		out.Rows[i] = filtered
	}
	return &out
}
