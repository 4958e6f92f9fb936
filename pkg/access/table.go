package access

import (
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// CheckTable gates whole-table operations (compare, sync) that do not go through freeform
// SQL. The operation touches every column, so a table with hidden columns is denied.
func CheckTable(perm Permission, table string, write bool) Decision {
	name := strings.ToLower(strings.TrimSpace(table))
	d := Decision{Tables: []string{name}, Columns: []ColumnRef{}}
	if !perm.CanView {
		return d.deny(core.ViolationNone, "no view permission")
	}
	if write && !perm.CanEdit {
		return d.deny(core.ViolationWrite, "writing to %q requires edit permission", name)
	}
	if !perm.AllowsTable(name) {
		return d.deny(core.ViolationTable, "table %q is not accessible with your permissions", name)
	}
	if len(perm.hidden().forTable(name)) > 0 {
		return d.deny(core.ViolationColumn, "table %q has restricted columns", name)
	}
	d.Allowed = true
	return d
}
