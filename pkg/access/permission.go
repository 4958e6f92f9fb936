package access

import (
	"sort"
	"strings"
)

// Permission is the resolved access policy of one user on one connection.
//
// A nil AllowedTables means every table is allowed; a non-nil empty slice allows none.
// HiddenColumns maps a table name to the columns the user may not read. Keys and values
// are compared case-insensitively.
type Permission struct {
	CanView       bool                `json:"canView" koanf:"can_view"`
	CanEdit       bool                `json:"canEdit" koanf:"can_edit"`
	AllowedTables []string            `json:"allowedTables" koanf:"allowed_tables"`
	HiddenColumns map[string][]string `json:"hiddenColumns" koanf:"hidden_columns"`
}

// FullAccess returns a permission that allows everything.
func FullAccess() Permission {
	return Permission{CanView: true, CanEdit: true}
}

// ReadOnly returns a permission that allows reading every table and column.
func ReadOnly() Permission {
	return Permission{CanView: true}
}

// Restricted reports whether the permission limits tables or columns.
func (p Permission) Restricted() bool {
	return p.AllowedTables != nil || len(p.HiddenColumns) > 0
}

// defaultSchemas are the schemas a bare table name resolves to on a stock install:
// public on Postgres, main on SQLite and DuckDB.
var defaultSchemas = map[string]bool{"public": true, "main": true}

// AllowsTable reports whether the (possibly schema-qualified) table is on the allowlist.
// A bare entry admits the table in any schema. A qualified entry admits only that schema,
// and admits a bare reference only when the entry's schema is a default schema.
func (p Permission) AllowsTable(name string) bool {
	if p.AllowedTables == nil {
		return true
	}
	full := strings.ToLower(name)
	bare := bareName(full)
	for _, entry := range p.AllowedTables {
		e := strings.ToLower(strings.TrimSpace(entry))
		if e == full || e == bare {
			return true
		}
		if full == bare && bareName(e) == bare && defaultSchemas[schemaName(e)] {
			return true
		}
	}
	return false
}

// hiddenIndex is the lowercased form of HiddenColumns.
type hiddenIndex map[string]map[string]struct{}

func (p Permission) hidden() hiddenIndex {
	idx := make(hiddenIndex, len(p.HiddenColumns))
	for table, cols := range p.HiddenColumns {
		if len(cols) == 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(table))
		set, ok := idx[key]
		if !ok {
			set = make(map[string]struct{}, len(cols))
			idx[key] = set
		}
		for _, c := range cols {
			set[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
		}
	}
	return idx
}

// forTable returns the hidden columns of a table. A qualified name picks up its own entry
// and the bare entry; a bare name picks up every entry for that table in any schema.
func (h hiddenIndex) forTable(full string) map[string]struct{} {
	bare := bareName(full)
	merged := map[string]struct{}{}
	for key, cols := range h {
		if key != full && key != bare && (full != bare || bareName(key) != bare) {
			continue
		}
		for c := range cols {
			merged[c] = struct{}{}
		}
	}
	return merged
}

// HiddenColumnsFor returns the lowercased hidden columns of a table.
func (p Permission) HiddenColumnsFor(table string) []string {
	set := p.hidden().forTable(strings.ToLower(table))
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func schemaName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

func bareName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Narrow returns the permission that grants only what both p and req grant. Tables
// survive when both allowlists admit them; hidden columns from either side stay hidden.
func (p Permission) Narrow(req Permission) Permission {
	out := Permission{
		CanView: p.CanView && req.CanView,
		CanEdit: p.CanEdit && req.CanEdit,
	}

	switch {
	case p.AllowedTables == nil && req.AllowedTables == nil:
	case p.AllowedTables == nil:
		out.AllowedTables = append([]string{}, req.AllowedTables...)
	case req.AllowedTables == nil:
		out.AllowedTables = append([]string{}, p.AllowedTables...)
	default:
		out.AllowedTables = []string{}
		for _, a := range p.AllowedTables {
			for _, b := range req.AllowedTables {
				if t, ok := narrowEntry(a, b); ok {
					out.AllowedTables = appendUnique(out.AllowedTables, t)
				}
			}
		}
	}

	if len(p.HiddenColumns)+len(req.HiddenColumns) > 0 {
		out.HiddenColumns = make(map[string][]string, len(p.HiddenColumns)+len(req.HiddenColumns))
		for _, src := range []map[string][]string{p.HiddenColumns, req.HiddenColumns} {
			for table, cols := range src {
				out.HiddenColumns[table] = append(out.HiddenColumns[table], cols...)
			}
		}
	}
	return out
}

// narrowEntry returns the allowlist entry admitting what both a and b admit.
func narrowEntry(a, b string) (string, bool) {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	aBare, bBare := bareName(a) == a, bareName(b) == b
	switch {
	case a == b:
		return a, true
	case aBare && !bBare && bareName(b) == a:
		return b, true
	case !aBare && bBare && bareName(a) == b:
		return a, true
	}
	return "", false
}
