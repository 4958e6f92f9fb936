package datasync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/diff"
)

// Preview builds the statements a sync would run, in diff order, without executing them.
func Preview(req Request) ([]Statement, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	kind, _ := core.ParseEngineKind(string(req.Target.Kind))
	return plan(req, dialect.ForEngine(kind))
}

// plan filters diffs to the requested scope and renders one statement per applicable row.
func plan(req Request, d *dialect.Dialect) ([]Statement, error) {
	selected := selectedKeys(req)

	var v core.ValidationError
	stmts := []Statement{}
	for i, rd := range req.Diffs {
		if selected != nil && !selected[rd.Key] {
			continue
		}
		switch rd.Status {
		case diff.StatusSourceOnly:
			if len(rd.SourceRow) == 0 {
				v.Add(fmt.Sprintf("diffs[%d].sourceRow", i), "source row is required to insert")
				continue
			}
			stmts = append(stmts, insertStatement(d, req.Table, rd))
		case diff.StatusDifferent:
			stmt, err := updateStatement(d, req.Table, req.PrimaryKey, rd)
			if err != nil {
				v.Add(fmt.Sprintf("diffs[%d]", i), err.Error())
				continue
			}
			stmts = append(stmts, stmt)
		}
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return stmts, nil
}

// selectedKeys returns the canonical keys of a selected scope, or nil for the whole table.
func selectedKeys(req Request) map[string]bool {
	if req.Scope != ScopeSelected {
		return nil
	}
	out := make(map[string]bool, len(req.SelectedKeys))
	for _, row := range req.SelectedKeys {
		if key, ok := diff.KeyOf(row, req.PrimaryKey); ok {
			out[diff.CanonicalKey(key)] = true
		}
	}
	return out
}

// Includes reports whether the diff with canonical key falls inside the request's scope.
func (r Request) Includes(key string) bool {
	selected := selectedKeys(r)
	return selected == nil || selected[key]
}

func insertStatement(d *dialect.Dialect, table string, rd diff.RowDiff) Statement {
	cols := make([]string, 0, len(rd.SourceRow))
	for c := range rd.SourceRow {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
		marks[i] = d.FormatPlaceholder(i + 1)
		args[i] = rd.SourceRow[c]
	}

	return Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.QuoteTable(table), strings.Join(quoted, ", "), strings.Join(marks, ", ")),
		Args: args,
		Kind: KindInsert,
		Key:  rd.Key,
	}
}

// updateStatement sets only the changed columns and matches the row by primary key.
func updateStatement(d *dialect.Dialect, table string, primaryKey []string, rd diff.RowDiff) (Statement, error) {
	if len(rd.CellDiffs) == 0 {
		return Statement{}, fmt.Errorf("different row %s has no changed columns", rd.Key)
	}

	args := make([]any, 0, len(rd.CellDiffs)+len(primaryKey))
	sets := make([]string, len(rd.CellDiffs))
	for i, c := range rd.CellDiffs {
		args = append(args, c.SourceValue)
		sets[i] = d.QuoteIdentifier(c.Column) + " = " + d.FormatPlaceholder(len(args))
	}

	where := make([]string, len(primaryKey))
	for i, col := range primaryKey {
		v, ok := rd.PrimaryKey[col]
		if !ok || v == nil {
			return Statement{}, fmt.Errorf("row %s is missing primary key column %s", rd.Key, col)
		}
		args = append(args, v)
		where[i] = d.QuoteIdentifier(col) + " = " + d.FormatPlaceholder(len(args))
	}

	return Statement{
		SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s",
			d.QuoteTable(table), strings.Join(sets, ", "), strings.Join(where, " AND ")),
		Args: args,
		Kind: KindUpdate,
		Key:  rd.Key,
	}, nil
}
