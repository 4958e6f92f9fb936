// Package access evaluates SQL text against a per-user permission.
//
// The evaluator tokenizes the statement, extracts the tables and columns it references and
// checks them against the permission. Extraction errs toward over-matching: an ambiguous
// column is treated as belonging to every referenced table.
package access

import (
	"fmt"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/sqlscan"
)

// Decision is the verdict for one SQL text.
type Decision struct {
	Allowed   bool           `json:"allowed"`
	Reason    string         `json:"reason,omitempty"`
	Violation core.Violation `json:"violationType,omitempty"`
	Tables    []string       `json:"tables"`
	Columns   []ColumnRef    `json:"columns"`
}

// Err returns the denial as a *core.AccessError, or nil when the statement is allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &core.AccessError{Reason: d.Reason, Violation: d.Violation}
}

func (d Decision) deny(v core.Violation, format string, args ...any) Decision {
	d.Allowed = false
	d.Violation = v
	d.Reason = fmt.Sprintf(format, args...)
	return d
}

// Evaluate checks sql against perm. Every statement of a multi-statement text is checked,
// under every reading of its quoted text, so a backslash inside a string cannot hide SQL
// from one engine family. The rules run in order and the first violation wins:
//
//  1. the user must have view permission;
//  2. writes need edit permission;
//  3. every referenced table must be on the allowlist;
//  4. hidden columns may not be referenced, directly or through *.
func Evaluate(sql string, perm Permission) Decision {
	d := Decision{Tables: []string{}, Columns: []ColumnRef{}}
	if !perm.CanView {
		return d.deny(core.ViolationNone, "no view permission")
	}

	tokens := scan(sql)
	exts := make([]*extraction, len(tokens))
	for i, toks := range tokens {
		exts[i] = extract(toks)
		d.Tables = appendUnique(d.Tables, exts[i].tables...)
		for _, c := range exts[i].columns {
			d.Columns = appendColumn(d.Columns, c)
		}
	}

	if !perm.CanEdit {
		for _, toks := range tokens {
			if kw, ok := writeKeyword(toks); ok {
				return d.deny(core.ViolationWrite, "%s statements require edit permission", kw)
			}
		}
	}

	for _, e := range exts {
		for _, t := range e.tables {
			if !perm.AllowsTable(t) {
				return d.deny(core.ViolationTable, "table %q is not accessible with your permissions", t)
			}
		}
	}

	hidden := perm.hidden()
	if len(hidden) == 0 {
		d.Allowed = true
		return d
	}
	for _, e := range exts {
		if denied, ok := checkColumns(d, e, hidden); ok {
			return denied
		}
	}

	d.Allowed = true
	return d
}

// checkColumns applies the hidden-column rule to one statement.
func checkColumns(d Decision, e *extraction, hidden hiddenIndex) (Decision, bool) {
	for _, table := range e.tables {
		cols := hidden.forTable(table)
		if len(cols) == 0 {
			continue
		}

		for _, q := range e.stars {
			if q == "" || e.refersTo(q, table) {
				return d.deny(core.ViolationColumn,
					"table %q has restricted columns; list the columns you need instead of using *", table), true
			}
		}
		for _, c := range e.columns {
			if _, ok := cols[c.Column]; !ok {
				continue
			}
			if c.Qualifier == "" || e.refersTo(c.Qualifier, table) {
				return d.deny(core.ViolationColumn, "column %q of table %q is restricted", c.Column, table), true
			}
		}
	}
	return d, false
}

// refersTo reports whether qualifier may name table. Unknown qualifiers may name any table.
func (e *extraction) refersTo(qualifier, table string) bool {
	tables, ok := e.resolve(qualifier)
	if !ok {
		return true
	}
	for _, t := range tables {
		if t == table {
			return true
		}
	}
	return false
}

// scan returns the token stream of every statement under every lexer mode.
func scan(sql string) [][]sqlscan.Token {
	var out [][]sqlscan.Token
	for _, mode := range sqlscan.Modes {
		for _, stmt := range sqlscan.StatementsMode(sql, mode) {
			out = append(out, sqlscan.TokenizeMode(stmt, mode))
		}
	}
	return out
}

// IsWrite reports whether any statement in sql changes data or schema.
func IsWrite(sql string) bool {
	for _, toks := range scan(sql) {
		if _, ok := writeKeyword(toks); ok {
			return true
		}
	}
	return false
}

// Tables returns the lowercased tables referenced by sql, in order of appearance.
func Tables(sql string) []string {
	out := []string{}
	for _, toks := range scan(sql) {
		out = appendUnique(out, extract(toks).tables...)
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func appendColumn(dst []ColumnRef, c ColumnRef) []ColumnRef {
	for _, d := range dst {
		if d == c {
			return dst
		}
	}
	return append(dst, c)
}
