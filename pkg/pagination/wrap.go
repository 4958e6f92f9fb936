package pagination

import (
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/sqlscan"
)

// Wrap appends a row bound to a single SELECT statement that has none.
//
// Statements that do not start with SELECT, already carry LIMIT or FETCH anywhere, or
// hold more than one statement are returned unchanged: a user-specified bound is never
// overridden. Trailing semicolons and comments are dropped from rewritten statements.
func Wrap(sql string, limit, offset int, kind core.EngineKind) string {
	stmts := sqlscan.Statements(sql)
	if len(stmts) != 1 {
		return sql
	}
	stmt := stmts[0]
	if sqlscan.LeadingKeyword(stmt) != "SELECT" {
		return sql
	}
	if sqlscan.ContainsKeyword(stmt, "LIMIT") || sqlscan.ContainsKeyword(stmt, "FETCH") {
		return sql
	}

	toks := sqlscan.Tokenize(stmt)
	last := toks[len(toks)-1]
	body := strings.TrimSpace(stmt[:last.Pos+len(last.Raw)])

	return body + " " + dialect.ForEngine(kind).LimitClause(limit, offset)
}

// Page is one page of a result.
type Page struct {
	Result     *core.Result `json:"result"`
	NextCursor string       `json:"nextCursor,omitempty"`
	HasMore    bool         `json:"hasMore"`
}

// Paginate applies the limit+1 contract: result was fetched with opts.Limit+1 rows, and
// an extra row means another page exists. Only the first opts.Limit rows are kept.
func Paginate(result *core.Result, opts Options) Page {
	if result == nil || result.Failed() || len(result.Rows) <= opts.Limit {
		return Page{Result: result}
	}

	trimmed := *result
	trimmed.Rows = result.Rows[:opts.Limit]
	trimmed.RowCount = opts.Limit
	return Page{
		Result:     &trimmed,
		NextCursor: Encode(opts.Offset, opts.Limit),
		HasMore:    true,
	}
}

// FetchLimit is the number of rows to request for a page.
func FetchLimit(opts Options) int {
	return opts.Limit + 1
}
