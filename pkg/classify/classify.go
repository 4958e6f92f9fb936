// Package classify rates SQL statements by their destructive potential.
//
// Classification is a heuristic over the normalized first statement: an ordered list of
// rules is tested top to bottom and the first match wins. It is not a parser; obfuscated
// or multi-clause statements can slip through as safe.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/sqlscan"
)

// Level is the danger level of a statement.
type Level string

// Danger levels.
const (
	LevelSafe     Level = "safe"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Kind names the rule that matched.
type Kind string

// Statement kinds.
const (
	KindNone            Kind = "none"
	KindDropDatabase    Kind = "drop_database"
	KindDropTable       Kind = "drop_table"
	KindTruncate        Kind = "truncate"
	KindDropIndex       Kind = "drop_index"
	KindDeleteAll       Kind = "delete_all"
	KindDeleteTautology Kind = "delete_tautology"
	KindUpdateAll       Kind = "update_all"
	KindDropColumn      Kind = "drop_column"
)

// Classification is the verdict for one SQL text.
type Classification struct {
	Dangerous                  bool   `json:"dangerous"`
	Level                      Level  `json:"level"`
	Kind                       Kind   `json:"kind"`
	AffectedObject             string `json:"affectedObjectName,omitempty"`
	Message                    string `json:"message"`
	RequiresTypedConfirmation  bool   `json:"requiresTypedConfirmation"`
	RequiresAcknowledgement    bool   `json:"requiresAcknowledgement"`
	ContainsMultipleStatements bool   `json:"containsMultipleStatements"`
}

// ConfirmationText returns the text a user must type back before a critical statement
// runs, or "" when no typed confirmation is needed.
func (c Classification) ConfirmationText() string {
	if !c.RequiresTypedConfirmation {
		return ""
	}
	return c.AffectedObject
}

// Confirm reports whether the given user input satisfies the classification:
// critical statements need the exact object name, warnings need acknowledged=true.
func (c Classification) Confirm(typed string, acknowledged bool) bool {
	switch {
	case c.RequiresTypedConfirmation:
		return typed == c.AffectedObject
	case c.RequiresAcknowledgement:
		return acknowledged
	default:
		return true
	}
}

const (
	identPattern = "(?:\"(?:[^\"]|\"\")*\"|`(?:[^`]|``)*`|\\[[^\\]]*\\]|[^\\s,;().\"`\\[]+)"
	namePattern  = "(" + identPattern + "(?:\\." + identPattern + ")*)"
	ifExists     = `(?:IF\s+EXISTS\s+)?`
	tautology    = `(?:1\s*=\s*1|TRUE|'1'\s*=\s*'1')`
)

// rule is one entry of the ordered rule list.
type rule struct {
	kind    Kind
	level   Level
	pattern *regexp.Regexp
	// guard, when set, must also hold for the statement.
	guard   func(stmt string) bool
	message func(name string) string
}

func noTopLevelWhere(stmt string) bool {
	return !sqlscan.ContainsTopLevelKeyword(stmt, "WHERE")
}

var rules = []rule{
	{
		kind:    KindDropDatabase,
		level:   LevelCritical,
		pattern: regexp.MustCompile(`(?i)^DROP\s+(?:DATABASE|SCHEMA)\s+` + ifExists + namePattern),
		message: func(n string) string {
			return fmt.Sprintf("This will permanently delete the database %q and everything in it.", n)
		},
	},
	{
		kind:    KindDropTable,
		level:   LevelCritical,
		pattern: regexp.MustCompile(`(?i)^DROP\s+TABLE\s+` + ifExists + namePattern),
		message: func(n string) string {
			return fmt.Sprintf("This will permanently delete the table %q and all of its data.", n)
		},
	},
	{
		kind:    KindTruncate,
		level:   LevelCritical,
		pattern: regexp.MustCompile(`(?i)^TRUNCATE\s+(?:TABLE\s+)?(?:ONLY\s+)?` + namePattern),
		message: func(n string) string {
			return fmt.Sprintf("This will remove every row from %q.", n)
		},
	},
	{
		kind:    KindDropIndex,
		level:   LevelWarning,
		pattern: regexp.MustCompile(`(?i)^DROP\s+INDEX\s+(?:CONCURRENTLY\s+)?` + ifExists + namePattern),
		message: func(n string) string {
			return fmt.Sprintf("This will drop the index %q; queries relying on it may slow down.", n)
		},
	},
	{
		kind:    KindDeleteTautology,
		level:   LevelWarning,
		pattern: regexp.MustCompile(`(?i)^DELETE\s+FROM\s+` + namePattern + `(?:\s+(?:AS\s+)?\w+)?\s+WHERE\s+` + tautology + `$`),
		message: func(n string) string {
			return fmt.Sprintf("The WHERE clause matches every row; this deletes all rows from %q.", n)
		},
	},
	{
		kind:    KindDeleteAll,
		level:   LevelWarning,
		pattern: regexp.MustCompile(`(?i)^DELETE\s+FROM\s+` + namePattern),
		guard:   noTopLevelWhere,
		message: func(n string) string {
			return fmt.Sprintf("DELETE without WHERE removes every row from %q.", n)
		},
	},
	{
		kind:    KindUpdateAll,
		level:   LevelWarning,
		pattern: regexp.MustCompile(`(?i)^UPDATE\s+(?:ONLY\s+)?` + namePattern + `\s.*?\bSET\b.*\sWHERE\s+` + tautology + `$`),
		message: func(n string) string {
			return fmt.Sprintf("The WHERE clause matches every row; this updates all rows in %q.", n)
		},
	},
	{
		kind:    KindUpdateAll,
		level:   LevelWarning,
		pattern: regexp.MustCompile(`(?i)^UPDATE\s+(?:ONLY\s+)?` + namePattern + `\s.*?\bSET\b`),
		guard:   noTopLevelWhere,
		message: func(n string) string {
			return fmt.Sprintf("UPDATE without WHERE modifies every row in %q.", n)
		},
	},
	{
		kind:    KindDropColumn,
		level:   LevelWarning,
		pattern: regexp.MustCompile(`(?i)^ALTER\s+TABLE\s+` + ifExists + `(?:ONLY\s+)?` + namePattern + `\s.*\bDROP\s+COLUMN\b`),
		message: func(n string) string {
			return fmt.Sprintf("This drops a column from %q; its data cannot be recovered.", n)
		},
	},
}

// Classify rates the first statement of sql. Empty input is safe.
func Classify(sql string) Classification {
	result := Classification{
		Level:                      LevelSafe,
		Kind:                       KindNone,
		Message:                    "Statement is safe to execute.",
		ContainsMultipleStatements: sqlscan.HasMultipleStatements(sql),
	}

	stmt := sqlscan.Normalize(sqlscan.FirstStatement(sql))
	if strings.TrimSpace(stmt) == "" {
		return result
	}

	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(stmt)
		if m == nil {
			continue
		}
		if r.guard != nil && !r.guard(stmt) {
			continue
		}

		name := sqlscan.QualifiedName(m[1])
		result.Dangerous = true
		result.Level = r.level
		result.Kind = r.kind
		result.AffectedObject = name
		result.Message = r.message(name)
		result.RequiresTypedConfirmation = r.level == LevelCritical
		result.RequiresAcknowledgement = r.level == LevelWarning
		return result
	}

	return result
}
