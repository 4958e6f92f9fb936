// Package datasync applies row diffs from a source table to a target table.
//
// Only source-only rows (inserts) and differing rows (updates of the changed columns)
// produce statements. Target-only rows are never deleted; removing orphans is a
// separate, explicitly confirmed operation outside this package.
package datasync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/diff"
)

// Scope selects which diffs a sync applies.
type Scope string

// Sync scopes.
const (
	ScopeAll      Scope = "all"
	ScopeSelected Scope = "selected"
)

// Content selects what a sync carries.
type Content string

// Sync content flags.
const (
	ContentData             Content = "data"
	ContentDataAndStructure Content = "data_and_structure"
)

// StatementKind is the mutation a Statement performs.
type StatementKind string

// Statement kinds. There is deliberately no delete kind.
const (
	KindInsert StatementKind = "insert"
	KindUpdate StatementKind = "update"
)

// Request describes one sync run.
type Request struct {
	Source     core.ConnectionConfig `json:"source"`
	Target     core.ConnectionConfig `json:"target"`
	Table      string                `json:"table"`
	PrimaryKey []string              `json:"primaryKey"`
	Diffs      []diff.RowDiff        `json:"diffs"`
	Scope      Scope                 `json:"scope"`

	// SelectedKeys lists primary-key tuples to apply when Scope is ScopeSelected.
	SelectedKeys []core.Row `json:"selectedKeys,omitempty"`

	Content Content `json:"content"`

	// Atomic overrides the executor's default policy when set.
	Atomic *bool `json:"atomic,omitempty"`
}

// Statement is one parameterized mutation against the target.
type Statement struct {
	SQL  string        `json:"sql"`
	Args []any         `json:"args"`
	Kind StatementKind `json:"kind"`
	Key  string        `json:"key"`
}

// Outcome aggregates a sync run. Successful rows stay applied even when others fail,
// unless the run was atomic.
type Outcome struct {
	Success          bool          `json:"success"`
	Inserted         int           `json:"inserted"`
	Updated          int           `json:"updated"`
	Errors           []string      `json:"errors"`
	Duration         time.Duration `json:"duration"`
	Statements       int           `json:"statements"`
	Atomic           bool          `json:"atomic"`
	StructureSkipped bool          `json:"structureSkipped,omitempty"`
}

// Validate checks a request before any statement is built.
func (r Request) Validate() error {
	var v core.ValidationError

	if strings.TrimSpace(r.Table) == "" {
		v.Add("table", "table is required")
	}
	if len(r.PrimaryKey) == 0 {
		v.Add("primaryKey", "at least one primary key column is required")
	}
	for i, c := range r.PrimaryKey {
		if strings.TrimSpace(c) == "" {
			v.Add(fmt.Sprintf("primaryKey[%d]", i), "column name is empty")
		}
	}

	switch r.Scope {
	case ScopeAll, "":
	case ScopeSelected:
		if len(r.SelectedKeys) == 0 {
			v.Add("selectedKeys", "selected scope requires at least one key")
		}
	default:
		v.Add("scope", fmt.Sprintf("unknown scope %q", r.Scope))
	}

	switch r.Content {
	case ContentData, ContentDataAndStructure, "":
	default:
		v.Add("content", fmt.Sprintf("unknown content %q", r.Content))
	}

	var te *core.ValidationError
	if err := r.Target.Validate(); errors.As(err, &te) {
		v.Merge("target", te)
	}
	return v.OrNil()
}
