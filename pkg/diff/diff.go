// Package diff compares two row sets by primary key.
//
// Rows are matched through a canonical serialization of their primary-key tuple, so the
// two sides may come from different engines that report the same key with different Go
// types. The output is sorted by that canonical key and is identical across runs on
// identical input.
package diff

import (
	"sort"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// Status classifies a matched or unmatched row pair.
type Status string

// Diff statuses.
const (
	StatusMatch      Status = "match"
	StatusDifferent  Status = "different"
	StatusSourceOnly Status = "source_only"
	StatusTargetOnly Status = "target_only"
)

// CellDiff is one column whose values differ between source and target.
type CellDiff struct {
	Column      string `json:"column"`
	SourceValue any    `json:"sourceValue"`
	TargetValue any    `json:"targetValue"`
}

// RowDiff is the comparison outcome for one primary-key tuple.
//
// Status is StatusDifferent exactly when CellDiffs is non-empty. PrimaryKey carries the
// target's key values when the row exists on both sides.
type RowDiff struct {
	Key        string     `json:"key"`
	PrimaryKey core.Row   `json:"primaryKey"`
	Status     Status     `json:"status"`
	CellDiffs  []CellDiff `json:"cellDiffs,omitempty"`
	SourceRow  core.Row   `json:"sourceRow,omitempty"`
	TargetRow  core.Row   `json:"targetRow,omitempty"`
}

// Options tunes Compute.
type Options struct {
	// IncludeRows attaches the raw source and target rows to every diff.
	// The sync executor needs source rows to build inserts.
	IncludeRows bool
}

// Summary counts diffs per status.
type Summary struct {
	Total      int `json:"total"`
	Match      int `json:"match"`
	Different  int `json:"different"`
	SourceOnly int `json:"sourceOnly"`
	TargetOnly int `json:"targetOnly"`

	// Skipped counts input rows that could not take part: rows missing a key column
	// and repeated keys after the first occurrence on a side.
	Skipped int `json:"skipped"`
}

// Report is the output of Compute.
type Report struct {
	Diffs   []RowDiff `json:"diffs"`
	Summary Summary   `json:"summary"`
}

type indexedRow struct {
	key core.Row
	row core.Row
}

// Compute diffs source against target.
//
// columns lists the columns to compare; key columns are never reported as cell diffs.
// With no primary-key columns rows cannot be matched and the report is empty.
func Compute(primaryKey, columns []string, source, target []core.Row, opts Options) Report {
	report := Report{Diffs: []RowDiff{}}
	if len(primaryKey) == 0 {
		return report
	}

	src, skippedSrc := index(source, primaryKey)
	tgt, skippedTgt := index(target, primaryKey)

	keys := make([]string, 0, len(src)+len(tgt))
	for k := range src {
		keys = append(keys, k)
	}
	for k := range tgt {
		if _, ok := src[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	compare := compareColumns(primaryKey, columns)
	for _, k := range keys {
		s, inSrc := src[k]
		t, inTgt := tgt[k]

		d := RowDiff{Key: k}
		switch {
		case inSrc && inTgt:
			d.PrimaryKey = t.key
			d.CellDiffs = cellDiffs(s.row, t.row, compare)
			if len(d.CellDiffs) > 0 {
				d.Status = StatusDifferent
			} else {
				d.Status = StatusMatch
			}
		case inSrc:
			d.PrimaryKey = s.key
			d.Status = StatusSourceOnly
		default:
			d.PrimaryKey = t.key
			d.Status = StatusTargetOnly
		}

		if opts.IncludeRows {
			if inSrc {
				d.SourceRow = s.row
			}
			if inTgt {
				d.TargetRow = t.row
			}
		}
		report.Diffs = append(report.Diffs, d)
	}

	report.Summary = Summarize(report.Diffs)
	report.Summary.Skipped = skippedSrc + skippedTgt
	return report
}

// index keys rows by canonical primary key. The first row wins on duplicate keys.
func index(rows []core.Row, primaryKey []string) (map[string]indexedRow, int) {
	out := make(map[string]indexedRow, len(rows))
	skipped := 0
	for _, row := range rows {
		key, ok := KeyOf(row, primaryKey)
		if !ok {
			skipped++
			continue
		}
		k := CanonicalKey(key)
		if _, dup := out[k]; dup {
			skipped++
			continue
		}
		out[k] = indexedRow{key: key, row: row}
	}
	return out, skipped
}

// compareColumns removes key columns and repeats from the comparison list.
func compareColumns(primaryKey, columns []string) []string {
	skip := make(map[string]bool, len(primaryKey)+len(columns))
	for _, c := range primaryKey {
		skip[c] = true
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if skip[c] {
			continue
		}
		skip[c] = true
		out = append(out, c)
	}
	return out
}

func cellDiffs(source, target core.Row, columns []string) []CellDiff {
	var out []CellDiff
	for _, col := range columns {
		sv, _ := lookup(source, col)
		tv, _ := lookup(target, col)
		if !Equal(sv, tv) {
			out = append(out, CellDiff{Column: col, SourceValue: sv, TargetValue: tv})
		}
	}
	return out
}

// Summarize counts diffs per status. Skipped is left at zero.
func Summarize(diffs []RowDiff) Summary {
	s := Summary{Total: len(diffs)}
	for _, d := range diffs {
		switch d.Status {
		case StatusMatch:
			s.Match++
		case StatusDifferent:
			s.Different++
		case StatusSourceOnly:
			s.SourceOnly++
		case StatusTargetOnly:
			s.TargetOnly++
		}
	}
	return s
}

// Swap exchanges the roles of source and target in a diff list.
func Swap(diffs []RowDiff) []RowDiff {
	out := make([]RowDiff, len(diffs))
	for i, d := range diffs {
		d.SourceRow, d.TargetRow = d.TargetRow, d.SourceRow
		switch d.Status {
		case StatusSourceOnly:
			d.Status = StatusTargetOnly
		case StatusTargetOnly:
			d.Status = StatusSourceOnly
		}
		if d.CellDiffs != nil {
			cells := make([]CellDiff, len(d.CellDiffs))
			for j, c := range d.CellDiffs {
				cells[j] = CellDiff{Column: c.Column, SourceValue: c.TargetValue, TargetValue: c.SourceValue}
			}
			d.CellDiffs = cells
		}
		out[i] = d
	}
	return out
}
