package diff

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Scenario(t *testing.T) {
	report := Compute(
		[]string{"id"},
		[]string{"id", "name"},
		[]core.Row{{"id": 1, "name": "A"}},
		[]core.Row{{"id": 1, "name": "B"}},
		Options{},
	)

	require.Len(t, report.Diffs, 1)
	d := report.Diffs[0]
	assert.Equal(t, StatusDifferent, d.Status)
	assert.Equal(t, core.Row{"id": 1}, d.PrimaryKey)
	assert.Equal(t, []CellDiff{{Column: "name", SourceValue: "A", TargetValue: "B"}}, d.CellDiffs)
	assert.Nil(t, d.SourceRow)
	assert.Nil(t, d.TargetRow)
}

func TestCompute_Statuses(t *testing.T) {
	source := []core.Row{
		{"id": int64(1), "name": "same", "qty": int64(5)},
		{"id": int64(2), "name": "changed", "qty": int64(5)},
		{"id": int64(3), "name": "only in source", "qty": nil},
	}
	target := []core.Row{
		{"id": int32(1), "name": "same", "qty": 5.0},
		{"id": 2.0, "name": "changed!", "qty": int64(6)},
		{"id": int64(4), "name": "only in target", "qty": nil},
	}

	report := Compute([]string{"id"}, []string{"name", "qty"}, source, target, Options{IncludeRows: true})

	require.Len(t, report.Diffs, 4)
	byKey := map[string]RowDiff{}
	for _, d := range report.Diffs {
		byKey[d.Key] = d
	}

	assert.Equal(t, StatusMatch, byKey[`{"id":1}`].Status)
	assert.Empty(t, byKey[`{"id":1}`].CellDiffs)

	changed := byKey[`{"id":2}`]
	assert.Equal(t, StatusDifferent, changed.Status)
	assert.Equal(t, []CellDiff{
		{Column: "name", SourceValue: "changed", TargetValue: "changed!"},
		{Column: "qty", SourceValue: int64(5), TargetValue: int64(6)},
	}, changed.CellDiffs)
	assert.Equal(t, source[1], changed.SourceRow)
	assert.Equal(t, target[1], changed.TargetRow)

	srcOnly := byKey[`{"id":3}`]
	assert.Equal(t, StatusSourceOnly, srcOnly.Status)
	assert.Equal(t, source[2], srcOnly.SourceRow)
	assert.Nil(t, srcOnly.TargetRow)

	tgtOnly := byKey[`{"id":4}`]
	assert.Equal(t, StatusTargetOnly, tgtOnly.Status)
	assert.Equal(t, core.Row{"id": int64(4)}, tgtOnly.PrimaryKey)
	assert.Nil(t, tgtOnly.SourceRow)

	assert.Equal(t, Summary{Total: 4, Match: 1, Different: 1, SourceOnly: 1, TargetOnly: 1}, report.Summary)
}

func TestCompute_TextKeysMatchIntegerKeys(t *testing.T) {
	// MySQL's text protocol can deliver an INT key as text while Postgres and SQLite
	// deliver int64.
	source := []core.Row{{"id": "1", "name": "Ann"}, {"id": "2", "name": "Bob"}}
	target := []core.Row{{"id": int64(1), "name": "Ann"}, {"id": int64(2), "name": "Robert"}}

	report := Compute([]string{"id"}, []string{"name"}, source, target, Options{})

	require.Len(t, report.Diffs, 2)
	assert.Equal(t, `{"id":1}`, report.Diffs[0].Key)
	assert.Equal(t, StatusMatch, report.Diffs[0].Status)
	assert.Equal(t, StatusDifferent, report.Diffs[1].Status)
	assert.Equal(t, core.Row{"id": int64(2)}, report.Diffs[1].PrimaryKey, "updates address the target's key")
	assert.Equal(t, Summary{Total: 2, Match: 1, Different: 1}, report.Summary)
}

func TestCompute_CompositeKeyOrderIrrelevant(t *testing.T) {
	source := []core.Row{{"tenant": "acme", "id": 7, "v": "x"}}
	target := []core.Row{{"id": int64(7), "tenant": "acme", "v": "x"}}

	a := Compute([]string{"tenant", "id"}, []string{"v"}, source, target, Options{})
	b := Compute([]string{"id", "tenant"}, []string{"v"}, source, target, Options{})

	require.Len(t, a.Diffs, 1)
	assert.Equal(t, StatusMatch, a.Diffs[0].Status)
	assert.Equal(t, `{"id":7,"tenant":"acme"}`, a.Diffs[0].Key)
	assert.Equal(t, a.Diffs[0].Key, b.Diffs[0].Key)
}

func TestCompute_SkipsUnmatchableRows(t *testing.T) {
	source := []core.Row{
		{"id": 1, "v": "a"},
		{"v": "no key"},
		{"id": nil, "v": "null key"},
		{"id": 1, "v": "duplicate"},
	}
	target := []core.Row{{"ID": 1, "V": "a"}}

	report := Compute([]string{"id"}, []string{"v"}, source, target, Options{})

	require.Len(t, report.Diffs, 1)
	assert.Equal(t, StatusMatch, report.Diffs[0].Status, "first occurrence wins and column names match case-insensitively")
	assert.Equal(t, 3, report.Summary.Skipped)
}

func TestCompute_NoPrimaryKey(t *testing.T) {
	report := Compute(nil, []string{"v"}, []core.Row{{"v": 1}}, []core.Row{{"v": 2}}, Options{})
	assert.Empty(t, report.Diffs)
	assert.NotNil(t, report.Diffs)
	assert.Equal(t, Summary{}, report.Summary)
}

func TestCompute_KeyColumnsAreNotCompared(t *testing.T) {
	report := Compute([]string{"id"}, []string{"id", "v", "v"},
		[]core.Row{{"id": "1", "v": 1}},
		[]core.Row{{"id": "1", "v": 2}},
		Options{})

	require.Len(t, report.Diffs, 1)
	assert.Equal(t, []CellDiff{{Column: "v", SourceValue: 1, TargetValue: 2}}, report.Diffs[0].CellDiffs)
}

func TestCompute_SortedAndDeterministic(t *testing.T) {
	source := []core.Row{{"id": "c"}, {"id": "a"}, {"id": "b"}}
	target := []core.Row{{"id": "d"}, {"id": "a"}}

	first := Compute([]string{"id"}, nil, source, target, Options{})
	for range 10 {
		assert.Equal(t, first, Compute([]string{"id"}, nil, source, target, Options{}))
	}

	var keys []string
	for _, d := range first.Diffs {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{`{"id":"a"}`, `{"id":"b"}`, `{"id":"c"}`, `{"id":"d"}`}, keys)
}

// randomRows builds rows with ids drawn from a small range so the sides overlap.
func randomRows(r *rand.Rand, n int) []core.Row {
	rows := make([]core.Row, 0, n)
	seen := map[int]bool{}
	for len(rows) < n {
		id := r.Intn(n * 2)
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, core.Row{"id": id, "v": r.Intn(3), "w": fmt.Sprintf("w%d", r.Intn(2))})
	}
	return rows
}

func TestCompute_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	pk := []string{"id"}
	cols := []string{"v", "w"}

	for i := range 50 {
		source := randomRows(r, 1+r.Intn(20))
		target := randomRows(r, 1+r.Intn(20))

		forward := Compute(pk, cols, source, target, Options{IncludeRows: true})
		backward := Compute(pk, cols, target, source, Options{IncludeRows: true})

		union := map[any]bool{}
		for _, row := range source {
			union[row["id"]] = true
		}
		for _, row := range target {
			union[row["id"]] = true
		}
		require.Len(t, forward.Diffs, len(union), "iteration %d: one diff per key in the union", i)

		for _, d := range forward.Diffs {
			assert.Contains(t, []Status{StatusMatch, StatusDifferent, StatusSourceOnly, StatusTargetOnly}, d.Status)
			assert.Equal(t, d.Status == StatusDifferent, len(d.CellDiffs) > 0)
		}

		assert.Equal(t, backward.Diffs, Swap(forward.Diffs), "iteration %d: swapping inputs mirrors the diff", i)
	}
}

func TestSwap(t *testing.T) {
	diffs := []RowDiff{
		{Key: "a", Status: StatusMatch},
		{Key: "b", Status: StatusSourceOnly, SourceRow: core.Row{"id": 1}},
		{Key: "c", Status: StatusTargetOnly},
		{Key: "d", Status: StatusDifferent, CellDiffs: []CellDiff{{Column: "v", SourceValue: 1, TargetValue: 2}}},
	}

	swapped := Swap(diffs)

	assert.Equal(t, StatusMatch, swapped[0].Status)
	assert.Equal(t, StatusTargetOnly, swapped[1].Status)
	assert.Equal(t, core.Row{"id": 1}, swapped[1].TargetRow)
	assert.Nil(t, swapped[1].SourceRow)
	assert.Equal(t, StatusSourceOnly, swapped[2].Status)
	assert.Equal(t, []CellDiff{{Column: "v", SourceValue: 2, TargetValue: 1}}, swapped[3].CellDiffs)

	assert.Equal(t, StatusSourceOnly, diffs[1].Status, "input is not modified")
	assert.Equal(t, 1, diffs[3].CellDiffs[0].SourceValue)
	assert.Equal(t, diffs, Swap(swapped))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]RowDiff{
		{Status: StatusMatch}, {Status: StatusMatch}, {Status: StatusDifferent}, {Status: StatusTargetOnly},
	})
	assert.Equal(t, Summary{Total: 4, Match: 2, Different: 1, TargetOnly: 1}, s)
}
