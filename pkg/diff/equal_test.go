package diff

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs zero", nil, 0, false},
		{"zero vs nil", "", nil, false},

		{"int widths", int32(1), int64(1), true},
		{"int vs float", int64(1), 1.0, true},
		{"uint vs int", uint8(200), 200, true},
		{"float vs float", 0.1, 0.1, true},
		{"different numbers", 1, 2, false},
		{"big ints", uint64(math.MaxUint64), uint64(math.MaxUint64), true},
		{"big ints differ", uint64(math.MaxUint64), int64(math.MaxInt64), false},

		{"number vs decimal text", int64(10), "10", true},
		{"decimal text with scale", int64(10), "10.00", true},
		{"float vs decimal text", 10.5, "10.50", true},
		{"bytes decimal vs float", []byte("19.99"), 19.99, true},
		{"number vs non-numeric text", 1, "one", false},
		{"decimal texts compare as text", "10.50", "10.5", false},

		{"bool vs bool", true, true, true},
		{"bool vs tinyint", true, int64(1), true},
		{"false vs zero", false, int8(0), true},
		{"bool mismatch", true, false, false},

		{"strings", "a", "a", true},
		{"strings differ", "a", "A", false},
		{"bytes vs string", []byte("hello"), "hello", true},
		{"nfc vs nfd", "caf\u00e9", "cafe\u0301", true},

		{"times", ts, ts.In(time.FixedZone("x", 3600)), true},
		{"time vs rfc3339", ts, "2024-03-01T12:30:00Z", true},
		{"time vs sql datetime", ts, "2024-03-01 12:30:00", true},
		{"date vs date text", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01", true},
		{"time vs other time", ts, ts.Add(time.Second), false},
		{"time vs garbage", ts, "yesterday", false},

		{"maps", map[string]any{"a": 1, "b": []any{"x"}}, map[string]any{"b": []any{"x"}, "a": 1.0}, true},
		{"maps differ", map[string]any{"a": 1}, map[string]any{"a": 2}, false},
		{"maps missing key", map[string]any{"a": 1}, map[string]any{"b": 1}, false},
		{"map key types differ", map[string]any{"a": 1}, map[any]any{"a": 1}, false},
		{"slices", []any{1, "x"}, []any{int64(1), "x"}, true},
		{"slice lengths", []any{1}, []any{1, 2}, false},
		{"string vs slice", "[1]", []any{1}, false},
		{"json text is not parsed", `{"a":1}`, map[string]any{"a": 1}, false},
		{"string slices", []string{"a"}, []string{"a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "equality is symmetric")
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name string
		a, b core.Row
		same bool
	}{
		{"column order", core.Row{"a": 1, "b": "x"}, core.Row{"b": "x", "a": 1}, true},
		{"integer widths", core.Row{"id": int16(5)}, core.Row{"id": uint64(5)}, true},
		{"integral float", core.Row{"id": 5.0}, core.Row{"id": int64(5)}, true},
		{"decoded json number", core.Row{"id": json.Number("5")}, core.Row{"id": int64(5)}, true},
		{"fractional float", core.Row{"id": 5.5}, core.Row{"id": int64(5)}, false},
		{"bytes vs string", core.Row{"id": []byte("k")}, core.Row{"id": "k"}, true},
		{"unicode form", core.Row{"name": "caf\u00e9"}, core.Row{"name": "cafe\u0301"}, true},
		{"integer vs integer text", core.Row{"id": int64(1)}, core.Row{"id": "1"}, true},
		{"integer vs integer bytes", core.Row{"id": int64(-12)}, core.Row{"id": []byte("-12")}, true},
		{"padded text stays text", core.Row{"id": 7}, core.Row{"id": "007"}, false},
		{"decimal text stays text", core.Row{"id": 1}, core.Row{"id": "1.0"}, false},
		{"distinct texts stay distinct", core.Row{"id": "1"}, core.Row{"id": "01"}, false},
		{"time zones", core.Row{"at": time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}, core.Row{"at": time.Date(2024, 1, 1, 11, 0, 0, 0, time.FixedZone("x", 3600))}, true},
		{"different columns", core.Row{"a": 1}, core.Row{"b": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, CanonicalKey(tt.a) == CanonicalKey(tt.b))
		})
	}

	assert.Equal(t, `{"a":1,"b":"x"}`, CanonicalKey(core.Row{"b": "x", "a": 1}))
}

func TestKeyOf(t *testing.T) {
	key, ok := KeyOf(core.Row{"ID": 1, "Tenant": "a", "v": 2}, []string{"id", "tenant"})
	assert.True(t, ok)
	assert.Equal(t, core.Row{"id": 1, "tenant": "a"}, key)

	_, ok = KeyOf(core.Row{"id": 1}, []string{"id", "tenant"})
	assert.False(t, ok)

	_, ok = KeyOf(core.Row{"id": nil}, []string{"id"})
	assert.False(t, ok)
}
