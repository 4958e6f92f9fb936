package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"golang.org/x/text/unicode/norm"
)

// KeyOf extracts the primary-key tuple of row. It returns false when any key column is
// absent or NULL, because such a row cannot be matched.
func KeyOf(row core.Row, primaryKey []string) (core.Row, bool) {
	key := make(core.Row, len(primaryKey))
	for _, col := range primaryKey {
		v, ok := lookup(row, col)
		if !ok || v == nil {
			return nil, false
		}
		key[col] = v
	}
	return key, true
}

// CanonicalKey serializes a primary-key tuple so that equal keys produce equal strings
// regardless of column order, integer width, integer-as-text or Unicode normalization form.
// Columns are sorted by name and the tuple is JSON encoded.
func CanonicalKey(key core.Row) string {
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSON(&b, name)
		b.WriteByte(':')
		writeJSON(&b, keyValue(key[name]))
	}
	b.WriteByte('}')
	return b.String()
}

func writeJSON(b *strings.Builder, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// Unencodable values still need a stable, distinct key.
		data, _ = json.Marshal(fmt.Sprintf("%#v", v))
	}
	b.Write(data)
}

// keyValue maps a key value to the representation used in canonical keys.
func keyValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return textKey(x)
	case []byte:
		return textKey(string(x))
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case float32:
		return floatKey(float64(x))
	case float64:
		return floatKey(x)
	case bool:
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return floatKey(f)
		}
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	default:
		return v
	}
}

// textKey keys canonical integer text as the integer, matching Equal("1", 1). Only the
// exact decimal form converts, so distinct strings keep distinct keys.
func textKey(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return n
	}
	return norm.NFC.String(s)
}

// floatKey renders integral floats as integers so 1.0 and 1 share a key.
func floatKey(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	return f
}

// lookup finds a column by exact name first, then case-insensitively.
func lookup(row core.Row, col string) (any, bool) {
	if v, ok := row[col]; ok {
		return v, true
	}
	for name, v := range row {
		if strings.EqualFold(name, col) {
			return v, true
		}
	}
	return nil, false
}
