package diff

import (
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// timeLayouts are tried when a date value arrives as text on one side.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Equal compares two cell values by meaning rather than representation.
//
// NULL equals only NULL. Integers and floats of any width compare by value, and a
// number compares equal to a numeric string of the same value. time.Time values use
// time.Equal, also against a parseable date string. []byte and string compare by
// content after NFC normalization. Maps and slices compare element-wise.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if s, ok := a.([]byte); ok {
		a = string(s)
	}
	if s, ok := b.([]byte); ok {
		b = string(s)
	}

	if ta, ok := a.(time.Time); ok {
		return equalTime(ta, b)
	}
	if tb, ok := b.(time.Time); ok {
		return equalTime(tb, a)
	}

	na, aNum := number(a)
	nb, bNum := number(b)
	switch {
	case aNum && bNum:
		return na.equal(nb)
	case aNum:
		return equalNumberText(na, b)
	case bNum:
		return equalNumberText(nb, a)
	}

	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return sa == sb || norm.NFC.String(sa) == norm.NFC.String(sb)
		}
		return false
	}

	return equalStructural(a, b)
}

func equalTime(t time.Time, other any) bool {
	switch o := other.(type) {
	case time.Time:
		return t.Equal(o)
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(o)); err == nil {
				return t.Equal(parsed)
			}
		}
	}
	return false
}

// num is a numeric cell value. Floats compare as float64; everything else exactly.
type num struct {
	isFloat bool
	f       float64
	r       *big.Rat
}

func (n num) equal(o num) bool {
	if n.isFloat || o.isFloat {
		return n.float() == o.float()
	}
	return n.r.Cmp(o.r) == 0
}

func (n num) float() float64 {
	if n.isFloat {
		return n.f
	}
	f, _ := n.r.Float64()
	return f
}

// number converts Go numeric kinds and booleans to num.
func number(v any) (num, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return num{r: big.NewRat(1, 1)}, true
		}
		return num{r: new(big.Rat)}, true
	case float32:
		return num{isFloat: true, f: float64(x)}, true
	case float64:
		return num{isFloat: true, f: x}, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return num{r: new(big.Rat).SetInt64(rv.Int())}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return num{r: new(big.Rat).SetUint64(rv.Uint())}, true
	default:
		return num{}, false
	}
}

// equalNumberText compares a number with a value that may be its decimal text.
func equalNumberText(n num, other any) bool {
	s, ok := other.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	if n.isFloat {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return false
		}
		return n.f == f || (math.IsNaN(n.f) && math.IsNaN(f))
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return false
	}
	return n.r.Cmp(r) == 0
}

func equalStructural(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case ra.Kind() == reflect.Map && rb.Kind() == reflect.Map:
		if ra.Type().Key() != rb.Type().Key() || ra.Len() != rb.Len() {
			return false
		}
		iter := ra.MapRange()
		for iter.Next() {
			other := rb.MapIndex(iter.Key())
			if !other.IsValid() || !Equal(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	case isList(ra) && isList(rb):
		if ra.Len() != rb.Len() {
			return false
		}
		for i := 0; i < ra.Len(); i++ {
			if !Equal(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func isList(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}
