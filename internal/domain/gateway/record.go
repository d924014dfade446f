package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a single row keyed by field name. Values are the Go types a
// backend naturally produces: string, integer kinds, decimal.Decimal,
// time.Time, []byte or nil for NULL.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the field is present and not NULL.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// String returns the field as a string. Missing and NULL fields yield "".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Bytes returns the field as raw bytes, used for JSON documents.
func (r Record) Bytes(field string) []byte {
	switch v := r[field].(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprint(v))
	}
}

// Int returns the field as an int.
func (r Record) Int(field string) (int, error) {
	switch v := r[field].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case decimal.Decimal:
		return int(v.IntPart()), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", field, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("field %s: unexpected type %T", field, v)
	}
}

// Decimal returns the field as a decimal.
func (r Record) Decimal(field string) (decimal.Decimal, error) {
	switch v := r[field].(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %s: %w", field, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %s: unexpected type %T", field, v)
	}
}

// Time returns the field as a time. Missing fields yield the zero time.
func (r Record) Time(field string) (time.Time, error) {
	switch v := r[field].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %s: %w", field, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("field %s: unexpected type %T", field, v)
	}
}

// Equal compares two field values the way a database equality predicate
// would: numbers compare by value regardless of their Go type.
func Equal(a, b any) bool {
	da, aNum := numeric(a)
	db, bNum := numeric(b)
	if aNum && bNum {
		return da.Equal(db)
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Compare orders two field values: NULL first, then numbers by value, times
// chronologically and everything else by its string form.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	da, aNum := numeric(a)
	db, bNum := numeric(b)
	if aNum && bNum {
		return da.Cmp(db)
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func numeric(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case decimal.Decimal:
		return n, true
	default:
		return decimal.Zero, false
	}
}
