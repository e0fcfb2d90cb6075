package engine

import (
	"fmt"
	"time"
)

// compareValues orders two column values of the same logical type. Integer
// widths are normalized because drivers differ in what they hand back
// (memory keeps uint64 counters, Postgres returns int64 for bigint).
func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case int, int64, uint64:
		x, y := toInt64(a), toInt64(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("engine: unsupported column type %T", a))
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		panic(fmt.Sprintf("engine: unsupported integer type %T", v))
	}
}

// scanCompare orders two tuples under the given column directions: negative
// means x scans before y.
func scanCompare(x, y []any, order []Column) int {
	for i, col := range order {
		c := compareValues(x[i], y[i])
		if c == 0 {
			continue
		}
		if col.Desc {
			return -c
		}
		return c
	}
	return 0
}

func tupleOf(row Row, order []Column) []any {
	t := make([]any, len(order))
	for i, col := range order {
		t[i] = row[col.Name]
	}
	return t
}
