// Package engine defines the sorted-wide-column storage contract the comment
// stores are built on. Rows live inside partitions; within a partition the
// table's declared clustering columns fix the physical order. There is no
// in-place key mutation: a row is addressed only by its full key tuple, and
// reordering a row means deleting the old tuple and writing a new one.
package engine

import "context"

// Column names a clustering or ordering column and its scan direction.
type Column struct {
	Name string
	Desc bool
}

// Table declares a wide-column table: one partition key column, the ordered
// clustering columns, and the full column list.
type Table struct {
	Name       string
	Partition  string
	Clustering []Column
	Columns    []string
}

// Row maps column name to value. Supported value types are string, int,
// int64, uint64 and time.Time.
type Row map[string]any

// Key addresses exactly one row: the partition value plus the clustering
// values in declared order.
type Key struct {
	Partition  any
	Clustering []any
}

// ReadOptions bounds a partition scan.
type ReadOptions struct {
	// OrderBy overrides the table's clustering order. Engines that only
	// store the declared physical order serve an override by sorting the
	// partition before paging it.
	OrderBy []Column
	// After is the exclusive resume tuple, aligned with the effective order
	// columns. Nil starts at the top of the scan.
	After []any
	// Limit caps returned rows; <= 0 means unbounded.
	Limit int
	// Filter keeps only rows whose named columns equal the given values.
	// Filtering on a column that is not a clustering prefix degrades the
	// read to a partition walk.
	Filter map[string]any
}

type Engine interface {
	// Write inserts the row, replacing any row carrying the same full key tuple.
	Write(ctx context.Context, tbl Table, row Row) error
	// Delete removes the row with exactly this key tuple; an absent row is a no-op.
	Delete(ctx context.Context, tbl Table, key Key) error
	// Read scans one partition in the effective order.
	Read(ctx context.Context, tbl Table, partition any, opts ReadOptions) ([]Row, error)
	// Count scans the whole partition. Expensive, and only eventually
	// consistent with concurrent writes.
	Count(ctx context.Context, tbl Table, partition any) (uint64, error)
}

// KeyOf extracts the row's full key under the table's declared clustering.
func (t Table) KeyOf(row Row) Key {
	vals := make([]any, len(t.Clustering))
	for i, c := range t.Clustering {
		vals[i] = row[c.Name]
	}
	return Key{Partition: row[t.Partition], Clustering: vals}
}

func (t Table) effectiveOrder(order []Column) []Column {
	if len(order) == 0 {
		return t.Clustering
	}
	return order
}

func sameOrder(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
