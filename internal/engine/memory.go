package engine

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Engine: the development backend and the substitute
// the store tests run against. Partitions are kept sorted by the table's
// clustering comparator so reads walk rows in physical order, like the real
// engine would.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[any][]Row
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]map[any][]Row)}
}

func (m *Memory) Write(_ context.Context, tbl Table, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := m.tables[tbl.Name]
	if parts == nil {
		parts = make(map[any][]Row)
		m.tables[tbl.Name] = parts
	}

	stored := cloneRow(row)
	pk := row[tbl.Partition]
	tuple := tupleOf(row, tbl.Clustering)

	rows := parts[pk]
	idx := sort.Search(len(rows), func(i int) bool {
		return scanCompare(tupleOf(rows[i], tbl.Clustering), tuple, tbl.Clustering) >= 0
	})
	if idx < len(rows) && scanCompare(tupleOf(rows[idx], tbl.Clustering), tuple, tbl.Clustering) == 0 {
		rows[idx] = stored
	} else {
		rows = append(rows, nil)
		copy(rows[idx+1:], rows[idx:])
		rows[idx] = stored
	}
	parts[pk] = rows
	return nil
}

func (m *Memory) Delete(_ context.Context, tbl Table, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[tbl.Name][key.Partition]
	idx := sort.Search(len(rows), func(i int) bool {
		return scanCompare(tupleOf(rows[i], tbl.Clustering), key.Clustering, tbl.Clustering) >= 0
	})
	if idx >= len(rows) || scanCompare(tupleOf(rows[idx], tbl.Clustering), key.Clustering, tbl.Clustering) != 0 {
		// absent row: no-op by contract
		return nil
	}
	m.tables[tbl.Name][key.Partition] = append(rows[:idx], rows[idx+1:]...)
	return nil
}

func (m *Memory) Read(_ context.Context, tbl Table, partition any, opts ReadOptions) ([]Row, error) {
	m.mu.RLock()
	rows := m.tables[tbl.Name][partition]
	snapshot := make([]Row, len(rows))
	copy(snapshot, rows)
	m.mu.RUnlock()

	order := tbl.effectiveOrder(opts.OrderBy)
	if !sameOrder(order, tbl.Clustering) {
		sort.SliceStable(snapshot, func(i, j int) bool {
			return scanCompare(tupleOf(snapshot[i], order), tupleOf(snapshot[j], order), order) < 0
		})
	}

	out := make([]Row, 0, opts.Limit)
	for _, r := range snapshot {
		if opts.After != nil && scanCompare(tupleOf(r, order), opts.After, order) <= 0 {
			continue
		}
		if !matchesFilter(r, opts.Filter) {
			continue
		}
		out = append(out, cloneRow(r))
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Count(_ context.Context, tbl Table, partition any) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.tables[tbl.Name][partition])), nil
}

func matchesFilter(r Row, filter map[string]any) bool {
	for col, want := range filter {
		if compareValues(r[col], want) != 0 {
			return false
		}
	}
	return true
}

func cloneRow(r Row) Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
