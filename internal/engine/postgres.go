package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres drives the engine contract on top of a relational schema that
// mirrors the wide-column layout: each table's primary key is the full
// (partition, clustering...) tuple, so row identity and sort position are the
// same thing. The driver never updates key columns; reordering a row stays a
// delete of the old tuple plus an insert of the new one.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema applies the given DDL statements. Statements are expected to
// be idempotent (CREATE TABLE IF NOT EXISTS).
func (p *Postgres) EnsureSchema(ctx context.Context, ddl ...string) error {
	for _, stmt := range ddl {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("engine: ensure schema: %w", err)
		}
	}
	return nil
}

// Ping reports connectivity, for readiness probes.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Write(ctx context.Context, tbl Table, row Row) error {
	cols := tbl.Columns
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}

	keyCols := append([]string{tbl.Partition}, clusteringNames(tbl)...)
	var conflict string
	if updates := nonKeyAssignments(tbl); len(updates) > 0 {
		conflict = fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(keyCols, ", "), strings.Join(updates, ", "))
	} else {
		conflict = fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(keyCols, ", "))
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		tbl.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "), conflict)
	if _, err := p.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("engine: write %s: %w", tbl.Name, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, tbl Table, key Key) error {
	conds := []string{fmt.Sprintf("%s = $1", tbl.Partition)}
	args := []any{key.Partition}
	for i, c := range tbl.Clustering {
		conds = append(conds, fmt.Sprintf("%s = $%d", c.Name, i+2))
		args = append(args, key.Clustering[i])
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE %s", tbl.Name, strings.Join(conds, " AND "))
	// RowsAffected is deliberately ignored: deleting an absent tuple is a no-op.
	if _, err := p.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("engine: delete %s: %w", tbl.Name, err)
	}
	return nil
}

func (p *Postgres) Read(ctx context.Context, tbl Table, partition any, opts ReadOptions) ([]Row, error) {
	order := tbl.effectiveOrder(opts.OrderBy)

	conds := []string{fmt.Sprintf("%s = $1", tbl.Partition)}
	args := []any{partition}

	for _, col := range sortedFilterColumns(opts.Filter) {
		args = append(args, opts.Filter[col])
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if opts.After != nil {
		clause, afterArgs := afterClause(order, opts.After, len(args))
		conds = append(conds, clause)
		args = append(args, afterArgs...)
	}

	orderExprs := make([]string, len(order))
	for i, col := range order {
		dir := "ASC"
		if col.Desc {
			dir = "DESC"
		}
		orderExprs[i] = col.Name + " " + dir
	}

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(tbl.Columns, ", "), tbl.Name,
		strings.Join(conds, " AND "), strings.Join(orderExprs, ", "))
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("engine: read %s: %w", tbl.Name, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("engine: read %s: %w", tbl.Name, err)
		}
		r := make(Row, len(tbl.Columns))
		for i, c := range tbl.Columns {
			r[c] = vals[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engine: read %s: %w", tbl.Name, err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context, tbl Table, partition any) (uint64, error) {
	q := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1", tbl.Name, tbl.Partition)
	var n int64
	if err := p.pool.QueryRow(ctx, q, partition).Scan(&n); err != nil {
		return 0, fmt.Errorf("engine: count %s: %w", tbl.Name, err)
	}
	return uint64(n), nil
}

// afterClause expands an exclusive resume tuple into SQL. A single row-value
// comparison only works when every column scans the same direction, so the
// mixed-direction case is expanded into the usual keyset OR chain:
//
//	(a < $1) OR (a = $1 AND b > $2) OR ...
func afterClause(order []Column, after []any, argOffset int) (string, []any) {
	var branches []string
	var args []any
	for i := range order {
		var parts []string
		for j := 0; j < i; j++ {
			parts = append(parts, fmt.Sprintf("%s = $%d", order[j].Name, argOffset+j+1))
		}
		op := ">"
		if order[i].Desc {
			op = "<"
		}
		parts = append(parts, fmt.Sprintf("%s %s $%d", order[i].Name, op, argOffset+i+1))
		branches = append(branches, "("+strings.Join(parts, " AND ")+")")
	}
	args = append(args, after...)
	return "(" + strings.Join(branches, " OR ") + ")", args
}

func clusteringNames(tbl Table) []string {
	names := make([]string, len(tbl.Clustering))
	for i, c := range tbl.Clustering {
		names[i] = c.Name
	}
	return names
}

func nonKeyAssignments(tbl Table) []string {
	key := map[string]bool{tbl.Partition: true}
	for _, c := range tbl.Clustering {
		key[c.Name] = true
	}
	var out []string
	for _, c := range tbl.Columns {
		if !key[c] {
			out = append(out, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	return out
}

func sortedFilterColumns(filter map[string]any) []string {
	cols := make([]string, 0, len(filter))
	for c := range filter {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
