package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// StagedColumn is one column of a staged merge. Rows are COPYed as Type into
// a temp table; Expr, when set, converts the staged value on its way into the
// target and must contain a single %s for the staged column reference.
type StagedColumn struct {
	Name string
	Type string
	Expr string
}

// MergeConfig describes a staged COPY followed by an upsert into Table.
type MergeConfig struct {
	Table   string
	Columns []StagedColumn
	Key     string // unique column matched on conflict
}

// StageAndMerge COPYs rows into a temp table built from cfg.Columns, then
// inserts them into cfg.Table converting each column through its Expr. Rows
// whose key already exists are overwritten. Everything runs in one
// transaction; the staging table is dropped on commit.
func StageAndMerge(ctx context.Context, pool Pool, cfg MergeConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: merge: no columns")
	}
	if cfg.Key == "" {
		return 0, eris.New("db: merge: no key column")
	}
	names := make([]string, len(cfg.Columns))
	for i, c := range cfg.Columns {
		if c.Type == "" {
			return 0, eris.Errorf("db: merge: column %q has no type", c.Name)
		}
		names[i] = c.Name
	}
	if !slices.Contains(names, cfg.Key) {
		return 0, eris.Errorf("db: merge: key %q is not a column", cfg.Key)
	}
	for i, r := range rows {
		if len(r) != len(names) {
			return 0, eris.Errorf("db: merge: row %d has %d values, want %d", i, len(r), len(names))
		}
	}

	stage := stagingTable(cfg.Table)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: merge: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, stagingDDL(stage, cfg.Columns)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: create staging table for %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, names, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: COPY into staging table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, mergeSQL(cfg, stage))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge: insert into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: merge: commit tx")
	}
	return tag.RowsAffected(), nil
}

func stagingTable(table string) string {
	return "_stage_" + strings.ReplaceAll(table, ".", "_")
}

func stagingDDL(stage string, cols []StagedColumn) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + c.Type
	}
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP",
		pgx.Identifier{stage}.Sanitize(), strings.Join(defs, ", "))
}

func mergeSQL(cfg MergeConfig, stage string) string {
	var (
		targets []string
		selects []string
		updates []string
	)
	for _, c := range cfg.Columns {
		col := pgx.Identifier{c.Name}.Sanitize()
		targets = append(targets, col)
		if c.Expr != "" {
			selects = append(selects, fmt.Sprintf(c.Expr, "s."+col))
		} else {
			selects = append(selects, "s."+col)
		}
		if c.Name != cfg.Key {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
	}

	action := "DO NOTHING"
	if len(updates) > 0 {
		action = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table),
		strings.Join(targets, ", "),
		strings.Join(selects, ", "),
		pgx.Identifier{stage}.Sanitize(),
		pgx.Identifier{cfg.Key}.Sanitize(),
		action,
	)
}

// sanitizeTable quotes a plain or schema-qualified table name.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}
