package store

import (
	"context"
	"fmt"
	"strings"
)

// Introspection helpers for spec validation. The reconciler decides
// whether an existing store matches a StoreSpec; these expose the raw
// facts (tables, columns, seed rows) without any policy.

// TableNames returns user table names in creation order, which for a
// store built by Initialize is the spec's declaration order.
func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query table names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}

	if names == nil {
		names = []string{}
	}

	return names, nil
}

// TableColumns returns the column names of a table in definition order.
// Returns an empty slice for a missing table (pragma_table_info yields no
// rows), so callers distinguish "no table" via TableNames.
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM pragma_table_info(?) ORDER BY cid", table,
	)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}

	if names == nil {
		names = []string{}
	}

	return names, nil
}

// HasRow reports whether a row with the given column values exists.
// Used to check seed-row presence; identifiers come from the spec and are
// quoted, values are bound.
func (s *Store) HasRow(ctx context.Context, table string, columns, values []string) (bool, error) {
	if len(columns) != len(values) {
		return false, fmt.Errorf("has row: %d columns, %d values", len(columns), len(values))
	}

	conds := make([]string, len(columns))
	args := make([]any, len(values))
	for i, c := range columns {
		conds[i] = quoteIdent(c) + " = ?"
		args[i] = values[i]
	}

	query := "SELECT COUNT(*) FROM " + quoteIdent(table) +
		" WHERE " + strings.Join(conds, " AND ")

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("has row in %s: %w", table, err)
	}
	return count > 0, nil
}

// RowCount returns the number of rows in a table.
func (s *Store) RowCount(ctx context.Context, table string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM " + quoteIdent(table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return count, nil
}

// UserVersion returns the store's schema version pragma.
func (s *Store) UserVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}
