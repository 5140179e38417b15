// package repositories provides SQLite persistence for sync run history.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// Queryer is satisfied by both [sql.DB] and [sql.Tx].
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NextSequence increments and returns the counter kept in the table's "_sequence" companion.
//
// Sequence numbers give runs a short human-readable handle (run #42) next to their UUID. Pass a transaction
// to allocate the number together with the row that uses it.
func NextSequence(ctx context.Context, q Queryer, table string) (int, error) {
	sequenceTable := table + "_sequence"

	if _, err := q.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	return sequence, nil
}

// withTx runs fn in a transaction and commits when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
