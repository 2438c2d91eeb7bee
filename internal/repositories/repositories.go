// package repositories provides persistence layer implementations for sync history.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// Queryer is satisfied by both [sql.DB] and [sql.Tx].
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var tableName = regexp.MustCompile(`^[a-z_]+$`)

// NextSequence increments and returns the sequence counter of table.
//
// Call it inside the transaction that inserts the row so a rolled back insert does not consume a number.
func NextSequence(ctx context.Context, q Queryer, table string) (int, error) {
	if !tableName.MatchString(table) {
		return 0, fmt.Errorf("invalid sequence table %q", table)
	}

	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := q.QueryRowContext(ctx, query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
