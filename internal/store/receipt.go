package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// NextReceiptNumber atomically increments the per-day OrderSequence counter
// and returns a formatted receipt number "YYYYMMDD-NNNN". It must be called
// with an open transaction so the increment and the caller's business write
// commit together.
func NextReceiptNumber(ctx context.Context, tx *sql.Tx, day time.Time) (string, error) {
	dateKey := day.Format("20060102")

	var current int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO order_sequences (date_key, current_value)
		VALUES (?, 1)
		ON CONFLICT(date_key) DO UPDATE SET current_value = current_value + 1
		RETURNING current_value
	`, dateKey).Scan(&current)
	if err != nil {
		return "", fmt.Errorf("incrementing order sequence: %w", err)
	}

	return fmt.Sprintf("%s-%04d", dateKey, current), nil
}
