// Package outbox implements the durable FIFO-by-priority delivery queue
// that backs every cloud-observable effect the hub produces. Rows are
// always inserted in the same transaction as the business write they
// describe, so no business fact exists without a corresponding push record
// and no orphan push record exists.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emberline/hubd/internal/store"
)

// Status is the lifecycle state of an outbox row.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSynced     Status = "SYNCED"
	StatusDeadLetter Status = "DEAD_LETTER"
)

// Priority bands, per the convention that sale and refund mutations must
// reach the cloud ahead of everything else.
const (
	PrioritySaleOrRefund = 10
	PriorityShiftOrCash  = 5
	PriorityDefault      = 0
)

const defaultMaxAttempts = 8

// Item is a single queued change.
type Item struct {
	ID            string
	EntityType    string
	EntityID      string
	Operation     string
	Payload       json.RawMessage
	Priority      int
	Status        Status
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewItem constructs an Item ready for Enqueue, defaulting MaxAttempts and
// NextAttemptAt to "eligible immediately".
func NewItem(entityType, entityID, operation string, payload json.RawMessage, priority int) Item {
	return Item{
		ID:            store.NewID(),
		EntityType:    entityType,
		EntityID:      entityID,
		Operation:     operation,
		Payload:       payload,
		Priority:      priority,
		Status:        StatusPending,
		MaxAttempts:   defaultMaxAttempts,
		NextAttemptAt: time.Now().UTC(),
	}
}

// Enqueue inserts item. It must be called on a transaction opened by the
// caller's business write so the two commit or roll back together.
func Enqueue(ctx context.Context, tx *sql.Tx, item Item) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_queue
			(id, entity_type, entity_id, operation, payload, priority, status, attempts, max_attempts, next_attempt_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`,
		item.ID, item.EntityType, item.EntityID, item.Operation, string(item.Payload),
		item.Priority, string(StatusPending), item.MaxAttempts, formatTime(item.NextAttemptAt),
	)
	if err != nil {
		return fmt.Errorf("enqueueing outbox item: %w", err)
	}
	return nil
}

// ClaimBatch selects up to limit eligible PENDING rows, ordered by priority
// descending then age ascending, and atomically transitions them to
// PROCESSING with an incremented attempt count. The select and the update
// happen in one transaction so two concurrent callers never claim the same
// row.
func ClaimBatch(ctx context.Context, s *store.Store, limit int) ([]Item, error) {
	var claimed []Item

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, entity_type, entity_id, operation, payload, priority, attempts, max_attempts, created_at
			FROM outbox_queue
			WHERE status = ? AND attempts < max_attempts
				AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
			ORDER BY priority DESC, created_at ASC
			LIMIT ?
		`, string(StatusPending), formatTime(time.Now().UTC()), limit)
		if err != nil {
			return fmt.Errorf("selecting claimable items: %w", err)
		}

		var ids []string
		for rows.Next() {
			var it Item
			var payload, createdAt string
			if err := rows.Scan(&it.ID, &it.EntityType, &it.EntityID, &it.Operation, &payload, &it.Priority, &it.Attempts, &it.MaxAttempts, &createdAt); err != nil {
				rows.Close()
				return fmt.Errorf("scanning claimable item: %w", err)
			}
			it.Payload = json.RawMessage(payload)
			it.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
			it.Status = StatusProcessing
			it.Attempts++
			claimed = append(claimed, it)
			ids = append(ids, it.ID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, id := range ids {
			_, err := tx.ExecContext(ctx, `
				UPDATE outbox_queue
				SET status = ?, attempts = attempts + 1, updated_at = ?
				WHERE id = ?
			`, string(StatusProcessing), formatTime(time.Now().UTC()), id)
			if err != nil {
				return fmt.Errorf("claiming item %s: %w", id, err)
			}
		}
		return nil
	})

	return claimed, err
}

// MarkSynced marks id as terminally delivered. note, if non-empty, is
// recorded as LastError for observability (e.g. "duplicate" on a 409).
func MarkSynced(ctx context.Context, s *store.Store, id, note string) error {
	_, err := s.DB().ExecContext(ctx, `
		UPDATE outbox_queue SET status = ?, last_error = NULLIF(?, ''), updated_at = ? WHERE id = ?
	`, string(StatusSynced), note, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("marking %s synced: %w", id, err)
	}
	return nil
}

// MarkDeadLetter marks id as non-retriable, recording reason.
func MarkDeadLetter(ctx context.Context, s *store.Store, id, reason string) error {
	_, err := s.DB().ExecContext(ctx, `
		UPDATE outbox_queue SET status = ?, last_error = ?, updated_at = ? WHERE id = ?
	`, string(StatusDeadLetter), reason, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("dead-lettering %s: %w", id, err)
	}
	return nil
}

// MarkPendingAgain returns id to PENDING so a later tick retries it, setting
// nextAttemptAt to pace the retry and recording reason.
func MarkPendingAgain(ctx context.Context, s *store.Store, id, reason string, nextAttemptAt time.Time) error {
	_, err := s.DB().ExecContext(ctx, `
		UPDATE outbox_queue SET status = ?, last_error = ?, next_attempt_at = ?, updated_at = ? WHERE id = ?
	`, string(StatusPending), reason, formatTime(nextAttemptAt), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("returning %s to pending: %w", id, err)
	}
	return nil
}

// StatusCount is one row of Stats' grouping.
type StatusCount struct {
	Status Status
	Count  int
}

// Stats groups outbox rows by status for observability.
func Stats(ctx context.Context, s *store.Store) ([]StatusCount, error) {
	rows, err := s.DB().QueryContext(ctx, `SELECT status, count(*) FROM outbox_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying outbox stats: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		var status string
		if err := rows.Scan(&status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scanning outbox stats: %w", err)
		}
		sc.Status = Status(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// OldestPendingAge returns the age of the oldest PENDING row, or zero if
// none are pending.
func OldestPendingAge(ctx context.Context, s *store.Store) (time.Duration, error) {
	var createdAt sql.NullString
	err := s.DB().QueryRowContext(ctx, `
		SELECT min(created_at) FROM outbox_queue WHERE status = ?
	`, string(StatusPending)).Scan(&createdAt)
	if err != nil {
		return 0, fmt.Errorf("querying oldest pending age: %w", err)
	}
	if !createdAt.Valid {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt.String)
	if err != nil {
		return 0, fmt.Errorf("parsing oldest pending timestamp: %w", err)
	}
	return time.Since(t), nil
}

// RetryDeadLetters resets matching DEAD_LETTER rows back to PENDING with a
// clean attempt counter. If entityType is empty, every dead letter is reset.
func RetryDeadLetters(ctx context.Context, s *store.Store, entityType string) (int64, error) {
	var res sql.Result
	var err error
	now := formatTime(time.Now().UTC())
	if entityType == "" {
		res, err = s.DB().ExecContext(ctx, `
			UPDATE outbox_queue SET status = ?, attempts = 0, next_attempt_at = ?, updated_at = ? WHERE status = ?
		`, string(StatusPending), now, now, string(StatusDeadLetter))
	} else {
		res, err = s.DB().ExecContext(ctx, `
			UPDATE outbox_queue SET status = ?, attempts = 0, next_attempt_at = ?, updated_at = ? WHERE status = ? AND entity_type = ?
		`, string(StatusPending), now, now, string(StatusDeadLetter), entityType)
	}
	if err != nil {
		return 0, fmt.Errorf("retrying dead letters: %w", err)
	}
	return res.RowsAffected()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
