// Package pull runs the periodic worker that mirrors cloud reference and
// lookup data into the local store.
package pull

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/emberline/hubd/internal/cloudclient"
	"github.com/emberline/hubd/internal/store"
	"github.com/emberline/hubd/internal/telemetry"
)

const defaultInterval = 60 * time.Second

// Engine periodically pulls every entity in Plan() from the cloud and
// applies it to the local store.
type Engine struct {
	store    *store.Store
	cloud    *cloudclient.Client
	logger   *slog.Logger
	interval time.Duration
	running  atomic.Bool
}

// New creates a pull engine. interval defaults to 60s when zero.
func New(s *store.Store, cloud *cloudclient.Client, logger *slog.Logger, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Engine{store: s, cloud: cloud, logger: logger, interval: interval}
}

// Run blocks, ticking every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("pull engine started", "interval", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("pull engine stopped")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Debug("pull tick skipped, previous cycle still running")
		return
	}
	defer e.running.Store(false)

	if !e.cloud.IsConfigured() {
		return
	}

	total := e.RunCycle(ctx)
	e.logger.Info("pull cycle completed", "records_pulled", total)
}

// RunCycle pulls every entity in Plan() order and returns the total number
// of records applied across the cycle. It is exported so the sync-admin
// HTTP surface can trigger an out-of-band pull on demand.
func (e *Engine) RunCycle(ctx context.Context) int {
	total := 0
	for _, spec := range Plan() {
		n, err := e.pullEntity(ctx, spec)
		if err != nil {
			e.logger.Error("pull entity failed", "entity_type", spec.EntityType, "error", err)
			telemetry.PullCycleErrors.WithLabelValues(spec.EntityType).Inc()
			e.recordFailure(ctx, spec.EntityType, err)
			continue
		}
		telemetry.PullCycleRecords.WithLabelValues(spec.EntityType).Add(float64(n))
		total += n
	}
	return total
}

func (e *Engine) pullEntity(ctx context.Context, spec EntitySpec) (int, error) {
	since, err := e.readSinceVersion(ctx, spec.EntityType)
	if err != nil {
		return 0, fmt.Errorf("reading sync state: %w", err)
	}

	query := ""
	if since != "" {
		query = "sinceVersion=" + since
	}

	env, err := e.cloud.Get(ctx, "/api/hub/sync/"+spec.EntityType, query)
	if err != nil {
		return 0, fmt.Errorf("calling cloud: %w", err)
	}

	if env.Status == 404 {
		// Endpoint not yet deployed on the cloud side; not an error.
		return 0, nil
	}
	if !env.OK {
		return 0, fmt.Errorf("cloud returned status %d: %s", env.Status, env.Error)
	}

	items, deletedIDs, err := extractItems(env.Data)
	if err != nil {
		return 0, fmt.Errorf("extracting items: %w", err)
	}

	applier, ok := appliers[spec.EntityType]
	if !ok {
		return 0, fmt.Errorf("no applier registered for entity type %q", spec.EntityType)
	}

	var count int
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := applier(ctx, tx, items, deletedIDs, spec.FullReplace)
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("applying batch: %w", err)
	}

	if err := e.recordSuccess(ctx, spec.EntityType, count); err != nil {
		e.logger.Error("recording sync state", "entity_type", spec.EntityType, "error", err)
	}

	return count, nil
}

// extractItems normalizes a pull response body, which is either
// {"items":[...], "deletedIds":[...]} or a bare JSON array.
func extractItems(raw json.RawMessage) ([]map[string]any, []string, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var items []map[string]any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, nil, fmt.Errorf("decoding bare array: %w", err)
		}
		return items, nil, nil
	}

	var wrapper cloudclient.PullResponse
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("decoding pull response: %w", err)
	}

	var items []map[string]any
	if len(wrapper.Items) > 0 {
		if err := json.Unmarshal(wrapper.Items, &items); err != nil {
			return nil, nil, fmt.Errorf("decoding items: %w", err)
		}
	}
	return items, wrapper.DeletedIDs, nil
}

func (e *Engine) readSinceVersion(ctx context.Context, entityType string) (string, error) {
	var since sql.NullString
	err := e.store.DB().QueryRowContext(ctx, `
		SELECT since_version FROM sync_state WHERE entity_type = ?
	`, entityType).Scan(&since)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !since.Valid {
		return "", nil
	}
	return since.String, nil
}

func (e *Engine) recordSuccess(ctx context.Context, entityType string, count int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := e.store.DB().ExecContext(ctx, `
		INSERT INTO sync_state (entity_type, since_version, last_pulled_at, record_count, status, last_error, last_error_at, consecutive_fails)
		VALUES (?, ?, ?, ?, 'SUCCESS', NULL, NULL, 0)
		ON CONFLICT(entity_type) DO UPDATE SET
			since_version = excluded.since_version,
			last_pulled_at = excluded.last_pulled_at,
			record_count = excluded.record_count,
			status = 'SUCCESS',
			last_error = NULL,
			last_error_at = NULL,
			consecutive_fails = 0
	`, entityType, now, now, count)
	return err
}

func (e *Engine) recordFailure(ctx context.Context, entityType string, cause error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := e.store.DB().ExecContext(ctx, `
		INSERT INTO sync_state (entity_type, last_error, last_error_at, status, consecutive_fails)
		VALUES (?, ?, ?, 'ERROR', 1)
		ON CONFLICT(entity_type) DO UPDATE SET
			last_error = excluded.last_error,
			last_error_at = excluded.last_error_at,
			status = 'ERROR',
			consecutive_fails = consecutive_fails + 1
	`, entityType, cause.Error(), now)
	if err != nil {
		e.logger.Error("recording pull failure", "entity_type", entityType, "error", err)
	}
}

// ResetCursor clears an entity's since_version so the next cycle re-fetches
// it in full. Used by the sync-admin HTTP surface.
func ResetCursor(ctx context.Context, s *store.Store, entityType string) error {
	_, err := s.DB().ExecContext(ctx, `UPDATE sync_state SET since_version = NULL WHERE entity_type = ?`, entityType)
	return err
}
