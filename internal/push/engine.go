// Package push runs the periodic worker that drains the outbox to the
// cloud system of record.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/emberline/hubd/internal/cloudclient"
	"github.com/emberline/hubd/internal/outbox"
	"github.com/emberline/hubd/internal/store"
	"github.com/emberline/hubd/internal/telemetry"
)

// endpoints maps an outbox entity type to its cloud push path. Entity types
// not present here are dead-lettered as "unknown entity type".
var endpoints = map[string]string{
	"sale":          "/api/hub/push/sale",
	"sale_item":     "/api/hub/push/sale_item",
	"payment":       "/api/hub/push/payment",
	"kitchen_order": "/api/hub/push/kitchen_order",
	"shift":         "/api/hub/push/shift",
	"cash_event":    "/api/hub/push/cash_event",
	"refund":        "/api/hub/push/refund",
}

const defaultBatchSize = 20

// Engine periodically claims outbox rows and delivers them to the cloud.
type Engine struct {
	store    *store.Store
	cloud    *cloudclient.Client
	logger   *slog.Logger
	interval time.Duration
	batch    int
	running  atomic.Bool
}

// New creates a push engine. interval and batch default to 5s/20 when zero.
func New(s *store.Store, cloud *cloudclient.Client, logger *slog.Logger, interval time.Duration, batch int) *Engine {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Engine{store: s, cloud: cloud, logger: logger, interval: interval, batch: batch}
}

// Run blocks, ticking every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("push engine started", "interval", e.interval, "batch_size", e.batch)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("push engine stopped")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one drain cycle, guarded so overlapping ticks are dropped rather
// than queued.
func (e *Engine) tick(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Debug("push tick skipped, previous cycle still running")
		return
	}
	defer e.running.Store(false)

	if !e.cloud.IsConfigured() {
		return
	}

	if err := e.ProcessOutbox(ctx); err != nil {
		e.logger.Error("push cycle failed", "error", err)
	}
}

// ProcessOutbox claims and delivers a single batch. It is exported so the
// sync-admin HTTP surface can trigger an out-of-band push on demand.
func (e *Engine) ProcessOutbox(ctx context.Context) error {
	items, err := outbox.ClaimBatch(ctx, e.store, e.batch)
	if err != nil {
		return err
	}

	for _, item := range items {
		e.deliver(ctx, item)
	}
	return nil
}

func (e *Engine) deliver(ctx context.Context, item outbox.Item) {
	endpoint, ok := endpoints[item.EntityType]
	if !ok {
		e.deadLetter(ctx, item, "unknown entity type")
		return
	}

	var payload json.RawMessage
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		e.deadLetter(ctx, item, "invalid payload")
		return
	}

	req := cloudclient.PushRequest{
		EntityType:    item.EntityType,
		EntityID:      item.EntityID,
		Action:        item.Operation,
		Payload:       payload,
		CorrelationID: item.EntityID,
	}

	env, err := e.cloud.Post(ctx, endpoint, req)
	if err != nil {
		e.deadLetter(ctx, item, "push request build failure: "+err.Error())
		return
	}

	e.applyOutcome(ctx, item, env)
}

func (e *Engine) applyOutcome(ctx context.Context, item outbox.Item, env *cloudclient.Envelope) {
	switch {
	case env.OK:
		telemetry.PushAttemptsTotal.WithLabelValues(item.EntityType, "synced").Inc()
		if err := outbox.MarkSynced(ctx, e.store, item.ID, ""); err != nil {
			e.logger.Error("marking item synced", "item_id", item.ID, "error", err)
		}

	case env.Status == http.StatusConflict:
		telemetry.PushAttemptsTotal.WithLabelValues(item.EntityType, "duplicate").Inc()
		if err := outbox.MarkSynced(ctx, e.store, item.ID, "duplicate"); err != nil {
			e.logger.Error("marking duplicate item synced", "item_id", item.ID, "error", err)
		}

	case env.Status >= 400 && env.Status < 500:
		e.deadLetter(ctx, item, env.Error)

	default:
		// 5xx, or status == 0 (network failure/timeout): retriable.
		if item.Attempts >= item.MaxAttempts {
			e.deadLetter(ctx, item, "max attempts: "+env.Error)
			return
		}
		telemetry.PushAttemptsTotal.WithLabelValues(item.EntityType, "retry").Inc()
		next := nextAttemptDelay(item.Attempts)
		if err := outbox.MarkPendingAgain(ctx, e.store, item.ID, env.Error, time.Now().UTC().Add(next)); err != nil {
			e.logger.Error("returning item to pending", "item_id", item.ID, "error", err)
		}
	}
}

func (e *Engine) deadLetter(ctx context.Context, item outbox.Item, reason string) {
	telemetry.PushAttemptsTotal.WithLabelValues(item.EntityType, "dead_letter").Inc()
	if err := outbox.MarkDeadLetter(ctx, e.store, item.ID, reason); err != nil {
		e.logger.Error("dead-lettering item", "item_id", item.ID, "error", err)
	}
}

// nextAttemptDelay computes exponential backoff pacing keyed by attempts so
// a row that just failed isn't reclaimed on the very next tick: base 2s,
// doubling per attempt, capped at 5 minutes.
func nextAttemptDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(2*time.Second),
		backoff.WithMaxInterval(5*time.Minute),
		backoff.WithMultiplier(2),
	)

	delay := 2 * time.Second
	for i := 0; i < attempts; i++ {
		next := b.NextBackOff()
		if next == backoff.Stop {
			break
		}
		delay = next
	}
	return delay
}
