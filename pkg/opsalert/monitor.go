// Package opsalert is an optional observability enrichment: a background
// monitor that posts a Slack message when the outbox dead-letter count
// crosses a threshold or the cloud has been unreachable past a grace
// period. It fires on hub health, never on business events — disabled
// entirely (logging only) when no Slack bot token is configured.
package opsalert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/emberline/hubd/internal/outbox"
	"github.com/emberline/hubd/internal/store"
)

const (
	defaultInterval        = 5 * time.Minute
	defaultDeadLetterLimit = 5
	defaultStaleAge        = 30 * time.Minute
	// reAlertCooldown prevents the monitor from re-posting every tick while
	// an alert condition remains true.
	reAlertCooldown = time.Hour
)

// Monitor periodically checks outbox health and posts a Slack alert when a
// threshold is crossed.
type Monitor struct {
	store   *store.Store
	client  *goslack.Client
	channel string
	logger  *slog.Logger

	interval        time.Duration
	deadLetterLimit int
	staleAge        time.Duration

	lastDeadLetterAlert time.Time
	lastStaleAlert      time.Time
}

// New creates a Monitor. If botToken is empty, the monitor still runs its
// checks (useful for /api/sync/status-style observability) but IsEnabled
// reports false and no Slack call is attempted.
func New(s *store.Store, botToken, channel string, logger *slog.Logger) *Monitor {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Monitor{
		store:           s,
		client:          client,
		channel:         channel,
		logger:          logger,
		interval:        defaultInterval,
		deadLetterLimit: defaultDeadLetterLimit,
		staleAge:        defaultStaleAge,
	}
}

// IsEnabled reports whether the monitor has a usable Slack client.
func (m *Monitor) IsEnabled() bool {
	return m.client != nil && m.channel != ""
}

// Run blocks, checking outbox health every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("ops alert monitor started", "interval", m.interval, "dead_letter_limit", m.deadLetterLimit)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	stats, err := outbox.Stats(ctx, m.store)
	if err != nil {
		m.logger.Error("ops alert: querying outbox stats", "error", err)
		return
	}

	var deadLetters int
	for _, sc := range stats {
		if sc.Status == outbox.StatusDeadLetter {
			deadLetters = sc.Count
		}
	}
	if deadLetters >= m.deadLetterLimit && time.Since(m.lastDeadLetterAlert) > reAlertCooldown {
		m.post(ctx, fmt.Sprintf(":rotating_light: outbox has %d dead-lettered rows (threshold %d)", deadLetters, m.deadLetterLimit))
		m.lastDeadLetterAlert = time.Now()
	}

	age, err := outbox.OldestPendingAge(ctx, m.store)
	if err != nil {
		m.logger.Error("ops alert: querying oldest pending age", "error", err)
		return
	}
	if age > m.staleAge && time.Since(m.lastStaleAlert) > reAlertCooldown {
		m.post(ctx, fmt.Sprintf(":warning: oldest pending outbox row is %s old (cloud may be unreachable)", age.Round(time.Second)))
		m.lastStaleAlert = time.Now()
	}
}

func (m *Monitor) post(ctx context.Context, text string) {
	if !m.IsEnabled() {
		m.logger.Warn("ops alert condition met but slack is not configured", "message", text)
		return
	}
	_, _, err := m.client.PostMessageContext(ctx, m.channel, goslack.MsgOptionText(text, false))
	if err != nil {
		m.logger.Error("posting ops alert to slack", "error", err)
	}
}
