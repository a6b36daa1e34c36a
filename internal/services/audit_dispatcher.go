package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reconned/internal/domain"
)

// AuditDispatcherConfig tunes the outbox drain loop.
type AuditDispatcherConfig struct {
	Consumer     string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	LeaseTTL     time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (c *AuditDispatcherConfig) withDefaults() AuditDispatcherConfig {
	out := *c
	if out.Consumer == "" {
		out.Consumer = "audit-dispatcher"
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 5 * time.Second
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 50
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 8
	}
	if out.LeaseTTL <= 0 {
		out.LeaseTTL = 30 * time.Second
	}
	if out.BaseBackoff <= 0 {
		out.BaseBackoff = time.Second
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = 10 * time.Minute
	}
	return out
}

// AuditDispatcher copies outbox events into the audit log in the background.
// Delivery is at least once; the audit log dedupes on the outbox id.
type AuditDispatcher struct {
	store  domain.Store
	cfg    AuditDispatcherConfig
	logger *slog.Logger
	now    func() time.Time
	wake   chan struct{}
}

// NewAuditDispatcher returns a dispatcher. Call Run to start it.
func NewAuditDispatcher(store domain.Store, cfg AuditDispatcherConfig, logger *slog.Logger) *AuditDispatcher {
	return &AuditDispatcher{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// Notify wakes the loop early. It never blocks.
func (d *AuditDispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains the outbox until ctx is cancelled.
func (d *AuditDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.InfoContext(ctx, "audit dispatcher started", "consumer", d.cfg.Consumer, "poll_interval", d.cfg.PollInterval.String())
	for {
		if _, err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.ErrorContext(ctx, "audit dispatch failed", "err", err)
		}
		select {
		case <-ctx.Done():
			d.logger.InfoContext(context.Background(), "audit dispatcher stopped")
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DrainOnce leases one batch and processes it. It returns how many events
// reached the audit log.
func (d *AuditDispatcher) DrainOnce(ctx context.Context) (int, error) {
	repos := d.store.Repos()
	events, err := repos.AuditOutbox.Lease(ctx, d.cfg.Consumer, d.cfg.BatchSize, d.now(), d.cfg.LeaseTTL)
	if err != nil {
		return 0, fmt.Errorf("lease audit events: %w", err)
	}

	processed := 0
	for _, ev := range events {
		entry := &domain.AuditLog{
			OutboxID:  ev.ID,
			ClubID:    ev.ClubID,
			ActorID:   ev.ActorID,
			Action:    ev.Action,
			Data:      ev.Data,
			IP:        ev.IP,
			UserAgent: ev.UserAgent,
			CreatedAt: ev.CreatedAt,
		}
		if err := repos.AuditLogs.Insert(ctx, entry); err != nil {
			d.fail(ctx, repos.AuditOutbox, ev, err)
			continue
		}
		// If this fails the lease lapses and the replay is absorbed by the log's dedupe.
		if err := repos.AuditOutbox.MarkProcessed(ctx, ev.ID, d.now()); err != nil {
			d.logger.WarnContext(ctx, "mark audit event processed failed", "outbox_id", ev.ID, "err", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (d *AuditDispatcher) fail(ctx context.Context, outbox domain.AuditOutboxRepository, ev *domain.AuditOutboxEvent, cause error) {
	dead := ev.AttemptCount >= d.cfg.MaxAttempts
	next := d.now().Add(d.backoff(ev.AttemptCount))
	if err := outbox.MarkFailed(ctx, ev.ID, cause.Error(), next, dead); err != nil {
		d.logger.ErrorContext(ctx, "mark audit event failed", "outbox_id", ev.ID, "err", err)
		return
	}
	if dead {
		d.logger.ErrorContext(ctx, "audit event dead-lettered", "outbox_id", ev.ID, "action", ev.Action, "attempts", ev.AttemptCount, "err", cause)
		return
	}
	d.logger.WarnContext(ctx, "audit event retry scheduled", "outbox_id", ev.ID, "attempt", ev.AttemptCount, "next_attempt_at", next, "err", cause)
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (d *AuditDispatcher) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := d.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return wait
}
