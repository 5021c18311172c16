package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"mosaic_backend/internal/feature/mailer/domain/entity"
	"mosaic_backend/internal/platform/logger"
)

// OutboxQueue is the outbox surface the dispatcher drives.
type OutboxQueue interface {
	Due(ctx context.Context, now time.Time, limit int) ([]entity.OutboxMessage, error)
	MarkSent(ctx context.Context, id uint, at time.Time) error
	MarkRetry(ctx context.Context, id uint, attempts int, lastErr string, next time.Time) error
	MarkFailed(ctx context.Context, id uint, attempts int, lastErr string) error
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, e entity.Email) error
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 5
	DefaultBatchSize    = 20
	DefaultBaseBackoff  = 30 * time.Second
	DefaultMaxBackoff   = time.Hour
)

// DispatcherOptions tune polling and retry. Zero values take the defaults.
type DispatcherOptions struct {
	PollInterval time.Duration
	MaxAttempts  int
	BatchSize    int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (o DispatcherOptions) withDefaults() DispatcherOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = DefaultBaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	return o
}

// Dispatcher delivers due outbox messages. One Dispatcher runs per process.
type Dispatcher struct {
	queue  OutboxQueue
	sender Sender
	opts   DispatcherOptions
	now    func() time.Time
}

func NewDispatcher(queue OutboxQueue, sender Sender, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{queue: queue, sender: sender, opts: opts.withDefaults(), now: time.Now}
}

// Backoff returns the delay before attempt+1 after attempt failures:
// BaseBackoff doubled per failure, capped at MaxBackoff.
func (d *Dispatcher) Backoff(attempt int) time.Duration {
	b := retry.WithCappedDuration(d.opts.MaxBackoff, retry.NewExponential(d.opts.BaseBackoff))
	delay := d.opts.BaseBackoff
	for range max(attempt, 1) {
		next, stop := b.Next()
		if stop {
			break
		}
		delay = next
	}
	return delay
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	logger.L().Info("outbox dispatcher started", zap.Duration("interval", d.opts.PollInterval))
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("outbox dispatch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			logger.L().Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce sends one batch of due messages and returns how many were
// delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	due, err := d.queue.Due(ctx, d.now(), d.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		m := &due[i]
		if err := d.deliver(ctx, m); err != nil {
			return sent, err
		}
		if m.Status == entity.StatusSent {
			sent++
		}
	}
	return sent, nil
}

// deliver sends m and records the outcome. Only storage errors are
// returned; a send failure is recorded on the message.
func (d *Dispatcher) deliver(ctx context.Context, m *entity.OutboxMessage) error {
	sendErr := d.sender.Send(ctx, m.Email())
	if sendErr == nil {
		m.Status = entity.StatusSent
		return d.queue.MarkSent(ctx, m.ID, d.now())
	}

	attempts := m.Attempts + 1
	if attempts >= d.opts.MaxAttempts {
		logger.L().Error("email delivery abandoned",
			zap.Uint("outbox_id", m.ID),
			zap.String("kind", m.Kind),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
		m.Status = entity.StatusFailed
		return d.queue.MarkFailed(ctx, m.ID, attempts, sendErr.Error())
	}

	next := d.now().Add(d.Backoff(attempts))
	logger.L().Warn("email delivery failed, retrying",
		zap.Uint("outbox_id", m.ID),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(sendErr),
	)
	return d.queue.MarkRetry(ctx, m.ID, attempts, sendErr.Error(), next)
}
