// Package adapters provides outbox storage and email delivery.
package adapters

import (
	"context"
	"fmt"
	"time"

	"mosaic_backend/internal/feature/mailer/domain/entity"
	"mosaic_backend/internal/platform/repository"
)

// CollectionOutbox is the registry name of the email outbox.
const CollectionOutbox = "email_outbox"

// OutboxRepository stores outbox messages. The outbox is global, not
// tenant scoped.
type OutboxRepository struct {
	repo *repository.Repository[entity.OutboxMessage]
	now  func() time.Time
}

func NewOutboxRepository(reg *repository.Registry) (*OutboxRepository, error) {
	repo, err := repository.New[entity.OutboxMessage](reg, CollectionOutbox, repository.Options{Entity: "OutboxMessage"})
	if err != nil {
		return nil, fmt.Errorf("outbox repository: %w", err)
	}
	return &OutboxRepository{repo: repo, now: time.Now}, nil
}

// Enqueue inserts m as pending and due now unless NextAttemptAt is set.
func (r *OutboxRepository) Enqueue(ctx context.Context, m *entity.OutboxMessage) error {
	m.Status = entity.StatusPending
	m.Attempts = 0
	if m.NextAttemptAt.IsZero() {
		m.NextAttemptAt = r.now().UTC()
	}
	return r.repo.Create(ctx, m)
}

// Due returns up to limit pending messages whose next attempt is not after
// now, oldest first.
func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]entity.OutboxMessage, error) {
	return r.repo.Find(ctx, repository.Query{
		Filter: repository.Eq("status", entity.StatusPending).
			And("next_attempt_at", repository.OpLte, now.UTC()),
		Sort:  []repository.SortField{{Field: "next_attempt_at"}, {Field: "id"}},
		Limit: limit,
	})
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uint, at time.Time) error {
	at = at.UTC()
	return r.patch(ctx, id, map[string]any{
		"status":     entity.StatusSent,
		"sent_at":    &at,
		"last_error": "",
	})
}

// MarkRetry records a failed attempt and schedules the next one.
func (r *OutboxRepository) MarkRetry(ctx context.Context, id uint, attempts int, lastErr string, next time.Time) error {
	return r.patch(ctx, id, map[string]any{
		"attempts":        attempts,
		"last_error":      lastErr,
		"next_attempt_at": next.UTC(),
	})
}

// MarkFailed gives up on a message.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint, attempts int, lastErr string) error {
	return r.patch(ctx, id, map[string]any{
		"status":     entity.StatusFailed,
		"attempts":   attempts,
		"last_error": lastErr,
	})
}

// CountByStatus returns how many messages are in status.
func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	return r.repo.Count(ctx, repository.Eq("status", status))
}

func (r *OutboxRepository) patch(ctx context.Context, id uint, cols map[string]any) error {
	_, err := r.repo.UpdateByID(ctx, id, cols)
	return err
}
