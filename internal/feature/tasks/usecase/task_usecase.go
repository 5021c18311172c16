package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mosaic_backend/internal/feature/tasks/domain/entity"
	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/logger"
	"mosaic_backend/internal/platform/repository"
)

// EventTaskCreated is pushed to the creator of a new task.
const EventTaskCreated = "task.created"

// MaxBatch caps the size of one bulk create.
const MaxBatch = 100

// distinctFields are the columns Distinct may enumerate.
var distinctFields = map[string]bool{
	"status":    true,
	"priority":  true,
	"createdBy": true,
}

// TaskStore is the repository surface the usecase needs.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (repository).
type TaskStore interface {
	BulkCreate(ctx context.Context, items []*entity.Task) (repository.WriteResult, error)
	Aggregate(ctx context.Context, p repository.Pipeline) ([]map[string]any, error)
	Distinct(ctx context.Context, field string, f repository.Filter) ([]any, error)
}

// Notifier pushes events to a user's live connections.
type Notifier interface {
	SendToUser(userID uint, event string, payload any) int
}

// TaskUsecase implements bulk creation, statistics and notifications for tasks.
type TaskUsecase struct {
	store    TaskStore
	notifier Notifier
}

// NewTaskUsecase creates a TaskUsecase. notifier may be nil.
func NewTaskUsecase(store TaskStore, notifier Notifier) *TaskUsecase {
	return &TaskUsecase{store: store, notifier: notifier}
}

// Prepare normalizes a task submitted by userID and validates it. Fields
// the server manages are reset.
func (u *TaskUsecase) Prepare(t *entity.Task, userID uint) error {
	t.Model = repository.Model{}
	t.SoftDeletable = repository.SoftDeletable{}
	t.Seq = 0
	t.Normalize()
	t.CreatedBy = userID
	if err := t.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

// CheckPatch rejects updates to values the database would refuse. Keys are
// column names as resolved by the task store; createdBy is also accepted.
func (u *TaskUsecase) CheckPatch(patch map[string]any) error {
	for k, v := range patch {
		switch k {
		case "createdBy", "created_by":
			return apperr.Validation("createdBy cannot be changed")
		case "status":
			s, ok := v.(string)
			if !ok || !entity.ValidStatus(s) {
				return apperr.Validation("status must be one of " + strings.Join(entity.Statuses, ", "))
			}
		case "priority":
			n, ok := v.(float64)
			if !ok || n != float64(int(n)) || n < 0 || n > entity.MaxPriority {
				return apperr.Validation(fmt.Sprintf("priority must be an integer between 0 and %d", entity.MaxPriority))
			}
		case "title":
			s, ok := v.(string)
			if !ok || strings.TrimSpace(s) == "" || len(s) > entity.MaxTitleLength {
				return apperr.Validation(fmt.Sprintf("title must be 1 to %d characters", entity.MaxTitleLength))
			}
		}
	}
	return nil
}

// Created notifies the creator of t.
func (u *TaskUsecase) Created(t *entity.Task) {
	if u.notifier == nil {
		return
	}
	n := u.notifier.SendToUser(t.CreatedBy, EventTaskCreated, t)
	logger.L().Debug("task created event sent", zap.Uint("task_id", t.ID), zap.Int("connections", n))
}

// BulkCreate validates and inserts tasks in one write. Sequence numbers are
// reserved as one contiguous range.
func (u *TaskUsecase) BulkCreate(ctx context.Context, userID uint, tasks []*entity.Task) (repository.WriteResult, error) {
	if len(tasks) == 0 {
		return repository.WriteResult{}, apperr.Wrap(ErrEmptyBatch, apperr.CodeInvalid, "No tasks supplied")
	}
	if len(tasks) > MaxBatch {
		return repository.WriteResult{}, apperr.Wrap(ErrBatchTooLarge, apperr.CodeInvalid,
			fmt.Sprintf("At most %d tasks can be created at once", MaxBatch))
	}
	for i, t := range tasks {
		if err := u.Prepare(t, userID); err != nil {
			e, _ := apperr.As(err)
			return repository.WriteResult{}, apperr.Validation(fmt.Sprintf("task %d: %s", i, e.Message))
		}
	}

	res, err := u.store.BulkCreate(ctx, tasks)
	if err != nil {
		return repository.WriteResult{}, err
	}
	for _, t := range tasks {
		u.Created(t)
	}
	logger.L().Info("tasks bulk created", zap.Uint("user_id", userID), zap.Int64("inserted", res.Inserted))
	return res, nil
}

// StatusStats summarizes the tasks in one status.
type StatusStats struct {
	Count       int64   `json:"count"`
	AvgPriority float64 `json:"avgPriority"`
}

// Stats is the per-status breakdown of the live tasks of a tenant.
type Stats struct {
	Total    int64                  `json:"total"`
	ByStatus map[string]StatusStats `json:"byStatus"`
}

// Stats aggregates the live tasks by status. Every status is present, with
// zero counts where no task has it.
func (u *TaskUsecase) Stats(ctx context.Context) (*Stats, error) {
	rows, err := u.store.Aggregate(ctx, repository.Pipeline{
		repository.Group{By: []string{"status"}, Fields: map[string]repository.Accumulator{
			"count":       repository.Count(),
			"avgPriority": repository.Avg("priority"),
		}},
	})
	if err != nil {
		return nil, err
	}

	out := &Stats{ByStatus: make(map[string]StatusStats, len(entity.Statuses))}
	for _, s := range entity.Statuses {
		out.ByStatus[s] = StatusStats{}
	}
	for _, row := range rows {
		status, _ := row["status"].(string)
		st := StatusStats{Count: toInt64(row["count"]), AvgPriority: toFloat64(row["avgPriority"])}
		out.ByStatus[status] = st
		out.Total += st.Count
	}
	return out, nil
}

// Distinct lists the distinct values of field across live tasks.
func (u *TaskUsecase) Distinct(ctx context.Context, field string) ([]any, error) {
	if !distinctFields[field] {
		return nil, apperr.Wrap(ErrFieldNotDistinct, apperr.CodeInvalid,
			fmt.Sprintf("Distinct is not available for field %q", field))
	}
	return u.store.Distinct(ctx, field, repository.Filter{})
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		var i int64
		_, _ = fmt.Sscan(n, &i)
		return i
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		var f float64
		_, _ = fmt.Sscan(n, &f)
		return f
	}
	return 0
}
