// Package usecase implements the task operations beyond plain CRUD.
package usecase

import "errors"

var (
	// ErrEmptyBatch is returned when a bulk create carries no tasks.
	ErrEmptyBatch = errors.New("no tasks supplied")

	// ErrBatchTooLarge is returned when a bulk create exceeds MaxBatch.
	ErrBatchTooLarge = errors.New("too many tasks in one batch")

	// ErrFieldNotDistinct is returned for fields Distinct does not expose.
	ErrFieldNotDistinct = errors.New("field is not available for distinct")
)
