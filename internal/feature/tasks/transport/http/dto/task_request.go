// Package dto holds the request and response bodies of the tasks endpoints.
package dto

import (
	"mosaic_backend/internal/feature/tasks/domain/entity"
	"mosaic_backend/internal/platform/repository"
)

// BulkCreateReq is the body of POST /tasks/bulk.
type BulkCreateReq struct {
	Tasks []*entity.Task `json:"tasks" binding:"required,min=1,dive,required"`
}

// BulkCreateRes reports the inserted tasks.
type BulkCreateRes struct {
	repository.WriteResult
	Tasks []*entity.Task `json:"tasks"`
}

// DistinctRes lists the distinct values of one field.
type DistinctRes struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
}
