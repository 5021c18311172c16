// Package entity defines the domain entities for the tasks feature.
package entity

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"mosaic_backend/internal/platform/repository"
)

// Task statuses.
const (
	StatusTodo  = "todo"
	StatusDoing = "doing"
	StatusDone  = "done"
)

// Statuses lists every valid status in workflow order.
var Statuses = []string{StatusTodo, StatusDoing, StatusDone}

const (
	MaxTitleLength = 200
	MaxPriority    = 5
)

// Task is a tenant-scoped work item. Seq is a human-facing number assigned
// at creation; CreatedBy is taken from the authenticated user.
type Task struct {
	repository.Model
	repository.Tenancy
	repository.Sequence
	repository.SoftDeletable

	Title       string     `gorm:"size:200;not null" json:"title" binding:"required,max=200"`
	Description string     `gorm:"not null;default:''" json:"description"`
	Status      string     `gorm:"size:16;not null;default:todo" json:"status" binding:"omitempty,oneof=todo doing done"`
	Priority    int        `gorm:"not null;default:0" json:"priority" binding:"gte=0,lte=5"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CreatedBy   uint       `gorm:"not null;index" json:"createdBy"`
}

// Normalize trims the title and defaults the status.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = StatusTodo
	}
}

// Validate checks the fields the database constrains.
func (t *Task) Validate() error {
	if t.Title == "" {
		return errors.New("title is required")
	}
	if len(t.Title) > MaxTitleLength {
		return fmt.Errorf("title must be at most %d characters", MaxTitleLength)
	}
	if !ValidStatus(t.Status) {
		return fmt.Errorf("status must be one of %s", strings.Join(Statuses, ", "))
	}
	if t.Priority < 0 || t.Priority > MaxPriority {
		return fmt.Errorf("priority must be between 0 and %d", MaxPriority)
	}
	return nil
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	return slices.Contains(Statuses, s)
}
