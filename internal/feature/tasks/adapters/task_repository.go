// Package adapters provides the storage implementation of the tasks feature.
package adapters

import (
	"fmt"

	"mosaic_backend/internal/feature/tasks/domain/entity"
	"mosaic_backend/internal/platform/repository"
)

// CollectionTasks is the registry name of the tasks table.
const CollectionTasks = "tasks"

// NewTaskRepository builds the tenant-scoped, soft-deleting task store.
// Seq numbers are drawn from seq under the "tasks" key.
func NewTaskRepository(reg *repository.Registry, seq repository.Sequencer) (*repository.SoftDelete[entity.Task], error) {
	base, err := repository.New[entity.Task](reg, CollectionTasks, repository.Options{
		Entity:        "Task",
		TenantScoped:  true,
		AutoIncrement: true,
		Sequencer:     seq,
		SearchFields:  []string{"title", "description"},
	})
	if err != nil {
		return nil, fmt.Errorf("tasks repository: %w", err)
	}
	sd, err := repository.NewSoftDelete(base)
	if err != nil {
		return nil, fmt.Errorf("tasks repository: %w", err)
	}
	return sd, nil
}
