// Package repository implements a generic, tenant-scoped data-access layer
// over gorm: CRUD, pagination, lookup from query parameters, bulk writes,
// aggregation, atomic auto-increment and a soft-delete decorator.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// Binding ties a collection name to its storage handle and model.
type Binding struct {
	Name  string
	DB    *gorm.DB
	Model any
}

// Registry maps collection names to storage bindings. Each process (or
// test) owns its own Registry; there is no package-level instance.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]Binding)}
}

// Register binds name to db and model. model must be a pointer to the
// entity struct, e.g. &Task{}.
func (r *Registry) Register(name string, db *gorm.DB, model any) error {
	if name == "" {
		return errors.New("collection name is required")
	}
	if db == nil || model == nil {
		return fmt.Errorf("collection %q: db and model are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[name]; ok {
		return fmt.Errorf("collection %q already registered", name)
	}
	r.bindings[name] = Binding{Name: name, DB: db, Model: model}
	return nil
}

// MustRegister is Register that panics on error. Intended for wiring code.
func (r *Registry) MustRegister(name string, db *gorm.DB, model any) {
	if err := r.Register(name, db, model); err != nil {
		panic(err)
	}
}

// Binding returns the binding for name.
func (r *Registry) Binding(name string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[name]
	return b, ok
}

// Names returns the registered collection names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for n := range r.bindings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AutoMigrate runs gorm AutoMigrate for every registered model. Production
// schemas are managed by goose; this is used by tests and local runs.
func (r *Registry) AutoMigrate(ctx context.Context) error {
	for _, name := range r.Names() {
		b, _ := r.Binding(name)
		if err := b.DB.WithContext(ctx).AutoMigrate(b.Model); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}
