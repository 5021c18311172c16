package repository

import "errors"

var (
	// ErrNoBinding is returned when a repository is constructed for a
	// collection the registry does not know.
	ErrNoBinding = errors.New("no storage binding registered for collection")

	// ErrModelMismatch is returned when the registered model type differs
	// from the repository's type parameter.
	ErrModelMismatch = errors.New("registered model does not match repository type")

	// ErrNotTenantScoped is returned when tenant scoping is requested for a
	// model that does not embed Tenancy.
	ErrNotTenantScoped = errors.New("model does not embed repository.Tenancy")

	// ErrNotSequenced is returned when auto-increment is requested for a model
	// that does not embed Sequence, or without a Sequencer.
	ErrNotSequenced = errors.New("auto-increment requires repository.Sequence and a Sequencer")

	// ErrNotSoftDeletable is returned when SoftDelete wraps a model that does
	// not embed SoftDeletable.
	ErrNotSoftDeletable = errors.New("model does not embed repository.SoftDeletable")

	// ErrSoftDeleted reports that a delete was converted into a soft delete.
	// It accompanies a successful result and is not a failure.
	ErrSoftDeleted = errors.New("document was soft deleted instead of being removed")
)
