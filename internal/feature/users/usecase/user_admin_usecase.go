// Package usecase implements administrative user management.
package usecase

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"

	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/logger"
	"mosaic_backend/internal/platform/repository"
)

// EventAccountStatus is pushed to a user whose status an admin changed.
const EventAccountStatus = "account.status"

var (
	// ErrSelfAction is returned when an admin targets their own account.
	ErrSelfAction = errors.New("cannot change own account")

	// ErrOutranked is returned when an ADMIN targets a SUPER_ADMIN.
	ErrOutranked = errors.New("target outranks actor")
)

// UserStore is the storage surface admin management needs.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type UserStore interface {
	FindByID(ctx context.Context, id uint) (*entity.User, error)
	FindByIDWithDeleted(ctx context.Context, id uint) (*entity.User, error)
	Lookup(ctx context.Context, params url.Values) (*repository.Page[entity.User], error)
	LookupDeleted(ctx context.Context, params url.Values) (*repository.Page[entity.User], error)
	Activate(ctx context.Context, id uint) (*entity.User, error)
	Deactivate(ctx context.Context, id uint) (*entity.User, error)
	Suspend(ctx context.Context, id uint) (*entity.User, error)
	DeleteByID(ctx context.Context, id uint) error
	RestoreByID(ctx context.Context, id uint) (*entity.User, error)
}

// Notifier pushes events to a user's live connections.
type Notifier interface {
	SendToUser(userID uint, event string, payload any) int
}

// Actor is the admin performing an operation.
type Actor struct {
	ID   uint
	Role string
}

// UserAdminUsecase lists users and moves them between statuses.
type UserAdminUsecase struct {
	users    UserStore
	notifier Notifier
}

// NewUserAdminUsecase creates a UserAdminUsecase. notifier may be nil.
func NewUserAdminUsecase(users UserStore, notifier Notifier) *UserAdminUsecase {
	return &UserAdminUsecase{users: users, notifier: notifier}
}

func notFound(err error) error {
	if apperr.IsCode(err, apperr.CodeNotFound) {
		return apperr.Wrap(err, apperr.CodeNotFound, "User not found")
	}
	return err
}

// List returns one page of live users matching the lookup parameters.
func (u *UserAdminUsecase) List(ctx context.Context, params url.Values) (*repository.Page[entity.User], error) {
	return u.users.Lookup(ctx, params)
}

// ListDeleted returns one page of soft-deleted users.
func (u *UserAdminUsecase) ListDeleted(ctx context.Context, params url.Values) (*repository.Page[entity.User], error) {
	return u.users.LookupDeleted(ctx, params)
}

// Get returns a live user.
func (u *UserAdminUsecase) Get(ctx context.Context, id uint) (*entity.User, error) {
	user, err := u.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// authorize loads the live target and rejects self-targeting and acting on
// a higher role.
func (u *UserAdminUsecase) authorize(ctx context.Context, actor Actor, id uint) error {
	return u.authorizeWith(ctx, actor, id, u.users.FindByID)
}

func (u *UserAdminUsecase) authorizeWith(ctx context.Context, actor Actor, id uint, load func(context.Context, uint) (*entity.User, error)) error {
	if actor.ID == id {
		return apperr.Wrap(ErrSelfAction, apperr.CodeForbidden, "You cannot change your own account")
	}
	target, err := load(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if target.Role == entity.RoleSuperAdmin && actor.Role != entity.RoleSuperAdmin {
		return apperr.Wrap(ErrOutranked, apperr.CodeForbidden, "Only a super admin can change a super admin")
	}
	return nil
}

// SetStatus moves a user to ACTIVE, INACTIVE or SUSPENDED.
func (u *UserAdminUsecase) SetStatus(ctx context.Context, actor Actor, id uint, status string) (*entity.User, error) {
	if err := u.authorize(ctx, actor, id); err != nil {
		return nil, err
	}

	var (
		user *entity.User
		err  error
	)
	switch status {
	case entity.StatusActive:
		user, err = u.users.Activate(ctx, id)
	case entity.StatusInactive:
		user, err = u.users.Deactivate(ctx, id)
	case entity.StatusSuspended:
		user, err = u.users.Suspend(ctx, id)
	default:
		return nil, apperr.Validation("status must be one of ACTIVE, INACTIVE, SUSPENDED")
	}
	if err != nil {
		return nil, notFound(err)
	}

	logger.L().Info("user status changed",
		zap.Uint("actor_id", actor.ID), zap.Uint("user_id", id), zap.String("status", status))
	if u.notifier != nil {
		u.notifier.SendToUser(id, EventAccountStatus, map[string]any{"status": status})
	}
	return user, nil
}

// Delete soft-deletes a user.
func (u *UserAdminUsecase) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := u.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := u.users.DeleteByID(ctx, id); err != nil {
		return notFound(err)
	}
	logger.L().Info("user deleted", zap.Uint("actor_id", actor.ID), zap.Uint("user_id", id))
	return nil
}

// Restore brings a soft-deleted user back. The same self and rank rules as
// the other admin actions apply to the deleted target.
func (u *UserAdminUsecase) Restore(ctx context.Context, actor Actor, id uint) (*entity.User, error) {
	if err := u.authorizeWith(ctx, actor, id, u.users.FindByIDWithDeleted); err != nil {
		return nil, err
	}
	user, err := u.users.RestoreByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	logger.L().Info("user restored", zap.Uint("actor_id", actor.ID), zap.Uint("user_id", id))
	return user, nil
}
