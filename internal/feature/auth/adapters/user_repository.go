// Package adapters provides the storage implementation of the auth feature.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gorm.io/gorm"

	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/repository"
)

// CollectionUsers is the registry name of the users table.
const CollectionUsers = "users"

// UserRepository persists users through the generic soft-delete repository.
// Users are global: lookups by email never carry a tenant filter.
type UserRepository struct {
	users *repository.SoftDelete[entity.User]
	db    *gorm.DB
}

// NewUserRepository builds the repository from the "users" registry binding.
func NewUserRepository(reg *repository.Registry) (*UserRepository, error) {
	base, err := repository.New[entity.User](reg, CollectionUsers, repository.Options{
		Entity:       "User",
		SearchFields: []string{"email", "first_name", "last_name"},
	})
	if err != nil {
		return nil, fmt.Errorf("users repository: %w", err)
	}
	sd, err := repository.NewSoftDelete(base)
	if err != nil {
		return nil, fmt.Errorf("users repository: %w", err)
	}
	b, _ := reg.Binding(CollectionUsers)
	return &UserRepository{users: sd, db: b.DB}, nil
}

// Create validates and inserts u. The password is hashed by the entity's
// save hook. A taken email is a Conflict.
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	u.Email = entity.NormalizeEmail(u.Email)
	if !entity.ValidEmail(u.Email) {
		return apperr.Validation("email is invalid")
	}
	if len(u.Password) < entity.MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters long", entity.MinPasswordLength))
	}
	if u.Role == "" {
		u.Role = entity.RoleUser
	}
	if !entity.ValidRole(u.Role) {
		return apperr.Validation("Role is not valid!")
	}
	if u.Status == "" {
		u.Status = entity.StatusPending
	}
	if err := r.users.Create(ctx, u); err != nil {
		if apperr.IsCode(err, apperr.CodeConflict) {
			return apperr.Wrap(err, apperr.CodeConflict, "Email already exists")
		}
		return err
	}
	return nil
}

// FindByEmail looks a user up by normalized email. The password hash is
// only populated when selectPassword is set.
func (r *UserRepository) FindByEmail(ctx context.Context, email string, selectPassword bool) (*entity.User, error) {
	u, err := r.users.FindOne(ctx, repository.Eq("email", entity.NormalizeEmail(email)))
	if err != nil {
		return nil, err
	}
	if !selectPassword {
		u.Password = ""
	}
	return u, nil
}

// FindByID returns a live user.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	return r.users.FindByID(ctx, id)
}

// ComparePassword reports whether candidate matches u's stored hash.
// u must have been loaded with its password.
func (r *UserRepository) ComparePassword(u *entity.User, candidate string) bool {
	return u.CheckPassword(candidate)
}

// VerifyUser marks the account verified and ACTIVE in one update.
func (r *UserRepository) VerifyUser(ctx context.Context, id uint) (*entity.User, error) {
	return r.users.UpdateByID(ctx, id, map[string]any{
		"is_verified": true,
		"status":      entity.StatusActive,
	})
}

// SetOtp stores an OTP and its expiry together.
func (r *UserRepository) SetOtp(ctx context.Context, id uint, otp string, expiresAt time.Time) error {
	_, err := r.users.UpdateByID(ctx, id, map[string]any{
		"otp":         otp,
		"otp_expires": expiresAt.UTC(),
	})
	return err
}

// ClearOtp removes the OTP and its expiry together.
func (r *UserRepository) ClearOtp(ctx context.Context, id uint) error {
	_, err := r.users.UpdateByID(ctx, id, map[string]any{
		"otp":         nil,
		"otp_expires": nil,
	})
	return err
}

// SetResetToken stores the digest of a password reset grant.
func (r *UserRepository) SetResetToken(ctx context.Context, id uint, digest string, expiresAt time.Time) error {
	_, err := r.users.UpdateByID(ctx, id, map[string]any{
		"reset_password_token":   digest,
		"reset_password_expires": expiresAt.UTC(),
	})
	return err
}

// ClearResetToken removes any password reset grant.
func (r *UserRepository) ClearResetToken(ctx context.Context, id uint) error {
	_, err := r.users.UpdateByID(ctx, id, map[string]any{
		"reset_password_token":   nil,
		"reset_password_expires": nil,
	})
	return err
}

// UpdatePassword loads the user, assigns the new password and saves it so
// the save hook hashes it.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, newPassword string) error {
	if len(newPassword) < entity.MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters long", entity.MinPasswordLength))
	}
	u, err := r.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.SetPassword(newPassword)
	if err := r.db.WithContext(ctx).Model(u).Select("password", "updated_at").Updates(u).Error; err != nil {
		return apperr.FromStorage(err, "User")
	}
	return nil
}

func (r *UserRepository) setStatus(ctx context.Context, id uint, status string) (*entity.User, error) {
	return r.users.UpdateByID(ctx, id, map[string]any{"status": status})
}

// Activate sets status ACTIVE. Transition policy is the caller's concern.
func (r *UserRepository) Activate(ctx context.Context, id uint) (*entity.User, error) {
	return r.setStatus(ctx, id, entity.StatusActive)
}

// Deactivate sets status INACTIVE.
func (r *UserRepository) Deactivate(ctx context.Context, id uint) (*entity.User, error) {
	return r.setStatus(ctx, id, entity.StatusInactive)
}

// Suspend sets status SUSPENDED.
func (r *UserRepository) Suspend(ctx context.Context, id uint) (*entity.User, error) {
	return r.setStatus(ctx, id, entity.StatusSuspended)
}

// UpdateLastLogin stamps the login time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uint) error {
	_, err := r.users.UpdateByID(ctx, id, map[string]any{"last_login": time.Now().UTC()})
	return err
}

// IncrementLoginAttempts bumps the failed-login counter atomically.
func (r *UserRepository) IncrementLoginAttempts(ctx context.Context, id uint) error {
	_, err := r.users.UpdateByID(ctx, id, map[string]any{"login_attempts": gorm.Expr("login_attempts + 1")})
	return err
}

// ResetLoginAttempts zeroes the failed-login counter.
func (r *UserRepository) ResetLoginAttempts(ctx context.Context, id uint) error {
	_, err := r.users.UpdateByID(ctx, id, map[string]any{"login_attempts": 0})
	return err
}

// UpdateProfile applies a partial profile update.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, p entity.ProfilePatch) (*entity.User, error) {
	patch := map[string]any{}
	if p.FirstName != nil {
		patch["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		patch["last_name"] = *p.LastName
	}
	if p.Avatar != nil {
		patch["avatar"] = *p.Avatar
	}
	return r.users.UpdateByID(ctx, id, patch)
}

// Lookup lists live users from query parameters.
func (r *UserRepository) Lookup(ctx context.Context, params url.Values) (*repository.Page[entity.User], error) {
	return r.users.Lookup(ctx, params)
}

// LookupDeleted lists soft-deleted users from query parameters.
func (r *UserRepository) LookupDeleted(ctx context.Context, params url.Values) (*repository.Page[entity.User], error) {
	q, err := r.users.ParseLookup(params)
	if err != nil {
		return nil, err
	}
	return r.users.PaginateDeleted(ctx, q)
}

// DeleteByID soft deletes a user.
func (r *UserRepository) DeleteByID(ctx context.Context, id uint) error {
	_, err := r.users.DeleteByID(ctx, id)
	if errors.Is(err, repository.ErrSoftDeleted) {
		return nil
	}
	return err
}

// FindByIDWithDeleted returns the user whether or not it is soft-deleted.
func (r *UserRepository) FindByIDWithDeleted(ctx context.Context, id uint) (*entity.User, error) {
	return r.users.FindByIDWithDeleted(ctx, id)
}

// RestoreByID brings a soft-deleted user back.
func (r *UserRepository) RestoreByID(ctx context.Context, id uint) (*entity.User, error) {
	return r.users.RestoreByID(ctx, id)
}
