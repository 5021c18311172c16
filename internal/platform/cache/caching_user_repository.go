// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mosaic_backend/internal/feature/auth/adapters"
	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/platform/logger"
)

// CachingUserRepository decorates a UserRepository with a Redis read-through
// cache for FindByID. Every write that touches a user drops its entry.
//
// Cached users are stored in their public JSON form, so a FindByID served
// from the cache carries no password hash, OTP or reset token. Flows that
// need those read through FindByEmail, which is never cached.
type CachingUserRepository struct {
	*adapters.UserRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCachingUserRepository wraps inner. If ttl is 0 it defaults to 5 minutes;
// an empty namespace means "users". A nil rdb disables caching.
func NewCachingUserRepository(rdb *redis.Client, ttl time.Duration, inner *adapters.UserRepository, namespace string) *CachingUserRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "users"
	}
	return &CachingUserRepository{
		UserRepository: inner,
		rdb:            rdb,
		ttl:            ttl,
		namespace:      namespace,
	}
}

// FindByID checks the cache first then falls back to the database.
func (c *CachingUserRepository) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	if c.rdb == nil {
		return c.UserRepository.FindByID(ctx, id)
	}

	key := c.cacheKey(id)
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var u entity.User
		if err := json.Unmarshal(b, &u); err == nil {
			return &u, nil
		}
		// corrupted entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	u, err := c.UserRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(u); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return u, nil
}

// Invalidate drops the cached entry for id. Failures are logged only.
func (c *CachingUserRepository) Invalidate(ctx context.Context, id uint) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.cacheKey(id)).Err(); err != nil {
		logger.L().Warn("user cache invalidation failed", zap.Uint("user_id", id), zap.Error(err))
	}
}

func (c *CachingUserRepository) cacheKey(id uint) string {
	return fmt.Sprintf("%s:id:%d", c.namespace, id)
}

func (c *CachingUserRepository) after(ctx context.Context, id uint, err error) error {
	if err == nil {
		c.Invalidate(ctx, id)
	}
	return err
}

func (c *CachingUserRepository) afterUser(ctx context.Context, id uint, u *entity.User, err error) (*entity.User, error) {
	if err == nil {
		c.Invalidate(ctx, id)
	}
	return u, err
}

// VerifyUser invalidates the cached user.
func (c *CachingUserRepository) VerifyUser(ctx context.Context, id uint) (*entity.User, error) {
	u, err := c.UserRepository.VerifyUser(ctx, id)
	return c.afterUser(ctx, id, u, err)
}

// SetOtp invalidates the cached user.
func (c *CachingUserRepository) SetOtp(ctx context.Context, id uint, otp string, expiresAt time.Time) error {
	return c.after(ctx, id, c.UserRepository.SetOtp(ctx, id, otp, expiresAt))
}

// ClearOtp invalidates the cached user.
func (c *CachingUserRepository) ClearOtp(ctx context.Context, id uint) error {
	return c.after(ctx, id, c.UserRepository.ClearOtp(ctx, id))
}

// SetResetToken invalidates the cached user.
func (c *CachingUserRepository) SetResetToken(ctx context.Context, id uint, digest string, expiresAt time.Time) error {
	return c.after(ctx, id, c.UserRepository.SetResetToken(ctx, id, digest, expiresAt))
}

// ClearResetToken invalidates the cached user.
func (c *CachingUserRepository) ClearResetToken(ctx context.Context, id uint) error {
	return c.after(ctx, id, c.UserRepository.ClearResetToken(ctx, id))
}

// UpdatePassword invalidates the cached user.
func (c *CachingUserRepository) UpdatePassword(ctx context.Context, id uint, newPassword string) error {
	return c.after(ctx, id, c.UserRepository.UpdatePassword(ctx, id, newPassword))
}

// Activate invalidates the cached user.
func (c *CachingUserRepository) Activate(ctx context.Context, id uint) (*entity.User, error) {
	u, err := c.UserRepository.Activate(ctx, id)
	return c.afterUser(ctx, id, u, err)
}

// Deactivate invalidates the cached user.
func (c *CachingUserRepository) Deactivate(ctx context.Context, id uint) (*entity.User, error) {
	u, err := c.UserRepository.Deactivate(ctx, id)
	return c.afterUser(ctx, id, u, err)
}

// Suspend invalidates the cached user.
func (c *CachingUserRepository) Suspend(ctx context.Context, id uint) (*entity.User, error) {
	u, err := c.UserRepository.Suspend(ctx, id)
	return c.afterUser(ctx, id, u, err)
}

// UpdateLastLogin invalidates the cached user.
func (c *CachingUserRepository) UpdateLastLogin(ctx context.Context, id uint) error {
	return c.after(ctx, id, c.UserRepository.UpdateLastLogin(ctx, id))
}

// IncrementLoginAttempts invalidates the cached user.
func (c *CachingUserRepository) IncrementLoginAttempts(ctx context.Context, id uint) error {
	return c.after(ctx, id, c.UserRepository.IncrementLoginAttempts(ctx, id))
}

// ResetLoginAttempts invalidates the cached user.
func (c *CachingUserRepository) ResetLoginAttempts(ctx context.Context, id uint) error {
	return c.after(ctx, id, c.UserRepository.ResetLoginAttempts(ctx, id))
}

// UpdateProfile invalidates the cached user.
func (c *CachingUserRepository) UpdateProfile(ctx context.Context, id uint, p entity.ProfilePatch) (*entity.User, error) {
	u, err := c.UserRepository.UpdateProfile(ctx, id, p)
	return c.afterUser(ctx, id, u, err)
}

// DeleteByID invalidates the cached user.
func (c *CachingUserRepository) DeleteByID(ctx context.Context, id uint) error {
	return c.after(ctx, id, c.UserRepository.DeleteByID(ctx, id))
}

// RestoreByID invalidates the cached user.
func (c *CachingUserRepository) RestoreByID(ctx context.Context, id uint) (*entity.User, error) {
	u, err := c.UserRepository.RestoreByID(ctx, id)
	return c.afterUser(ctx, id, u, err)
}
