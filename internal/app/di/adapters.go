// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authadapters "mosaic_backend/internal/feature/auth/adapters"
	"mosaic_backend/internal/feature/auth/domain/entity"
	authusecase "mosaic_backend/internal/feature/auth/usecase"
	mailadapters "mosaic_backend/internal/feature/mailer/adapters"
	mailentity "mosaic_backend/internal/feature/mailer/domain/entity"
	mailusecase "mosaic_backend/internal/feature/mailer/usecase"
	taskadapters "mosaic_backend/internal/feature/tasks/adapters"
	taskentity "mosaic_backend/internal/feature/tasks/domain/entity"
	"mosaic_backend/internal/platform/config"
	"mosaic_backend/internal/platform/logger"
	"mosaic_backend/internal/platform/repository"
	"mosaic_backend/internal/platform/storage"
	"mosaic_backend/internal/platform/throttle"
)

// NewRegistry binds every collection of the application to db.
func NewRegistry(db *gorm.DB) (*repository.Registry, error) {
	reg := repository.NewRegistry()
	for name, model := range map[string]any{
		authadapters.CollectionUsers:  &entity.User{},
		taskadapters.CollectionTasks:  &taskentity.Task{},
		mailadapters.CollectionOutbox: &mailentity.OutboxMessage{},
	} {
		if err := reg.Register(name, db, model); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewSequencer returns the counter used for auto-increment fields.
// If Redis is available, it returns a Redis-backed implementation seeded
// from the tables in reg. Otherwise, it falls back to the counters table.
func NewSequencer(rdb *redis.Client, reg *repository.Registry, db *gorm.DB) repository.Sequencer {
	if rdb != nil {
		return repository.NewRedisSequencer(rdb, "seq").WithSeeder(repository.MaxSeqSeeder(reg))
	}
	return repository.NewDBSequencer(db)
}

// NewSender returns the Resend sender when an API key is configured and
// the log sender otherwise.
func NewSender(cfg *config.Config) (mailusecase.Sender, error) {
	if cfg.ResendAPIKey == "" {
		logger.L().Warn("RESEND_API_KEY not set, emails are written to the log")
		return mailadapters.NewLogSender(), nil
	}
	return mailadapters.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
}

// NewCooldown returns the OTP resend cooldown, or nil when Redis is not
// available or the cooldown is disabled.
func NewCooldown(rdb *redis.Client, cfg *config.Config) authusecase.Cooldown {
	if rdb == nil || cfg.OTPResendCooldown <= 0 {
		return nil
	}
	return throttle.NewCooldownRedis(rdb, "cooldown", cfg.OTPResendCooldown)
}

// NewPresigner returns the avatar upload presigner, or nil when storage is
// not configured.
func NewPresigner(ctx context.Context, cfg *config.Config) (authusecase.Presigner, error) {
	if !cfg.StorageEnabled() {
		logger.L().Info("object storage not configured, avatar uploads disabled")
		return nil, nil
	}
	p, err := storage.NewS3Presigner(ctx, storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	logger.L().Info("object storage configured", zap.String("bucket", cfg.S3Bucket))
	return p, nil
}
