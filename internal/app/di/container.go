package di

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	authadapters "mosaic_backend/internal/feature/auth/adapters"
	authhandler "mosaic_backend/internal/feature/auth/transport/handler"
	authusecase "mosaic_backend/internal/feature/auth/usecase"
	mailadapters "mosaic_backend/internal/feature/mailer/adapters"
	mailusecase "mosaic_backend/internal/feature/mailer/usecase"
	"mosaic_backend/internal/feature/notification/hub"
	notifhandler "mosaic_backend/internal/feature/notification/transport/handler"
	taskadapters "mosaic_backend/internal/feature/tasks/adapters"
	taskhandler "mosaic_backend/internal/feature/tasks/transport/handler"
	taskusecase "mosaic_backend/internal/feature/tasks/usecase"
	userhandler "mosaic_backend/internal/feature/users/transport/handler"
	userusecase "mosaic_backend/internal/feature/users/usecase"
	"mosaic_backend/internal/platform/cache"
	"mosaic_backend/internal/platform/config"
	platformhandler "mosaic_backend/internal/platform/http/handler"
	"mosaic_backend/internal/platform/http/middleware"
	jwtmw "mosaic_backend/internal/platform/jwt"
)

// Container holds the wired application.
type Container struct {
	Issuer     *jwtmw.Issuer
	Principals jwtmw.PrincipalLookup
	Hub        *hub.Hub
	Dispatcher *mailusecase.Dispatcher

	Auth          *authhandler.AuthHandler
	Tasks         *taskhandler.TaskHandler
	UserAdmin     *userhandler.UserAdminHandler
	WS            *notifhandler.WSHandler
	Notifications *notifhandler.AdminHandler

	// Ready are the /readyz dependency checks.
	Ready map[string]platformhandler.Checker
}

// Build wires repositories, usecases and handlers. rdb may be nil.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Container, error) {
	reg, err := NewRegistry(db)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	// Repository
	userRepo, err := authadapters.NewUserRepository(reg)
	if err != nil {
		return nil, err
	}
	users := cache.NewCachingUserRepository(rdb, 0, userRepo, "users")
	taskRepo, err := taskadapters.NewTaskRepository(reg, NewSequencer(rdb, reg, db))
	if err != nil {
		return nil, err
	}
	outbox, err := mailadapters.NewOutboxRepository(reg)
	if err != nil {
		return nil, err
	}

	// Infrastructure
	issuer := jwtmw.NewIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	notifier := hub.New(hub.DefaultQueueSize)
	mailer, err := mailusecase.NewMailer(outbox, mailusecase.MailerOptions{OTPTTL: cfg.OTPTTL(), SiteURL: cfg.SiteURL})
	if err != nil {
		return nil, err
	}
	sender, err := NewSender(cfg)
	if err != nil {
		return nil, err
	}
	avatars, err := NewPresigner(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	// Usecase
	authUC := authusecase.NewAuthUsecase(users, issuer, mailer, notifier, avatars, authusecase.Options{
		OTPTTL:      cfg.OTPTTL(),
		AdminSecret: cfg.SuperAdminSecret,
		Cooldown:    NewCooldown(rdb, cfg),
	})
	taskUC := taskusecase.NewTaskUsecase(taskRepo, notifier)
	userUC := userusecase.NewUserAdminUsecase(users, notifier)

	ready := map[string]platformhandler.Checker{
		"database": platformhandler.CheckFunc(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if rdb != nil {
		ready["redis"] = platformhandler.CheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	return &Container{
		Issuer:     issuer,
		Principals: authadapters.NewPrincipalLookup(users),
		Hub:        notifier,
		Dispatcher: mailusecase.NewDispatcher(outbox, sender, mailusecase.DispatcherOptions{
			PollInterval: cfg.OutboxPollInterval,
			MaxAttempts:  cfg.OutboxMaxAttempts,
		}),

		Auth: authhandler.NewAuthHandler(authUC, authhandler.CookieOptions{
			Secure:     cfg.IsProduction(),
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
		}),
		Tasks:         taskhandler.NewTaskHandler(taskRepo, taskUC),
		UserAdmin:     userhandler.NewUserAdminHandler(userUC),
		WS:            notifhandler.NewWSHandler(notifier, middleware.AllowedOrigins(cfg.IsProduction(), cfg.SiteURL, cfg.AdminURL)),
		Notifications: notifhandler.NewAdminHandler(notifier),
		Ready:         ready,
	}, nil
}
