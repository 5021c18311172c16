// Package router assembles the gin engine.
package router

import (
	"github.com/gin-gonic/gin"

	"mosaic_backend/internal/app/di"
	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/platform/config"
	"mosaic_backend/internal/platform/http/handler"
	"mosaic_backend/internal/platform/http/middleware"
	jwtmw "mosaic_backend/internal/platform/jwt"
	"mosaic_backend/internal/platform/logger"
)

// New builds the engine with the middleware chain and every route group.
func New(cfg *config.Config, c *di.Container) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(logger.L()),
		middleware.Recovery(logger.L()),
		middleware.SecureHeaders(cfg.IsProduction()),
		middleware.CORS(cfg.IsProduction(), cfg.SiteURL, cfg.AdminURL),
		middleware.BodyLimit(middleware.MaxBodyBytes),
	)
	if cfg.IsDevelopment() {
		r.Use(middleware.Debug())
	}
	r.NoRoute(handler.NotFound)
	r.NoMethod(handler.MethodNotAllowed)

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.GET("/readyz", handler.Ready(c.Ready))

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	c.Auth.RegisterRoutes(r.Group("/api/auth", limiter.Middleware()))

	// websocket はクエリパラメータのトークンも受け付ける
	r.GET("/api/v1/ws",
		jwtmw.Authenticate(c.Issuer, c.Principals, jwtmw.Options{AllowQuery: true}),
		c.WS.Serve,
	)

	// 認証必須のルート
	v1 := r.Group("/api/v1", jwtmw.Authenticate(c.Issuer, c.Principals))
	{
		c.Auth.RegisterMe(v1)
		c.Tasks.RegisterRoutes(v1.Group("/tasks"))

		admin := v1.Group("/admin", jwtmw.RequireRole(entity.RoleAdmin, entity.RoleSuperAdmin))
		c.UserAdmin.RegisterRoutes(admin.Group("/users"))
		c.Notifications.RegisterRoutes(admin.Group("/notifications"))
	}

	return r
}
