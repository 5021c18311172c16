// Package handler provides HTTP handlers for platform-level endpoints.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/http/response"
	"mosaic_backend/internal/platform/logger"
)

// Health handles the /healthz liveness endpoint.
func Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Checker reports whether a dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Ready returns the /readyz handler. Each named checker gets two seconds;
// any failure turns the response into 503.
func Ready(checks map[string]Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		results := make(map[string]string, len(checks))
		healthy := true
		for name, chk := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := chk.Check(ctx)
			cancel()
			if err != nil {
				healthy = false
				results[name] = "down"
				logger.L().Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
				continue
			}
			results[name] = "up"
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
	}
}

// NotFound renders unmatched routes.
func NotFound(c *gin.Context) {
	response.Fail(c, apperr.NotFound("Route not found"))
}

// MethodNotAllowed renders routes matched without a handler for the method.
func MethodNotAllowed(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, response.Error{Status: "error", Message: "Method not allowed"})
}
