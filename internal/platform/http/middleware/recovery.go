package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/http/response"
)

// Debug marks every request so error bodies carry the error chain.
// Only mounted outside production.
func Debug() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(response.DebugKey, true)
		c.Next()
	}
}

// Recovery turns a panic into a 500 error envelope and logs the stack.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(ContextRequestID)),
					zap.ByteString("stack", debug.Stack()),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				response.Fail(c, apperr.Internal(fmt.Errorf("panic: %v", rec)))
			}
		}()
		c.Next()
	}
}
