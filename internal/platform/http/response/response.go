// Package response renders the JSON envelopes shared by every endpoint:
// {"success":true,"data":...} on success and
// {"status":"error","message":...,"details":...} on failure.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/logger"
)

// DebugKey is the gin context key that enables stack output in error bodies.
const DebugKey = "response.debug"

// Success is the success envelope.
type Success struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Error is the failure envelope.
type Error struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// OK writes data with status.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Success{Success: true, Data: data})
}

// Message writes {"message": msg} as data.
func Message(c *gin.Context, status int, msg string) {
	OK(c, status, gin.H{"message": msg})
}

// Fail aborts the request and writes the error envelope for err.
// Errors without a taxonomy code become a generic 500.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := Body(err, c.GetBool(DebugKey))
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

// Body builds the status and envelope for err. debug adds the error chain
// as the stack field.
func Body(err error, debug bool) (int, Error) {
	body := Error{Status: "error", Message: "Internal Server Error"}
	status := http.StatusInternalServerError

	if ae, ok := apperr.As(err); ok {
		status = ae.Status()
		if ae.Code != apperr.CodeInternal {
			body.Message = ae.Message
			body.Details = ae.Details
		}
	}
	if debug && err != nil {
		body.Stack = chain(err)
	}
	return status, body
}

func chain(err error) string {
	var parts []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		parts = append(parts, fmt.Sprintf("%T: %s", e, e.Error()))
	}
	return strings.Join(parts, "\n")
}
