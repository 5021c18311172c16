package jwtmw

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/http/response"
	"mosaic_backend/internal/platform/logger"
	"mosaic_backend/internal/platform/tenant"
)

// Gin context keys set by Authenticate.
const (
	ContextUserID    = "userID"
	ContextEmail     = "email"
	ContextRole      = "role"
	ContextTenantID  = "tenantID"
	ContextPrincipal = "principal"
)

// Cookie and query names carrying the access token.
const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"
	QueryToken         = "token"
)

// StatusActive is the only account status allowed through Authenticate.
const StatusActive = "ACTIVE"

const msgNotAuthorized = "Not authorized to access this route"

// Principal is the authenticated account as seen by the transport layer.
type Principal struct {
	ID       uint
	Email    string
	Role     string
	Status   string
	TenantID string
}

// PrincipalLookup loads the current state of the account a token refers to.
// It returns an error carrying apperr.CodeNotFound when the account is gone.
type PrincipalLookup interface {
	Principal(ctx context.Context, id uint) (*Principal, error)
}

// Options tune where Authenticate looks for the token.
type Options struct {
	// AllowQuery accepts ?token=, used by the websocket handshake.
	AllowQuery bool
}

// TokenFromRequest returns the bearer token from the Authorization header,
// then the accessToken cookie, then (if allowQuery) the token parameter.
func TokenFromRequest(r *http.Request, allowQuery bool) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := r.Cookie(CookieAccessToken); err == nil && ck.Value != "" {
		return ck.Value
	}
	if allowQuery {
		return r.URL.Query().Get(QueryToken)
	}
	return ""
}

// Authenticate verifies the access token, reloads the account and rejects
// accounts that are not ACTIVE. On success the principal is stored on the
// gin context and the request context carries its tenant.
func Authenticate(issuer *Issuer, users PrincipalLookup, opts ...Options) gin.HandlerFunc {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	return func(c *gin.Context) {
		raw := TokenFromRequest(c.Request, o.AllowQuery)
		if raw == "" {
			response.Fail(c, apperr.Unauthorized(msgNotAuthorized))
			return
		}

		claims, err := issuer.ParseAccess(raw)
		if err != nil {
			logger.L().Warn("access token rejected", zap.String("remote_addr", c.ClientIP()), zap.Error(err))
			response.Fail(c, apperr.Unauthorized(msgNotAuthorized))
			return
		}

		p, err := users.Principal(c.Request.Context(), claims.UserID)
		switch {
		case apperr.IsCode(err, apperr.CodeNotFound):
			response.Fail(c, apperr.Unauthorized("User belonging to this token no longer exists"))
			return
		case err != nil:
			response.Fail(c, err)
			return
		}

		if p.Status != StatusActive {
			response.Fail(c, apperr.Forbidden("User account is "+strings.ToLower(p.Status)))
			return
		}

		c.Set(ContextUserID, p.ID)
		c.Set(ContextEmail, p.Email)
		c.Set(ContextRole, p.Role)
		c.Set(ContextTenantID, p.TenantID)
		c.Set(ContextPrincipal, p)
		if p.TenantID != "" {
			c.Request = c.Request.WithContext(tenant.WithTenant(c.Request.Context(), p.TenantID))
		}
		c.Next()
	}
}

// RequireRole allows only principals whose role is in roles.
// It must run after Authenticate.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(ContextRole)) {
			response.Fail(c, apperr.Forbidden("Access denied. Allowed roles: "+strings.Join(roles, ", ")))
			return
		}
		c.Next()
	}
}

// ErrNoPrincipal is returned by CurrentPrincipal outside authenticated routes.
var ErrNoPrincipal = errors.New("no authenticated principal in context")

// CurrentPrincipal returns the principal stored by Authenticate.
func CurrentPrincipal(c *gin.Context) (*Principal, error) {
	p, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, ErrNoPrincipal
	}
	pr, ok := p.(*Principal)
	if !ok {
		return nil, ErrNoPrincipal
	}
	return pr, nil
}
