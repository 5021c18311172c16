// Package handler provides the HTTP handlers of the auth feature.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/feature/auth/transport/http/dto"
	"mosaic_backend/internal/feature/auth/usecase"
	"mosaic_backend/internal/platform/duration"
	"mosaic_backend/internal/platform/http/response"
	jwtmw "mosaic_backend/internal/platform/jwt"
	"mosaic_backend/internal/platform/logger"
)

// HeaderAdminSecret and QueryAdminSecret carry the admin signup secret.
const (
	HeaderAdminSecret = "X-Admin-Secret"
	QueryAdminSecret  = "key"
)

// AuthUsecase defines the account lifecycle operations.
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type AuthUsecase interface {
	Signup(ctx context.Context, in usecase.SignupInput) (*entity.User, error)
	Login(ctx context.Context, email, password string) (*usecase.LoginResult, error)
	ForgetPassword(ctx context.Context, email string) (time.Time, error)
	VerifyOtp(ctx context.Context, in usecase.VerifyOtpInput) (*usecase.VerifyResult, error)
	ResendOtp(ctx context.Context, email, event string) (time.Time, error)
	ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) error
	RefreshToken(ctx context.Context, refreshToken string) (jwtmw.Token, error)
	AdminSignup(ctx context.Context, secret string, in usecase.AdminSignupInput) (*entity.User, error)
	Me(ctx context.Context, userID uint) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID uint, p entity.ProfilePatch) (*entity.User, error)
	AvatarUploadURL(ctx context.Context, userID uint, contentType string) (*usecase.AvatarUpload, error)
}

// CookieOptions controls the session cookies.
type CookieOptions struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthHandler handles the /api/auth endpoints and the current-user
// endpoints under /api/v1/me.
type AuthHandler struct {
	auth    AuthUsecase
	cookies CookieOptions
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth AuthUsecase, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies}
}

// RegisterRoutes mounts the unauthenticated auth endpoints on g.
func (h *AuthHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password", h.ResetPassword)
	g.POST("/verify-otp", h.VerifyOtp)
	g.POST("/resend-otp", h.ResendOtp)
	g.POST("/refresh-token", h.RefreshToken)
	g.POST("/adminsignup", h.AdminSignup)
}

// RegisterMe mounts the current-user endpoints on an authenticated group.
func (h *AuthHandler) RegisterMe(g *gin.RouterGroup) {
	g.GET("/me", h.Me)
	g.PATCH("/me", h.UpdateProfile)
	g.POST("/me/avatar-upload-url", h.AvatarUploadURL)
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", h.cookies.Secure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, "", -1, "/", "", h.cookies.Secure, true)
}

// bind decodes the JSON body into req and fails the request on error.
func bind(c *gin.Context, req any, op string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.L().Warn(op+" validation failed", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		response.Fail(c, response.BindError(err))
		return false
	}
	return true
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupReq
	if !bind(c, &req, "signup") {
		return
	}
	user, err := h.auth.Signup(c.Request.Context(), usecase.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		logger.L().Warn("signup failed", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, dto.UserRes{
		Message: "User created successfully. Please check your email for verification code.",
		User:    user,
	})
}

// Login handles POST /login. The refresh token is only returned, as a
// cookie and in the body, when keepMeLoggedIn is set.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginReq
	if !bind(c, &req, "login") {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// ユーザー列挙攻撃を防止するため、失敗理由は区別しない
		logger.L().Warn("login failed", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		response.Fail(c, err)
		return
	}

	h.setCookie(c, jwtmw.CookieAccessToken, res.AccessToken.Value, h.cookies.AccessTTL)
	body := dto.LoginRes{
		Message:     "Login successful",
		User:        res.User,
		AccessToken: res.AccessToken.Value,
	}
	if req.KeepMeLoggedIn {
		h.setCookie(c, jwtmw.CookieRefreshToken, res.RefreshToken.Value, h.cookies.RefreshTTL)
		body.RefreshToken = res.RefreshToken.Value
	}
	logger.L().Info("user login successful", zap.Uint("user_id", res.User.ID), zap.String("remote_addr", c.ClientIP()))
	response.OK(c, http.StatusOK, body)
}

// Logout handles POST /logout. Tokens are stateless; only the cookies go.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearCookie(c, jwtmw.CookieAccessToken)
	h.clearCookie(c, jwtmw.CookieRefreshToken)
	response.Message(c, http.StatusOK, "Logout successful")
}

// ForgotPassword handles POST /forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordReq
	if !bind(c, &req, "forgot password") {
		return
	}
	expires, err := h.auth.ForgetPassword(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, dto.OtpSentRes{
		Message:    "Password reset OTP sent to your email",
		Email:      req.Email,
		OTPExpires: duration.CleanISO(&expires),
	})
}

// VerifyOtp handles POST /verify-otp.
func (h *AuthHandler) VerifyOtp(c *gin.Context) {
	var req dto.VerifyOtpReq
	if !bind(c, &req, "verify otp") {
		return
	}
	res, err := h.auth.VerifyOtp(c.Request.Context(), usecase.VerifyOtpInput{
		Email: req.Email,
		OTP:   req.OTP,
		Event: req.Event,
	})
	if err != nil {
		logger.L().Warn("otp verification failed", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, dto.VerifyOtpRes{
		Message:    "OTP verified successfully. Welcome to SyncMosaic!",
		User:       res.User,
		ResetToken: res.ResetToken,
	})
}

// ResendOtp handles POST /resend-otp.
func (h *AuthHandler) ResendOtp(c *gin.Context) {
	var req dto.ResendOtpReq
	if !bind(c, &req, "resend otp") {
		return
	}
	expires, err := h.auth.ResendOtp(c.Request.Context(), req.Email, req.Event)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, dto.OtpSentRes{
		Message:    "OTP resent successfully. Please check your email.",
		OTPExpires: duration.CleanISO(&expires),
	})
}

// ResetPassword handles POST /reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordReq
	if !bind(c, &req, "reset password") {
		return
	}
	err := h.auth.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		ResetToken:      req.ResetToken,
	})
	if err != nil {
		logger.L().Warn("password reset failed", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		response.Fail(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Password reset successfully")
}

// RefreshToken handles POST /refresh-token. The token is read from the
// body, falling back to the refreshToken cookie.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshReq
	if c.Request.ContentLength != 0 {
		if !bind(c, &req, "refresh token") {
			return
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(jwtmw.CookieRefreshToken)
	}

	access, err := h.auth.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		logger.L().Warn("token refresh failed", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		response.Fail(c, err)
		return
	}
	h.setCookie(c, jwtmw.CookieAccessToken, access.Value, h.cookies.AccessTTL)
	response.OK(c, http.StatusOK, dto.RefreshRes{Message: "Token refreshed", AccessToken: access.Value})
}

// AdminSignup handles POST /adminsignup. The secret comes from the
// X-Admin-Secret header or the key query parameter.
func (h *AuthHandler) AdminSignup(c *gin.Context) {
	var req dto.AdminSignupReq
	if !bind(c, &req, "admin signup") {
		return
	}
	secret := c.GetHeader(HeaderAdminSecret)
	if secret == "" {
		secret = c.Query(QueryAdminSecret)
	}

	admin, err := h.auth.AdminSignup(c.Request.Context(), secret, usecase.AdminSignupInput{
		SignupInput: usecase.SignupInput{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
		Role: req.Role,
	})
	if err != nil {
		logger.L().Warn("admin signup failed", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, dto.AdminSignupRes{Message: "Admin account created successfully", Admin: admin})
}

// Me handles GET /me.
func (h *AuthHandler) Me(c *gin.Context) {
	p, err := jwtmw.CurrentPrincipal(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	user, err := h.auth.Me(c.Request.Context(), p.ID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, user)
}

// UpdateProfile handles PATCH /me.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	p, err := jwtmw.CurrentPrincipal(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var patch entity.ProfilePatch
	if !bind(c, &patch, "profile update") {
		return
	}
	user, err := h.auth.UpdateProfile(c.Request.Context(), p.ID, patch)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, user)
}

// AvatarUploadURL handles POST /me/avatar-upload-url.
func (h *AuthHandler) AvatarUploadURL(c *gin.Context) {
	p, err := jwtmw.CurrentPrincipal(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req dto.AvatarUploadReq
	if !bind(c, &req, "avatar upload") {
		return
	}
	up, err := h.auth.AvatarUploadURL(c.Request.Context(), p.ID, req.ContentType)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, up)
}
