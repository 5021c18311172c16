package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/platform/apperr"
	jwtmw "mosaic_backend/internal/platform/jwt"
	"mosaic_backend/internal/platform/logger"
)

// dummyHash is compared against when the email is unknown so that login
// takes the same time whether or not the account exists.
const dummyHash = "$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserRepository abstracts the persistence layer for user entities.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type UserRepository interface {
	// Create persists a new user. A taken email is a Conflict.
	Create(ctx context.Context, user *entity.User) error

	// FindByEmail retrieves a live user by email. The password hash is only
	// loaded when selectPassword is set.
	FindByEmail(ctx context.Context, email string, selectPassword bool) (*entity.User, error)

	// FindByID retrieves a live user by ID. Secret fields may be absent.
	FindByID(ctx context.Context, id uint) (*entity.User, error)

	VerifyUser(ctx context.Context, id uint) (*entity.User, error)
	SetOtp(ctx context.Context, id uint, otp string, expiresAt time.Time) error
	ClearOtp(ctx context.Context, id uint) error
	SetResetToken(ctx context.Context, id uint, digest string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id uint) error
	UpdatePassword(ctx context.Context, id uint, newPassword string) error
	UpdateLastLogin(ctx context.Context, id uint) error
	IncrementLoginAttempts(ctx context.Context, id uint) error
	ResetLoginAttempts(ctx context.Context, id uint) error
	UpdateProfile(ctx context.Context, id uint, p entity.ProfilePatch) (*entity.User, error)
}

// TokenIssuer signs and verifies session tokens.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (platform/jwt).
type TokenIssuer interface {
	AccessToken(userID uint, email, role string) (jwtmw.Token, error)
	RefreshToken(userID uint, email, role string) (jwtmw.Token, error)
	ParseRefresh(token string) (*jwtmw.Claims, error)
}

// Mailer queues account emails. A returned error means the message was not
// queued; it never means delivery failed.
type Mailer interface {
	SendOtp(ctx context.Context, to, otp, firstName string) error
	SendWelcome(ctx context.Context, to, firstName string) error
	SendPasswordReset(ctx context.Context, to, otp, firstName string) error
}

// Notifier pushes events to a user's live connections and reports how many
// connections received it.
type Notifier interface {
	SendToUser(userID uint, event string, payload any) int
}

// Presigner issues a time-limited upload URL for an object key.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
}

// Cooldown rate-limits repeated requests per key. Acquire reports false and
// the remaining wait while a window is running.
type Cooldown interface {
	Acquire(ctx context.Context, key string) (bool, time.Duration, error)
	Release(ctx context.Context, key string) error
}

// Options configures the auth usecase.
type Options struct {
	// OTPTTL is the validity window of OTPs and reset grants.
	OTPTTL time.Duration
	// AdminSecret gates AdminSignup. Empty disables admin signup.
	AdminSecret string
	// Cooldown spaces out OTP reissues per email. Nil disables it.
	Cooldown Cooldown
}

// AuthUsecase implements the account lifecycle: signup, login, OTP
// verification, password reset and token refresh.
type AuthUsecase struct {
	users    UserRepository
	tokens   TokenIssuer
	mailer   Mailer
	notifier Notifier
	avatars  Presigner
	opts     Options
	now      func() time.Time
}

// NewAuthUsecase creates an AuthUsecase. notifier and avatars may be nil.
func NewAuthUsecase(users UserRepository, tokens TokenIssuer, mailer Mailer, notifier Notifier, avatars Presigner, opts Options) *AuthUsecase {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	return &AuthUsecase{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		notifier: notifier,
		avatars:  avatars,
		opts:     opts,
		now:      time.Now,
	}
}

// SignupInput holds the signup fields.
type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Signup creates a PENDING, unverified user in a fresh workspace and queues
// the verification OTP.
func (u *AuthUsecase) Signup(ctx context.Context, in SignupInput) (*entity.User, error) {
	if err := u.ensureEmailFree(ctx, in.Email, "Email already exists"); err != nil {
		return nil, err
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	expires := u.now().Add(u.opts.OTPTTL).UTC()

	user := &entity.User{
		Email:      in.Email,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Role:       entity.RoleUser,
		Status:     entity.StatusPending,
		OTP:        &otp,
		OTPExpires: &expires,
	}
	user.TenantID = uuid.NewString()
	user.SetPassword(in.Password)

	if err := u.users.Create(ctx, user); err != nil {
		if apperr.IsCode(err, apperr.CodeConflict) {
			return nil, apperr.Wrap(ErrEmailAlreadyExists, apperr.CodeConflict, "Email already exists")
		}
		return nil, err
	}

	u.queue("otp", user.Email, u.mailer.SendOtp(ctx, user.Email, otp, user.FirstName))
	logger.L().Info("user signed up", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User         *entity.User
	AccessToken  jwtmw.Token
	RefreshToken jwtmw.Token
}

// Login authenticates by email and password and issues both tokens.
// Account status is not checked here; the authenticate middleware gates it.
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := u.users.FindByEmail(ctx, email, true)
	if err != nil && !apperr.IsCode(err, apperr.CodeNotFound) {
		return nil, err
	}

	// 常にbcrypt比較を実行してタイミング差をなくす
	hash := dummyHash
	if user != nil {
		hash = user.Password
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	if user == nil || compareErr != nil {
		if user != nil {
			if err := u.users.IncrementLoginAttempts(ctx, user.ID); err != nil {
				logger.L().Warn("failed to record login attempt", zap.Uint("user_id", user.ID), zap.Error(err))
			}
		}
		return nil, apperr.Wrap(ErrInvalidCredentials, apperr.CodeUnauthorized, "Invalid email or password")
	}

	access, err := u.tokens.AccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to generate access token: %w", err))
	}
	refresh, err := u.tokens.RefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to generate refresh token: %w", err))
	}

	if user.LoginAttempts > 0 {
		if err := u.users.ResetLoginAttempts(ctx, user.ID); err != nil {
			logger.L().Warn("failed to reset login attempts", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}
	if err := u.users.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.L().Warn("failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	user.Password = ""
	return &LoginResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshToken verifies a refresh token and issues a new access token with
// the same claims. Tokens are stateless; no store is consulted.
func (u *AuthUsecase) RefreshToken(ctx context.Context, refreshToken string) (jwtmw.Token, error) {
	if refreshToken == "" {
		return jwtmw.Token{}, apperr.Wrap(ErrInvalidRefreshToken, apperr.CodeUnauthorized, "Refresh token missing")
	}
	claims, err := u.tokens.ParseRefresh(refreshToken)
	if err != nil {
		logger.L().Warn("refresh token rejected", zap.Error(err))
		return jwtmw.Token{}, apperr.Wrap(ErrInvalidRefreshToken, apperr.CodeUnauthorized, "Invalid refresh token")
	}
	access, err := u.tokens.AccessToken(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return jwtmw.Token{}, apperr.Internal(fmt.Errorf("failed to generate access token: %w", err))
	}
	return access, nil
}

// AdminSignupInput holds the admin signup fields.
type AdminSignupInput struct {
	SignupInput
	Role string
}

// AdminSignup creates a verified, ACTIVE account with an elevated role when
// secret matches the configured admin secret.
func (u *AuthUsecase) AdminSignup(ctx context.Context, secret string, in AdminSignupInput) (*entity.User, error) {
	if in.Role == "" {
		in.Role = entity.RoleAdmin
	}
	if !entity.ValidRole(in.Role) {
		return nil, apperr.Validation("Role is not valid!")
	}
	if u.opts.AdminSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(u.opts.AdminSecret)) != 1 {
		logger.L().Warn("admin signup rejected", zap.String("email", in.Email))
		return nil, apperr.Wrap(ErrInvalidAdminSecret, apperr.CodeUnauthorized, "Invalid admin secret key")
	}
	if err := u.ensureEmailFree(ctx, in.Email, "Admin already exists with this email"); err != nil {
		return nil, err
	}

	user := &entity.User{
		Email:      in.Email,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Role:       in.Role,
		IsVerified: true,
		Status:     entity.StatusActive,
	}
	user.TenantID = uuid.NewString()
	user.SetPassword(in.Password)

	if err := u.users.Create(ctx, user); err != nil {
		if apperr.IsCode(err, apperr.CodeConflict) {
			return nil, apperr.Wrap(ErrEmailAlreadyExists, apperr.CodeConflict, "Admin already exists with this email")
		}
		return nil, err
	}
	logger.L().Info("admin account created", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

func (u *AuthUsecase) ensureEmailFree(ctx context.Context, email, msg string) error {
	_, err := u.users.FindByEmail(ctx, email, false)
	switch {
	case err == nil:
		return apperr.Wrap(ErrEmailAlreadyExists, apperr.CodeConflict, msg)
	case apperr.IsCode(err, apperr.CodeNotFound):
		return nil
	default:
		return err
	}
}

// findByEmail maps a missing user to the "User not found" error.
func (u *AuthUsecase) findByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := u.users.FindByEmail(ctx, email, false)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil, apperr.Wrap(ErrUserNotFound, apperr.CodeNotFound, "User not found")
		}
		return nil, err
	}
	return user, nil
}

// queue logs a failed enqueue. Email never fails the primary operation.
func (u *AuthUsecase) queue(kind, to string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.L().Warn("email not queued, request cancelled", zap.String("kind", kind), zap.String("email", to))
		return
	}
	logger.L().Error("failed to queue email", zap.String("kind", kind), zap.String("email", to), zap.Error(err))
}

func (u *AuthUsecase) notify(userID uint, event string, payload any) {
	if u.notifier == nil {
		return
	}
	u.notifier.SendToUser(userID, event, payload)
}
