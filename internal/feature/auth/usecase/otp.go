package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/duration"
	"mosaic_backend/internal/platform/logger"
)

// OTP events.
const (
	EventVerify = "verify"
	EventSignup = "signup"
	EventReset  = "reset"
)

// EventAccountVerified is pushed to the user when verification succeeds.
const EventAccountVerified = "account.verified"

const (
	otpMin   = 100000
	otpRange = 900000
)

// generateOTP returns a uniformly random 6-digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// generateResetToken returns a random token and the digest to store.
func generateResetToken() (token, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, digestOf(token), nil
}

func digestOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validEvent(event string) (string, error) {
	switch event {
	case "":
		return EventVerify, nil
	case EventVerify, EventSignup, EventReset:
		return event, nil
	}
	return "", apperr.Validation("event must be one of verify, signup, reset")
}

func cooldownKey(email string) string { return "otp:" + email }

// holdCooldown starts the resend window for email. The cooldown fails open:
// an unreachable store never blocks OTP delivery.
func (u *AuthUsecase) holdCooldown(ctx context.Context, email string) error {
	if u.opts.Cooldown == nil {
		return nil
	}
	ok, wait, err := u.opts.Cooldown.Acquire(ctx, cooldownKey(email))
	if err != nil {
		logger.L().Warn("otp cooldown unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return apperr.Wrap(ErrOTPCooldown, apperr.CodeTooManyRequests, "Please wait before requesting another OTP").
			WithDetails(map[string]int{"retryAfterSeconds": int(math.Ceil(wait.Seconds()))})
	}
	return nil
}

// issueOtp stores a fresh OTP for user and returns it with its expiry.
func (u *AuthUsecase) issueOtp(ctx context.Context, user *entity.User) (string, time.Time, error) {
	if err := u.holdCooldown(ctx, user.Email); err != nil {
		return "", time.Time{}, err
	}
	otp, err := generateOTP()
	if err != nil {
		return "", time.Time{}, apperr.Internal(err)
	}
	expires := u.now().Add(u.opts.OTPTTL).UTC()
	if err := u.users.SetOtp(ctx, user.ID, otp, expires); err != nil {
		if u.opts.Cooldown != nil {
			_ = u.opts.Cooldown.Release(ctx, cooldownKey(user.Email))
		}
		return "", time.Time{}, err
	}
	return otp, expires, nil
}

// ForgetPassword issues a password reset OTP to an existing user and
// returns its expiry.
func (u *AuthUsecase) ForgetPassword(ctx context.Context, email string) (time.Time, error) {
	user, err := u.findByEmail(ctx, email)
	if err != nil {
		return time.Time{}, err
	}
	otp, expires, err := u.issueOtp(ctx, user)
	if err != nil {
		return time.Time{}, err
	}
	u.queue("password_reset", user.Email, u.mailer.SendPasswordReset(ctx, user.Email, otp, user.FirstName))
	logger.L().Info("password reset otp issued", zap.Uint("user_id", user.ID))
	return expires, nil
}

// VerifyOtpInput holds the verify-otp fields.
type VerifyOtpInput struct {
	Email string
	OTP   string
	Event string
}

// VerifyResult is the outcome of a successful OTP verification. ResetToken
// is only set for the reset event.
type VerifyResult struct {
	User       *entity.User
	ResetToken string
}

// VerifyOtp checks the OTP, marks the user verified and ACTIVE, and clears
// the OTP so it cannot be used twice. The reset event also grants a
// single-use reset token that ResetPassword requires.
func (u *AuthUsecase) VerifyOtp(ctx context.Context, in VerifyOtpInput) (*VerifyResult, error) {
	event, err := validEvent(in.Event)
	if err != nil {
		return nil, err
	}
	user, err := u.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	if user.OTP == nil || subtle.ConstantTimeCompare([]byte(*user.OTP), []byte(in.OTP)) != 1 {
		logger.L().Warn("otp mismatch", zap.Uint("user_id", user.ID))
		return nil, apperr.Wrap(ErrInvalidOTP, apperr.CodeUnauthorized, "Invalid OTP")
	}
	if user.OTPExpires == nil || !u.now().Before(*user.OTPExpires) {
		return nil, apperr.Wrap(ErrOTPExpired, apperr.CodeGone, "OTP has expired")
	}

	wasVerified := user.IsVerified
	if err := u.users.ClearOtp(ctx, user.ID); err != nil {
		return nil, err
	}
	verified, err := u.users.VerifyUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{User: verified}
	if event == EventReset {
		token, digest, err := generateResetToken()
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if err := u.users.SetResetToken(ctx, user.ID, digest, u.now().Add(u.opts.OTPTTL)); err != nil {
			return nil, err
		}
		res.ResetToken = token
	}
	if event == EventSignup {
		u.queue("welcome", verified.Email, u.mailer.SendWelcome(ctx, verified.Email, verified.FirstName))
	}
	if !wasVerified {
		now := u.now()
		u.notify(verified.ID, EventAccountVerified, map[string]any{
			"id":         verified.ID,
			"email":      verified.Email,
			"verifiedAt": duration.CleanISO(&now),
		})
	}

	logger.L().Info("otp verified", zap.Uint("user_id", user.ID), zap.String("event", event))
	return res, nil
}

// ResendOtp issues a new OTP for event. A verified user cannot request a
// verification OTP again.
func (u *AuthUsecase) ResendOtp(ctx context.Context, email, event string) (time.Time, error) {
	event, err := validEvent(event)
	if err != nil {
		return time.Time{}, err
	}
	user, err := u.findByEmail(ctx, email)
	if err != nil {
		return time.Time{}, err
	}
	if user.IsVerified && event == EventVerify {
		return time.Time{}, apperr.Wrap(ErrAlreadyVerified, apperr.CodeInvalid, "User is already verified")
	}

	otp, expires, err := u.issueOtp(ctx, user)
	if err != nil {
		return time.Time{}, err
	}
	if event == EventReset {
		u.queue("password_reset", user.Email, u.mailer.SendPasswordReset(ctx, user.Email, otp, user.FirstName))
	} else {
		u.queue("otp", user.Email, u.mailer.SendOtp(ctx, user.Email, otp, user.FirstName))
	}
	return expires, nil
}

// ResetPasswordInput holds the reset-password fields.
type ResetPasswordInput struct {
	Email           string
	NewPassword     string
	ConfirmPassword string
	ResetToken      string
}

// ResetPassword replaces the password of a verified user holding a valid
// reset grant. The grant, any OTP and the failed-login counter are cleared.
func (u *AuthUsecase) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if in.NewPassword != in.ConfirmPassword {
		return apperr.Validation("Passwords do not match")
	}
	user, err := u.findByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	if !user.IsVerified {
		return apperr.Wrap(ErrNotVerified, apperr.CodeUnauthorized, "User is not verified")
	}
	if user.ResetPasswordToken == nil || in.ResetToken == "" ||
		subtle.ConstantTimeCompare([]byte(*user.ResetPasswordToken), []byte(digestOf(in.ResetToken))) != 1 {
		logger.L().Warn("reset token rejected", zap.Uint("user_id", user.ID))
		return apperr.Wrap(ErrInvalidResetToken, apperr.CodeUnauthorized, "Invalid reset token")
	}
	if user.ResetPasswordExpires == nil || !u.now().Before(*user.ResetPasswordExpires) {
		return apperr.Wrap(ErrResetTokenExpired, apperr.CodeGone, "Reset token has expired")
	}

	if err := u.users.UpdatePassword(ctx, user.ID, in.NewPassword); err != nil {
		return err
	}
	if err := u.users.ClearResetToken(ctx, user.ID); err != nil {
		return err
	}
	if err := u.users.ClearOtp(ctx, user.ID); err != nil {
		return err
	}
	if err := u.users.ResetLoginAttempts(ctx, user.ID); err != nil {
		logger.L().Warn("failed to reset login attempts", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	logger.L().Info("password reset", zap.Uint("user_id", user.ID))
	return nil
}
