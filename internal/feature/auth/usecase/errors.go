// Package usecase implements the business logic for the auth feature.
package usecase

import "errors"

// Sentinels wrapped by the apperr values the usecase returns, so callers
// can match a failure with errors.Is while handlers render its status.
var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailAlreadyExists is returned when signing up with a taken email.
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrUserNotFound is returned when no live user has the given email or ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidOTP is returned when the presented OTP does not match.
	ErrInvalidOTP = errors.New("invalid otp")

	// ErrOTPExpired is returned when the OTP matches but its window has passed.
	ErrOTPExpired = errors.New("otp expired")

	// ErrAlreadyVerified is returned when resending a verification OTP to a
	// verified account.
	ErrAlreadyVerified = errors.New("user already verified")

	// ErrNotVerified is returned when resetting the password of an
	// unverified account.
	ErrNotVerified = errors.New("user not verified")

	// ErrInvalidResetToken is returned when the reset grant is missing or
	// does not match.
	ErrInvalidResetToken = errors.New("invalid reset token")

	// ErrResetTokenExpired is returned when the reset grant has expired.
	ErrResetTokenExpired = errors.New("reset token expired")

	// ErrInvalidRefreshToken is returned when a refresh token is missing,
	// malformed, tampered or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidAdminSecret is returned when the admin signup secret is
	// wrong or not configured.
	ErrInvalidAdminSecret = errors.New("invalid admin secret")

	// ErrOTPCooldown is returned when an OTP is requested again before the
	// resend cooldown has passed.
	ErrOTPCooldown = errors.New("otp requested too soon")

	// ErrStorageDisabled is returned when avatar storage is not configured.
	ErrStorageDisabled = errors.New("avatar storage is not configured")
)
