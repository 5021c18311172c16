package dto

import "mosaic_backend/internal/feature/auth/domain/entity"

// UserRes carries a message and the affected user.
type UserRes struct {
	Message string       `json:"message"`
	User    *entity.User `json:"user"`
}

// LoginRes is the body of a successful login. RefreshToken is only set
// when the client asked to stay logged in.
type LoginRes struct {
	Message      string       `json:"message"`
	User         *entity.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
}

// OtpSentRes is returned when an OTP was issued.
type OtpSentRes struct {
	Message    string `json:"message"`
	Email      string `json:"email,omitempty"`
	OTPExpires string `json:"otpExpires"`
}

// VerifyOtpRes is the body of a successful verification.
type VerifyOtpRes struct {
	Message    string       `json:"message"`
	User       *entity.User `json:"user"`
	ResetToken string       `json:"resetToken,omitempty"`
}

// RefreshRes represents the response for a successful token refresh.
type RefreshRes struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

// AdminSignupRes is the body of a successful admin signup.
type AdminSignupRes struct {
	Message string       `json:"message"`
	Admin   *entity.User `json:"admin"`
}
