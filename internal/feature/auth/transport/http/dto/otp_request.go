package dto

// ForgotPasswordReq is the body of /forgot-password.
type ForgotPasswordReq struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyOtpReq is the body of /verify-otp. Event defaults to verify.
type VerifyOtpReq struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
	Event string `json:"event" binding:"omitempty,oneof=verify signup reset"`
}

// ResendOtpReq is the body of /resend-otp. Event defaults to verify.
type ResendOtpReq struct {
	Email string `json:"email" binding:"required,email"`
	Event string `json:"event" binding:"omitempty,oneof=verify signup reset"`
}

// ResetPasswordReq is the body of /reset-password. ResetToken is the grant
// returned by /verify-otp with event=reset.
type ResetPasswordReq struct {
	Email           string `json:"email" binding:"required,email"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	ResetToken      string `json:"resetToken" binding:"required"`
}
