// Package entity defines the domain entities for the auth feature.
package entity

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mosaic_backend/internal/platform/repository"
)

// Roles.
const (
	RoleUser       = "USER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// Account statuses.
const (
	StatusPending   = "PENDING"
	StatusActive    = "ACTIVE"
	StatusInactive  = "INACTIVE"
	StatusSuspended = "SUSPENDED"
)

// Roles lists every valid role.
var Roles = []string{RoleUser, RoleAdmin, RoleSuperAdmin}

const (
	// PasswordCost is the bcrypt cost used for stored passwords.
	PasswordCost = 12
	// MinPasswordLength is the minimum plaintext password length.
	MinPasswordLength = 8
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// User is a registered account. Users are not tenant-scoped themselves;
// TenantID is the workspace whose records the user works with.
type User struct {
	repository.Model
	repository.Tenancy
	repository.SoftDeletable

	Email      string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string `gorm:"size:255;not null" json:"-"`
	Role       string `gorm:"size:32;not null;default:USER;index" json:"role"`
	IsVerified bool   `gorm:"not null;default:false" json:"isVerified"`
	FirstName  string `gorm:"size:100;not null;default:''" json:"firstName"`
	LastName   string `gorm:"size:100;not null;default:''" json:"lastName"`
	Avatar     string `gorm:"not null;default:''" json:"avatar"`
	Status     string `gorm:"size:16;not null;default:PENDING;index" json:"status"`

	// OTP and OTPExpires are always written together.
	OTP        *string    `gorm:"column:otp;size:16" json:"-"`
	OTPExpires *time.Time `gorm:"column:otp_expires" json:"-"`

	ResetPasswordToken   *string    `gorm:"size:64" json:"-"`
	ResetPasswordExpires *time.Time `json:"-"`

	LoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`

	passwordChanged bool `gorm:"-"`
}

// ProfilePatch holds the user-editable profile fields; nil fields are kept.
type ProfilePatch struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=100"`
	LastName  *string `json:"lastName" binding:"omitempty,max=100"`
	Avatar    *string `json:"avatar" binding:"omitempty,max=2048"`
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidRole reports whether role is one of Roles.
func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SetPassword stores a new plaintext password; it is hashed on save.
func (u *User) SetPassword(plain string) {
	u.Password = plain
	u.passwordChanged = true
}

// CheckPassword compares candidate with the stored hash.
func (u *User) CheckPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate)) == nil
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(strings.Join([]string{u.FirstName, u.LastName}, " "))
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// BeforeSave normalises the email and hashes a changed password. A value
// that is already a bcrypt hash is never rehashed.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Email != "" {
		u.Email = NormalizeEmail(u.Email)
	}
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)

	if u.Password == "" || (!u.passwordChanged && isBcryptHash(u.Password)) {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), PasswordCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	u.passwordChanged = false
	return nil
}

// MarshalJSON adds the fullName field. Password, OTP and reset token
// fields are never serialized.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		FullName string `json:"fullName"`
	}{plain(u), u.FullName()})
}
