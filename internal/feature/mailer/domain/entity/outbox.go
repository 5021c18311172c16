package entity

import (
	"time"

	"mosaic_backend/internal/platform/repository"
)

// Outbox message states.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Message kinds.
const (
	KindOTP           = "otp"
	KindWelcome       = "welcome"
	KindPasswordReset = "password_reset"
)

// OutboxMessage is a rendered email waiting for delivery.
type OutboxMessage struct {
	repository.Model
	Kind          string     `gorm:"size:32;not null" json:"kind"`
	ToAddress     string     `gorm:"column:to_address;size:255;not null" json:"to"`
	Subject       string     `gorm:"size:255;not null" json:"subject"`
	HTML          string     `gorm:"column:html;type:text;not null" json:"-"`
	Text          string     `gorm:"column:text;type:text;not null" json:"-"`
	Status        string     `gorm:"size:16;not null;default:pending;index:idx_email_outbox_due,priority:1" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     string     `gorm:"column:last_error;type:text;not null" json:"lastError,omitempty"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null;index:idx_email_outbox_due,priority:2" json:"nextAttemptAt"`
	SentAt        *time.Time `gorm:"column:sent_at" json:"sentAt,omitempty"`
}

func (OutboxMessage) TableName() string { return "email_outbox" }

// Email is what a Sender delivers.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Email returns the deliverable part of m.
func (m *OutboxMessage) Email() Email {
	return Email{To: m.ToAddress, Subject: m.Subject, HTML: m.HTML, Text: m.Text}
}
