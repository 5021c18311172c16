// Package usecase renders transactional emails into the outbox and
// dispatches them.
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mosaic_backend/internal/feature/mailer/domain/entity"
	"mosaic_backend/internal/platform/logger"
)

// OutboxWriter stores rendered messages.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type OutboxWriter interface {
	Enqueue(ctx context.Context, m *entity.OutboxMessage) error
}

// MailerOptions configure the rendered content.
type MailerOptions struct {
	// OTPTTL is quoted in OTP emails, rounded to minutes.
	OTPTTL  time.Duration
	SiteURL string
}

// Mailer renders emails and queues them in the outbox. Delivery happens
// later in the Dispatcher, so a provider outage never fails the caller.
type Mailer struct {
	outbox OutboxWriter
	tpl    templates
	opts   MailerOptions
}

func NewMailer(outbox OutboxWriter, opts MailerOptions) (*Mailer, error) {
	tpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Mailer{outbox: outbox, tpl: tpl, opts: opts}, nil
}

func (m *Mailer) minutes() int {
	return int(m.opts.OTPTTL.Round(time.Minute) / time.Minute)
}

// SendOtp queues the verification code email.
func (m *Mailer) SendOtp(ctx context.Context, to, otp, firstName string) error {
	data := templateData{Heading: "Email Verification", Theme: themeOTP, OTP: otp}
	text := fmt.Sprintf("Hello %s, your %s verification code is %s. It expires in %d minutes.",
		firstName, Brand, otp, m.minutes())
	return m.enqueue(ctx, entity.KindOTP, to, "Verify Your Email - "+Brand, "otp", firstName, data, text)
}

// SendPasswordReset queues the password reset code email.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, otp, firstName string) error {
	data := templateData{Heading: "Password Reset", Theme: themeReset, OTP: otp}
	text := fmt.Sprintf("Hello %s, your %s password reset code is %s. It expires in %d minutes.",
		firstName, Brand, otp, m.minutes())
	return m.enqueue(ctx, entity.KindPasswordReset, to, "Password Reset Request - "+Brand, "password_reset", firstName, data, text)
}

// SendWelcome queues the welcome email sent after signup verification.
func (m *Mailer) SendWelcome(ctx context.Context, to, firstName string) error {
	data := templateData{Heading: "Welcome Aboard!", Theme: themeWelcome}
	text := fmt.Sprintf("Welcome %s! Your %s account has been verified.", firstName, Brand)
	if m.opts.SiteURL != "" {
		text += " Get started at " + m.opts.SiteURL
	}
	return m.enqueue(ctx, entity.KindWelcome, to, "Welcome to "+Brand+"!", "welcome", firstName, data, text)
}

func (m *Mailer) enqueue(ctx context.Context, kind, to, subject, tpl, firstName string, data templateData, text string) error {
	data.Brand = Brand
	data.FirstName = strings.TrimSpace(firstName)
	data.ExpiresInMinutes = m.minutes()
	data.SiteURL = m.opts.SiteURL

	html, err := m.tpl.render(tpl, data)
	if err != nil {
		return err
	}
	msg := &entity.OutboxMessage{Kind: kind, ToAddress: to, Subject: subject, HTML: html, Text: text}
	if err := m.outbox.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s email: %w", kind, err)
	}
	logger.L().Debug("email queued", zap.String("kind", kind), zap.Uint("outbox_id", msg.ID))
	return nil
}
