package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	resend "github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"mosaic_backend/internal/feature/mailer/domain/entity"
	"mosaic_backend/internal/platform/logger"
)

// ResendSender delivers email through the Resend API.
type ResendSender struct {
	from string
	send func(req *resend.SendEmailRequest) (string, error)
}

// NewResendSender creates a sender. apiKey and from are required.
func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("resend api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("mail from address is required")
	}
	client := resend.NewClient(apiKey)
	return &ResendSender{
		from: from,
		send: func(req *resend.SendEmailRequest) (string, error) {
			sent, err := client.Emails.Send(req)
			if err != nil {
				return "", err
			}
			return sent.Id, nil
		},
	}, nil
}

func (s *ResendSender) Send(ctx context.Context, e entity.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := s.send(&resend.SendEmailRequest{
		From:    s.from,
		To:      []string{e.To},
		Subject: e.Subject,
		Html:    e.HTML,
		Text:    e.Text,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	logger.L().Debug("email delivered", zap.String("provider_id", id), zap.String("to", e.To))
	return nil
}
