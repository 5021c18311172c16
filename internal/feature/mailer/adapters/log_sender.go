package adapters

import (
	"context"

	"go.uber.org/zap"

	"mosaic_backend/internal/feature/mailer/domain/entity"
	"mosaic_backend/internal/platform/logger"
)

// LogSender writes emails to the log instead of delivering them. It is
// used when no mail provider is configured.
type LogSender struct{}

func NewLogSender() *LogSender { return &LogSender{} }

func (LogSender) Send(ctx context.Context, e entity.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.L().Info("email (log sender)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("text", e.Text),
	)
	return nil
}
