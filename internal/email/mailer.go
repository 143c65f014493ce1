package email

import (
	"context"

	"buildea/api/internal/logging"
	"go.uber.org/zap"
)

// Message is one outgoing email. HTML is optional.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Settings selects a transport.
type Settings struct {
	SMTP           Config
	SendgridAPIKey string
}

// NewMailer prefers SendGrid, then SMTP, and falls back to logging messages.
func NewMailer(settings Settings, logger *logging.Logger) Mailer {
	if settings.SendgridAPIKey != "" {
		return NewSendgridMailer(settings.SendgridAPIKey, settings.SMTP.FromName, settings.SMTP.From)
	}
	if smtpSvc := NewService(settings.SMTP); smtpSvc.IsConfigured() {
		return smtpSvc
	}
	return NewLogMailer(logger)
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *logging.Logger
}

func NewLogMailer(logger *logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LogMailer{logger: logger.Named("email")}
}

func (m *LogMailer) Name() string { return "log" }

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info(ctx, "email not sent, no transport configured",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
