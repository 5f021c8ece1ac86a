package mailer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/config"
)

// Message is a single outbound HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer dialer
	from   string
}

// NewSMTPMailer configures an SMTP relay client.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

// Send renders msg into MIME and hands it to the relay.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mail recipient required")
	}
	out := gomail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/html", msg.HTML)
	if err := m.dialer.DialAndSend(out); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer only records messages. Used in development and tests.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a mailer that writes to the logger instead of the network.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message envelope.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Int("bytes", len(msg.HTML)))
	return nil
}

// New selects the mail transport from configuration.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.Driver == config.MailDriverSMTP {
		return NewSMTPMailer(cfg)
	}
	return NewLogMailer(logger)
}
