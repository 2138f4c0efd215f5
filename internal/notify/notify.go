// Package notify delivers attendee email. Delivery is best-effort: callers
// record a failed send and carry on.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"ms-demo-booking/internal/config"
	"ms-demo-booking/internal/logger"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New picks an SMTP sender when a host is configured and a log-only sender otherwise.
func New(cfg config.EmailConfig, log *logger.Logger) Sender {
	if cfg.SMTPHost == "" {
		log.Warn("NOTIFY", "SMTP_HOST not set, emails will only be logged")
		return &LogSender{Logger: log}
	}
	return &SMTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.FromName,
		Logger:   log,
	}
}

type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	Logger   *logger.Logger

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := s.Host + ":" + s.Port

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	send := s.sendMail
	if send == nil {
		send = smtp.SendMail
	}

	if err := send(addr, auth, s.Username, []string{msg.To}, s.build(msg)); err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Failed to send %q to %s: %v", msg.Subject, msg.To, err))
		return fmt.Errorf("send email: %w", err)
	}
	s.Logger.LogNotify("SENT", msg.To, msg.Subject)
	return nil
}

func (s *SMTPSender) build(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %q <%s>\r\n", s.FromName, s.Username)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *logger.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.LogNotify("LOG_ONLY", msg.To, msg.Subject)
	return nil
}
