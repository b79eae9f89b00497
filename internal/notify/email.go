package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

type EmailConfig struct {
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	FromEmail string
	ToEmail   string
}

type Email struct {
	cfg    EmailConfig
	dialer *gomail.Dialer
}

func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.SMTPHost == "" || cfg.FromEmail == "" || strings.TrimSpace(cfg.ToEmail) == "" {
		return nil, fmt.Errorf("email: %w", ErrNotConfigured)
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	return &Email{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
	}, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Deliver(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.dialer.DialAndSend(e.build(message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (e *Email) build(message string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.FromEmail)
	m.SetHeader("To", e.cfg.ToEmail)
	m.SetHeader("Subject", "[servermon] "+subject(message))
	m.SetBody("text/plain", message)
	return m
}

// subject is the first line of the message.
func subject(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(line)
}
