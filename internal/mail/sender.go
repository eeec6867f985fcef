package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	gomail "github.com/go-mail/mail"
)

// Sender delivers one HTML message. Delivery failures are infrastructure
// errors for the caller.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// TLSMode is "starttls" (default), "ssl" or "none".
	TLSMode string
}

type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	log    *slog.Logger
}

func NewSMTPSender(cfg SMTPConfig, log *slog.Logger) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	switch cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = nil
		d.StartTLSPolicy = gomail.NoStartTLS
	default:
		d.StartTLSPolicy = gomail.MandatoryStartTLS
	}

	return &SMTPSender{
		cfg:    cfg,
		dialer: d,
		log:    log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	const op = "mail.SMTPSender.Send"

	log := s.log.With(slog.String("op", op))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Error("failed to send email", slog.String("to", to), slog.Any("error", err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email sent", slog.String("to", to), slog.String("subject", subject))

	return nil
}

// LogSender only logs recipient and subject. The body carries the one-time
// code and is never written out.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.log.Info("email suppressed", slog.String("op", "mail.LogSender.Send"),
		slog.String("to", to), slog.String("subject", subject))

	return nil
}
