package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/gaborv/szamla/backend/internal/recurringinvoices"
)

// SMTPSender sends emails via SMTP (for local development and testing).
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	notify   string
	logger   *slog.Logger
}

// NewSMTPSender creates a new SMTP email sender.
func NewSMTPSender(cfg *Config, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		notify:   cfg.NotifyAddress,
		logger:   logger,
	}
}

// NotifyGenerationRun sends the generation summary via SMTP.
func (s *SMTPSender) NotifyGenerationRun(ctx context.Context, runDate time.Time, stats *recurringinvoices.GenerationStats) error {
	if s.notify == "" {
		s.logger.Warn("no notify address configured, skipping generation summary")
		return nil
	}

	subject := fmt.Sprintf("Recurring invoices generated: %d (%s)", stats.Generated, runDate.Format("2006-01-02"))
	body := formatGenerationSummaryEmail(runDate, stats)
	msg := formatEmailMessage(s.from, s.fromName, s.notify, subject, body)

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.logger.Info("sending generation summary via SMTP",
		"to", s.notify,
		"smtp_host", s.host,
	)

	if err := smtp.SendMail(addr, auth, s.from, []string{s.notify}, []byte(msg)); err != nil {
		s.logger.Error("failed to send email via SMTP",
			"error", err,
			"to", s.notify,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("generation summary sent successfully", "to", s.notify)
	return nil
}

// formatEmailMessage formats an email message with headers.
func formatEmailMessage(from, fromName, to, subject, htmlBody string) string {
	fromHeader := from
	if fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	return fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		fromHeader, to, subject, htmlBody,
	)
}
