package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/gaborv/szamla/backend/internal/recurringinvoices"
)

// ResendSender sends emails via Resend (for production).
type ResendSender struct {
	apiKey   string
	from     string
	fromName string
	notify   string
	logger   *slog.Logger
}

// NewResendSender creates a new Resend email sender.
func NewResendSender(cfg *Config, logger *slog.Logger) *ResendSender {
	return &ResendSender{
		apiKey:   cfg.APIKey,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		notify:   cfg.NotifyAddress,
		logger:   logger,
	}
}

// NotifyGenerationRun sends the generation summary via Resend.
func (s *ResendSender) NotifyGenerationRun(ctx context.Context, runDate time.Time, stats *recurringinvoices.GenerationStats) error {
	if s.notify == "" {
		s.logger.Warn("no notify address configured, skipping generation summary")
		return nil
	}

	subject := fmt.Sprintf("Recurring invoices generated: %d (%s)", stats.Generated, runDate.Format("2006-01-02"))
	htmlContent := formatGenerationSummaryEmail(runDate, stats)

	client := resend.NewClient(s.apiKey)

	from := s.from
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.from)
	}

	s.logger.Info("sending generation summary via Resend",
		"to", s.notify,
	)

	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{s.notify},
		Subject: subject,
		Html:    htmlContent,
	}

	sent, err := client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.logger.Error("failed to send email via Resend",
			"error", err,
			"to", s.notify,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("generation summary sent successfully",
		"to", s.notify,
		"email_id", sent.Id,
	)
	return nil
}
