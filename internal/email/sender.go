package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gaborv/szamla/backend/internal/recurringinvoices"
)

// Sender defines the interface for outgoing notifications.
type Sender interface {
	NotifyGenerationRun(ctx context.Context, runDate time.Time, stats *recurringinvoices.GenerationStats) error
}

// NoOpSender is a no-op sender for development.
type NoOpSender struct {
	logger *slog.Logger
}

// NewNoOpSender creates a sender that just logs.
func NewNoOpSender(logger *slog.Logger) *NoOpSender {
	return &NoOpSender{logger: logger}
}

// NotifyGenerationRun logs the generation summary instead of sending.
func (s *NoOpSender) NotifyGenerationRun(ctx context.Context, runDate time.Time, stats *recurringinvoices.GenerationStats) error {
	s.logger.Info("generation summary email (no-op)",
		"run_date", runDate.Format("2006-01-02"),
		"generated", stats.Generated,
		"skipped_existing", stats.SkippedExisting,
	)
	return nil
}

// Config holds email service configuration.
type Config struct {
	// Provider: "noop", "smtp", or "resend"
	Provider string

	// SMTP configuration (for local development)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	// API key for Resend
	APIKey string

	// Common configuration
	FromAddress   string
	FromName      string
	NotifyAddress string // recipient of generation summaries
}

// NewSender creates a sender based on the provider configuration.
func NewSender(cfg *Config, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "noop", "":
		logger.Info("using no-op email sender (emails will be logged only)")
		return NewNoOpSender(logger), nil

	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPPort == 0 {
			return nil, fmt.Errorf("SMTP configuration incomplete: host and port required")
		}
		logger.Info("using SMTP email sender", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return NewSMTPSender(cfg, logger), nil

	case "resend":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("email provider API key is required")
		}
		logger.Info("using Resend email sender")
		return NewResendSender(cfg, logger), nil

	default:
		return nil, fmt.Errorf("unknown email provider: %s (valid: noop, smtp, resend)", cfg.Provider)
	}
}

// formatGenerationSummaryEmail creates the HTML body for the run summary.
func formatGenerationSummaryEmail(runDate time.Time, stats *recurringinvoices.GenerationStats) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Recurring invoices generated</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background-color: #f8f9fa; border-radius: 10px; padding: 30px; margin: 20px 0;">
        <h1 style="color: #2c3e50; margin-top: 0;">Recurring invoices generated</h1>

        <p>The generation run for <strong>%s</strong> created new invoices:</p>

        <ul>
            <li><strong>Generated:</strong> %d</li>
            <li><strong>Skipped (already existed):</strong> %d</li>
            <li><strong>Skipped (paused):</strong> %d</li>
            <li><strong>Skipped (not due):</strong> %d</li>
            <li><strong>Templates processed:</strong> %d</li>
        </ul>

        <p style="font-size: 12px; color: #7f8c8d;">
            <em>Automated message from the invoice manager.</em>
        </p>
    </div>
</body>
</html>`,
		runDate.Format("2006-01-02"),
		stats.Generated,
		stats.SkippedExisting,
		stats.SkippedPaused,
		stats.SkippedNotDue,
		stats.ProcessedTemplates,
	)
}
