package recurringinvoices

import (
	"context"
	"log/slog"
	"time"
)

// monthStart normalizes a date to the first day of its month, UTC midnight.
func monthStart(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// nextMonth returns the first day of the month after value's month.
func nextMonth(value time.Time) time.Time {
	return monthStart(value).AddDate(0, 1, 0)
}

// dateOnly truncates a timestamp to UTC midnight.
func dateOnly(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

// dueDateForMonth resolves a day-of-month rule within one calendar month,
// clamping to the month's last day (day 31 in February yields Feb 28 or 29).
// This is the only place that knows month lengths.
func dueDateForMonth(year int, month time.Month, dayOfMonth int) time.Time {
	lastDay := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
	if dayOfMonth > lastDay {
		dayOfMonth = lastDay
	}
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

// dueDatesUpTo enumerates the template's candidate due dates in ascending
// order, one per calendar month. The range starts at the month after the
// watermark (or the creation month when nothing was generated yet) and ends
// at asOf's month inclusive. Candidates before the creation date or after
// asOf are dropped; an empty slice means nothing is due.
func dueDatesUpTo(template *Template, asOf time.Time) []time.Time {
	created := dateOnly(template.CreatedAt)
	asOf = dateOnly(asOf)

	var cursor time.Time
	if template.LastGenerated != nil {
		cursor = nextMonth(*template.LastGenerated)
	} else {
		cursor = monthStart(created)
	}
	end := monthStart(asOf)

	var dueDates []time.Time
	for !cursor.After(end) {
		dueDate := dueDateForMonth(cursor.Year(), cursor.Month(), template.DayOfMonth)
		if !dueDate.Before(created) && !dueDate.After(asOf) {
			dueDates = append(dueDates, dueDate)
		}
		cursor = nextMonth(cursor)
	}
	return dueDates
}

// ForecastDueDates projects the template's next due dates without touching
// any state. The anchor is the later of from and the template's creation
// date; the result holds exactly months due dates (empty when months <= 0).
// The watermark is ignored: forecasting is independent of generation.
func ForecastDueDates(template *Template, months int, from time.Time) []time.Time {
	if months <= 0 {
		return nil
	}

	anchor := dateOnly(from)
	if created := dateOnly(template.CreatedAt); anchor.Before(created) {
		anchor = created
	}

	cursor := monthStart(anchor)
	dueDates := make([]time.Time, 0, months)
	for len(dueDates) < months {
		dueDate := dueDateForMonth(cursor.Year(), cursor.Month(), template.DayOfMonth)
		if !dueDate.Before(anchor) {
			dueDates = append(dueDates, dueDate)
		}
		cursor = nextMonth(cursor)
	}
	return dueDates
}

// Generator materializes due invoices from recurring templates.
type Generator struct {
	repo   Repository
	logger *slog.Logger
}

// NewGenerator creates a new invoice generator
func NewGenerator(repo Repository, logger *slog.Logger) *Generator {
	return &Generator{repo: repo, logger: logger}
}

// Generate creates every missing recurring invoice up to asOf and advances
// each template's watermark, all inside one transaction. It is idempotent:
// an invoice that already exists for a (template, due date) pair counts as
// skipped_existing, and a template whose watermark month already covers asOf
// yields no candidates and counts as skipped_not_due — this includes a
// same-day re-run.
func (g *Generator) Generate(ctx context.Context, asOf time.Time) (*GenerationStats, error) {
	asOf = dateOnly(asOf)
	stats := &GenerationStats{}

	err := g.repo.InTx(ctx, func(ctx context.Context, store GenerationStore) error {
		templates, err := store.ListTemplatesForUpdate(ctx)
		if err != nil {
			return err
		}
		stats.ProcessedTemplates = len(templates)

		for _, template := range templates {
			if !template.IsActive {
				stats.SkippedPaused++
				continue
			}

			candidates := dueDatesUpTo(template, asOf)
			if len(candidates) == 0 {
				stats.SkippedNotDue++
				continue
			}

			latestDue := candidates[len(candidates)-1]
			if template.LastGenerated != nil && template.LastGenerated.After(latestDue) {
				latestDue = *template.LastGenerated
			}

			for _, dueDate := range candidates {
				exists, err := store.RecurringInvoiceExists(ctx, template.ID, dueDate)
				if err != nil {
					return err
				}
				if exists {
					stats.SkippedExisting++
					continue
				}
				if err := store.InsertRecurringInvoice(ctx, template, dueDate); err != nil {
					return err
				}
				stats.Generated++
			}

			if err := store.AdvanceWatermark(ctx, template.ID, latestDue); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		g.logger.Error("recurring generation failed", "as_of", asOf.Format("2006-01-02"), "error", err)
		return nil, err
	}

	g.logger.Info("recurring generation finished",
		"as_of", asOf.Format("2006-01-02"),
		"generated", stats.Generated,
		"skipped_existing", stats.SkippedExisting,
		"skipped_paused", stats.SkippedPaused,
		"skipped_not_due", stats.SkippedNotDue,
		"processed_templates", stats.ProcessedTemplates,
	)
	return stats, nil
}
