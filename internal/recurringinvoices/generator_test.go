package recurringinvoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// fakeRepo is an in-memory Repository used to exercise the generator without
// Postgres. It implements GenerationStore directly; InTx just runs the
// callback against itself.
type fakeRepo struct {
	templates  []*Template
	existing   map[string]bool // "templateID|YYYY-MM-DD"
	inserted   []string
	failInsert bool
}

func newFakeRepo(templates ...*Template) *fakeRepo {
	return &fakeRepo{
		templates: templates,
		existing:  make(map[string]bool),
	}
}

func invoiceKey(templateID string, dueDate time.Time) string {
	return fmt.Sprintf("%s|%s", templateID, dueDate.Format("2006-01-02"))
}

func (f *fakeRepo) ListTemplatesForUpdate(ctx context.Context) ([]*Template, error) {
	return f.templates, nil
}

func (f *fakeRepo) RecurringInvoiceExists(ctx context.Context, templateID string, dueDate time.Time) (bool, error) {
	return f.existing[invoiceKey(templateID, dueDate)], nil
}

func (f *fakeRepo) InsertRecurringInvoice(ctx context.Context, template *Template, dueDate time.Time) error {
	if f.failInsert {
		return errors.New("insert failed")
	}
	key := invoiceKey(template.ID, dueDate)
	f.existing[key] = true
	f.inserted = append(f.inserted, key)
	return nil
}

func (f *fakeRepo) AdvanceWatermark(ctx context.Context, templateID string, lastGenerated time.Time) error {
	for _, t := range f.templates {
		if t.ID == templateID {
			d := lastGenerated
			t.LastGenerated = &d
		}
	}
	return nil
}

func (f *fakeRepo) InTx(ctx context.Context, fn func(ctx context.Context, store GenerationStore) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Create(ctx context.Context, input *CreateTemplateInput) (*Template, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeRepo) GetByID(ctx context.Context, id string) (*Template, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeRepo) List(ctx context.Context) ([]*Template, error) { return f.templates, nil }
func (f *fakeRepo) Update(ctx context.Context, id string, input *UpdateTemplateInput) (*Template, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeRepo) TogglePause(ctx context.Context, id string) (*Template, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeRepo) Delete(ctx context.Context, id string) error { return errors.New("not implemented") }
func (f *fakeRepo) ExistingDueDates(ctx context.Context, templateID string, dueDates []time.Time) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, d := range dueDates {
		if f.existing[invoiceKey(templateID, d)] {
			out[d.Format("2006-01-02")] = true
		}
	}
	return out, nil
}

func testTemplate(id string, dayOfMonth int, createdAt time.Time) *Template {
	return &Template{
		ID:         id,
		Name:       "Netflix",
		Amount:     decimal.NewFromInt(3990),
		Currency:   "HUF",
		DayOfMonth: dayOfMonth,
		IsActive:   true,
		CreatedAt:  createdAt,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestDueDateForMonth tests day-of-month clamping
func TestDueDateForMonth(t *testing.T) {
	tests := []struct {
		name       string
		year       int
		month      time.Month
		dayOfMonth int
		want       time.Time
	}{
		{
			name:       "regular day",
			year:       2026,
			month:      time.March,
			dayOfMonth: 15,
			want:       date(2026, time.March, 15),
		},
		{
			name:       "day 31 in February clamps to 28",
			year:       2026,
			month:      time.February,
			dayOfMonth: 31,
			want:       date(2026, time.February, 28),
		},
		{
			name:       "day 31 in leap-year February clamps to 29",
			year:       2024,
			month:      time.February,
			dayOfMonth: 31,
			want:       date(2024, time.February, 29),
		},
		{
			name:       "day 31 in April clamps to 30",
			year:       2026,
			month:      time.April,
			dayOfMonth: 31,
			want:       date(2026, time.April, 30),
		},
		{
			name:       "day 1 never clamps",
			year:       2026,
			month:      time.December,
			dayOfMonth: 1,
			want:       date(2026, time.December, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dueDateForMonth(tt.year, tt.month, tt.dayOfMonth)
			if !got.Equal(tt.want) {
				t.Errorf("dueDateForMonth() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDueDatesUpTo tests candidate enumeration against watermark and creation
func TestDueDatesUpTo(t *testing.T) {
	tests := []struct {
		name          string
		template      *Template
		lastGenerated *time.Time
		asOf          time.Time
		want          []time.Time
	}{
		{
			name:     "no watermark, creation month due date before creation is dropped",
			template: testTemplate("t1", 5, date(2026, time.January, 15)),
			asOf:     date(2026, time.March, 10),
			want:     []time.Time{date(2026, time.February, 5), date(2026, time.March, 5)},
		},
		{
			name:     "no watermark, due date in creation month after creation is kept",
			template: testTemplate("t1", 20, date(2026, time.January, 15)),
			asOf:     date(2026, time.January, 31),
			want:     []time.Time{date(2026, time.January, 20)},
		},
		{
			name:          "catch-up after missed months",
			template:      testTemplate("t1", 15, date(2025, time.June, 1)),
			lastGenerated: timePtr(date(2026, time.January, 15)),
			asOf:          date(2026, time.March, 20),
			want:          []time.Time{date(2026, time.February, 15), date(2026, time.March, 15)},
		},
		{
			name:          "watermark month covers asOf, nothing due",
			template:      testTemplate("t1", 5, date(2025, time.June, 1)),
			lastGenerated: timePtr(date(2026, time.March, 5)),
			asOf:          date(2026, time.March, 5),
			want:          nil,
		},
		{
			name:     "due date after asOf is dropped",
			template: testTemplate("t1", 25, date(2026, time.January, 1)),
			asOf:     date(2026, time.January, 10),
			want:     nil,
		},
		{
			name:          "clamped February candidate",
			template:      testTemplate("t1", 31, date(2025, time.June, 1)),
			lastGenerated: timePtr(date(2026, time.January, 31)),
			asOf:          date(2026, time.February, 28),
			want:          []time.Time{date(2026, time.February, 28)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.template.LastGenerated = tt.lastGenerated
			got := dueDatesUpTo(tt.template, tt.asOf)
			if len(got) != len(tt.want) {
				t.Fatalf("dueDatesUpTo() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("dueDatesUpTo()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestForecastDueDates tests the pure forecast projection
func TestForecastDueDates(t *testing.T) {
	t.Run("returns exactly months due dates", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2025, time.June, 1))
		got := ForecastDueDates(template, 3, date(2026, time.January, 1))
		want := []time.Time{
			date(2026, time.January, 5),
			date(2026, time.February, 5),
			date(2026, time.March, 5),
		}
		if len(got) != len(want) {
			t.Fatalf("ForecastDueDates() = %v, want %v", got, want)
		}
		for i := range got {
			if !got[i].Equal(want[i]) {
				t.Errorf("ForecastDueDates()[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("anchor moves to creation date when from is earlier", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2026, time.March, 10))
		got := ForecastDueDates(template, 2, date(2026, time.January, 1))
		// March 5 precedes creation, so the first projected date is April 5.
		want := []time.Time{date(2026, time.April, 5), date(2026, time.May, 5)}
		for i := range want {
			if !got[i].Equal(want[i]) {
				t.Errorf("ForecastDueDates()[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("watermark is ignored", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2025, time.June, 1))
		template.LastGenerated = timePtr(date(2026, time.February, 5))
		got := ForecastDueDates(template, 1, date(2026, time.January, 1))
		if !got[0].Equal(date(2026, time.January, 5)) {
			t.Errorf("ForecastDueDates()[0] = %v, want 2026-01-05", got[0])
		}
	})

	t.Run("non-positive months yields empty", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2025, time.June, 1))
		if got := ForecastDueDates(template, 0, date(2026, time.January, 1)); len(got) != 0 {
			t.Errorf("ForecastDueDates(months=0) = %v, want empty", got)
		}
		if got := ForecastDueDates(template, -3, date(2026, time.January, 1)); len(got) != 0 {
			t.Errorf("ForecastDueDates(months=-3) = %v, want empty", got)
		}
	})

	t.Run("clamps across month lengths", func(t *testing.T) {
		template := testTemplate("t1", 31, date(2025, time.June, 1))
		got := ForecastDueDates(template, 4, date(2026, time.January, 1))
		want := []time.Time{
			date(2026, time.January, 31),
			date(2026, time.February, 28),
			date(2026, time.March, 31),
			date(2026, time.April, 30),
		}
		for i := range want {
			if !got[i].Equal(want[i]) {
				t.Errorf("ForecastDueDates()[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})
}

// TestGeneratorGenerate tests the generation engine over an in-memory store
func TestGeneratorGenerate(t *testing.T) {
	t.Run("generates one invoice when due", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2026, time.January, 1))
		repo := newFakeRepo(template)
		gen := NewGenerator(repo, testLogger())

		stats, err := gen.Generate(context.Background(), date(2026, time.January, 7))
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if stats.Generated != 1 || stats.ProcessedTemplates != 1 {
			t.Errorf("stats = %+v, want generated=1 processed=1", stats)
		}
		if len(repo.inserted) != 1 || repo.inserted[0] != "t1|2026-01-05" {
			t.Errorf("inserted = %v, want [t1|2026-01-05]", repo.inserted)
		}
		if template.LastGenerated == nil || !template.LastGenerated.Equal(date(2026, time.January, 5)) {
			t.Errorf("watermark = %v, want 2026-01-05", template.LastGenerated)
		}
	})

	t.Run("second run on the same day is a no-op", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2026, time.January, 1))
		repo := newFakeRepo(template)
		gen := NewGenerator(repo, testLogger())

		if _, err := gen.Generate(context.Background(), date(2026, time.January, 7)); err != nil {
			t.Fatalf("first Generate() error = %v", err)
		}
		stats, err := gen.Generate(context.Background(), date(2026, time.January, 7))
		if err != nil {
			t.Fatalf("second Generate() error = %v", err)
		}
		if stats.Generated != 0 {
			t.Errorf("Generated = %d, want 0", stats.Generated)
		}
		if stats.SkippedNotDue != 1 {
			t.Errorf("SkippedNotDue = %d, want 1", stats.SkippedNotDue)
		}
	})

	t.Run("catches up missed months in one run", func(t *testing.T) {
		template := testTemplate("t1", 15, date(2025, time.June, 1))
		template.LastGenerated = timePtr(date(2026, time.January, 15))
		repo := newFakeRepo(template)
		gen := NewGenerator(repo, testLogger())

		stats, err := gen.Generate(context.Background(), date(2026, time.March, 20))
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if stats.Generated != 2 {
			t.Errorf("Generated = %d, want 2", stats.Generated)
		}
		wantInserted := []string{"t1|2026-02-15", "t1|2026-03-15"}
		for i, want := range wantInserted {
			if repo.inserted[i] != want {
				t.Errorf("inserted[%d] = %s, want %s", i, repo.inserted[i], want)
			}
		}
		if !template.LastGenerated.Equal(date(2026, time.March, 15)) {
			t.Errorf("watermark = %v, want 2026-03-15", template.LastGenerated)
		}
	})

	t.Run("paused template is skipped", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2026, time.January, 1))
		template.IsActive = false
		repo := newFakeRepo(template)
		gen := NewGenerator(repo, testLogger())

		stats, err := gen.Generate(context.Background(), date(2026, time.January, 7))
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if stats.SkippedPaused != 1 || stats.Generated != 0 {
			t.Errorf("stats = %+v, want skipped_paused=1 generated=0", stats)
		}
		if template.LastGenerated != nil {
			t.Errorf("watermark advanced for paused template: %v", template.LastGenerated)
		}
	})

	t.Run("existing invoice counts as skipped_existing and still advances watermark", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2026, time.January, 1))
		repo := newFakeRepo(template)
		repo.existing["t1|2026-01-05"] = true
		gen := NewGenerator(repo, testLogger())

		stats, err := gen.Generate(context.Background(), date(2026, time.February, 10))
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if stats.SkippedExisting != 1 {
			t.Errorf("SkippedExisting = %d, want 1", stats.SkippedExisting)
		}
		if stats.Generated != 1 {
			t.Errorf("Generated = %d, want 1 (February)", stats.Generated)
		}
		if !template.LastGenerated.Equal(date(2026, time.February, 5)) {
			t.Errorf("watermark = %v, want 2026-02-05", template.LastGenerated)
		}
	})

	t.Run("insert failure aborts the run", func(t *testing.T) {
		template := testTemplate("t1", 5, date(2026, time.January, 1))
		repo := newFakeRepo(template)
		repo.failInsert = true
		gen := NewGenerator(repo, testLogger())

		stats, err := gen.Generate(context.Background(), date(2026, time.January, 7))
		if err == nil {
			t.Fatal("Generate() expected error, got nil")
		}
		if stats != nil {
			t.Errorf("stats = %+v, want nil on error", stats)
		}
	})

	t.Run("mixed templates accounted independently", func(t *testing.T) {
		active := testTemplate("t1", 5, date(2026, time.January, 1))
		paused := testTemplate("t2", 5, date(2026, time.January, 1))
		paused.IsActive = false
		future := testTemplate("t3", 25, date(2026, time.January, 1))
		repo := newFakeRepo(active, paused, future)
		gen := NewGenerator(repo, testLogger())

		stats, err := gen.Generate(context.Background(), date(2026, time.January, 10))
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if stats.ProcessedTemplates != 3 {
			t.Errorf("ProcessedTemplates = %d, want 3", stats.ProcessedTemplates)
		}
		if stats.Generated != 1 || stats.SkippedPaused != 1 || stats.SkippedNotDue != 1 {
			t.Errorf("stats = %+v, want generated=1 skipped_paused=1 skipped_not_due=1", stats)
		}
	})
}

func timePtr(t time.Time) *time.Time {
	return &t
}
