package recurringinvoices

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubGenerator struct {
	stats *GenerationStats
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, asOf time.Time) (*GenerationStats, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.stats, nil
}

// TestRunnerRunNow tests run accounting for successes and failures
func TestRunnerRunNow(t *testing.T) {
	t.Run("successful run records result", func(t *testing.T) {
		gen := &stubGenerator{stats: &GenerationStats{Generated: 2, ProcessedTemplates: 3}}
		runner := NewRunner(gen)

		stats, err := runner.RunNow(context.Background(), date(2026, time.January, 7))
		if err != nil {
			t.Fatalf("RunNow() error = %v", err)
		}
		if stats.Generated != 2 {
			t.Errorf("Generated = %d, want 2", stats.Generated)
		}

		status := runner.Status()
		if status.TotalRuns != 1 {
			t.Errorf("TotalRuns = %d, want 1", status.TotalRuns)
		}
		if status.LastRunDate == nil || *status.LastRunDate != "2026-01-07" {
			t.Errorf("LastRunDate = %v, want 2026-01-07", status.LastRunDate)
		}
		if status.LastResult == nil || status.LastResult.Generated != 2 {
			t.Errorf("LastResult = %+v, want generated=2", status.LastResult)
		}
		if status.LastError != nil {
			t.Errorf("LastError = %v, want nil", *status.LastError)
		}
		if status.LastRunAt == nil {
			t.Error("LastRunAt is nil after a run")
		}
	})

	t.Run("failed run records error and counts", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("db down")}
		runner := NewRunner(gen)

		if _, err := runner.RunNow(context.Background(), date(2026, time.January, 7)); err == nil {
			t.Fatal("RunNow() expected error, got nil")
		}

		status := runner.Status()
		if status.TotalRuns != 1 {
			t.Errorf("TotalRuns = %d, want 1", status.TotalRuns)
		}
		if status.LastError == nil || *status.LastError != "db down" {
			t.Errorf("LastError = %v, want db down", status.LastError)
		}
	})

	t.Run("success clears previous error, keeps last result", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("db down")}
		runner := NewRunner(gen)
		runner.RunNow(context.Background(), date(2026, time.January, 7))

		gen.err = nil
		gen.stats = &GenerationStats{Generated: 1}
		if _, err := runner.RunNow(context.Background(), date(2026, time.January, 8)); err != nil {
			t.Fatalf("RunNow() error = %v", err)
		}

		status := runner.Status()
		if status.TotalRuns != 2 {
			t.Errorf("TotalRuns = %d, want 2", status.TotalRuns)
		}
		if status.LastError != nil {
			t.Errorf("LastError = %v, want nil after success", *status.LastError)
		}
		if status.LastResult == nil || status.LastResult.Generated != 1 {
			t.Errorf("LastResult = %+v, want generated=1", status.LastResult)
		}
	})
}

// TestRunnerStatusEmpty tests the snapshot before any run
func TestRunnerStatusEmpty(t *testing.T) {
	runner := NewRunner(&stubGenerator{})
	status := runner.Status()
	if status.TotalRuns != 0 {
		t.Errorf("TotalRuns = %d, want 0", status.TotalRuns)
	}
	if status.LastRunAt != nil || status.LastRunDate != nil || status.LastResult != nil || status.LastError != nil {
		t.Errorf("fresh status has populated fields: %+v", status)
	}
}

// TestRunnerStatusIsSnapshot verifies the returned status is detached from
// later runs.
func TestRunnerStatusIsSnapshot(t *testing.T) {
	gen := &stubGenerator{stats: &GenerationStats{Generated: 1}}
	runner := NewRunner(gen)
	runner.RunNow(context.Background(), date(2026, time.January, 7))

	before := runner.Status()
	gen.stats = &GenerationStats{Generated: 9}
	runner.RunNow(context.Background(), date(2026, time.January, 8))

	if before.LastResult.Generated != 1 {
		t.Errorf("snapshot mutated: Generated = %d, want 1", before.LastResult.Generated)
	}
}
