package recurringinvoices

import (
	"context"
	"sync"
	"time"
)

// generator abstracts the generation engine so the runner can be exercised
// in tests without storage.
type generator interface {
	Generate(ctx context.Context, asOf time.Time) (*GenerationStats, error)
}

// RunStatus is a snapshot of the orchestrator's run tracking.
type RunStatus struct {
	TotalRuns   int              `json:"total_runs"`
	LastRunAt   *time.Time       `json:"last_run_at"`
	LastRunDate *string          `json:"last_run_date"`
	LastResult  *GenerationStats `json:"last_result"`
	LastError   *string          `json:"last_error"`
}

// Runner wraps the generation engine with observable run state so operators
// can tell whether the scheduler is healthy. Both the periodic trigger and
// the manual run-now endpoint go through it; overlapping runs are safe
// because the engine itself is idempotent, so the mutex only guards the
// status snapshot.
type Runner struct {
	gen generator

	mu          sync.Mutex
	totalRuns   int
	lastRunAt   time.Time
	lastRunDate time.Time
	lastResult  *GenerationStats
	lastError   string
}

// NewRunner creates a new run orchestrator around the generator.
func NewRunner(gen generator) *Runner {
	return &Runner{gen: gen}
}

// RunNow executes one generation run for asOf, records the outcome, and
// returns the stats. On failure the error is recorded and returned; it is
// never retried here.
func (r *Runner) RunNow(ctx context.Context, asOf time.Time) (*GenerationStats, error) {
	stats, err := r.gen.Generate(ctx, asOf)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRuns++
	r.lastRunAt = time.Now().UTC()
	r.lastRunDate = dateOnly(asOf)
	if err != nil {
		r.lastError = err.Error()
		return nil, err
	}
	r.lastError = ""
	r.lastResult = stats
	return stats, nil
}

// Status returns a consistent snapshot of the run state.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := RunStatus{TotalRuns: r.totalRuns}
	if r.totalRuns > 0 {
		at := r.lastRunAt
		status.LastRunAt = &at
		date := r.lastRunDate.Format("2006-01-02")
		status.LastRunDate = &date
	}
	if r.lastResult != nil {
		result := *r.lastResult
		status.LastResult = &result
	}
	if r.lastError != "" {
		msg := r.lastError
		status.LastError = &msg
	}
	return status
}
