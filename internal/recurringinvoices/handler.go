package recurringinvoices

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gaborv/szamla/backend/internal/respond"
)

// SchedulerInfo is what the run-status endpoint reports about the periodic
// trigger's configuration.
type SchedulerInfo struct {
	Enabled         bool
	IntervalSeconds int
}

// Handler handles recurring invoice template HTTP requests
type Handler struct {
	repo      Repository
	runner    *Runner
	scheduler SchedulerInfo
	logger    *slog.Logger
}

// NewHandler creates a new recurring invoices handler
func NewHandler(repo Repository, runner *Runner, scheduler SchedulerInfo, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		runner:    runner,
		scheduler: scheduler,
		logger:    logger,
	}
}

// HandleList lists all templates ordered by name
// GET /api/recurring
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	templates, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list recurring invoices", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if templates == nil {
		templates = []*Template{}
	}
	respond.JSON(w, http.StatusOK, templates)
}

// HandleGet retrieves a template by ID
// GET /api/recurring/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	template, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			respond.Error(w, http.StatusNotFound, "Recurring invoice not found")
			return
		}
		h.logger.Error("failed to get recurring invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, template)
}

// HandleCreate creates a new template
// POST /api/recurring
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateTemplateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := input.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	template, err := h.repo.Create(r.Context(), &input)
	if err != nil {
		h.logger.Error("failed to create recurring invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("recurring invoice created", "template_id", template.ID, "name", template.Name)
	respond.JSON(w, http.StatusCreated, template)
}

// HandleUpdate applies a partial update to a template
// PUT /api/recurring/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var input UpdateTemplateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := input.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	template, err := h.repo.Update(r.Context(), r.PathValue("id"), &input)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			respond.Error(w, http.StatusNotFound, "Recurring invoice not found")
			return
		}
		h.logger.Error("failed to update recurring invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, template)
}

// HandlePause toggles is_active on a template
// POST /api/recurring/{id}/pause
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	template, err := h.repo.TogglePause(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			respond.Error(w, http.StatusNotFound, "Recurring invoice not found")
			return
		}
		h.logger.Error("failed to toggle pause", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"id":        template.ID,
		"is_active": template.IsActive,
	})
}

// HandleDelete deletes a template
// DELETE /api/recurring/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			respond.Error(w, http.StatusNotFound, "Recurring invoice not found")
			return
		}
		h.logger.Error("failed to delete recurring invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
		"id":      id,
	})
}

// HandleForecast projects upcoming due dates for one template
// GET /api/recurring/{id}/forecast?months=3&from_date=YYYY-MM-DD
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	template, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			respond.Error(w, http.StatusNotFound, "Recurring invoice not found")
			return
		}
		h.logger.Error("failed to get recurring invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	months := 3
	if monthsRaw := r.URL.Query().Get("months"); monthsRaw != "" {
		months, err = strconv.Atoi(monthsRaw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "months must be an integer")
			return
		}
	}
	if months < 1 || months > 24 {
		respond.Error(w, http.StatusBadRequest, ErrInvalidMonths.Error())
		return
	}

	fromDate := dateOnly(time.Now().UTC())
	if fromRaw := r.URL.Query().Get("from_date"); fromRaw != "" {
		fromDate, err = time.ParseInLocation("2006-01-02", fromRaw, time.UTC)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "from_date must be YYYY-MM-DD")
			return
		}
	}

	dueDates := ForecastDueDates(template, months, fromDate)
	existing, err := h.repo.ExistingDueDates(r.Context(), template.ID, dueDates)
	if err != nil {
		h.logger.Error("failed to check existing due dates", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	forecast := make([]map[string]interface{}, 0, len(dueDates))
	for _, dueDate := range dueDates {
		key := dueDate.Format("2006-01-02")
		forecast = append(forecast, map[string]interface{}{
			"due_date":          key,
			"already_generated": existing[key],
		})
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"recurring_id": template.ID,
		"is_active":    template.IsActive,
		"months":       months,
		"from_date":    fromDate.Format("2006-01-02"),
		"forecast":     forecast,
	})
}

// HandleRunNow triggers a generation run immediately
// POST /api/recurring/run-now
func (h *Handler) HandleRunNow(w http.ResponseWriter, r *http.Request) {
	runDate := dateOnly(time.Now().UTC())
	if r.Body != nil {
		var payload struct {
			RunDate string `json:"run_date"`
		}
		// An empty or absent body means "run for today".
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil && payload.RunDate != "" {
			parsed, err := time.ParseInLocation("2006-01-02", payload.RunDate, time.UTC)
			if err != nil {
				respond.Error(w, http.StatusBadRequest, "run_date must be YYYY-MM-DD")
				return
			}
			runDate = parsed
		}
	}

	stats, err := h.runner.RunNow(r.Context(), runDate)
	if err != nil {
		h.logger.Error("manual generation run failed", "error", err, "run_date", runDate.Format("2006-01-02"))
		// Manual runs are an operator tool; surface the underlying failure
		// instead of a generic message.
		respond.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"run_date": runDate.Format("2006-01-02"),
		"result":   stats,
	})
}

// HandleRunStatus reports the runner snapshot plus scheduler configuration
// GET /api/recurring/run-status
func (h *Handler) HandleRunStatus(w http.ResponseWriter, r *http.Request) {
	status := h.runner.Status()
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"total_runs":                 status.TotalRuns,
		"last_run_at":                status.LastRunAt,
		"last_run_date":              status.LastRunDate,
		"last_result":                status.LastResult,
		"last_error":                 status.LastError,
		"scheduler_enabled":          h.scheduler.Enabled,
		"scheduler_interval_seconds": h.scheduler.IntervalSeconds,
	})
}
