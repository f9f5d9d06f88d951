package gmailsync

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gaborv/szamla/backend/internal/gmailaccounts"
	"github.com/gaborv/szamla/backend/internal/respond"
)

// Handler exposes the sync endpoint
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new sync handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// HandleSync runs a sync for one account and returns the report
// POST /api/accounts/{id}/sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.SyncAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, gmailaccounts.ErrAccountNotFound) {
			respond.Error(w, http.StatusNotFound, "Gmail account not found")
			return
		}
		h.logger.Error("gmail sync failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, report)
}
