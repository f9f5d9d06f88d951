package gmailaccounts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gaborv/szamla/backend/internal/respond"
)

// Handler handles Gmail account HTTP requests
type Handler struct {
	repo        Repository
	maxAccounts int
	logger      *slog.Logger
}

// NewHandler creates a new Gmail accounts handler
func NewHandler(repo Repository, maxAccounts int, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, maxAccounts: maxAccounts, logger: logger}
}

// HandleList lists all accounts ordered by email
// GET /api/accounts
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list gmail accounts", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if accounts == nil {
		accounts = []*Account{}
	}
	respond.JSON(w, http.StatusOK, accounts)
}

// HandleGet retrieves an account
// GET /api/accounts/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	account, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			respond.Error(w, http.StatusNotFound, "Gmail account not found")
			return
		}
		h.logger.Error("failed to get gmail account", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, account)
}

// HandleCreate registers a new mailbox, capped at the configured maximum
// POST /api/accounts
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateAccountInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := input.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.repo.Count(r.Context())
	if err != nil {
		h.logger.Error("failed to count gmail accounts", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if count >= h.maxAccounts {
		respond.Error(w, http.StatusBadRequest, ErrAccountLimit.Error())
		return
	}

	account, err := h.repo.Create(r.Context(), &input)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			respond.Error(w, http.StatusConflict, ErrEmailTaken.Error())
			return
		}
		h.logger.Error("failed to create gmail account", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("gmail account registered", "account_id", account.ID, "email", account.Email)
	respond.JSON(w, http.StatusCreated, account)
}

// HandleUpdateFilters stores new filter settings in the credentials blob
// PUT /api/accounts/{id}/filters
func (h *Handler) HandleUpdateFilters(w http.ResponseWriter, r *http.Request) {
	var input UpdateFiltersInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			respond.Error(w, http.StatusNotFound, "Gmail account not found")
			return
		}
		h.logger.Error("failed to get gmail account", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	labelName, gmailQuery := NormalizeFilterSettings(input.LabelName, input.GmailQuery)
	credentials, err := EmbedFilterSettings(account.CredentialsJSON, labelName, gmailQuery)
	if err != nil {
		h.logger.Error("failed to embed filter settings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	updated, err := h.repo.UpdateCredentials(r.Context(), account.ID, credentials)
	if err != nil {
		h.logger.Error("failed to update gmail account", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

// HandleDeactivate flips the account inactive
// POST /api/accounts/{id}/deactivate
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	account, err := h.repo.Deactivate(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			respond.Error(w, http.StatusNotFound, "Gmail account not found")
			return
		}
		h.logger.Error("failed to deactivate gmail account", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, account)
}
