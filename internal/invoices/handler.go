package invoices

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gaborv/szamla/backend/internal/qr"
	"github.com/gaborv/szamla/backend/internal/respond"
)

// Handler handles invoice HTTP requests
type Handler struct {
	repo   Repository
	logger *slog.Logger
}

// NewHandler creates a new invoices handler
func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// HandleList lists invoices with optional filters
// GET /api/invoices?status=unpaid&account_id=...&limit=100&offset=0
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filters := &ListFilters{Status: "all", Limit: 100}

	if status := r.URL.Query().Get("status"); status != "" {
		filters.Status = status
	}
	if accountID := r.URL.Query().Get("account_id"); accountID != "" {
		filters.AccountID = &accountID
	}
	if limitRaw := r.URL.Query().Get("limit"); limitRaw != "" {
		if limit, err := strconv.Atoi(limitRaw); err == nil {
			filters.Limit = limit
		}
	}
	if offsetRaw := r.URL.Query().Get("offset"); offsetRaw != "" {
		if offset, err := strconv.Atoi(offsetRaw); err == nil {
			filters.Offset = offset
		}
	}

	invoices, err := h.repo.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("failed to list invoices", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if invoices == nil {
		invoices = []*Invoice{}
	}
	respond.JSON(w, http.StatusOK, invoices)
}

// HandleGet retrieves a single invoice
// GET /api/invoices/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			respond.Error(w, http.StatusNotFound, "Invoice not found")
			return
		}
		h.logger.Error("failed to get invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, invoice)
}

// HandleCreate creates a manual invoice
// POST /api/invoices
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInvoiceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	dueDate, err := input.Validate()
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	invoice, err := h.repo.Create(r.Context(), &input, dueDate)
	if err != nil {
		h.logger.Error("failed to create invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("invoice created", "invoice_id", invoice.ID, "name", invoice.Name)
	respond.JSON(w, http.StatusCreated, invoice)
}

// HandlePay marks an invoice as paid
// POST /api/invoices/{id}/pay
func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.repo.MarkPaid(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			respond.Error(w, http.StatusNotFound, "Invoice not found")
			return
		}
		h.logger.Error("failed to mark invoice paid", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var paidDate *string
	if invoice.PaidDate != nil {
		s := invoice.PaidDate.UTC().Format(time.RFC3339)
		paidDate = &s
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"id":        invoice.ID,
		"paid":      invoice.Paid,
		"paid_date": paidDate,
	})
}

// HandleQR renders a payment QR code for the invoice
// GET /api/invoices/{id}/qr
func (h *Handler) HandleQR(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			respond.Error(w, http.StatusNotFound, "Invoice not found")
			return
		}
		h.logger.Error("failed to get invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if invoice.IBAN == nil {
		respond.Error(w, http.StatusBadRequest, ErrNoIBAN.Error())
		return
	}

	png, err := qr.PaymentQR(invoice.Name, *invoice.IBAN, invoice.Amount, invoice.Currency, "")
	if err != nil {
		h.logger.Error("failed to render payment QR", "error", err, "invoice_id", invoice.ID)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=invoice_%s_qr.png", invoice.ID))
	w.Write(png)
}

// HandleDelete deletes an invoice
// DELETE /api/invoices/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			respond.Error(w, http.StatusNotFound, "Invoice not found")
			return
		}
		h.logger.Error("failed to delete invoice", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
		"id":      id,
	})
}
