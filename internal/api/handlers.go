/**
 * @description
 * This file contains the HTTP handlers for the billing-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/internal/app"
	"github.com/lodgebook/billing-service/internal/domain"
	"github.com/lodgebook/billing-service/internal/store"
	"github.com/lodgebook/billing-service/pkg/gateway"
)

// BillingHandlers holds the application service that handlers will use.
type BillingHandlers struct {
	service           *app.Service
	limiter           *app.RedisCallbackRateLimiter
	callbackRateLimit int
}

// NewBillingHandlers creates a new instance of BillingHandlers. The limiter
// may be nil, in which case callback rate limiting is disabled.
func NewBillingHandlers(service *app.Service, limiter *app.RedisCallbackRateLimiter, callbackRateLimit int) *BillingHandlers {
	return &BillingHandlers{
		service:           service,
		limiter:           limiter,
		callbackRateLimit: callbackRateLimit,
	}
}

// CreateInvoiceHandler handles requests to generate one invoice for a tenant.
func (h *BillingHandlers) CreateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := GetAdminID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return
	}

	var req domain.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_invoice outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inv, err := h.service.CreateInvoice(r.Context(), adminID, req)
	if err != nil {
		h.respondServiceError(w, "create_invoice", err)
		return
	}

	log.Printf("level=info component=api endpoint=create_invoice outcome=created invoice_id=%s admin_id=%s total=%d", inv.ID, adminID, inv.TotalAmount)
	h.writeJSON(w, http.StatusCreated, inv)
}

// BulkCreateInvoicesHandler generates invoices for many tenants in one call.
// Per-tenant failures are reported in the response body, not as an HTTP error.
func (h *BillingHandlers) BulkCreateInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := GetAdminID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return
	}

	var req domain.BulkInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.CreateInvoicesBulk(r.Context(), adminID, req)
	if err != nil {
		h.respondServiceError(w, "bulk_create_invoices", err)
		return
	}

	log.Printf("level=info component=api endpoint=bulk_create_invoices outcome=done admin_id=%s success=%d failed=%d", adminID, len(result.Successful), len(result.Failed))
	h.writeJSON(w, http.StatusCreated, result)
}

// ListInvoicesHandler returns the administrator's invoices, filtered via
// query parameters.
func (h *BillingHandlers) ListInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := GetAdminID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return
	}

	opts, err := parseInvoiceListOptions(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), adminID, opts)
	if err != nil {
		h.respondServiceError(w, "list_invoices", err)
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"invoices": invoices})
}

// GetInvoiceHandler returns one invoice by id.
func (h *BillingHandlers) GetInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	adminID, invoiceID, ok := h.adminAndInvoiceID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.GetInvoice(r.Context(), adminID, invoiceID)
	if err != nil {
		h.respondServiceError(w, "get_invoice", err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

// EditInvoiceHandler replaces a pending invoice's charges and recomputes fees.
func (h *BillingHandlers) EditInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	adminID, invoiceID, ok := h.adminAndInvoiceID(w, r)
	if !ok {
		return
	}

	var req struct {
		Charges domain.Charges `json:"charges"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inv, err := h.service.EditInvoice(r.Context(), adminID, invoiceID, req.Charges)
	if err != nil {
		h.respondServiceError(w, "edit_invoice", err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

// MarkInvoicePaidHandler records an offline payment confirmed by the
// administrator. Calling it on an already paid invoice is a no-op success.
func (h *BillingHandlers) MarkInvoicePaidHandler(w http.ResponseWriter, r *http.Request) {
	adminID, invoiceID, ok := h.adminAndInvoiceID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.MarkInvoicePaid(r.Context(), adminID, invoiceID)
	if err != nil {
		h.respondServiceError(w, "mark_invoice_paid", err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

// CancelInvoiceHandler transitions a pending invoice to cancelled.
func (h *BillingHandlers) CancelInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	adminID, invoiceID, ok := h.adminAndInvoiceID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.CancelInvoice(r.Context(), adminID, invoiceID)
	if err != nil {
		h.respondServiceError(w, "cancel_invoice", err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

// DeleteInvoiceHandler removes an invoice and its payment history.
func (h *BillingHandlers) DeleteInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	adminID, invoiceID, ok := h.adminAndInvoiceID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteInvoice(r.Context(), adminID, invoiceID); err != nil {
		h.respondServiceError(w, "delete_invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListInvoicePaymentsHandler returns the payment rows recorded against one
// invoice.
func (h *BillingHandlers) ListInvoicePaymentsHandler(w http.ResponseWriter, r *http.Request) {
	adminID, invoiceID, ok := h.adminAndInvoiceID(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), adminID, invoiceID)
	if err != nil {
		h.respondServiceError(w, "list_invoice_payments", err)
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// PlatformDuesHandler reports how much the platform currently owes the
// administrator, with the settlement history.
func (h *BillingHandlers) PlatformDuesHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := GetAdminID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return
	}

	statement, err := h.service.GetPlatformDues(r.Context(), adminID)
	if err != nil {
		h.respondServiceError(w, "platform_dues", err)
		return
	}
	h.writeJSON(w, http.StatusOK, statement)
}

// RunLateFeeAccrualHandler triggers an immediate accrual pass scoped to the
// calling administrator. Safe to repeat: accrual is idempotent per day.
func (h *BillingHandlers) RunLateFeeAccrualHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := GetAdminID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return
	}

	result := h.service.RunLateFeeAccrual(r.Context(), app.AccrualRunOptions{
		Manual:  true,
		AdminID: &adminID,
	})
	h.writeJSON(w, http.StatusOK, result)
}

func (h *BillingHandlers) adminAndInvoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	adminID, ok := GetAdminID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return uuid.Nil, uuid.Nil, false
	}
	invoiceID, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid invoice ID")
		return uuid.Nil, uuid.Nil, false
	}
	return adminID, invoiceID, true
}

func parseInvoiceListOptions(query map[string][]string) (domain.InvoiceListOptions, error) {
	var opts domain.InvoiceListOptions

	get := func(key string) string {
		if vals, ok := query[key]; ok && len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
		return ""
	}

	if raw := get("tenant_id"); raw != "" {
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			return opts, errors.New("invalid tenant_id")
		}
		opts.TenantID = &tenantID
	}
	if raw := get("status"); raw != "" {
		status := domain.InvoiceStatus(raw)
		switch status {
		case domain.InvoiceStatusPending, domain.InvoiceStatusPaid, domain.InvoiceStatusCancelled:
			opts.Status = status
		default:
			return opts, errors.New("invalid status")
		}
	}
	if raw := get("due_before"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return opts, errors.New("invalid due_before, expected YYYY-MM-DD")
		}
		opts.DueBefore = &t
	}
	if raw := get("due_after"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return opts, errors.New("invalid due_after, expected YYYY-MM-DD")
		}
		opts.DueAfter = &t
	}
	if raw := get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, errors.New("invalid limit")
		}
		opts.Limit = limit
	}
	if raw := get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return opts, errors.New("invalid offset")
		}
		opts.Offset = offset
	}
	return opts, nil
}

// respondServiceError maps service-layer failures onto HTTP statuses. The
// mapping is deliberately explicit: validation and state conflicts are the
// caller's problem, gateway trouble is the provider's, everything else is ours.
func (h *BillingHandlers) respondServiceError(w http.ResponseWriter, endpoint string, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		h.writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}

	switch {
	case errors.Is(err, store.ErrInvoiceNotFound), errors.Is(err, store.ErrPaymentNotFound):
		h.writeError(w, http.StatusNotFound, "Invoice not found")
		return
	case errors.Is(err, store.ErrInvoiceNotPending):
		h.writeError(w, http.StatusConflict, "Invoice is not in a pending state")
		return
	case errors.Is(err, store.ErrBillingConfigNotFound):
		h.writeError(w, http.StatusPreconditionFailed, "Billing configuration is not set up for this account")
		return
	case errors.Is(err, store.ErrGatewayConfigNotFound):
		h.writeError(w, http.StatusPreconditionFailed, "Payment gateway is not configured for this account")
		return
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		if gwErr.Retryable {
			h.writeError(w, http.StatusBadGateway, "Payment gateway is unavailable, please retry")
			return
		}
		h.writeError(w, http.StatusBadRequest, "Payment gateway rejected the request")
		return
	}

	log.Printf("level=error component=api endpoint=%s outcome=error err=%v", endpoint, err)
	h.writeError(w, http.StatusInternalServerError, "Internal server error")
}

// writeJSON is a helper for writing JSON responses.
func (h *BillingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *BillingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
