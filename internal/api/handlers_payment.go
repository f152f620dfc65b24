/**
 * @description
 * This file contains the HTTP handlers for the payment flow: creating a
 * gateway order for a pending invoice, and receiving the provider's
 * completion callback on the public (unauthenticated) surface.
 *
 * The callback endpoint accepts both JSON bodies (modal-style providers) and
 * form posts (redirect-style providers). Either way the payload is normalized
 * into gateway.CallbackPayload before the reconciler sees it; every field is
 * untrusted until the signature check passes.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/pkg/gateway"
)

const callbackRateLimitScope = "gateway_callback"

// CreatePaymentOrderHandler asks the administrator's configured gateway to
// create an order for a pending invoice.
func (h *BillingHandlers) CreatePaymentOrderHandler(w http.ResponseWriter, r *http.Request) {
	adminID, invoiceID, ok := h.adminAndInvoiceID(w, r)
	if !ok {
		return
	}

	order, err := h.service.CreatePaymentOrder(r.Context(), adminID, invoiceID)
	if err != nil {
		h.respondServiceError(w, "create_payment_order", err)
		return
	}

	log.Printf("level=info component=api endpoint=create_payment_order outcome=created invoice_id=%s provider=%s order_id=%s", invoiceID, order.Provider, order.OrderID)
	h.writeJSON(w, http.StatusCreated, order)
}

// callbackRequest is the JSON shape of a modal-style provider callback
// forwarded by the client after payment completion.
type callbackRequest struct {
	InvoiceID string            `json:"invoice_id"`
	OrderID   string            `json:"order_id"`
	PaymentID string            `json:"payment_id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Signature string            `json:"signature"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// GatewayCallbackHandler receives a provider completion callback on the
// public surface. The endpoint is rate limited per client IP because it
// carries no authentication; a missing or unreachable Redis degrades to
// allowing the request rather than blocking payments.
func (h *BillingHandlers) GatewayCallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider != gateway.ProviderRazorpay && provider != gateway.ProviderPayU {
		h.writeError(w, http.StatusNotFound, "Unknown payment provider")
		return
	}

	if h.limiter != nil && h.callbackRateLimit > 0 {
		subject := clientIP(r)
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), callbackRateLimitScope, subject, h.callbackRateLimit, time.Minute)
		if err != nil {
			log.Printf("level=warn component=api endpoint=gateway_callback msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if count > h.callbackRateLimit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many callback requests")
			return
		}
	}

	invoiceID, payload, err := parseCallback(r, provider)
	if err != nil {
		log.Printf("level=warn component=api endpoint=gateway_callback outcome=reject provider=%s reason=malformed_payload err=%v", provider, err)
		h.writeError(w, http.StatusBadRequest, "Malformed callback payload")
		return
	}

	result, err := h.service.HandleGatewayCallback(r.Context(), provider, invoiceID, payload)
	if err != nil {
		h.respondServiceError(w, "gateway_callback", err)
		return
	}

	if result.Replayed {
		log.Printf("level=info component=api endpoint=gateway_callback outcome=replay invoice_id=%s provider=%s", invoiceID, provider)
	} else {
		log.Printf("level=info component=api endpoint=gateway_callback outcome=reconciled invoice_id=%s provider=%s payment_id=%s", invoiceID, provider, result.Payment.ID)
	}
	h.writeJSON(w, http.StatusOK, result)
}

// parseCallback normalizes either body style into the invoice reference plus
// the untrusted payload handed to signature verification.
func parseCallback(r *http.Request, provider string) (uuid.UUID, gateway.CallbackPayload, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/x-www-form-urlencoded") || strings.Contains(contentType, "multipart/form-data") {
		return parseFormCallback(r)
	}
	return parseJSONCallback(r)
}

func parseJSONCallback(r *http.Request) (uuid.UUID, gateway.CallbackPayload, error) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, gateway.CallbackPayload{}, err
	}
	invoiceID, err := uuid.Parse(strings.TrimSpace(req.InvoiceID))
	if err != nil {
		return uuid.Nil, gateway.CallbackPayload{}, errors.New("missing or invalid invoice_id")
	}
	return invoiceID, gateway.CallbackPayload{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Signature: req.Signature,
		Fields:    req.Fields,
	}, nil
}

// parseFormCallback handles redirect-style providers that post back an
// urlencoded form. The invoice reference travels in productinfo and the
// response hash in the hash field; everything else is carried through for
// the provider's signature scheme.
func parseFormCallback(r *http.Request) (uuid.UUID, gateway.CallbackPayload, error) {
	if err := r.ParseForm(); err != nil {
		return uuid.Nil, gateway.CallbackPayload{}, err
	}

	fields := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}

	invoiceID, err := uuid.Parse(strings.TrimSpace(fields["productinfo"]))
	if err != nil {
		return uuid.Nil, gateway.CallbackPayload{}, errors.New("missing or invalid productinfo invoice reference")
	}

	var amount int64
	if raw := strings.TrimSpace(fields["amount"]); raw != "" {
		parsed, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			return uuid.Nil, gateway.CallbackPayload{}, errors.New("invalid amount")
		}
		amount = int64(parsed)
	}

	return invoiceID, gateway.CallbackPayload{
		OrderID:   fields["txnid"],
		PaymentID: fields["mihpayid"],
		Amount:    amount,
		Currency:  "INR",
		Signature: fields["hash"],
		Fields:    fields,
	}, nil
}

// clientIP resolves the caller's address, preferring the first entry of
// X-Forwarded-For when the service sits behind a proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
