/**
 * @description
 * This file sets up the HTTP router for the billing-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BillingRoutes creates and returns a new router for the billing service.
func BillingRoutes(h *BillingHandlers, jwtSecret string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Provider completion callbacks arrive unauthenticated; the handler rate
	// limits and signature-verifies them instead.
	r.Post("/callbacks/{provider}", h.GatewayCallbackHandler)

	// Group routes that require authentication.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AdminAuthMiddleware(jwtSecret))

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", h.CreateInvoiceHandler)
			r.Get("/", h.ListInvoicesHandler)
			r.Post("/bulk", h.BulkCreateInvoicesHandler)

			r.Route("/{invoiceID}", func(r chi.Router) {
				r.Get("/", h.GetInvoiceHandler)
				r.Put("/", h.EditInvoiceHandler)
				r.Delete("/", h.DeleteInvoiceHandler)
				r.Post("/mark-paid", h.MarkInvoicePaidHandler)
				r.Post("/cancel", h.CancelInvoiceHandler)
				r.Post("/orders", h.CreatePaymentOrderHandler)
				r.Get("/payments", h.ListInvoicePaymentsHandler)
			})
		})

		r.Get("/dues", h.PlatformDuesHandler)
		r.Post("/jobs/late-fees/run", h.RunLateFeeAccrualHandler)
	})

	return r
}
