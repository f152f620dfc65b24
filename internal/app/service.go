/**
 * @description
 * This file contains the core business logic for the billing service. The
 * `Service` struct orchestrates the invoice lifecycle, coordinating between
 * the database repository, the fee calculator, the payment gateways and the
 * notification boundary.
 *
 * Key features:
 * - Invoice creation (single and bulk) via the pure fee calculator.
 * - The pending → paid / cancelled state machine with idempotent terminal
 *   transitions.
 * - Explicit ownership checks: every operation is scoped to the calling
 *   administrator's id at the repository level.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/billing, internal/domain, internal/store: Fee computation,
 *   domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/internal/billing"
	"github.com/lodgebook/billing-service/internal/domain"
	"github.com/lodgebook/billing-service/internal/notifier"
	"github.com/lodgebook/billing-service/internal/store"
	"github.com/lodgebook/billing-service/pkg/gateway"
)

// GatewayConfigSource resolves one administrator's payment gateway
// configuration. Keys are injected per call; nothing reads them from ambient
// environment at payment time.
type GatewayConfigSource interface {
	GatewayConfig(ctx context.Context, adminID uuid.UUID) (gateway.Config, error)
}

// Service provides the core business logic for billing.
type Service struct {
	repo      store.Repository
	notifier  notifier.Notifier
	gwConfigs GatewayConfigSource
	now       func() time.Time
}

// NewService creates a new billing service instance.
func NewService(repo store.Repository, n notifier.Notifier, gwConfigs GatewayConfigSource) *Service {
	return &Service{
		repo:      repo,
		notifier:  n,
		gwConfigs: gwConfigs,
		now:       time.Now,
	}
}

// CreateInvoice generates one pending invoice for a tenant, with fees
// computed from the administrator's schedule.
func (s *Service) CreateInvoice(ctx context.Context, adminID uuid.UUID, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if req.TenantID == uuid.Nil {
		return nil, domain.NewValidationError("tenant_id", "is required")
	}
	if req.PeriodMonth < 1 || req.PeriodMonth > 12 {
		return nil, domain.NewValidationError("period_month", "must be between 1 and 12")
	}
	if req.DueDate.IsZero() {
		return nil, domain.NewValidationError("due_date", "is required")
	}

	cfg, err := s.repo.GetBillingConfig(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing config: %w", err)
	}

	bill, err := billing.Calculate(req.Charges, *cfg)
	if err != nil {
		return nil, err
	}

	inv := &domain.Invoice{
		ID:          uuid.New(),
		AdminID:     adminID,
		TenantID:    req.TenantID,
		PeriodMonth: req.PeriodMonth,
		PeriodYear:  req.PeriodYear,
		DueDate:     req.DueDate,
		Status:      domain.InvoiceStatusPending,
		Items:       bill.Items,
		Subtotal:    bill.Subtotal,
		TotalAmount: bill.TotalAmount,
	}
	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to persist invoice: %w", err)
	}
	return inv, nil
}

// CreateInvoicesBulk generates one invoice per tenant for a single period.
// Failures are collected per tenant; one bad tenant never aborts the batch.
func (s *Service) CreateInvoicesBulk(ctx context.Context, adminID uuid.UUID, req domain.BulkInvoiceRequest) (*domain.BulkInvoiceResult, error) {
	if len(req.Tenants) == 0 {
		return nil, domain.NewValidationError("tenants", "must not be empty")
	}

	result := &domain.BulkInvoiceResult{}
	for _, tenant := range req.Tenants {
		inv, err := s.CreateInvoice(ctx, adminID, domain.CreateInvoiceRequest{
			TenantID:    tenant.TenantID,
			PeriodMonth: req.PeriodMonth,
			PeriodYear:  req.PeriodYear,
			DueDate:     req.DueDate,
			Charges:     tenant.Charges,
		})
		if err != nil {
			result.Failed = append(result.Failed, domain.BulkInvoiceFailure{
				TenantID: tenant.TenantID,
				Error:    err.Error(),
			})
			continue
		}
		result.Successful = append(result.Successful, inv)
	}
	return result, nil
}

// GetInvoice returns one invoice owned by the administrator.
func (s *Service) GetInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, adminID, invoiceID)
}

// ListInvoices returns the administrator's invoices matching the filters.
func (s *Service) ListInvoices(ctx context.Context, adminID uuid.UUID, opts domain.InvoiceListOptions) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, adminID, opts)
}

// EditInvoice replaces the charge items of a pending invoice and recomputes
// fees. Late fee items accrued independently by the accrual job are carried
// over untouched, appended after the recomputed items.
func (s *Service) EditInvoice(ctx context.Context, adminID, invoiceID uuid.UUID, charges domain.Charges) (*domain.Invoice, error) {
	current, err := s.repo.GetInvoice(ctx, adminID, invoiceID)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.InvoiceStatusPending {
		return nil, store.ErrInvoiceNotPending
	}

	cfg, err := s.repo.GetBillingConfig(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing config: %w", err)
	}
	bill, err := billing.Calculate(charges, *cfg)
	if err != nil {
		return nil, err
	}

	items := bill.Items
	total := bill.TotalAmount
	for _, item := range current.Items {
		if item.Kind == domain.ItemKindLateFee {
			items = append(items, item)
			total += item.Amount
		}
	}

	return s.repo.ReplaceInvoiceItems(ctx, adminID, invoiceID, items, bill.Subtotal, total)
}

// MarkInvoicePaid records an administrator-confirmed offline payment. If the
// invoice is already paid the call is an idempotent no-op returning the
// current state, so the manual path and a racing gateway reconciliation can
// never double-apply.
func (s *Service) MarkInvoicePaid(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, adminID, invoiceID)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case domain.InvoiceStatusPaid:
		return inv, nil
	case domain.InvoiceStatusCancelled:
		return nil, store.ErrInvoiceNotPending
	}

	transitioned, err := s.repo.MarkInvoicePaid(ctx, invoiceID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !transitioned {
		log.Printf("level=info component=billing_service msg=\"mark-paid raced another transition; treating as no-op\" invoice_id=%s", invoiceID)
	}
	return s.repo.GetInvoice(ctx, adminID, invoiceID)
}

// CancelInvoice transitions a pending invoice to cancelled.
func (s *Service) CancelInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.repo.CancelInvoice(ctx, adminID, invoiceID)
}

// DeleteInvoice removes an invoice and its payment rows. Deleting a paid
// invoice removes a financial trail, so it is logged distinctly as a
// privileged action.
func (s *Service) DeleteInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) error {
	deleted, err := s.repo.DeleteInvoiceWithPayments(ctx, adminID, invoiceID)
	if err != nil {
		return err
	}
	if deleted.Status == domain.InvoiceStatusPaid {
		log.Printf("level=warn component=billing_service msg=\"paid invoice deleted; financial trail removed\" invoice_id=%s admin_id=%s total=%d", invoiceID, adminID, deleted.TotalAmount)
	} else {
		log.Printf("level=info component=billing_service msg=\"invoice deleted\" invoice_id=%s admin_id=%s status=%s", invoiceID, adminID, deleted.Status)
	}
	return nil
}

// ListPayments returns the payment history for one invoice.
func (s *Service) ListPayments(ctx context.Context, adminID, invoiceID uuid.UUID) ([]domain.Payment, error) {
	return s.repo.ListPaymentsByInvoice(ctx, adminID, invoiceID)
}

// CreatePaymentOrder asks the administrator's configured gateway to create an
// order for a pending invoice. The invoice is never modified here: any
// gateway failure leaves it pending and untouched, and a timeout must never
// be read as success.
func (s *Service) CreatePaymentOrder(ctx context.Context, adminID, invoiceID uuid.UUID) (*gateway.Order, error) {
	inv, err := s.repo.GetInvoice(ctx, adminID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvoiceStatusPending {
		return nil, store.ErrInvoiceNotPending
	}

	cfg, err := s.gwConfigs.GatewayConfig(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gateway config: %w", err)
	}
	gw, err := gateway.New(cfg)
	if err != nil {
		return nil, err
	}

	order, err := gw.CreateOrder(ctx, inv.TotalAmount, inv.ID.String())
	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			log.Printf("level=warn component=billing_service msg=\"gateway order creation failed\" invoice_id=%s provider=%s retryable=%t err=%v", invoiceID, gwErr.Provider, gwErr.Retryable, gwErr.Err)
		}
		return nil, err
	}
	return order, nil
}
