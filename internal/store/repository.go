/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the billing service. Defining an
 * interface decouples the business logic from the PostgreSQL implementation
 * and lets the application layer be tested against in-memory stubs.
 *
 * @notes
 * - Every invoice/payment query takes the owning admin id and filters on it.
 *   Ownership is enforced here, in SQL, not left to the storage platform.
 * - The exactly-once guarantees (one late fee per day, one SUCCESS payment
 *   per invoice) live behind conditional writes in the implementation, never
 *   behind in-process locks: the service runs as multiple stateless instances.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/internal/domain"
)

var (
	ErrInvoiceNotFound       = errors.New("invoice not found")
	ErrInvoiceNotPending     = errors.New("invoice is not pending")
	ErrBillingConfigNotFound = errors.New("billing config not found")
	ErrLateFeeAlreadyAccrued = errors.New("late fee already accrued for date")
	ErrPaymentNotFound       = errors.New("payment not found")
)

// AccrualCandidate pairs an overdue pending invoice with its administrator's
// late fee policy, as selected by the accrual job's predicate.
type AccrualCandidate struct {
	Invoice         domain.Invoice
	LateFeeDailyPct float64
}

// RecordPaymentResult reports the outcome of the atomic payment write.
// Created is false when a SUCCESS payment already existed for the invoice and
// the call was resolved as an idempotent replay.
type RecordPaymentResult struct {
	Payment *domain.Payment
	Created bool
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Billing config
	GetBillingConfig(ctx context.Context, adminID uuid.UUID) (*domain.AdminBillingConfig, error)

	// Invoice store
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	GetInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error)
	GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, adminID uuid.UUID, opts domain.InvoiceListOptions) ([]domain.Invoice, error)
	ReplaceInvoiceItems(ctx context.Context, adminID, invoiceID uuid.UUID, items []domain.InvoiceItem, subtotal, total int64) (*domain.Invoice, error)
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (bool, error)
	CancelInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error)
	DeleteInvoiceWithPayments(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error)

	// Late fee accrual
	ListAccrualCandidates(ctx context.Context, adminID *uuid.UUID, before time.Time) ([]AccrualCandidate, error)
	AppendLateFeeItem(ctx context.Context, invoiceID uuid.UUID, item domain.InvoiceItem, accrualDate string) error

	// Payments
	RecordPayment(ctx context.Context, payment *domain.Payment, paidAt time.Time) (*RecordPaymentResult, error)
	GetSuccessfulPayment(ctx context.Context, invoiceID uuid.UUID) (*domain.Payment, error)
	ListPaymentsByInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) ([]domain.Payment, error)

	// Platform dues ledger
	SumVendorPayouts(ctx context.Context, adminID uuid.UUID) (int64, error)
	SumSettlements(ctx context.Context, adminID uuid.UUID) (int64, error)
	ListSettlements(ctx context.Context, adminID uuid.UUID) ([]domain.PlatformSettlement, error)
}
