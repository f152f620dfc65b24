package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/internal/domain"
	"github.com/lodgebook/billing-service/internal/notifier"
	"github.com/lodgebook/billing-service/internal/store"
	"github.com/lodgebook/billing-service/pkg/gateway"
)

// fakeRepo is an in-memory Repository that mirrors the conditional-write
// semantics of the PostgreSQL implementation, including the one-late-fee-per-
// day guard and the single-SUCCESS-payment rule.
type fakeRepo struct {
	mu             sync.Mutex
	configs        map[uuid.UUID]domain.AdminBillingConfig
	gatewayConfigs map[uuid.UUID]gateway.Config
	invoices       map[uuid.UUID]*domain.Invoice
	payments       []*domain.Payment
	settlements    []domain.PlatformSettlement

	appendErrFor map[uuid.UUID]error // force AppendLateFeeItem failures per invoice
	createErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		configs:        map[uuid.UUID]domain.AdminBillingConfig{},
		gatewayConfigs: map[uuid.UUID]gateway.Config{},
		invoices:       map[uuid.UUID]*domain.Invoice{},
		appendErrFor:   map[uuid.UUID]error{},
	}
}

func (f *fakeRepo) GetBillingConfig(ctx context.Context, adminID uuid.UUID) (*domain.AdminBillingConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[adminID]
	if !ok {
		return nil, store.ErrBillingConfigNotFound
	}
	return &cfg, nil
}

func (f *fakeRepo) GatewayConfig(ctx context.Context, adminID uuid.UUID) (gateway.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.gatewayConfigs[adminID]
	if !ok {
		return gateway.Config{}, store.ErrGatewayConfigNotFound
	}
	return cfg, nil
}

func (f *fakeRepo) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	clone := *inv
	f.invoices[inv.ID] = &clone
	return nil
}

func (f *fakeRepo) getInvoiceLocked(invoiceID uuid.UUID) (*domain.Invoice, error) {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, store.ErrInvoiceNotFound
	}
	clone := *inv
	clone.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	return &clone, nil
}

func (f *fakeRepo) GetInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, err := f.getInvoiceLocked(invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.AdminID != adminID {
		return nil, store.ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeRepo) GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getInvoiceLocked(invoiceID)
}

func (f *fakeRepo) ListInvoices(ctx context.Context, adminID uuid.UUID, opts domain.InvoiceListOptions) ([]domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range f.invoices {
		if inv.AdminID != adminID {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		if opts.TenantID != nil && inv.TenantID != *opts.TenantID {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (f *fakeRepo) ReplaceInvoiceItems(ctx context.Context, adminID, invoiceID uuid.UUID, items []domain.InvoiceItem, subtotal, total int64) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok || inv.AdminID != adminID {
		return nil, store.ErrInvoiceNotFound
	}
	if inv.Status != domain.InvoiceStatusPending {
		return nil, store.ErrInvoiceNotPending
	}
	inv.Items = append([]domain.InvoiceItem(nil), items...)
	inv.Subtotal = subtotal
	inv.TotalAmount = total
	inv.UpdatedAt = time.Now()
	return f.getInvoiceLocked(invoiceID)
}

func (f *fakeRepo) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return false, store.ErrInvoiceNotFound
	}
	if inv.Status != domain.InvoiceStatusPending {
		return false, nil
	}
	inv.Status = domain.InvoiceStatusPaid
	inv.PaidAt = &paidAt
	return true, nil
}

func (f *fakeRepo) CancelInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok || inv.AdminID != adminID {
		return nil, store.ErrInvoiceNotFound
	}
	if inv.Status != domain.InvoiceStatusPending {
		return nil, store.ErrInvoiceNotPending
	}
	inv.Status = domain.InvoiceStatusCancelled
	return f.getInvoiceLocked(invoiceID)
}

func (f *fakeRepo) DeleteInvoiceWithPayments(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok || inv.AdminID != adminID {
		return nil, store.ErrInvoiceNotFound
	}
	deleted := *inv
	delete(f.invoices, invoiceID)
	kept := f.payments[:0]
	for _, p := range f.payments {
		if p.InvoiceID != invoiceID {
			kept = append(kept, p)
		}
	}
	f.payments = kept
	return &deleted, nil
}

func (f *fakeRepo) ListAccrualCandidates(ctx context.Context, adminID *uuid.UUID, before time.Time) ([]store.AccrualCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.AccrualCandidate
	for _, inv := range f.invoices {
		cfg, ok := f.configs[inv.AdminID]
		if !ok || !cfg.LateFeeEnabled || cfg.LateFeeDailyPct <= 0 {
			continue
		}
		if inv.Status != domain.InvoiceStatusPending || !inv.DueDate.Before(before) {
			continue
		}
		if adminID != nil && inv.AdminID != *adminID {
			continue
		}
		clone, _ := f.getInvoiceLocked(inv.ID)
		out = append(out, store.AccrualCandidate{Invoice: *clone, LateFeeDailyPct: cfg.LateFeeDailyPct})
	}
	return out, nil
}

func (f *fakeRepo) AppendLateFeeItem(ctx context.Context, invoiceID uuid.UUID, item domain.InvoiceItem, accrualDate string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.appendErrFor[invoiceID]; err != nil {
		return err
	}
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return store.ErrInvoiceNotFound
	}
	if inv.Status != domain.InvoiceStatusPending {
		return store.ErrInvoiceNotPending
	}
	if inv.LateFeeItemForDate(accrualDate) != nil {
		return store.ErrLateFeeAlreadyAccrued
	}
	inv.Items = append(inv.Items, item)
	inv.TotalAmount += item.Amount
	inv.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) RecordPayment(ctx context.Context, payment *domain.Payment, paidAt time.Time) (*store.RecordPaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.InvoiceID == payment.InvoiceID && p.Status == domain.PaymentStatusSuccess {
			clone := *p
			return &store.RecordPaymentResult{Payment: &clone, Created: false}, nil
		}
	}
	clone := *payment
	clone.CreatedAt = time.Now()
	f.payments = append(f.payments, &clone)
	if inv, ok := f.invoices[payment.InvoiceID]; ok && inv.Status == domain.InvoiceStatusPending {
		inv.Status = domain.InvoiceStatusPaid
		inv.PaidAt = &paidAt
	}
	return &store.RecordPaymentResult{Payment: payment, Created: true}, nil
}

func (f *fakeRepo) GetSuccessfulPayment(ctx context.Context, invoiceID uuid.UUID) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.InvoiceID == invoiceID && p.Status == domain.PaymentStatusSuccess {
			clone := *p
			return &clone, nil
		}
	}
	return nil, store.ErrPaymentNotFound
}

func (f *fakeRepo) ListPaymentsByInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) ([]domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Payment
	for _, p := range f.payments {
		if p.InvoiceID == invoiceID && p.AdminID == adminID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepo) SumVendorPayouts(ctx context.Context, adminID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, p := range f.payments {
		if p.AdminID == adminID && p.Status == domain.PaymentStatusSuccess && p.VendorPayout != nil {
			sum += *p.VendorPayout
		}
	}
	return sum, nil
}

func (f *fakeRepo) SumSettlements(ctx context.Context, adminID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, s := range f.settlements {
		if s.AdminID == adminID {
			sum += s.Amount
		}
	}
	return sum, nil
}

func (f *fakeRepo) ListSettlements(ctx context.Context, adminID uuid.UUID) ([]domain.PlatformSettlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PlatformSettlement
	for _, s := range f.settlements {
		if s.AdminID == adminID {
			out = append(out, s)
		}
	}
	return out, nil
}

func testSchedule() domain.AdminBillingConfig {
	return domain.AdminBillingConfig{
		FixedFee:           5,
		PlatformPercent:    0.6,
		DevelopmentPercent: 0.05,
		SupportPercent:     0.15,
		MaintenancePercent: 0.2,
		GatewayPercent:     0.15,
		LateFeeEnabled:     true,
		LateFeeDailyPct:    0.5,
		BillingCycleDay:    1,
	}
}

// newTestService wires a Service against the fake repo with notifications
// discarded.
func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, notifier.Noop{}, repo)
}
