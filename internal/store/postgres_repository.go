/**
 * @description
 * PostgreSQL implementation of the `Repository` interface covering billing
 * config and the invoice store. All SQL that touches invoices filters on the
 * owning admin_id so that ownership is enforced at the query level.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lodgebook/billing-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const invoiceColumns = `id, admin_id, tenant_id, period_month, period_year, due_date, status, items, subtotal, total_amount, paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var rawItems []byte
	err := row.Scan(
		&inv.ID,
		&inv.AdminID,
		&inv.TenantID,
		&inv.PeriodMonth,
		&inv.PeriodYear,
		&inv.DueDate,
		&inv.Status,
		&rawItems,
		&inv.Subtotal,
		&inv.TotalAmount,
		&inv.PaidAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(rawItems, &inv.Items); err != nil {
		return nil, fmt.Errorf("failed to decode invoice items: %w", err)
	}
	return &inv, nil
}

// GetBillingConfig retrieves an administrator's billing configuration.
func (r *PostgresRepository) GetBillingConfig(ctx context.Context, adminID uuid.UUID) (*domain.AdminBillingConfig, error) {
	var cfg domain.AdminBillingConfig
	query := `
		SELECT admin_id, fixed_fee, platform_percent, development_percent, support_percent,
		       maintenance_percent, gateway_percent, late_fee_enabled, late_fee_daily_percent, billing_cycle_day
		FROM admin_billing_configs
		WHERE admin_id = $1
	`
	err := r.db.QueryRow(ctx, query, adminID).Scan(
		&cfg.AdminID,
		&cfg.FixedFee,
		&cfg.PlatformPercent,
		&cfg.DevelopmentPercent,
		&cfg.SupportPercent,
		&cfg.MaintenancePercent,
		&cfg.GatewayPercent,
		&cfg.LateFeeEnabled,
		&cfg.LateFeeDailyPct,
		&cfg.BillingCycleDay,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBillingConfigNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// CreateInvoice inserts a new pending invoice with its item list.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	rawItems, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("failed to encode invoice items: %w", err)
	}

	query := `
		INSERT INTO invoices (id, admin_id, tenant_id, period_month, period_year, due_date, status, items, subtotal, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		inv.ID,
		inv.AdminID,
		inv.TenantID,
		inv.PeriodMonth,
		inv.PeriodYear,
		inv.DueDate,
		inv.Status,
		rawItems,
		inv.Subtotal,
		inv.TotalAmount,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

// GetInvoice retrieves an invoice owned by the given administrator.
func (r *PostgresRepository) GetInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1 AND admin_id = $2`, invoiceColumns)
	return scanInvoice(r.db.QueryRow(ctx, query, invoiceID, adminID))
}

// GetInvoiceByID retrieves an invoice without an ownership filter. It is used
// only by the payment reconciler, which authenticates by gateway signature
// rather than by admin session.
func (r *PostgresRepository) GetInvoiceByID(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns)
	return scanInvoice(r.db.QueryRow(ctx, query, invoiceID))
}

// ListInvoices returns an administrator's invoices, newest first, with
// optional status, tenant and due-date-range filters.
func (r *PostgresRepository) ListInvoices(ctx context.Context, adminID uuid.UUID, opts domain.InvoiceListOptions) ([]domain.Invoice, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`SELECT %s FROM invoices WHERE admin_id = $1`, invoiceColumns))
	args := []interface{}{adminID}

	if opts.Status != "" {
		args = append(args, opts.Status)
		sb.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	if opts.TenantID != nil {
		args = append(args, *opts.TenantID)
		sb.WriteString(fmt.Sprintf(" AND tenant_id = $%d", len(args)))
	}
	if opts.DueAfter != nil {
		args = append(args, *opts.DueAfter)
		sb.WriteString(fmt.Sprintf(" AND due_date >= $%d", len(args)))
	}
	if opts.DueBefore != nil {
		args = append(args, *opts.DueBefore)
		sb.WriteString(fmt.Sprintf(" AND due_date <= $%d", len(args)))
	}

	sb.WriteString(" ORDER BY created_at DESC")
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// ReplaceInvoiceItems replaces the item list and totals of a pending invoice.
// The status filter in the UPDATE is what keeps paid and cancelled invoices
// immutable even under concurrent edits.
func (r *PostgresRepository) ReplaceInvoiceItems(ctx context.Context, adminID, invoiceID uuid.UUID, items []domain.InvoiceItem, subtotal, total int64) (*domain.Invoice, error) {
	rawItems, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoice items: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE invoices
		SET items = $3, subtotal = $4, total_amount = $5, updated_at = NOW()
		WHERE id = $1 AND admin_id = $2 AND status = 'pending'
		RETURNING %s
	`, invoiceColumns)

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, invoiceID, adminID, rawItems, subtotal, total))
	if err == ErrInvoiceNotFound {
		// Distinguish a missing invoice from one that already left pending.
		if _, getErr := r.GetInvoice(ctx, adminID, invoiceID); getErr == nil {
			return nil, ErrInvoiceNotPending
		}
		return nil, ErrInvoiceNotFound
	}
	return inv, err
}

// MarkInvoicePaid transitions a pending invoice to paid. The returned bool is
// false when the invoice was not pending, which the caller treats as an
// idempotent no-op rather than an error.
func (r *PostgresRepository) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET status = 'paid', paid_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, invoiceID, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelInvoice transitions a pending invoice to cancelled.
func (r *PostgresRepository) CancelInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	query := fmt.Sprintf(`
		UPDATE invoices
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND admin_id = $2 AND status = 'pending'
		RETURNING %s
	`, invoiceColumns)

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, invoiceID, adminID))
	if err == ErrInvoiceNotFound {
		if _, getErr := r.GetInvoice(ctx, adminID, invoiceID); getErr == nil {
			return nil, ErrInvoiceNotPending
		}
		return nil, ErrInvoiceNotFound
	}
	return inv, err
}

// DeleteInvoiceWithPayments removes an invoice and any payment rows that
// reference it, in one transaction. The deleted invoice is returned so the
// caller can log the removal of a paid invoice's financial trail distinctly.
func (r *PostgresRepository) DeleteInvoiceWithPayments(ctx context.Context, adminID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1 AND admin_id = $2 FOR UPDATE`, invoiceColumns)
	inv, err := scanInvoice(tx.QueryRow(ctx, query, invoiceID, adminID))
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE invoice_id = $1`, invoiceID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListAccrualCandidates selects overdue pending invoices whose administrator
// has late fees enabled with a positive daily percent, joined with that
// percent so the job never needs a second config lookup per invoice.
func (r *PostgresRepository) ListAccrualCandidates(ctx context.Context, adminID *uuid.UUID, before time.Time) ([]AccrualCandidate, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT i.id, i.admin_id, i.tenant_id, i.period_month, i.period_year, i.due_date, i.status,
		       i.items, i.subtotal, i.total_amount, i.paid_at, i.created_at, i.updated_at,
		       c.late_fee_daily_percent
		FROM invoices i
		JOIN admin_billing_configs c ON c.admin_id = i.admin_id
		WHERE i.status = 'pending'
		  AND i.due_date < $1
		  AND c.late_fee_enabled = TRUE
		  AND c.late_fee_daily_percent > 0
	`)
	args := []interface{}{before}
	if adminID != nil {
		args = append(args, *adminID)
		sb.WriteString(fmt.Sprintf(" AND i.admin_id = $%d", len(args)))
	}
	sb.WriteString(" ORDER BY i.due_date ASC")

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []AccrualCandidate
	for rows.Next() {
		var c AccrualCandidate
		var rawItems []byte
		err := rows.Scan(
			&c.Invoice.ID,
			&c.Invoice.AdminID,
			&c.Invoice.TenantID,
			&c.Invoice.PeriodMonth,
			&c.Invoice.PeriodYear,
			&c.Invoice.DueDate,
			&c.Invoice.Status,
			&rawItems,
			&c.Invoice.Subtotal,
			&c.Invoice.TotalAmount,
			&c.Invoice.PaidAt,
			&c.Invoice.CreatedAt,
			&c.Invoice.UpdatedAt,
			&c.LateFeeDailyPct,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawItems, &c.Invoice.Items); err != nil {
			return nil, fmt.Errorf("failed to decode invoice items: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// AppendLateFeeItem appends one late fee line and bumps the total in a single
// conditional UPDATE. The JSONB containment guard repeats the per-day
// idempotency check inside the database, so two concurrent job runs cannot
// both append a fee for the same date. The total moves by the fee amount
// relative to the row's current value, never to an absolute figure computed
// from a possibly stale read.
func (r *PostgresRepository) AppendLateFeeItem(ctx context.Context, invoiceID uuid.UUID, item domain.InvoiceItem, accrualDate string) error {
	rawItem, err := json.Marshal([]domain.InvoiceItem{item})
	if err != nil {
		return fmt.Errorf("failed to encode late fee item: %w", err)
	}
	guard, err := json.Marshal([]map[string]string{{"kind": string(domain.ItemKindLateFee), "accrual_date": accrualDate}})
	if err != nil {
		return fmt.Errorf("failed to encode accrual guard: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET items = items || $2::jsonb, total_amount = total_amount + $3, updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND NOT items @> $4::jsonb
	`, invoiceID, rawItem, item.Amount, guard)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows means the guard fired: either the fee for this date already
	// exists, or the invoice left pending since it was selected.
	inv, err := r.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status != domain.InvoiceStatusPending {
		return ErrInvoiceNotPending
	}
	return ErrLateFeeAlreadyAccrued
}
