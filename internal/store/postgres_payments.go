/**
 * @description
 * PostgreSQL implementation of the payment and settlement parts of the
 * `Repository` interface. The exactly-once payment guarantee lives here: the
 * insert targets the partial unique index `payments_invoice_success_idx`
 * (one SUCCESS row per invoice) declared in migrations/0001_init.sql, and the
 * invoice transition happens in the same transaction with a status guard.
 */

package store

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lodgebook/billing-service/internal/domain"
)

const paymentColumns = `id, invoice_id, tenant_id, admin_id, gateway_name, gateway_order_id, gateway_payment_id, gateway_signature, amount, status, payment_mode, vendor_payout, created_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.InvoiceID,
		&p.TenantID,
		&p.AdminID,
		&p.GatewayName,
		&p.GatewayOrderID,
		&p.GatewayPaymentID,
		&p.GatewaySignature,
		&p.Amount,
		&p.Status,
		&p.PaymentMode,
		&p.VendorPayout,
		&p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// RecordPayment atomically inserts a SUCCESS payment row and transitions its
// invoice to paid. Duplicate callbacks resolve against the partial unique
// index: the insert becomes a no-op, the existing row is returned with
// Created=false, and the invoice is left untouched.
func (r *PostgresRepository) RecordPayment(ctx context.Context, payment *domain.Payment, paidAt time.Time) (*RecordPaymentResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var insertedID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (id, invoice_id, tenant_id, admin_id, gateway_name, gateway_order_id, gateway_payment_id, gateway_signature, amount, status, payment_mode, vendor_payout, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (invoice_id) WHERE status = 'SUCCESS' DO NOTHING
		RETURNING id
	`,
		payment.ID,
		payment.InvoiceID,
		payment.TenantID,
		payment.AdminID,
		payment.GatewayName,
		payment.GatewayOrderID,
		payment.GatewayPaymentID,
		payment.GatewaySignature,
		payment.Amount,
		payment.Status,
		payment.PaymentMode,
		payment.VendorPayout,
	).Scan(&insertedID)

	if err == pgx.ErrNoRows {
		// A SUCCESS payment already exists for this invoice. Return it as an
		// idempotent replay without re-transitioning the invoice.
		existing, getErr := r.GetSuccessfulPayment(ctx, payment.InvoiceID)
		if getErr != nil {
			return nil, getErr
		}
		return &RecordPaymentResult{Payment: existing, Created: false}, nil
	}
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE invoices
		SET status = 'paid', paid_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, payment.InvoiceID, paidAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// The invoice left pending (e.g. cancelled) after the order was
		// created but before the gateway confirmed. The payment row still
		// commits so the collected money stays on record, but the invoice
		// does not transition; flag it for operator follow-up.
		var status string
		if scanErr := tx.QueryRow(ctx, `SELECT status FROM invoices WHERE id = $1`, payment.InvoiceID).Scan(&status); scanErr != nil {
			status = "unknown"
		}
		log.Printf("level=warn component=payment_store msg=\"success payment recorded against non-pending invoice\" invoice_id=%s invoice_status=%s gateway_payment_id=%s", payment.InvoiceID, status, payment.GatewayPaymentID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &RecordPaymentResult{Payment: payment, Created: true}, nil
}

// GetSuccessfulPayment returns the single SUCCESS payment for an invoice.
func (r *PostgresRepository) GetSuccessfulPayment(ctx context.Context, invoiceID uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 AND status = 'SUCCESS'`
	return scanPayment(r.db.QueryRow(ctx, query, invoiceID))
}

// ListPaymentsByInvoice returns the payment history for an invoice owned by
// the given administrator.
func (r *PostgresRepository) ListPaymentsByInvoice(ctx context.Context, adminID, invoiceID uuid.UUID) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 AND admin_id = $2 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, invoiceID, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// SumVendorPayouts aggregates the vendor payout portion of all successful
// payments collected on the administrator's behalf.
func (r *PostgresRepository) SumVendorPayouts(ctx context.Context, adminID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(vendor_payout), 0)
		FROM payments
		WHERE admin_id = $1 AND status = 'SUCCESS' AND vendor_payout IS NOT NULL
	`, adminID).Scan(&sum)
	return sum, err
}

// SumSettlements aggregates all settlement transfers made to the administrator.
func (r *PostgresRepository) SumSettlements(ctx context.Context, adminID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM platform_settlements
		WHERE admin_id = $1
	`, adminID).Scan(&sum)
	return sum, err
}

// ListSettlements returns the settlement rows backing the dues figure.
func (r *PostgresRepository) ListSettlements(ctx context.Context, adminID uuid.UUID) ([]domain.PlatformSettlement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, admin_id, amount, reference_id, settled_at
		FROM platform_settlements
		WHERE admin_id = $1
		ORDER BY settled_at DESC
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []domain.PlatformSettlement
	for rows.Next() {
		var s domain.PlatformSettlement
		if err := rows.Scan(&s.ID, &s.AdminID, &s.Amount, &s.ReferenceID, &s.SettledAt); err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}
