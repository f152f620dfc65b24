/**
 * @description
 * Domain models for payments, platform settlements and the dues ledger.
 *
 * @notes
 * - A Payment row is created only by the payment reconciler in response to a
 *   verified gateway event. It is never mutated afterwards, except for
 *   corrective deletion tied to invoice deletion.
 * - VendorPayout is present only when funds were collected on the
 *   administrator's behalf through the platform's shared gateway account.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus enumerates payment outcomes as reported by gateways.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
	PaymentStatusPending PaymentStatus = "PENDING"
)

// Payment is the durable record of a gateway-confirmed payment against an
// invoice. Maps to the `payments` table; a partial unique index guarantees at
// most one SUCCESS row per invoice.
type Payment struct {
	ID               uuid.UUID     `json:"id"`
	InvoiceID        uuid.UUID     `json:"invoice_id"`
	TenantID         uuid.UUID     `json:"tenant_id"`
	AdminID          uuid.UUID     `json:"admin_id"`
	GatewayName      string        `json:"gateway_name"`
	GatewayOrderID   string        `json:"gateway_order_id"`
	GatewayPaymentID string        `json:"gateway_payment_id"`
	GatewaySignature string        `json:"gateway_signature,omitempty"`
	Amount           int64         `json:"amount"` // in rupees
	Status           PaymentStatus `json:"status"`
	PaymentMode      string        `json:"payment_mode"`
	VendorPayout     *int64        `json:"vendor_payout,omitempty"` // in rupees
	CreatedAt        time.Time     `json:"created_at"`
}

// VerifiedPaymentEvent is the normalized input to the payment reconciler.
// It exists only after a gateway adapter has verified the callback signature;
// nothing upstream of verification may construct one from untrusted fields.
type VerifiedPaymentEvent struct {
	InvoiceID        uuid.UUID `json:"invoice_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	AdminID          uuid.UUID `json:"admin_id"`
	GatewayName      string    `json:"gateway_name"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Amount           int64     `json:"amount"` // in rupees
	PaymentMode      string    `json:"payment_mode"`
}

// PlatformSettlement is a transfer of collected funds from the platform to an
// administrator's bank account. Rows are written by an external settlement
// process and are read-only to this service.
type PlatformSettlement struct {
	ID          uuid.UUID `json:"id"`
	AdminID     uuid.UUID `json:"admin_id"`
	Amount      int64     `json:"amount"` // in rupees
	ReferenceID string    `json:"reference_id"`
	SettledAt   time.Time `json:"settled_at"`
}

// PlatformDues is the on-demand ledger aggregation for one administrator.
type PlatformDues struct {
	AdminID   uuid.UUID `json:"admin_id"`
	Collected int64     `json:"collected"` // in rupees
	Settled   int64     `json:"settled"`   // in rupees
	Due       int64     `json:"due"`       // in rupees
}

// InvoicePaidEvent is published to RabbitMQ after a successful reconciliation
// so the notification system can deliver a receipt.
type InvoicePaidEvent struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	AdminID   uuid.UUID `json:"admin_id"`
	Amount    int64     `json:"amount"`
	Gateway   string    `json:"gateway"`
	PaidAt    time.Time `json:"paid_at"`
}

// LateFeeAccruedEvent is published after a late fee has been persisted.
type LateFeeAccruedEvent struct {
	InvoiceID   uuid.UUID `json:"invoice_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	AdminID     uuid.UUID `json:"admin_id"`
	Fee         int64     `json:"fee"`
	NewTotal    int64     `json:"new_total"`
	AccrualDate string    `json:"accrual_date"`
}
