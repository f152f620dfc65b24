/**
 * @description
 * This file defines the core domain models for invoices. These structs represent
 * the main entities and data transfer objects (DTOs) used throughout the service's
 * business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and external service
 *   payloads ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` whole currency units (rupees). Percentage fees
 *   are always rounded to the nearest whole unit, so fractional amounts never
 *   appear in the ledger.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus enumerates the invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// ItemKind classifies a single line on an invoice.
type ItemKind string

const (
	ItemKindRent    ItemKind = "rent"
	ItemKindUtility ItemKind = "utility"
	ItemKindService ItemKind = "service"
	ItemKindFee     ItemKind = "fee"
	ItemKindLateFee ItemKind = "late_fee"
)

// InvoiceItem is one line on an invoice. AccrualDate is set only for late_fee
// items and carries the calendar date (YYYY-MM-DD) the penalty was applied,
// which is what makes daily accrual idempotent.
type InvoiceItem struct {
	Description string   `json:"description"`
	Amount      int64    `json:"amount"` // in rupees
	Kind        ItemKind `json:"kind"`
	AccrualDate *string  `json:"accrual_date,omitempty"`
}

// Invoice represents one billing document for one tenant for one period.
// This struct maps directly to the `invoices` table; the item list is stored
// as a JSONB column and is append-only once the invoice leaves pending.
type Invoice struct {
	ID          uuid.UUID     `json:"id"`
	AdminID     uuid.UUID     `json:"admin_id"`
	TenantID    uuid.UUID     `json:"tenant_id"`
	PeriodMonth int           `json:"period_month"`
	PeriodYear  int           `json:"period_year"`
	DueDate     time.Time     `json:"due_date"`
	Status      InvoiceStatus `json:"status"`
	Items       []InvoiceItem `json:"items"`
	Subtotal    int64         `json:"subtotal"`     // in rupees
	TotalAmount int64         `json:"total_amount"` // in rupees
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// LateFeeItemForDate returns the late fee item accrued on the given calendar
// date, if any. Dates are compared as YYYY-MM-DD strings.
func (inv *Invoice) LateFeeItemForDate(date string) *InvoiceItem {
	for i := range inv.Items {
		item := &inv.Items[i]
		if item.Kind == ItemKindLateFee && item.AccrualDate != nil && *item.AccrualDate == date {
			return item
		}
	}
	return nil
}

// FeeTotal sums the platform fee items (kind 'fee') on the invoice. Late fees
// are excluded: penalties belong to the administrator, not the platform.
func (inv *Invoice) FeeTotal() int64 {
	var total int64
	for _, item := range inv.Items {
		if item.Kind == ItemKindFee {
			total += item.Amount
		}
	}
	return total
}

// CreateInvoiceRequest is the DTO for creating a single invoice.
type CreateInvoiceRequest struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	PeriodMonth int       `json:"period_month"`
	PeriodYear  int       `json:"period_year"`
	DueDate     time.Time `json:"due_date"`
	Charges     Charges   `json:"charges"`
}

// Charges carries the raw charge amounts an invoice is generated from.
// Rent is required and must be positive; the rest are optional.
type Charges struct {
	Rent        int64 `json:"rent"`        // in rupees
	Electricity int64 `json:"electricity"` // in rupees
	Water       int64 `json:"water"`       // in rupees
	Maintenance int64 `json:"maintenance"` // in rupees
}

// BulkInvoiceTenant is one tenant's charge instruction within a bulk request.
type BulkInvoiceTenant struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Charges  Charges   `json:"charges"`
}

// BulkInvoiceRequest generates one invoice per tenant for a single period.
type BulkInvoiceRequest struct {
	PeriodMonth int                 `json:"period_month"`
	PeriodYear  int                 `json:"period_year"`
	DueDate     time.Time           `json:"due_date"`
	Tenants     []BulkInvoiceTenant `json:"tenants"`
}

// BulkInvoiceFailure captures a failed tenant generation and reason.
type BulkInvoiceFailure struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Error    string    `json:"error"`
}

// BulkInvoiceResult summarizes successful and failed generations for a batch.
type BulkInvoiceResult struct {
	Successful []*Invoice           `json:"successful"`
	Failed     []BulkInvoiceFailure `json:"failed"`
}

// InvoiceListOptions controls filtering and pagination for invoice queries.
type InvoiceListOptions struct {
	TenantID   *uuid.UUID
	Status     InvoiceStatus
	DueBefore  *time.Time
	DueAfter   *time.Time
	Limit      int
	Offset     int
}

// AdminBillingConfig holds an administrator's billing settings: the fee
// schedule applied at invoice generation and the late fee policy applied by
// the accrual job. Maps to the `admin_billing_configs` table.
type AdminBillingConfig struct {
	AdminID            uuid.UUID `json:"admin_id"`
	FixedFee           int64     `json:"fixed_fee"` // in rupees
	PlatformPercent    float64   `json:"platform_percent"`
	DevelopmentPercent float64   `json:"development_percent"`
	SupportPercent     float64   `json:"support_percent"`
	MaintenancePercent float64   `json:"maintenance_percent"`
	GatewayPercent     float64   `json:"gateway_percent"`
	LateFeeEnabled     bool      `json:"late_fee_enabled"`
	LateFeeDailyPct    float64   `json:"late_fee_daily_percent"`
	BillingCycleDay    int       `json:"billing_cycle_day"`
}
