/**
 * @description
 * The fee calculator turns raw charge inputs and an administrator's fee
 * schedule into a deterministic, itemized bill. It is a pure function: no
 * side effects, identical inputs always produce identical output.
 *
 * @notes
 * - Each percentage fee is rounded independently to the nearest whole rupee
 *   (half-up) from the subtotal. The aggregate is NOT re-rounded; the sum of
 *   the fee items can therefore differ from `percent-sum × subtotal` by a
 *   rupee or two. That is accepted behavior, not an accumulation bug.
 */

package billing

import (
	"math"

	"github.com/lodgebook/billing-service/internal/domain"
)

// Bill is the calculator output: the ordered item list plus its totals.
type Bill struct {
	Items       []domain.InvoiceItem
	Subtotal    int64
	TotalAmount int64
}

// RoundHalfUp rounds a fractional rupee amount to the nearest whole rupee,
// with .5 rounding away from zero toward positive infinity.
func RoundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

// PercentOf computes pct% of amount, rounded half-up to a whole rupee.
func PercentOf(amount int64, pct float64) int64 {
	return RoundHalfUp(float64(amount) * pct / 100.0)
}

// Calculate produces the itemized bill for one invoice. Base charges come
// first (zero-valued optional charges are omitted), then fee items in a fixed
// order: fixed fee, platform, development, support, maintenance, gateway.
func Calculate(charges domain.Charges, cfg domain.AdminBillingConfig) (*Bill, error) {
	if charges.Rent <= 0 {
		return nil, domain.NewValidationError("rent", "must be greater than zero")
	}
	if charges.Electricity < 0 || charges.Water < 0 || charges.Maintenance < 0 {
		return nil, domain.NewValidationError("charges", "optional charges must not be negative")
	}

	items := []domain.InvoiceItem{
		{Description: "Rent", Amount: charges.Rent, Kind: domain.ItemKindRent},
	}
	if charges.Electricity > 0 {
		items = append(items, domain.InvoiceItem{Description: "Electricity", Amount: charges.Electricity, Kind: domain.ItemKindUtility})
	}
	if charges.Water > 0 {
		items = append(items, domain.InvoiceItem{Description: "Water", Amount: charges.Water, Kind: domain.ItemKindUtility})
	}
	if charges.Maintenance > 0 {
		items = append(items, domain.InvoiceItem{Description: "Maintenance", Amount: charges.Maintenance, Kind: domain.ItemKindService})
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.Amount
	}

	// Fee items always follow the base charges, in schedule order. Each
	// percentage is rounded on its own against the subtotal.
	fees := []domain.InvoiceItem{
		{Description: "Platform fixed fee", Amount: cfg.FixedFee, Kind: domain.ItemKindFee},
		{Description: "Platform fee", Amount: PercentOf(subtotal, cfg.PlatformPercent), Kind: domain.ItemKindFee},
		{Description: "Development fee", Amount: PercentOf(subtotal, cfg.DevelopmentPercent), Kind: domain.ItemKindFee},
		{Description: "Support fee", Amount: PercentOf(subtotal, cfg.SupportPercent), Kind: domain.ItemKindFee},
		{Description: "Maintenance fee", Amount: PercentOf(subtotal, cfg.MaintenancePercent), Kind: domain.ItemKindFee},
		{Description: "Gateway fee", Amount: PercentOf(subtotal, cfg.GatewayPercent), Kind: domain.ItemKindFee},
	}

	total := subtotal
	for _, fee := range fees {
		total += fee.Amount
	}
	items = append(items, fees...)

	return &Bill{Items: items, Subtotal: subtotal, TotalAmount: total}, nil
}
