package billing

import (
	"reflect"
	"testing"

	"github.com/lodgebook/billing-service/internal/domain"
)

func standardSchedule() domain.AdminBillingConfig {
	return domain.AdminBillingConfig{
		FixedFee:           5,
		PlatformPercent:    0.6,
		DevelopmentPercent: 0.05,
		SupportPercent:     0.15,
		MaintenancePercent: 0.2,
		GatewayPercent:     0.15,
	}
}

func TestCalculate_FullSchedule(t *testing.T) {
	charges := domain.Charges{Rent: 10000, Electricity: 500, Water: 200, Maintenance: 300}

	bill, err := Calculate(charges, standardSchedule())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bill.Subtotal != 11000 {
		t.Fatalf("expected subtotal 11000, got %d", bill.Subtotal)
	}
	if bill.TotalAmount != 11133 {
		t.Fatalf("expected total 11133, got %d", bill.TotalAmount)
	}

	wantFees := []int64{5, 66, 6, 17, 22, 17}
	feeItems := make([]int64, 0, len(wantFees))
	for _, item := range bill.Items {
		if item.Kind == domain.ItemKindFee {
			feeItems = append(feeItems, item.Amount)
		}
	}
	if !reflect.DeepEqual(feeItems, wantFees) {
		t.Fatalf("expected fee amounts %v, got %v", wantFees, feeItems)
	}
}

func TestCalculate_ItemOrdering(t *testing.T) {
	charges := domain.Charges{Rent: 8000, Water: 150}

	bill, err := Calculate(charges, standardSchedule())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Zero-valued optional charges must be omitted; base charges precede fees.
	wantDescriptions := []string{
		"Rent", "Water",
		"Platform fixed fee", "Platform fee", "Development fee",
		"Support fee", "Maintenance fee", "Gateway fee",
	}
	if len(bill.Items) != len(wantDescriptions) {
		t.Fatalf("expected %d items, got %d", len(wantDescriptions), len(bill.Items))
	}
	for i, want := range wantDescriptions {
		if bill.Items[i].Description != want {
			t.Fatalf("item %d: expected %q, got %q", i, want, bill.Items[i].Description)
		}
	}
}

func TestCalculate_TotalIdentity(t *testing.T) {
	tests := []struct {
		name    string
		charges domain.Charges
	}{
		{name: "rent only", charges: domain.Charges{Rent: 1}},
		{name: "all charges", charges: domain.Charges{Rent: 12345, Electricity: 678, Water: 90, Maintenance: 1}},
		{name: "large rent", charges: domain.Charges{Rent: 1000000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill, err := Calculate(tt.charges, standardSchedule())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var base, fees int64
			for _, item := range bill.Items {
				if item.Kind == domain.ItemKindFee {
					fees += item.Amount
				} else {
					base += item.Amount
				}
			}
			if bill.Subtotal != base {
				t.Fatalf("subtotal %d does not match base charge sum %d", bill.Subtotal, base)
			}
			if bill.TotalAmount != bill.Subtotal+fees {
				t.Fatalf("total %d != subtotal %d + fees %d", bill.TotalAmount, bill.Subtotal, fees)
			}
		})
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	charges := domain.Charges{Rent: 9999, Electricity: 333}

	first, err := Calculate(charges, standardSchedule())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Calculate(charges, standardSchedule())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical output for identical input")
	}
}

func TestCalculate_RejectsInvalidCharges(t *testing.T) {
	tests := []struct {
		name    string
		charges domain.Charges
	}{
		{name: "zero rent", charges: domain.Charges{Rent: 0}},
		{name: "negative rent", charges: domain.Charges{Rent: -100}},
		{name: "negative water", charges: domain.Charges{Rent: 5000, Water: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.charges, standardSchedule())
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := err.(*domain.ValidationError); !ok {
				t.Fatalf("expected *domain.ValidationError, got %T", err)
			}
		})
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{5.4, 5},
		{5.5, 6},
		{16.5, 17},
		{66.0, 66},
		{0.4, 0},
		{0.5, 1},
	}
	for _, tt := range tests {
		if got := RoundHalfUp(tt.in); got != tt.want {
			t.Fatalf("RoundHalfUp(%v): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}
