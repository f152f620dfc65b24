package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/internal/domain"
)

func addSuccessPayment(repo *fakeRepo, adminID uuid.UUID, payout int64) {
	p := &domain.Payment{
		ID:        uuid.New(),
		InvoiceID: uuid.New(),
		AdminID:   adminID,
		Status:    domain.PaymentStatusSuccess,
		Amount:    payout + 133,
	}
	p.VendorPayout = &payout
	repo.payments = append(repo.payments, p)
}

func addSettlement(repo *fakeRepo, adminID uuid.UUID, amount int64) {
	repo.settlements = append(repo.settlements, domain.PlatformSettlement{
		ID:          uuid.New(),
		AdminID:     adminID,
		Amount:      amount,
		ReferenceID: "utr_" + uuid.New().String()[:8],
		SettledAt:   time.Now(),
	})
}

func TestGetPlatformDues_Identity(t *testing.T) {
	repo := newFakeRepo()
	adminID := uuid.New()
	addSuccessPayment(repo, adminID, 11000)
	addSuccessPayment(repo, adminID, 8000)
	addSettlement(repo, adminID, 5000)

	svc := newTestService(repo)
	dues, err := svc.GetPlatformDues(context.Background(), adminID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dues.Collected != 19000 {
		t.Fatalf("expected collected 19000, got %d", dues.Collected)
	}
	if dues.Settled != 5000 {
		t.Fatalf("expected settled 5000, got %d", dues.Settled)
	}
	if dues.Due != 14000 {
		t.Fatalf("expected due 14000, got %d", dues.Due)
	}
	if len(dues.Settlements) != 1 {
		t.Fatalf("expected the settlement rows backing the figure, got %d", len(dues.Settlements))
	}
}

func TestGetPlatformDues_SettlingTheDueAmountZeroesIt(t *testing.T) {
	repo := newFakeRepo()
	adminID := uuid.New()
	addSuccessPayment(repo, adminID, 11000)

	svc := newTestService(repo)
	dues, err := svc.GetPlatformDues(context.Background(), adminID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addSettlement(repo, adminID, dues.Due)
	after, err := svc.GetPlatformDues(context.Background(), adminID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Due != 0 {
		t.Fatalf("expected due 0 after settling the due amount, got %d", after.Due)
	}
}

func TestGetPlatformDues_NeverNegative(t *testing.T) {
	repo := newFakeRepo()
	adminID := uuid.New()
	addSuccessPayment(repo, adminID, 1000)
	addSettlement(repo, adminID, 2500)

	svc := newTestService(repo)
	dues, err := svc.GetPlatformDues(context.Background(), adminID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dues.Due != 0 {
		t.Fatalf("over-settlement must floor due at zero, got %d", dues.Due)
	}
}

func TestGetPlatformDues_ScopedToAdmin(t *testing.T) {
	repo := newFakeRepo()
	adminA := uuid.New()
	adminB := uuid.New()
	addSuccessPayment(repo, adminA, 7000)
	addSuccessPayment(repo, adminB, 9999)

	svc := newTestService(repo)
	dues, err := svc.GetPlatformDues(context.Background(), adminA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dues.Collected != 7000 {
		t.Fatalf("expected only admin A's payouts, got %d", dues.Collected)
	}
}
