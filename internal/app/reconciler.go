/**
 * @description
 * The payment reconciler consumes gateway callbacks: it verifies the
 * provider's signature, resolves the target invoice, and applies the payment
 * through one atomic store operation that both inserts the SUCCESS payment
 * row and transitions the invoice to paid.
 *
 * @notes
 * - Verification happens strictly before any state change. A tampered or
 *   unverifiable payload is rejected with a gateway error and nothing
 *   mutates.
 * - The razorpay signature covers only the order and payment ids, so the
 *   callback amount is additionally cross-checked against the invoice total
 *   before anything is recorded.
 * - Exactly-once rests on the database (partial unique index + conditional
 *   update), not on in-process locking: several stateless instances may
 *   receive the same callback concurrently and all but one resolve it as a
 *   replay.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/lodgebook/billing-service/internal/domain"
	"github.com/lodgebook/billing-service/pkg/gateway"
)

// ReconcileResult reports one processed callback. Replayed is true when a
// SUCCESS payment already existed and the call changed nothing.
type ReconcileResult struct {
	Payment  *domain.Payment `json:"payment"`
	Replayed bool            `json:"replayed"`
}

// HandleGatewayCallback verifies a raw provider callback against the
// invoice owner's gateway configuration and records the payment. The invoice
// reference travels in the order metadata (razorpay receipt / payu
// productinfo), so the payload itself determines which invoice and therefore
// which administrator's credentials verify it.
func (s *Service) HandleGatewayCallback(ctx context.Context, provider string, invoiceID uuid.UUID, payload gateway.CallbackPayload) (*ReconcileResult, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.gwConfigs.GatewayConfig(ctx, inv.AdminID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gateway config: %w", err)
	}
	if cfg.Provider != provider {
		return nil, &gateway.Error{Provider: provider, Retryable: false, Err: errors.New("callback provider does not match admin gateway config")}
	}
	gw, err := gateway.New(cfg)
	if err != nil {
		return nil, err
	}

	// Signature check first. Until this returns, every callback field is
	// untrusted and nothing may be written.
	verified, err := gw.VerifyCallback(payload)
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"callback verification failed\" provider=%s invoice_id=%s err=%v", provider, invoiceID, err)
		return nil, err
	}

	// Not every provider's signature covers the amount field, so a passing
	// signature check does not make it trustworthy. Cross-check against the
	// invoice total and treat a mismatch like a tampered payload.
	if payload.Amount != inv.TotalAmount {
		log.Printf("level=warn component=reconciler msg=\"callback amount does not match invoice total\" provider=%s invoice_id=%s callback_amount=%d invoice_total=%d", provider, invoiceID, payload.Amount, inv.TotalAmount)
		return nil, &gateway.Error{Provider: provider, Retryable: false, Err: fmt.Errorf("callback amount %d does not match invoice total %d", payload.Amount, inv.TotalAmount)}
	}

	return s.RecordVerifiedPayment(ctx, domain.VerifiedPaymentEvent{
		InvoiceID:        inv.ID,
		TenantID:         inv.TenantID,
		AdminID:          inv.AdminID,
		GatewayName:      provider,
		GatewayOrderID:   verified.GatewayOrderID,
		GatewayPaymentID: verified.GatewayPaymentID,
		Amount:           payload.Amount,
		PaymentMode:      verified.PaymentMode,
	})
}

// RecordVerifiedPayment applies an already-verified payment event. Delivering
// the same event twice yields exactly one SUCCESS payment row and one
// pending → paid transition; the replay returns the original result as
// success.
func (s *Service) RecordVerifiedPayment(ctx context.Context, event domain.VerifiedPaymentEvent) (*ReconcileResult, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, event.InvoiceID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.gwConfigs.GatewayConfig(ctx, inv.AdminID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gateway config: %w", err)
	}

	payment := &domain.Payment{
		ID:               uuid.New(),
		InvoiceID:        event.InvoiceID,
		TenantID:         event.TenantID,
		AdminID:          event.AdminID,
		GatewayName:      event.GatewayName,
		GatewayOrderID:   event.GatewayOrderID,
		GatewayPaymentID: event.GatewayPaymentID,
		Amount:           event.Amount,
		Status:           domain.PaymentStatusSuccess,
		PaymentMode:      event.PaymentMode,
	}

	// In shared-gateway mode the platform collected on the administrator's
	// behalf; the payout owed to them is the amount minus the platform's fee
	// items on the invoice. With the administrator's own gateway the funds
	// never pass through us and no payout is tracked.
	if cfg.Shared {
		payout := event.Amount - inv.FeeTotal()
		payment.VendorPayout = &payout
	}

	paidAt := s.now().UTC()
	result, err := s.repo.RecordPayment(ctx, payment, paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if !result.Created {
		log.Printf("level=info component=reconciler msg=\"duplicate success callback resolved as replay\" invoice_id=%s gateway_payment_id=%s", event.InvoiceID, event.GatewayPaymentID)
		return &ReconcileResult{Payment: result.Payment, Replayed: true}, nil
	}

	go s.notifier.InvoicePaid(context.WithoutCancel(ctx), domain.InvoicePaidEvent{
		InvoiceID: event.InvoiceID,
		TenantID:  event.TenantID,
		AdminID:   event.AdminID,
		Amount:    event.Amount,
		Gateway:   event.GatewayName,
		PaidAt:    paidAt,
	})
	return &ReconcileResult{Payment: result.Payment, Replayed: false}, nil
}
