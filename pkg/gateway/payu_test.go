package gateway

import (
	"context"
	"strings"
	"testing"
)

func payuResponseHash(cfg Config, payload CallbackPayload) string {
	fields := []string{
		cfg.KeySecret,
		payload.Fields["status"],
		"", "", "", "", "",
		payload.Fields["udf5"],
		payload.Fields["udf4"],
		payload.Fields["udf3"],
		payload.Fields["udf2"],
		payload.Fields["udf1"],
		payload.Fields["email"],
		payload.Fields["firstname"],
		payload.Fields["productinfo"],
		payload.Fields["amount"],
		payload.OrderID,
		cfg.KeyID,
	}
	return sha512Hex(strings.Join(fields, "|"))
}

func payuTestPayload() CallbackPayload {
	return CallbackPayload{
		OrderID:   "txn_abc123",
		PaymentID: "403993715524",
		Amount:    11133,
		Fields: map[string]string{
			"status":      "success",
			"email":       "tenant@example.com",
			"firstname":   "Asha",
			"productinfo": "inv_42",
			"amount":      "11133",
			"mode":        "UPI",
		},
	}
}

func TestPayUVerifyCallback_Valid(t *testing.T) {
	cfg := Config{Provider: ProviderPayU, KeyID: "merchant_key", KeySecret: "merchant_salt"}
	g := NewPayU(cfg)

	payload := payuTestPayload()
	payload.Signature = payuResponseHash(cfg, payload)

	verified, err := g.VerifyCallback(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verified.GatewayOrderID != "txn_abc123" {
		t.Fatalf("expected order txn_abc123, got %s", verified.GatewayOrderID)
	}
	if verified.GatewayPaymentID != "403993715524" {
		t.Fatalf("expected payment id 403993715524, got %s", verified.GatewayPaymentID)
	}
	if verified.PaymentMode != "UPI" {
		t.Fatalf("expected mode UPI, got %s", verified.PaymentMode)
	}
}

// TestPayUVerifyCallback_CanonicalFixture pins the response hash scheme to a
// precomputed SHA-512 value: salt|status, five reserved empties, udf5..udf1,
// email|firstname|productinfo|amount|txnid|key. Computed outside the
// implementation so a scheme drift in VerifyCallback cannot go unnoticed.
func TestPayUVerifyCallback_CanonicalFixture(t *testing.T) {
	cfg := Config{Provider: ProviderPayU, KeyID: "merchant_key", KeySecret: "merchant_salt"}
	g := NewPayU(cfg)

	payload := payuTestPayload()
	// sha512("merchant_salt|success|||||||||||tenant@example.com|Asha|inv_42|11133|txn_abc123|merchant_key")
	payload.Signature = "47fb2a88f4005308333936578ad2ce19ae6403909f91aeb8ee976aa478aaec44b01de7a997b22fa62bedc134b683fb6d96c3daea7d3a9f279a4e2f109956e449"

	if _, err := g.VerifyCallback(payload); err != nil {
		t.Fatalf("canonical response hash rejected: %v", err)
	}
}

func TestPayUVerifyCallback_Rejections(t *testing.T) {
	cfg := Config{Provider: ProviderPayU, KeyID: "merchant_key", KeySecret: "merchant_salt"}
	g := NewPayU(cfg)

	tests := []struct {
		name   string
		mutate func(*CallbackPayload)
	}{
		{
			name: "tampered amount",
			mutate: func(p *CallbackPayload) {
				p.Signature = payuResponseHash(cfg, *p)
				p.Fields["amount"] = "1"
			},
		},
		{
			name: "failed status",
			mutate: func(p *CallbackPayload) {
				p.Fields["status"] = "failure"
				p.Signature = payuResponseHash(cfg, *p)
			},
		},
		{
			name: "wrong salt",
			mutate: func(p *CallbackPayload) {
				p.Signature = payuResponseHash(Config{KeyID: cfg.KeyID, KeySecret: "other_salt"}, *p)
			},
		},
		{
			name: "missing hash",
			mutate: func(p *CallbackPayload) {
				p.Signature = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := payuTestPayload()
			tt.mutate(&payload)
			if _, err := g.VerifyCallback(payload); err == nil {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestPayUCreateOrder(t *testing.T) {
	g := NewPayU(Config{Provider: ProviderPayU, KeyID: "merchant_key", KeySecret: "merchant_salt"})

	order, err := g.CreateOrder(context.Background(), 11133, "inv_42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(order.OrderID, "txn_") {
		t.Fatalf("expected locally minted txn id, got %s", order.OrderID)
	}
	if order.RequestHash == "" {
		t.Fatal("expected a request hash for the redirect form")
	}

	// Two orders for the same invoice must not share a transaction id.
	second, err := g.CreateOrder(context.Background(), 11133, "inv_42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.OrderID == order.OrderID {
		t.Fatal("expected unique transaction ids per order")
	}
}

func TestNewSelectsProvider(t *testing.T) {
	if _, err := New(Config{Provider: "paypal"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
	g, err := New(Config{Provider: ProviderRazorpay})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name() != ProviderRazorpay {
		t.Fatalf("expected razorpay, got %s", g.Name())
	}
	g, err = New(Config{Provider: ProviderPayU})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name() != ProviderPayU {
		t.Fatalf("expected payu, got %s", g.Name())
	}
}
