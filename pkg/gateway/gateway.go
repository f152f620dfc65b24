/**
 * @description
 * This package abstracts the third-party payment providers behind a single
 * two-capability interface: create an order for an invoice, and verify a
 * completion callback. Provider-specific completion mechanics (same-page
 * modal vs. redirect-back-with-query-parameters) stay entirely inside each
 * implementation; the rest of the service never sees them.
 *
 * @notes
 * - Configuration is an explicit per-administrator struct injected at call
 *   time. There are no ambient provider keys.
 * - Every callback field is untrusted until VerifyCallback has checked the
 *   provider's signature scheme. A failed check is a non-retryable *Error
 *   and must produce no state change upstream.
 */

package gateway

import (
	"context"
	"fmt"
)

const (
	ProviderRazorpay = "razorpay"
	ProviderPayU     = "payu"
)

// Config carries one administrator's provider credentials. Shared marks the
// platform's own merchant account collecting funds on the administrator's
// behalf, which is what makes vendor payouts applicable downstream.
type Config struct {
	Provider  string
	KeyID     string
	KeySecret string
	Shared    bool
}

// Order is the provider-side order reference handed back to the client so it
// can complete the payment.
type Order struct {
	Provider string `json:"provider"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"` // in rupees
	Currency string `json:"currency"`
	// RequestHash is set only by redirect-based providers that require a
	// signed form post to open the payment page.
	RequestHash string `json:"request_hash,omitempty"`
}

// CallbackPayload is the normalized, still-untrusted shape of a provider
// completion callback. Fields carries provider-specific extras needed by the
// signature scheme.
type CallbackPayload struct {
	OrderID   string            `json:"order_id"`
	PaymentID string            `json:"payment_id"`
	Amount    int64             `json:"amount"` // in rupees
	Currency  string            `json:"currency"`
	Signature string            `json:"signature"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// VerifiedCallback is produced only after the signature check passed.
type VerifiedCallback struct {
	GatewayOrderID   string
	GatewayPaymentID string
	PaymentMode      string
}

// Gateway is the capability set every provider integration must offer.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, amount int64, invoiceRef string) (*Order, error)
	VerifyCallback(payload CallbackPayload) (*VerifiedCallback, error)
}

// Error wraps any gateway failure. Retryable distinguishes transient
// network/provider trouble from a rejected signature; retrying the latter is
// pointless.
type Error struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds the provider implementation named by cfg.Provider.
func New(cfg Config) (Gateway, error) {
	switch cfg.Provider {
	case ProviderRazorpay:
		return NewRazorpay(cfg), nil
	case ProviderPayU:
		return NewPayU(cfg), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
