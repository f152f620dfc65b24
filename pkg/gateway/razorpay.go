/**
 * @description
 * Razorpay integration. Orders are created server-side over the REST API and
 * completed by the tenant inside a same-page checkout modal; the completion
 * handler then posts `{order_id, payment_id, signature}` back to us, where
 * the signature is HMAC-SHA256(order_id + "|" + payment_id, key_secret).
 */

package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const razorpayDefaultBaseURL = "https://api.razorpay.com"

// Razorpay implements Gateway for the Razorpay checkout flow.
type Razorpay struct {
	cfg        Config
	BaseURL    string
	HTTPClient *http.Client
}

// NewRazorpay creates a Razorpay gateway for one administrator's credentials.
func NewRazorpay(cfg Config) *Razorpay {
	return &Razorpay{
		cfg:     cfg,
		BaseURL: razorpayDefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (g *Razorpay) Name() string { return ProviderRazorpay }

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"` // in paise
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder registers an order with Razorpay and returns its reference.
// Any transport or provider error is retryable; a timeout never implies the
// order was created.
func (g *Razorpay) CreateOrder(ctx context.Context, amount int64, invoiceRef string) (*Order, error) {
	// Razorpay expects the amount in the smallest currency subunit.
	payload, err := json.Marshal(razorpayOrderRequest{
		Amount:   amount * 100,
		Currency: "INR",
		Receipt:  invoiceRef,
	})
	if err != nil {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, &Error{Provider: g.Name(), Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: g.Name(), Retryable: true, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Provider:  g.Name(),
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Err:       fmt.Errorf("order creation failed with status %d: %s", resp.StatusCode, body),
		}
	}

	var orderResp razorpayOrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, &Error{Provider: g.Name(), Retryable: true, Err: fmt.Errorf("failed to decode order response: %w", err)}
	}
	if orderResp.ID == "" {
		return nil, &Error{Provider: g.Name(), Retryable: true, Err: errors.New("order response missing id")}
	}

	return &Order{
		Provider: g.Name(),
		OrderID:  orderResp.ID,
		Amount:   amount,
		Currency: "INR",
	}, nil
}

// VerifyCallback checks the checkout signature in constant time.
func (g *Razorpay) VerifyCallback(payload CallbackPayload) (*VerifiedCallback, error) {
	if payload.OrderID == "" || payload.PaymentID == "" || payload.Signature == "" {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: errors.New("callback missing order id, payment id or signature")}
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.KeySecret))
	mac.Write([]byte(payload.OrderID + "|" + payload.PaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(payload.Signature)) {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: errors.New("signature verification failed")}
	}

	mode := payload.Fields["method"]
	if mode == "" {
		mode = "online"
	}
	return &VerifiedCallback{
		GatewayOrderID:   payload.OrderID,
		GatewayPaymentID: payload.PaymentID,
		PaymentMode:      mode,
	}, nil
}
