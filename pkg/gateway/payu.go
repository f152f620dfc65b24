/**
 * @description
 * PayU integration. PayU uses a redirect flow: the tenant is sent to the
 * provider with a signed form post and comes back on a return URL carrying
 * the result as query parameters. Order references are minted locally along
 * with the request hash; there is no server-to-server order creation call.
 *
 * Hash scheme (SHA-512, pipe-joined):
 *   request:  key|txnid|amount|productinfo|firstname|email|udf1..udf5||||||salt
 *   response: salt|status||||||udf5..udf1|email|firstname|productinfo|amount|txnid|key
 */

package gateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PayU implements Gateway for the PayU hosted-page flow.
type PayU struct {
	cfg Config
}

// NewPayU creates a PayU gateway for one administrator's credentials.
func NewPayU(cfg Config) *PayU {
	return &PayU{cfg: cfg}
}

func (g *PayU) Name() string { return ProviderPayU }

func sha512Hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CreateOrder mints a transaction id and the signed request hash the client
// needs to open the PayU payment page. No network I/O is involved.
func (g *PayU) CreateOrder(ctx context.Context, amount int64, invoiceRef string) (*Order, error) {
	if amount <= 0 {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: errors.New("amount must be positive")}
	}

	txnid := "txn_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	fields := []string{
		g.cfg.KeyID,
		txnid,
		fmt.Sprintf("%d", amount),
		invoiceRef, // productinfo
		"",         // firstname, supplied by the checkout form
		"",         // email, supplied by the checkout form
		"", "", "", "", "", // udf1..udf5
		"", "", "", "", "", // reserved
		g.cfg.KeySecret,
	}

	return &Order{
		Provider:    g.Name(),
		OrderID:     txnid,
		Amount:      amount,
		Currency:    "INR",
		RequestHash: sha512Hex(strings.Join(fields, "|")),
	}, nil
}

// VerifyCallback recomputes the reverse response hash from the returned
// fields and compares it against the one PayU sent.
func (g *PayU) VerifyCallback(payload CallbackPayload) (*VerifiedCallback, error) {
	if payload.OrderID == "" || payload.Signature == "" {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: errors.New("callback missing transaction id or hash")}
	}

	status := payload.Fields["status"]
	if status != "success" {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: fmt.Errorf("payment not successful: status %q", status)}
	}

	fields := []string{
		g.cfg.KeySecret,
		status,
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
		g.cfg.KeyID,
	}
	expected := sha512Hex(strings.Join(fields, "|"))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(payload.Signature)) != 1 {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: errors.New("response hash verification failed")}
	}

	paymentID := payload.PaymentID
	if paymentID == "" {
		paymentID = payload.Fields["mihpayid"]
	}
	if paymentID == "" {
		return nil, &Error{Provider: g.Name(), Retryable: false, Err: errors.New("callback missing provider payment id")}
	}

	mode := payload.Fields["mode"]
	if mode == "" {
		mode = "online"
	}
	return &VerifiedCallback{
		GatewayOrderID:   payload.OrderID,
		GatewayPaymentID: paymentID,
		PaymentMode:      mode,
	}, nil
}
