// Package gateway defines the remote operations behind the checkout flow and
// its three bindings: an HTTP client for production, a latency-simulating mock
// for demos, and a deterministic fake for tests.
package gateway

import (
	"context"
	"time"

	"github.com/fluxr/airtime-widget/internal/domain"
)

// NetworkInfo is the result of resolving a phone number to a carrier.
type NetworkInfo struct {
	PhoneE164 string `json:"phone_e164"`
	Network   string `json:"network"`
	Country   string `json:"country"`
}

// Credit is an established unit of value, from voucher redemption or a
// confirmed card payment, consumed by SendAirtime.
type Credit struct {
	CreditID string  `json:"credit_id"`
	ValueUsd float64 `json:"value_usd"`
}

// PaystackSession is the first half of the two-phase card payment.
type PaystackSession struct {
	ProviderKey      string `json:"provider_key"`
	Email            string `json:"email"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Ref              string `json:"ref"`
}

// CreditSource names the credit consumed by a send request.
type CreditSource struct {
	Type domain.Method `json:"type"`
	ID   string        `json:"id"`
}

// Receiver identifies the beneficiary of the top-up.
type Receiver struct {
	Phone   string `json:"phone"`
	Network string `json:"network"`
}

// SendSelection mirrors the user's redemption choice on the wire.
type SendSelection struct {
	Type      domain.SelectionType `json:"type"`
	BundleID  string               `json:"bundle_id,omitempty"`
	AmountUsd float64              `json:"amount_usd"`
}

// SendRequest is the terminal fulfilment call payload.
type SendRequest struct {
	CreditSource CreditSource  `json:"credit_source"`
	Receiver     Receiver      `json:"receiver"`
	Selection    SendSelection `json:"selection"`
}

// SendResult confirms fulfilment with a transaction reference.
type SendResult struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

// Client is the remote operations contract. Implementations must return
// *apperrors.AppError values for failures so codes survive to the error event.
type Client interface {
	ResolveNetwork(ctx context.Context, phoneE164 string) (NetworkInfo, error)
	GetBundles(ctx context.Context, network string, maxUsd float64) ([]domain.Bundle, error)
	RedeemVoucher(ctx context.Context, code, phoneE164 string) (Credit, error)
	StartPaystack(ctx context.Context, amountUsd float64, phoneE164, network string) (PaystackSession, error)
	ConfirmPaystack(ctx context.Context, ref string) (Credit, error)
	SendAirtime(ctx context.Context, req SendRequest) (SendResult, error)
}

// Operation names used for metrics and logging.
const (
	OpResolveNetwork  = "resolve_network"
	OpGetBundles      = "get_bundles"
	OpRedeemVoucher   = "redeem_voucher"
	OpStartPaystack   = "start_paystack"
	OpConfirmPaystack = "confirm_paystack"
	OpSendAirtime     = "send_airtime"
)

var requestRecorder = func(operation, status string, duration time.Duration) {}

// RegisterRequestRecorder allows external packages to observe gateway calls.
func RegisterRequestRecorder(recorder func(operation, status string, duration time.Duration)) {
	if recorder == nil {
		requestRecorder = func(string, string, time.Duration) {}
		return
	}

	requestRecorder = recorder
}

func recordRequest(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	requestRecorder(operation, status, time.Since(start))
}
