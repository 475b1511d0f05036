package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fluxr/airtime-widget/internal/domain"
	apperrors "github.com/fluxr/airtime-widget/internal/errors"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPClient is the production binding: every operation is a JSON POST
// authenticated with the widget's public key. Retryable failures are retried
// with backoff, and a circuit breaker shields a failing backend.
type HTTPClient struct {
	baseURL   string
	publicKey string
	client    *http.Client
	breaker   *apperrors.CircuitBreaker
	log       *slog.Logger
}

// NewHTTPClient builds a gateway client for the given backend base URL.
func NewHTTPClient(baseURL, publicKey string, log *slog.Logger) *HTTPClient {
	if log == nil {
		log = slog.Default()
	}

	return &HTTPClient{
		baseURL:   baseURL,
		publicKey: publicKey,
		client:    &http.Client{Timeout: defaultHTTPTimeout},
		breaker:   apperrors.NewCircuitBreaker(),
		log:       log,
	}
}

type resolveNetworkRequest struct {
	PhoneE164 string `json:"phone_e164"`
}

type getBundlesRequest struct {
	Network string  `json:"network"`
	MaxUsd  float64 `json:"max_usd"`
}

type redeemVoucherRequest struct {
	Code      string `json:"code"`
	PhoneE164 string `json:"phone_e164"`
}

type startPaystackRequest struct {
	AmountUsd float64 `json:"amount_usd"`
	PhoneE164 string  `json:"phone_e164"`
	Network   string  `json:"network"`
}

type confirmPaystackRequest struct {
	Ref string `json:"ref"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) ResolveNetwork(ctx context.Context, phoneE164 string) (NetworkInfo, error) {
	var out NetworkInfo
	err := c.call(ctx, OpResolveNetwork, "/v1/network/resolve", resolveNetworkRequest{PhoneE164: phoneE164}, &out)
	return out, err
}

func (c *HTTPClient) GetBundles(ctx context.Context, network string, maxUsd float64) ([]domain.Bundle, error) {
	var out []domain.Bundle
	err := c.call(ctx, OpGetBundles, "/v1/bundles", getBundlesRequest{Network: network, MaxUsd: maxUsd}, &out)
	if err != nil {
		return nil, err
	}

	// The backend promises budget filtering and descending price order;
	// re-apply locally so a misbehaving deployment cannot break step 2.
	return filterAndSortBundles(out, maxUsd), nil
}

func (c *HTTPClient) RedeemVoucher(ctx context.Context, code, phoneE164 string) (Credit, error) {
	var out Credit
	err := c.call(ctx, OpRedeemVoucher, "/v1/vouchers/redeem", redeemVoucherRequest{Code: code, PhoneE164: phoneE164}, &out)
	return out, err
}

func (c *HTTPClient) StartPaystack(ctx context.Context, amountUsd float64, phoneE164, network string) (PaystackSession, error) {
	var out PaystackSession
	err := c.call(ctx, OpStartPaystack, "/v1/payments/paystack/start", startPaystackRequest{
		AmountUsd: amountUsd,
		PhoneE164: phoneE164,
		Network:   network,
	}, &out)
	return out, err
}

func (c *HTTPClient) ConfirmPaystack(ctx context.Context, ref string) (Credit, error) {
	var out Credit
	err := c.call(ctx, OpConfirmPaystack, "/v1/payments/paystack/confirm", confirmPaystackRequest{Ref: ref}, &out)
	return out, err
}

func (c *HTTPClient) SendAirtime(ctx context.Context, req SendRequest) (SendResult, error) {
	var out SendResult
	err := c.call(ctx, OpSendAirtime, "/v1/airtime/send", req, &out)
	return out, err
}

func (c *HTTPClient) call(ctx context.Context, operation, path string, in, out any) error {
	start := time.Now()

	err := apperrors.WithRetry(ctx, func() error {
		return c.breaker.Call(func() error {
			return c.doJSON(ctx, operation, path, in, out)
		})
	})

	recordRequest(operation, start, err)

	if err != nil {
		c.log.Warn("gateway call failed",
			slog.String("operation", operation),
			slog.Any("error", err),
		)
	}

	return err
}

func (c *HTTPClient) doJSON(ctx context.Context, operation, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return apperrors.NewGatewayError(operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewGatewayError(operation, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.publicKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewGatewayError(operation, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.mapErrorResponse(operation, resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewGatewayError(operation, err)
	}

	return nil
}

func (c *HTTPClient) mapErrorResponse(operation string, resp *http.Response) error {
	var payload errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	cause := fmt.Errorf("%s: http %d: %s", operation, resp.StatusCode, payload.Message)

	switch payload.Code {
	case apperrors.CodeUnsupportedRegion:
		return apperrors.NewUnsupportedRegionError(payload.Message)
	case apperrors.CodeVoucherInvalid:
		return apperrors.NewVoucherInvalidError(cause)
	case apperrors.CodePayment:
		return apperrors.NewPaymentError(operation, cause)
	}

	if resp.StatusCode >= 500 {
		// Generic retryable failure.
		return apperrors.NewGatewayError(operation, cause)
	}

	return &apperrors.AppError{
		Code:        apperrors.CodeUnknown,
		Message:     cause.Error(),
		UserMessage: "An unknown error occurred.",
		Severity:    apperrors.SeverityMedium,
		Retryable:   false,
	}
}
