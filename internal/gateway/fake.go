package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxr/airtime-widget/internal/domain"
	apperrors "github.com/fluxr/airtime-widget/internal/errors"
)

// Fake is a deterministic Client for tests: no latency, no randomness, and
// every response derivable from its inputs. Individual operations can be
// overridden per test, and scripted to fail, via the *Fn fields.
type Fake struct {
	Countries []domain.Country

	ResolveNetworkFn  func(ctx context.Context, phoneE164 string) (NetworkInfo, error)
	GetBundlesFn      func(ctx context.Context, network string, maxUsd float64) ([]domain.Bundle, error)
	RedeemVoucherFn   func(ctx context.Context, code, phoneE164 string) (Credit, error)
	StartPaystackFn   func(ctx context.Context, amountUsd float64, phoneE164, network string) (PaystackSession, error)
	ConfirmPaystackFn func(ctx context.Context, ref string) (Credit, error)
	SendAirtimeFn     func(ctx context.Context, req SendRequest) (SendResult, error)

	mu      sync.Mutex
	calls   []string
	sendSeq int
}

// NewFake creates a deterministic gateway over the given country catalog.
func NewFake(countries []domain.Country) *Fake {
	return &Fake{Countries: countries}
}

// Calls returns the operation names invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *Fake) ResolveNetwork(ctx context.Context, phoneE164 string) (NetworkInfo, error) {
	f.record(OpResolveNetwork)

	if f.ResolveNetworkFn != nil {
		return f.ResolveNetworkFn(ctx, phoneE164)
	}

	country, ok := domain.CountryByPrefix(f.Countries, phoneE164)
	if !ok {
		return NetworkInfo{}, apperrors.NewUnsupportedRegionError(phoneE164)
	}

	// First operator of the matched country keeps resolution reproducible.
	return NetworkInfo{PhoneE164: phoneE164, Network: country.Networks[0], Country: country.Name}, nil
}

func (f *Fake) GetBundles(ctx context.Context, network string, maxUsd float64) ([]domain.Bundle, error) {
	f.record(OpGetBundles)

	if f.GetBundlesFn != nil {
		return f.GetBundlesFn(ctx, network, maxUsd)
	}

	return filterAndSortBundles(demoCatalog[network], maxUsd), nil
}

func (f *Fake) RedeemVoucher(ctx context.Context, code, phoneE164 string) (Credit, error) {
	f.record(OpRedeemVoucher)

	if f.RedeemVoucherFn != nil {
		return f.RedeemVoucherFn(ctx, code, phoneE164)
	}

	if containsInvalid(code) {
		return Credit{}, apperrors.NewVoucherInvalidError(nil)
	}

	return Credit{CreditID: "cr_fake0001", ValueUsd: mockVoucherValueUsd}, nil
}

func (f *Fake) StartPaystack(ctx context.Context, amountUsd float64, phoneE164, network string) (PaystackSession, error) {
	f.record(OpStartPaystack)

	if f.StartPaystackFn != nil {
		return f.StartPaystackFn(ctx, amountUsd, phoneE164, network)
	}

	return PaystackSession{
		ProviderKey:      "pk_test_fake",
		Email:            "no-reply@fluxr.co.za",
		AmountMinorUnits: int64(amountUsd * 100),
		Ref:              "psk_fake0001",
	}, nil
}

func (f *Fake) ConfirmPaystack(ctx context.Context, ref string) (Credit, error) {
	f.record(OpConfirmPaystack)

	if f.ConfirmPaystackFn != nil {
		return f.ConfirmPaystackFn(ctx, ref)
	}

	return Credit{CreditID: "cr_fake0002", ValueUsd: mockVoucherValueUsd}, nil
}

func (f *Fake) SendAirtime(ctx context.Context, req SendRequest) (SendResult, error) {
	f.record(OpSendAirtime)

	if f.SendAirtimeFn != nil {
		return f.SendAirtimeFn(ctx, req)
	}

	f.mu.Lock()
	f.sendSeq++
	seq := f.sendSeq
	f.mu.Unlock()

	return SendResult{
		Status:    "sent",
		Reference: fmt.Sprintf("FLX-2025-%06d", seq),
	}, nil
}
