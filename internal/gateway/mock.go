package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxr/airtime-widget/internal/domain"
	apperrors "github.com/fluxr/airtime-widget/internal/errors"
)

// Per-operation latencies matching the behavior the widget was tuned against.
const (
	mockResolveDelay = 500 * time.Millisecond
	mockBundlesDelay = 600 * time.Millisecond
	mockRedeemDelay  = 800 * time.Millisecond
	mockStartDelay   = 600 * time.Millisecond
	mockConfirmDelay = 700 * time.Millisecond
	mockSendDelay    = 900 * time.Millisecond

	mockVoucherValueUsd = 5.00
)

// Mock simulates the backend with fixed latencies and randomized results.
// Demo and local development only; tests use Fake instead.
type Mock struct {
	countries []domain.Country

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMock creates a mock gateway serving the provided country catalog.
func NewMock(countries []domain.Country) *Mock {
	return &Mock{
		countries: countries,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *Mock) ResolveNetwork(ctx context.Context, phoneE164 string) (NetworkInfo, error) {
	start := time.Now()

	if err := m.sleep(ctx, mockResolveDelay); err != nil {
		return NetworkInfo{}, err
	}

	country, ok := domain.CountryByPrefix(m.countries, phoneE164)
	if !ok {
		err := apperrors.NewUnsupportedRegionError(phoneE164)
		recordRequest(OpResolveNetwork, start, err)
		return NetworkInfo{}, err
	}

	m.mu.Lock()
	network := country.Networks[m.rng.Intn(len(country.Networks))]
	m.mu.Unlock()

	recordRequest(OpResolveNetwork, start, nil)

	return NetworkInfo{PhoneE164: phoneE164, Network: network, Country: country.Name}, nil
}

func (m *Mock) GetBundles(ctx context.Context, network string, maxUsd float64) ([]domain.Bundle, error) {
	start := time.Now()

	if err := m.sleep(ctx, mockBundlesDelay); err != nil {
		return nil, err
	}

	bundles := filterAndSortBundles(demoCatalog[network], maxUsd)
	recordRequest(OpGetBundles, start, nil)

	return bundles, nil
}

func (m *Mock) RedeemVoucher(ctx context.Context, code, phoneE164 string) (Credit, error) {
	start := time.Now()

	if err := m.sleep(ctx, mockRedeemDelay); err != nil {
		return Credit{}, err
	}

	if containsInvalid(code) {
		err := apperrors.NewVoucherInvalidError(nil)
		recordRequest(OpRedeemVoucher, start, err)
		return Credit{}, err
	}

	recordRequest(OpRedeemVoucher, start, nil)

	return Credit{CreditID: "cr_" + shortID(), ValueUsd: mockVoucherValueUsd}, nil
}

func (m *Mock) StartPaystack(ctx context.Context, amountUsd float64, phoneE164, network string) (PaystackSession, error) {
	start := time.Now()

	if err := m.sleep(ctx, mockStartDelay); err != nil {
		return PaystackSession{}, err
	}

	recordRequest(OpStartPaystack, start, nil)

	return PaystackSession{
		ProviderKey:      "pk_test_mock",
		Email:            "no-reply@fluxr.co.za",
		AmountMinorUnits: int64(amountUsd * 100),
		Ref:              "psk_" + shortID(),
	}, nil
}

func (m *Mock) ConfirmPaystack(ctx context.Context, ref string) (Credit, error) {
	start := time.Now()

	if err := m.sleep(ctx, mockConfirmDelay); err != nil {
		return Credit{}, err
	}

	recordRequest(OpConfirmPaystack, start, nil)

	return Credit{CreditID: "cr_" + shortID(), ValueUsd: mockVoucherValueUsd}, nil
}

func (m *Mock) SendAirtime(ctx context.Context, req SendRequest) (SendResult, error) {
	start := time.Now()

	if err := m.sleep(ctx, mockSendDelay); err != nil {
		return SendResult{}, err
	}

	m.mu.Lock()
	serial := m.rng.Intn(1000000)
	m.mu.Unlock()

	recordRequest(OpSendAirtime, start, nil)

	return SendResult{
		Status:    "sent",
		Reference: fmt.Sprintf("FLX-2025-%06d", serial),
	}, nil
}

func (m *Mock) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func shortID() string {
	id := uuid.NewString()
	return id[:8]
}
