package flow

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxr/airtime-widget/internal/domain"
	apperrors "github.com/fluxr/airtime-widget/internal/errors"
	"github.com/fluxr/airtime-widget/internal/events"
	"github.com/fluxr/airtime-widget/internal/gateway"
)

var referenceRe = regexp.MustCompile(`^FLX-2025-\d{6}$`)

// eventRecorder captures bus events; emissions arrive from engine goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) observe(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) names() []events.Name {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]events.Name, len(r.events))
	for i, event := range r.events {
		names[i] = event.Name
	}
	return names
}

func (r *eventRecorder) count(name events.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, event := range r.events {
		if event.Name == name {
			n++
		}
	}
	return n
}

func (r *eventRecorder) last(name events.Name) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

func newTestEngine(t *testing.T) (*Engine, *gateway.Fake, *eventRecorder) {
	t.Helper()

	log := slogt.New(t)
	fake := gateway.NewFake(domain.DefaultCountries())
	bus := events.NewBus(log)
	rec := &eventRecorder{}
	bus.Subscribe(rec.observe)

	engine := NewEngine(Config{DefaultCountryCode: "+263"}, fake, bus, nil, apperrors.NewHandler(log, false), log)
	return engine, fake, rec
}

// openReceiver drives the engine to step 1 with a valid Zimbabwean number.
func openReceiver(t *testing.T, e *Engine) {
	t.Helper()

	e.Open()
	e.UpdatePhoneNumber("771234567")
}

func TestEngineOpenAndClose(t *testing.T) {
	e, _, rec := newTestEngine(t)

	e.Open()
	snap := e.Snapshot()
	assert.Equal(t, StepReceiver, snap.Step)
	assert.Equal(t, domain.MethodVoucher, snap.Method)
	assert.Equal(t, "+263", snap.SelectedCountry.Code)
	assert.Equal(t, "+263", snap.PhoneE164)

	// A second open while already visible is a no-op.
	e.Open()
	assert.Equal(t, 1, rec.count(events.Opened))

	e.UpdateVoucher("abcd1234")
	e.Close()

	snap = e.Snapshot()
	assert.Equal(t, StepClosed, snap.Step)
	assert.Empty(t, snap.VoucherCode)
	assert.Equal(t, 1, rec.count(events.Closed))

	names := rec.names()
	require.GreaterOrEqual(t, len(names), 2)
	assert.Equal(t, events.StepChanged, names[0])
	assert.Equal(t, events.Opened, names[1])
}

func TestEngineSelectCountryKeepsDigits(t *testing.T) {
	e, _, _ := newTestEngine(t)
	openReceiver(t, e)

	e.HandlePhoneBlur(context.Background(), "771234567")
	e.Wait()
	require.Equal(t, "Econet", e.Snapshot().Network)

	e.SelectCountry("+254")

	snap := e.Snapshot()
	assert.Equal(t, "+254", snap.SelectedCountry.Code)
	assert.Equal(t, "+254771234567", snap.PhoneE164)
	assert.Empty(t, snap.Network, "switching countries must invalidate the resolved network")
}

func TestEngineSelectCountryUnknownIgnored(t *testing.T) {
	e, _, _ := newTestEngine(t)
	openReceiver(t, e)

	e.SelectCountry("+999")
	assert.Equal(t, "+263", e.Snapshot().SelectedCountry.Code)
}

func TestEngineSetMethodClearsOtherPath(t *testing.T) {
	e, _, _ := newTestEngine(t)
	openReceiver(t, e)

	e.UpdateVoucher("abcd1234")
	require.Equal(t, "ABCD1234", e.Snapshot().VoucherCode)

	e.SetMethod(domain.MethodCard)

	snap := e.Snapshot()
	assert.Empty(t, snap.VoucherCode)
	assert.Empty(t, snap.AmountRaw)
	assert.Empty(t, snap.Errors)
	assert.Equal(t, domain.MethodCard, snap.Method)
}

func TestEngineHandlePhoneBlur(t *testing.T) {
	t.Run("too few digits does not call the gateway", func(t *testing.T) {
		e, fake, _ := newTestEngine(t)
		openReceiver(t, e)

		e.HandlePhoneBlur(context.Background(), "771")
		e.Wait()

		assert.Empty(t, fake.Calls())
		assert.Empty(t, e.Snapshot().Network)
	})

	t.Run("resolution failure stays silent", func(t *testing.T) {
		e, fake, rec := newTestEngine(t)
		openReceiver(t, e)

		fake.ResolveNetworkFn = func(context.Context, string) (gateway.NetworkInfo, error) {
			return gateway.NetworkInfo{}, apperrors.NewNetworkResolutionError(errors.New("boom"))
		}

		e.HandlePhoneBlur(context.Background(), "771234567")
		e.Wait()

		assert.Empty(t, e.Snapshot().Network)
		assert.Zero(t, rec.count(events.ErrorRaised))
	})
}

func TestEngineContinueStep1ValidationFailures(t *testing.T) {
	testCases := []struct {
		name          string
		setup         func(e *Engine)
		expectedField string
		expectedMsg   string
	}{
		{
			name:          "missing phone digits",
			setup:         func(e *Engine) { e.UpdateVoucher("abcd1234") },
			expectedField: "phone",
			expectedMsg:   "Phone number is too short",
		},
		{
			name: "missing voucher",
			setup: func(e *Engine) {
				e.UpdatePhoneNumber("771234567")
			},
			expectedField: "voucher",
			expectedMsg:   "Voucher code is required",
		},
		{
			name: "synthetic invalid voucher rejected before the gateway",
			setup: func(e *Engine) {
				e.UpdatePhoneNumber("771234567")
				e.UpdateVoucher("INVALID-CODE")
			},
			expectedField: "voucher",
			expectedMsg:   "Invalid voucher code",
		},
		{
			name: "card amount below minimum",
			setup: func(e *Engine) {
				e.UpdatePhoneNumber("771234567")
				e.SetMethod(domain.MethodCard)
				e.UpdateAmount("0.50")
			},
			expectedField: "amount",
			expectedMsg:   "Minimum amount is $1.00",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e, fake, _ := newTestEngine(t)
			e.Open()
			tc.setup(e)

			e.ContinueStep1(context.Background())
			e.Wait()

			snap := e.Snapshot()
			assert.Equal(t, StepReceiver, snap.Step, "validation failure must not advance")
			assert.Equal(t, tc.expectedMsg, snap.Errors[tc.expectedField])
			assert.Empty(t, fake.Calls(), "rejected input must not reach the gateway")
		})
	}
}

func TestEngineContinueStep1ResolvesWhenNetworkUnknown(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("abcd1234")

	e.ContinueStep1(context.Background())
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepSelection, snap.Step)
	assert.Equal(t, "Econet", snap.Network)
	assert.Equal(t, []string{gateway.OpResolveNetwork, gateway.OpGetBundles}, fake.Calls())
}

func TestEngineContinueStep1ResolutionFailure(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("abcd1234")

	fake.ResolveNetworkFn = func(context.Context, string) (gateway.NetworkInfo, error) {
		return gateway.NetworkInfo{}, apperrors.NewNetworkResolutionError(errors.New("carrier db down"))
	}

	e.ContinueStep1(context.Background())
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepReceiver, snap.Step)
	assert.Equal(t, "Could not resolve network for this number", snap.Errors["phone"])
}

func TestEngineBundlesWithinBudget(t *testing.T) {
	e, _, _ := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("abcd1234")

	e.ContinueStep1(context.Background())
	e.Wait()

	snap := e.Snapshot()
	require.Equal(t, StepSelection, snap.Step)
	assert.False(t, snap.BundlesLoading)
	assert.InDelta(t, 5.00, snap.AvailableValueUsd, 0.001)

	require.NotEmpty(t, snap.Bundles)
	for i, bundle := range snap.Bundles {
		assert.LessOrEqual(t, bundle.PriceUsd, 5.00, "bundle %s exceeds the available value", bundle.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, snap.Bundles[i-1].PriceUsd, bundle.PriceUsd, "bundles must be sorted by price descending")
		}
	}
}

func TestEngineBundlesFetchFailure(t *testing.T) {
	e, fake, rec := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("abcd1234")

	fake.GetBundlesFn = func(context.Context, string, float64) ([]domain.Bundle, error) {
		return nil, apperrors.NewBundlesFetchError(errors.New("catalog 503"))
	}

	e.ContinueStep1(context.Background())
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepSelection, snap.Step, "bundle failure keeps the user on step 2 with full airtime still possible")
	assert.False(t, snap.BundlesLoading)
	assert.Empty(t, snap.Bundles)
	assert.Equal(t, "Failed to load bundles.", snap.Notice)
	assert.Equal(t, 1, rec.count(events.ErrorRaised))
}

func TestEngineContinueStep2RequiresSelection(t *testing.T) {
	e, _, _ := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("abcd1234")
	e.ContinueStep1(context.Background())
	e.Wait()

	e.ContinueStep2()

	snap := e.Snapshot()
	assert.Equal(t, StepSelection, snap.Step)
	assert.Equal(t, "Please select an option", snap.Errors["selection"])
}

func TestEngineVoucherEndToEnd(t *testing.T) {
	e, fake, rec := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("AAAA1111")

	e.ContinueStep1(context.Background())
	e.Wait()
	require.Equal(t, StepSelection, e.Snapshot().Step)

	e.SelectFull()
	sel := e.Snapshot().Selection
	require.NotNil(t, sel)
	assert.Equal(t, domain.SelectionFull, sel.Type)
	assert.InDelta(t, 5.00, sel.PriceUsd, 0.001)

	e.ContinueStep2()
	require.Equal(t, StepReview, e.Snapshot().Step)

	e.ProcessPayment(context.Background())
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepSuccess, snap.Step)
	assert.Regexp(t, referenceRe, snap.Reference)
	assert.False(t, snap.PaymentPending)

	assert.Equal(t, []string{
		gateway.OpResolveNetwork,
		gateway.OpGetBundles,
		gateway.OpRedeemVoucher,
		gateway.OpSendAirtime,
	}, fake.Calls())

	// The voucher path involves no card payment phases.
	assert.Zero(t, rec.count(events.PaymentStarted))
	assert.Zero(t, rec.count(events.PaymentSucceeded))
	require.Equal(t, 1, rec.count(events.SendSucceeded))

	event, ok := rec.last(events.SendSucceeded)
	require.True(t, ok)
	payload, ok := event.Payload.(events.SendSucceededPayload)
	require.True(t, ok)
	assert.Equal(t, snap.Reference, payload.Reference)
	assert.Equal(t, domain.MethodVoucher, payload.Method)
	assert.InDelta(t, 5.00, payload.AmountUsd, 0.001)
}

func TestEngineCardEndToEnd(t *testing.T) {
	e, fake, rec := newTestEngine(t)
	openReceiver(t, e)
	e.SetMethod(domain.MethodCard)
	e.UpdateAmount("25.00")

	e.ContinueStep1(context.Background())
	e.Wait()

	snap := e.Snapshot()
	require.Equal(t, StepSelection, snap.Step)
	assert.InDelta(t, 25.00, snap.AvailableValueUsd, 0.001)

	e.SelectFull()
	e.ContinueStep2()
	require.Equal(t, StepReview, e.Snapshot().Step)

	e.ProcessPayment(context.Background())
	e.Wait()

	snap = e.Snapshot()
	assert.Equal(t, StepSuccess, snap.Step)
	assert.Regexp(t, referenceRe, snap.Reference)

	assert.Equal(t, []string{
		gateway.OpResolveNetwork,
		gateway.OpGetBundles,
		gateway.OpStartPaystack,
		gateway.OpConfirmPaystack,
		gateway.OpSendAirtime,
	}, fake.Calls())

	assert.Equal(t, 1, rec.count(events.PaymentStarted))
	assert.Equal(t, 1, rec.count(events.PaymentSucceeded))
	assert.Equal(t, 1, rec.count(events.SendSucceeded))
}

func TestEnginePaymentFailureStaysOnReview(t *testing.T) {
	e, fake, rec := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("AAAA1111")
	e.ContinueStep1(context.Background())
	e.Wait()
	e.SelectFull()
	e.ContinueStep2()

	fake.SendAirtimeFn = func(context.Context, gateway.SendRequest) (gateway.SendResult, error) {
		return gateway.SendResult{}, errors.New("carrier timeout")
	}

	e.ProcessPayment(context.Background())
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepReview, snap.Step, "failed payment must leave the user on review to retry")
	assert.False(t, snap.PaymentPending)
	assert.NotEmpty(t, snap.Notice)
	assert.Equal(t, 1, rec.count(events.ErrorRaised))
	assert.Zero(t, rec.count(events.SendSucceeded))

	// Retry succeeds after the transient failure clears.
	fake.SendAirtimeFn = nil
	e.ProcessPayment(context.Background())
	e.Wait()

	snap = e.Snapshot()
	assert.Equal(t, StepSuccess, snap.Step)
	assert.Equal(t, 1, rec.count(events.SendSucceeded))
}

func TestEngineDuplicatePaymentSubmission(t *testing.T) {
	e, fake, rec := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("AAAA1111")
	e.ContinueStep1(context.Background())
	e.Wait()
	e.SelectFull()
	e.ContinueStep2()

	release := make(chan struct{})
	fake.SendAirtimeFn = func(context.Context, gateway.SendRequest) (gateway.SendResult, error) {
		<-release
		return gateway.SendResult{Status: "sent", Reference: "FLX-2025-000042"}, nil
	}

	e.ProcessPayment(context.Background())
	e.ProcessPayment(context.Background())
	close(release)
	e.Wait()

	redeems := 0
	for _, call := range fake.Calls() {
		if call == gateway.OpRedeemVoucher {
			redeems++
		}
	}
	assert.Equal(t, 1, redeems, "double submission must redeem the voucher once")
	assert.Equal(t, 1, rec.count(events.SendSucceeded))
	assert.Equal(t, "FLX-2025-000042", e.Snapshot().Reference)
}

func TestEngineStalePaymentResultDiscarded(t *testing.T) {
	e, fake, rec := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("AAAA1111")
	e.ContinueStep1(context.Background())
	e.Wait()
	e.SelectFull()
	e.ContinueStep2()

	release := make(chan struct{})
	fake.SendAirtimeFn = func(context.Context, gateway.SendRequest) (gateway.SendResult, error) {
		<-release
		return gateway.SendResult{Status: "sent", Reference: "FLX-2025-000099"}, nil
	}

	e.ProcessPayment(context.Background())
	e.GoBack()
	close(release)
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepSelection, snap.Step, "a result arriving after navigation must not jump the user forward")
	assert.Empty(t, snap.Reference)
	assert.Zero(t, rec.count(events.SendSucceeded))
}

func TestEngineGoBackClearsSelectionState(t *testing.T) {
	e, _, _ := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("AAAA1111")
	e.ContinueStep1(context.Background())
	e.Wait()
	e.SelectFull()
	e.ContinueStep2()

	e.GoBack()
	snap := e.Snapshot()
	assert.Equal(t, StepSelection, snap.Step)
	require.NotNil(t, snap.Selection)

	e.GoBack()
	snap = e.Snapshot()
	assert.Equal(t, StepReceiver, snap.Step)
	assert.Nil(t, snap.Selection)
	assert.Empty(t, snap.Bundles)

	// Receiver is the first interactive step; back stops here.
	e.GoBack()
	assert.Equal(t, StepReceiver, e.Snapshot().Step)
}

func TestEngineReopenDiscardsPendingResolution(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("AAAA1111")

	entered := make(chan struct{})
	release := make(chan struct{})
	fake.ResolveNetworkFn = func(_ context.Context, phoneE164 string) (gateway.NetworkInfo, error) {
		close(entered)
		<-release
		return gateway.NetworkInfo{PhoneE164: phoneE164, Network: "Econet", Country: "Zimbabwe"}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.ContinueStep1(context.Background())
	}()

	<-entered
	e.Close()
	e.Open()
	close(release)
	<-done
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepReceiver, snap.Step, "a resolution from the previous session must not advance the reopened widget")
	assert.Empty(t, snap.Network)
	assert.Equal(t, "+263", snap.PhoneE164)
	assert.Equal(t, []string{gateway.OpResolveNetwork}, fake.Calls(), "the stale session must not fetch bundles")

	// The stale continuation released its in-flight guard; the fresh
	// session can advance normally.
	fake.ResolveNetworkFn = nil
	e.UpdatePhoneNumber("771234567")
	e.UpdateVoucher("AAAA1111")
	e.ContinueStep1(context.Background())
	e.Wait()
	assert.Equal(t, StepSelection, e.Snapshot().Step)
}

func TestEngineReopenDiscardsPendingResolutionFailure(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("AAAA1111")

	entered := make(chan struct{})
	release := make(chan struct{})
	fake.ResolveNetworkFn = func(context.Context, string) (gateway.NetworkInfo, error) {
		close(entered)
		<-release
		return gateway.NetworkInfo{}, apperrors.NewNetworkResolutionError(errors.New("carrier db down"))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.ContinueStep1(context.Background())
	}()

	<-entered
	e.Close()
	e.Open()
	close(release)
	<-done
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepReceiver, snap.Step)
	assert.Empty(t, snap.Errors, "a failure from the previous session must not surface on the fresh one")
}

func TestEngineCloseDiscardsPendingBundles(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	openReceiver(t, e)
	e.UpdateVoucher("AAAA1111")

	release := make(chan struct{})
	fake.GetBundlesFn = func(context.Context, string, float64) ([]domain.Bundle, error) {
		<-release
		return []domain.Bundle{{ID: "b1", Name: "late", PriceUsd: 2}}, nil
	}

	e.ContinueStep1(context.Background())
	e.Close()
	close(release)
	e.Wait()

	snap := e.Snapshot()
	assert.Equal(t, StepClosed, snap.Step)
	assert.Empty(t, snap.Bundles, "bundles resolved after close must be discarded")
}

func TestEngineValidateCurrentStepSilent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Open()

	errs := e.ValidateCurrentStep(false)
	assert.Equal(t, "Phone number is too short", errs["phone"])
	assert.Empty(t, e.Snapshot().Errors, "silent validation must not surface messages")

	errs = e.ValidateCurrentStep(true)
	assert.Equal(t, errs, e.Snapshot().Errors)
}
