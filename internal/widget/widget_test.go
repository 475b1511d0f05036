package widget

import (
	"context"
	"sync"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxr/airtime-widget/internal/domain"
	apperrors "github.com/fluxr/airtime-widget/internal/errors"
	"github.com/fluxr/airtime-widget/internal/events"
	"github.com/fluxr/airtime-widget/internal/flow"
	"github.com/fluxr/airtime-widget/internal/gateway"
	"github.com/fluxr/airtime-widget/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Widget: config.WidgetConfig{
			PublicKey:          "pk_test_widget",
			DefaultCountryCode: "+263",
			SupportedCountries: domain.DefaultCountries(),
		},
		Gateway: config.GatewayConfig{Mode: config.GatewayModeMock},
	}
}

// callbackLog records callback invocations; engine goroutines may fire them.
type callbackLog struct {
	mu      sync.Mutex
	opens   int
	closes  int
	steps   []int
	errors  []Error
	success []SuccessPayload
}

func (c *callbackLog) callbacks() Callbacks {
	return Callbacks{
		OnOpen: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.opens++
		},
		OnClose: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.closes++
		},
		OnStepChange: func(step int) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.steps = append(c.steps, step)
		},
		OnError: func(e Error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.errors = append(c.errors, e)
		},
		OnSuccess: func(p SuccessPayload) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.success = append(c.success, p)
		},
	}
}

func TestNewRequiresPublicKey(t *testing.T) {
	cfg := testConfig()
	cfg.Widget.PublicKey = ""

	_, err := New(cfg, nil, nil, Callbacks{}, slogt.New(t))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfiguration, apperrors.CodeOf(err))

	_, err = New(nil, nil, nil, Callbacks{}, slogt.New(t))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfiguration, apperrors.CodeOf(err))
}

func TestWidgetLifecycleCallbacks(t *testing.T) {
	log := &callbackLog{}
	fake := gateway.NewFake(domain.DefaultCountries())

	w, err := New(testConfig(), fake, nil, log.callbacks(), slogt.New(t))
	require.NoError(t, err)

	w.Open()
	w.Close()

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Equal(t, 1, log.opens)
	assert.Equal(t, 1, log.closes)
	assert.Equal(t, []int{1, 0}, log.steps)
}

func TestWidgetVoucherFlowThroughFacade(t *testing.T) {
	log := &callbackLog{}
	fake := gateway.NewFake(domain.DefaultCountries())
	ctx := context.Background()

	w, err := New(testConfig(), fake, nil, log.callbacks(), slogt.New(t))
	require.NoError(t, err)

	w.Open()
	w.UpdatePhoneNumber("771234567")
	w.UpdateVoucher("AAAA1111")
	w.ContinueStep1(ctx)
	w.Wait()

	require.Equal(t, flow.StepSelection, w.State().Step)

	w.SelectFull()
	w.ContinueStep2()
	w.ProcessPayment(ctx)
	w.Wait()

	state := w.State()
	assert.Equal(t, flow.StepSuccess, state.Step)
	assert.Regexp(t, `^FLX-2025-\d{6}$`, state.Reference)

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.success, 1)
	assert.Equal(t, state.Reference, log.success[0].Reference)
	assert.Equal(t, domain.MethodVoucher, log.success[0].Method)
	assert.Empty(t, log.errors)
}

func TestWidgetErrorCallback(t *testing.T) {
	log := &callbackLog{}
	fake := gateway.NewFake(domain.DefaultCountries())
	fake.GetBundlesFn = func(context.Context, string, float64) ([]domain.Bundle, error) {
		return nil, apperrors.NewBundlesFetchError(nil)
	}
	ctx := context.Background()

	w, err := New(testConfig(), fake, nil, log.callbacks(), slogt.New(t))
	require.NoError(t, err)

	w.Open()
	w.UpdatePhoneNumber("771234567")
	w.UpdateVoucher("AAAA1111")
	w.ContinueStep1(ctx)
	w.Wait()

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.errors, 1)
	assert.Equal(t, apperrors.CodeBundlesFetch, log.errors[0].Code)
	assert.Equal(t, "Failed to load bundles.", log.errors[0].Message)
}

func TestWidgetTeardownStopsCallbacks(t *testing.T) {
	log := &callbackLog{}
	fake := gateway.NewFake(domain.DefaultCountries())

	w, err := New(testConfig(), fake, nil, log.callbacks(), slogt.New(t))
	require.NoError(t, err)

	w.Open()
	w.Teardown()
	w.Close()

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Equal(t, 1, log.opens)
	assert.Zero(t, log.closes, "callbacks must stop after teardown")
}

func TestWidgetSubscribeExtraObserver(t *testing.T) {
	fake := gateway.NewFake(domain.DefaultCountries())
	w, err := New(testConfig(), fake, nil, Callbacks{}, slogt.New(t))
	require.NoError(t, err)

	var names []events.Name
	id := w.Subscribe(func(e events.Event) { names = append(names, e.Name) })

	w.Open()
	w.Unsubscribe(id)
	w.Close()

	assert.Equal(t, []events.Name{events.StepChanged, events.Opened}, names)
}
