// Package widget assembles the embeddable airtime widget: configuration,
// lifecycle callbacks, the flow engine, and the gateway binding. Host
// applications drive the flow exclusively through this command surface.
package widget

import (
	"context"
	"log/slog"

	"github.com/fluxr/airtime-widget/internal/domain"
	apperrors "github.com/fluxr/airtime-widget/internal/errors"
	"github.com/fluxr/airtime-widget/internal/events"
	"github.com/fluxr/airtime-widget/internal/flow"
	"github.com/fluxr/airtime-widget/internal/gateway"
	"github.com/fluxr/airtime-widget/pkg/config"
	"github.com/fluxr/airtime-widget/pkg/metrics"
)

// Error is the failure payload delivered to the OnError callback.
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// SuccessPayload is delivered to OnSuccess after fulfilment.
type SuccessPayload struct {
	Reference string
	AmountUsd float64
	Method    domain.Method
}

// Callbacks are the host-page lifecycle hooks. All fields are optional.
type Callbacks struct {
	OnOpen       func()
	OnClose      func()
	OnSuccess    func(SuccessPayload)
	OnError      func(Error)
	OnStepChange func(step int)
}

// Widget is one embedded widget instance: a single session living for the
// page lifetime.
type Widget struct {
	engine   *flow.Engine
	bus      *events.Bus
	log      *slog.Logger
	bridgeID int
}

// New builds a widget from validated configuration. A missing public key is a
// fatal configuration error and aborts initialization.
func New(cfg *config.Config, gw gateway.Client, renderer flow.Renderer, cb Callbacks, log *slog.Logger) (*Widget, error) {
	if log == nil {
		log = slog.Default()
	}

	if cfg == nil || cfg.Widget.PublicKey == "" {
		return nil, apperrors.NewConfigurationError("publicKey is required")
	}

	if gw == nil {
		switch cfg.Gateway.Mode {
		case config.GatewayModeHTTP:
			gw = gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Widget.PublicKey, log)
		default:
			gw = gateway.NewMock(cfg.Widget.SupportedCountries)
		}
	}

	bus := events.NewBus(log)
	errHandler := apperrors.NewHandler(log, cfg.SentryDSN != "")

	engine := flow.NewEngine(flow.Config{
		Countries:          cfg.Widget.SupportedCountries,
		DefaultCountryCode: cfg.Widget.DefaultCountryCode,
	}, gw, bus, renderer, errHandler, log)

	w := &Widget{
		engine: engine,
		bus:    bus,
		log:    log,
	}
	w.bridgeID = bus.Subscribe(w.bridge(cb))

	log.Info("widget initialized",
		slog.String("public_key", cfg.Widget.PublicKey),
		slog.String("gateway_mode", cfg.Gateway.Mode),
		slog.String("default_country", cfg.Widget.DefaultCountryCode),
	)

	return w, nil
}

// bridge translates bus events into the configured lifecycle callbacks.
func (w *Widget) bridge(cb Callbacks) events.Observer {
	return func(event events.Event) {
		switch event.Name {
		case events.Opened:
			if cb.OnOpen != nil {
				cb.OnOpen()
			}
		case events.Closed:
			if cb.OnClose != nil {
				cb.OnClose()
			}
		case events.StepChanged:
			if cb.OnStepChange != nil {
				if payload, ok := event.Payload.(events.StepChangedPayload); ok {
					cb.OnStepChange(payload.Step)
				}
			}
		case events.ErrorRaised:
			payload, ok := event.Payload.(events.ErrorPayload)
			if !ok {
				return
			}
			metrics.RecordError(payload.Code, string(apperrors.SeverityMedium))
			if cb.OnError != nil {
				cb.OnError(Error{Code: payload.Code, Message: payload.Message})
			}
		case events.SendSucceeded:
			if cb.OnSuccess != nil {
				if payload, ok := event.Payload.(events.SendSucceededPayload); ok {
					cb.OnSuccess(SuccessPayload{
						Reference: payload.Reference,
						AmountUsd: payload.AmountUsd,
						Method:    payload.Method,
					})
				}
			}
		}
	}
}

// Subscribe registers an additional event observer and returns its id.
func (w *Widget) Subscribe(obs events.Observer) int {
	return w.bus.Subscribe(obs)
}

// Unsubscribe removes an observer registered with Subscribe.
func (w *Widget) Unsubscribe(id int) {
	w.bus.Unsubscribe(id)
}

// Teardown detaches the callback bridge. The widget is unusable afterwards.
func (w *Widget) Teardown() {
	w.bus.Unsubscribe(w.bridgeID)
}

// Countries returns the configured dialing region catalog.
func (w *Widget) Countries() []domain.Country {
	return w.engine.Countries()
}

// State returns a read-only snapshot of the session.
func (w *Widget) State() flow.Session {
	return w.engine.Snapshot()
}

// Wait blocks until pending asynchronous work has settled.
func (w *Widget) Wait() {
	w.engine.Wait()
}

func (w *Widget) Open() {
	metrics.RecordCommand("open", "ok")
	w.engine.Open()
}

func (w *Widget) Close() {
	metrics.RecordCommand("close", "ok")
	w.engine.Close()
}

func (w *Widget) GoBack() {
	metrics.RecordCommand("go_back", "ok")
	w.engine.GoBack()
}

func (w *Widget) SetMethod(method domain.Method) {
	metrics.RecordCommand("set_method", "ok")
	w.engine.SetMethod(method)
}

func (w *Widget) UpdatePhoneNumber(digits string) {
	metrics.RecordCommand("update_phone_number", "ok")
	w.engine.UpdatePhoneNumber(digits)
}

func (w *Widget) UpdateVoucher(code string) {
	metrics.RecordCommand("update_voucher", "ok")
	w.engine.UpdateVoucher(code)
}

func (w *Widget) UpdateAmount(raw string) {
	metrics.RecordCommand("update_amount", "ok")
	w.engine.UpdateAmount(raw)
}

func (w *Widget) HandlePhoneBlur(ctx context.Context, digits string) {
	metrics.RecordCommand("handle_phone_blur", "ok")
	w.engine.HandlePhoneBlur(ctx, digits)
}

func (w *Widget) SelectCountry(code string) {
	metrics.RecordCommand("select_country", "ok")
	w.engine.SelectCountry(code)
}

func (w *Widget) ContinueStep1(ctx context.Context) {
	metrics.RecordCommand("continue_step_1", "ok")
	w.engine.ContinueStep1(ctx)
}

func (w *Widget) SelectFull() {
	metrics.RecordCommand("select_full", "ok")
	w.engine.SelectFull()
}

func (w *Widget) SelectBundle(id, label string, priceUsd float64) {
	metrics.RecordCommand("select_bundle", "ok")
	w.engine.SelectBundle(id, label, priceUsd)
}

func (w *Widget) ContinueStep2() {
	metrics.RecordCommand("continue_step_2", "ok")
	w.engine.ContinueStep2()
}

func (w *Widget) ProcessPayment(ctx context.Context) {
	metrics.RecordCommand("process_payment", "ok")
	w.engine.ProcessPayment(ctx)
}
