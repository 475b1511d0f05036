// Package flow owns the single-session checkout state machine: legal step
// transitions, per-step validation, asynchronous gateway orchestration, and
// the re-render / event notification contract.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/fluxr/airtime-widget/internal/domain"
	apperrors "github.com/fluxr/airtime-widget/internal/errors"
	"github.com/fluxr/airtime-widget/internal/events"
	"github.com/fluxr/airtime-widget/internal/gateway"
	"github.com/fluxr/airtime-widget/internal/validation"
)

// DefaultVoucherValueUsd is the fixed budget ceiling for the voucher path.
const DefaultVoucherValueUsd = 5.00

// Config carries the flow defaults taken from widget configuration.
type Config struct {
	Countries          []domain.Country
	DefaultCountryCode string
	DefaultMethod      domain.Method
	VoucherValueUsd    float64
}

func (c Config) withDefaults() Config {
	if len(c.Countries) == 0 {
		c.Countries = domain.DefaultCountries()
	}
	if c.DefaultCountryCode == "" {
		c.DefaultCountryCode = c.Countries[0].Code
	}
	if !c.DefaultMethod.IsValid() {
		c.DefaultMethod = domain.MethodVoucher
	}
	if c.VoucherValueUsd <= 0 {
		c.VoucherValueUsd = DefaultVoucherValueUsd
	}

	return c
}

// Engine mediates every mutation of the session. Commands are safe for
// concurrent use; asynchronous continuations are guarded by an epoch counter
// so stale gateway responses are discarded instead of applied to a step the
// user has already left.
type Engine struct {
	cfg      Config
	gateway  gateway.Client
	bus      *events.Bus
	renderer Renderer
	errs     *apperrors.Handler
	log      *slog.Logger

	mu      sync.Mutex
	session Session
	epoch   uint64

	// In-flight guards: duplicate submissions (e.g. a double-click on
	// Continue) become no-ops while the prior command is pending.
	resolving bool
	advancing bool
	paying    bool

	wg sync.WaitGroup
}

// NewEngine creates the state machine in the closed state.
func NewEngine(cfg Config, gw gateway.Client, bus *events.Bus, renderer Renderer, errHandler *apperrors.Handler, log *slog.Logger) *Engine {
	cfg = cfg.withDefaults()

	if log == nil {
		log = slog.Default()
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}
	if bus == nil {
		bus = events.NewBus(log)
	}
	if errHandler == nil {
		errHandler = apperrors.NewHandler(log, false)
	}

	return &Engine{
		cfg:      cfg,
		gateway:  gw,
		bus:      bus,
		renderer: renderer,
		errs:     errHandler,
		log:      log,
		session:  newSession(cfg),
	}
}

// Snapshot returns a read-only copy of the current session state.
func (e *Engine) Snapshot() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.clone()
}

// Bus exposes the lifecycle notification bus for host-page observers.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Countries returns the configured dialing region catalog.
func (e *Engine) Countries() []domain.Country {
	return append([]domain.Country(nil), e.cfg.Countries...)
}

// Wait blocks until all in-flight asynchronous continuations have settled.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Open transitions 0 -> 1, resetting transient fields first.
func (e *Engine) Open() {
	e.mu.Lock()
	if e.session.Step != StepClosed {
		e.mu.Unlock()
		return
	}

	e.session = newSession(e.cfg)
	e.transitionLocked(StepReceiver)
	snap := e.session.clone()
	e.mu.Unlock()

	e.notifyStepChanged(snap)
	e.bus.Emit(events.Event{Name: events.Opened})
}

// Close returns to step 0 from any step, clearing everything except the
// configured default country and method.
func (e *Engine) Close() {
	e.mu.Lock()
	from := e.session.Step
	e.session = newSession(e.cfg)
	e.epoch++
	transitionRecorder(from.String(), StepClosed.String())
	snap := e.session.clone()
	e.mu.Unlock()

	e.notifyStepChanged(snap)
	e.bus.Emit(events.Event{Name: events.Closed})
}

// GoBack regresses one step; permitted only from selection and review.
func (e *Engine) GoBack() {
	e.mu.Lock()
	from := e.session.Step
	if from != StepSelection && from != StepReview {
		e.mu.Unlock()
		e.log.Warn("go back ignored", "step", from.String())
		return
	}

	to := from - 1
	transitionRecorder(from.String(), to.String())
	e.epoch++
	e.session.Step = to

	// Selection is only meaningful from step 2 onward.
	if to < StepSelection {
		e.session.Selection = nil
		e.session.Bundles = nil
		e.session.BundlesLoading = false
	}

	snap := e.session.clone()
	e.mu.Unlock()

	e.notifyStepChanged(snap)
}

// SetMethod switches the payment path, invalidating the other path's input.
func (e *Engine) SetMethod(method domain.Method) {
	if !method.IsValid() {
		e.log.Warn("unknown payment method", "method", string(method))
		return
	}

	e.mu.Lock()
	if e.session.Step != StepReceiver {
		e.mu.Unlock()
		return
	}

	e.session.Method = method
	e.session.VoucherCode = ""
	e.session.AmountRaw = ""
	e.session.AmountUsd = 0
	e.session.Errors = make(map[string]string)
	snap := e.session.clone()
	e.mu.Unlock()

	e.refresh(RegionMethod, snap)
}

// UpdatePhoneNumber recomputes PhoneE164 from the typed digits, keeping the
// selected country's dialing prefix.
func (e *Engine) UpdatePhoneNumber(digits string) {
	e.mu.Lock()
	if e.session.Step != StepReceiver {
		e.mu.Unlock()
		return
	}

	e.session.PhoneE164 = e.session.SelectedCountry.Code + stripNonDigits(digits)
	snap := e.session.clone()
	e.mu.Unlock()

	e.refresh(RegionPhone, snap)
}

// UpdateVoucher stores the voucher code, normalized to upper case.
func (e *Engine) UpdateVoucher(code string) {
	e.mu.Lock()
	if e.session.Step != StepReceiver {
		e.mu.Unlock()
		return
	}

	e.session.VoucherCode = strings.ToUpper(code)
	snap := e.session.clone()
	e.mu.Unlock()

	e.refresh(RegionVoucher, snap)
}

// UpdateAmount stores the raw card amount as entered.
func (e *Engine) UpdateAmount(raw string) {
	e.mu.Lock()
	if e.session.Step != StepReceiver {
		e.mu.Unlock()
		return
	}

	raw = strings.TrimSpace(raw)
	e.session.AmountRaw = raw
	if value, err := strconv.ParseFloat(raw, 64); err == nil {
		e.session.AmountUsd = value
	} else {
		e.session.AmountUsd = 0
	}
	snap := e.session.clone()
	e.mu.Unlock()

	e.refresh(RegionAmount, snap)
}

// SelectCountry replaces the dialing region, rewriting the phone prefix while
// preserving the digits typed so far. The resolved network is invalidated.
func (e *Engine) SelectCountry(code string) {
	country, ok := domain.CountryByCode(e.cfg.Countries, code)
	if !ok {
		e.log.Warn("unknown country selected", "code", code)
		return
	}

	e.mu.Lock()
	if e.session.Step != StepReceiver {
		e.mu.Unlock()
		return
	}

	digits := strings.TrimPrefix(e.session.PhoneE164, e.session.SelectedCountry.Code)
	e.session.SelectedCountry = country
	e.session.PhoneE164 = country.Code + digits
	e.session.Network = ""
	snap := e.session.clone()
	e.mu.Unlock()

	e.refresh(RegionPhone, snap)
}

// HandlePhoneBlur resolves the network in the background once enough digits
// have been typed. Failures are cleared silently; resolution problems are only
// reported at submit time.
func (e *Engine) HandlePhoneBlur(ctx context.Context, digits string) {
	if len(stripNonDigits(digits)) <= 3 {
		return
	}

	e.mu.Lock()
	if e.resolving || e.session.Step != StepReceiver {
		e.mu.Unlock()
		return
	}
	e.resolving = true
	phone := e.session.PhoneE164
	epoch := e.epoch
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		info, err := e.gateway.ResolveNetwork(ctx, phone)

		e.mu.Lock()
		e.resolving = false
		if e.epoch != epoch || e.session.Step != StepReceiver {
			e.mu.Unlock()
			return
		}

		if err != nil {
			e.session.Network = ""
			e.mu.Unlock()
			e.log.Debug("blur-triggered resolution failed", "error", err)
			return
		}

		e.session.Network = info.Network
		snap := e.session.clone()
		e.mu.Unlock()

		e.refresh(RegionPhone, snap)
	}()
}

// ContinueStep1 validates the receiver step, resolves the network if still
// unknown, then optimistically advances to the selection step while bundles
// load in the background.
func (e *Engine) ContinueStep1(ctx context.Context) {
	e.mu.Lock()
	if e.session.Step != StepReceiver || e.advancing {
		e.mu.Unlock()
		return
	}

	errs := e.validateStepLocked(true)
	if len(errs) > 0 {
		snap := e.session.clone()
		e.mu.Unlock()
		e.refresh(RegionErrors, snap)
		return
	}

	e.advancing = true
	phone := e.session.PhoneE164
	network := e.session.Network
	epoch := e.epoch
	e.mu.Unlock()

	if network == "" {
		info, err := e.gateway.ResolveNetwork(ctx, phone)
		if err != nil {
			e.mu.Lock()
			e.advancing = false
			if e.epoch != epoch || e.session.Step != StepReceiver {
				e.mu.Unlock()
				return
			}
			e.session.Errors = map[string]string{
				"phone": "Could not resolve network for this number",
			}
			snap := e.session.clone()
			e.mu.Unlock()

			e.refresh(RegionErrors, snap)
			return
		}
		network = info.Network
	}

	e.mu.Lock()
	if e.epoch != epoch || e.session.Step != StepReceiver {
		// The session moved on (e.g. closed and reopened) while resolution
		// was in flight; the result belongs to the old session.
		e.advancing = false
		e.mu.Unlock()
		return
	}

	e.session.Network = network

	available := e.cfg.VoucherValueUsd
	if e.session.Method == domain.MethodCard {
		available = e.session.AmountUsd
	}
	e.session.AvailableValueUsd = available
	e.session.Selection = nil
	e.session.Bundles = nil
	e.session.BundlesLoading = true

	e.transitionLocked(StepSelection)
	epoch = e.epoch
	snap := e.session.clone()
	e.advancing = false
	e.mu.Unlock()

	e.notifyStepChanged(snap)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		bundles, err := e.gateway.GetBundles(ctx, network, available)

		if err != nil {
			message, code := e.errs.Handle(ctx, apperrors.NewBundlesFetchError(err))

			e.mu.Lock()
			if e.epoch != epoch {
				e.mu.Unlock()
				return
			}
			e.session.BundlesLoading = false
			e.session.Notice = message
			snap := e.session.clone()
			e.mu.Unlock()

			e.bus.Emit(events.Event{Name: events.ErrorRaised, Payload: events.ErrorPayload{Code: code, Message: message}})
			e.refresh(RegionNotice, snap)
			return
		}

		e.mu.Lock()
		if e.epoch != epoch {
			e.mu.Unlock()
			return
		}
		e.session.BundlesLoading = false
		e.session.Bundles = bundles
		snap := e.session.clone()
		e.mu.Unlock()

		e.refresh(RegionOptions, snap)
	}()
}

// SelectFull chooses the full-airtime redemption option.
func (e *Engine) SelectFull() {
	e.mu.Lock()
	if e.session.Step != StepSelection {
		e.mu.Unlock()
		return
	}

	e.session.Selection = domain.FullAirtimeSelection(e.session.AvailableValueUsd)
	snap := e.session.clone()
	e.mu.Unlock()

	e.refresh(RegionOptions, snap)
}

// SelectBundle chooses one specific bundle offer.
func (e *Engine) SelectBundle(id, label string, priceUsd float64) {
	e.mu.Lock()
	if e.session.Step != StepSelection {
		e.mu.Unlock()
		return
	}

	e.session.Selection = domain.BundleSelection(id, label, priceUsd)
	snap := e.session.clone()
	e.mu.Unlock()

	e.refresh(RegionOptions, snap)
}

// ContinueStep2 advances to review once a selection has been made.
func (e *Engine) ContinueStep2() {
	e.mu.Lock()
	if e.session.Step != StepSelection {
		e.mu.Unlock()
		return
	}

	errs := e.validateStepLocked(true)
	if len(errs) > 0 {
		snap := e.session.clone()
		e.mu.Unlock()
		e.refresh(RegionErrors, snap)
		return
	}

	e.transitionLocked(StepReview)
	snap := e.session.clone()
	e.mu.Unlock()

	e.notifyStepChanged(snap)
}

// ProcessPayment establishes the credit (voucher redemption or two-phase card
// payment) and submits the send request. Success advances to step 4; any
// failure surfaces exactly one error notification and keeps the user on
// review so they can retry.
func (e *Engine) ProcessPayment(ctx context.Context) {
	e.mu.Lock()
	if e.session.Step != StepReview || e.paying || e.session.Selection == nil {
		e.mu.Unlock()
		return
	}

	e.paying = true
	e.session.PaymentPending = true
	e.session.Notice = ""

	method := e.session.Method
	phone := e.session.PhoneE164
	network := e.session.Network
	voucherCode := e.session.VoucherCode
	amountUsd := e.session.AmountUsd
	sel := *e.session.Selection
	epoch := e.epoch
	snap := e.session.clone()
	e.mu.Unlock()

	e.refresh(RegionReview, snap)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		credit, err := e.establishCredit(ctx, method, phone, network, voucherCode, amountUsd)

		var result gateway.SendResult
		if err == nil {
			result, err = e.gateway.SendAirtime(ctx, gateway.SendRequest{
				CreditSource: gateway.CreditSource{Type: method, ID: credit.CreditID},
				Receiver:     gateway.Receiver{Phone: phone, Network: network},
				Selection: gateway.SendSelection{
					Type:      sel.Type,
					BundleID:  sel.BundleID,
					AmountUsd: sel.PriceUsd,
				},
			})
		}

		if err != nil {
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				err = apperrors.NewPaymentError("fulfilment", err)
			}

			message, code := e.errs.Handle(ctx, err)

			e.mu.Lock()
			e.paying = false
			e.session.PaymentPending = false
			if e.epoch == epoch && e.session.Step == StepReview {
				e.session.Notice = message
			}
			snap := e.session.clone()
			e.mu.Unlock()

			e.bus.Emit(events.Event{Name: events.ErrorRaised, Payload: events.ErrorPayload{Code: code, Message: message}})
			e.refresh(RegionNotice, snap)
			return
		}

		e.mu.Lock()
		e.paying = false
		e.session.PaymentPending = false
		if e.epoch != epoch || e.session.Step != StepReview {
			// The user navigated away mid-payment; do not jump them forward.
			e.mu.Unlock()
			e.log.Warn("discarding payment result for stale step", "reference", result.Reference)
			return
		}

		e.session.Reference = result.Reference
		e.transitionLocked(StepSuccess)
		snap := e.session.clone()
		e.mu.Unlock()

		e.notifyStepChanged(snap)
		e.bus.Emit(events.Event{Name: events.SendSucceeded, Payload: events.SendSucceededPayload{
			Reference: result.Reference,
			AmountUsd: sel.PriceUsd,
			Method:    method,
		}})
	}()
}

// ValidateCurrentStep runs the current step's validation. With surface set,
// the session error map is replaced by the result; a silent run leaves it
// untouched. Both runs return the same mapping.
func (e *Engine) ValidateCurrentStep(surface bool) map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validateStepLocked(surface)
}

func (e *Engine) establishCredit(ctx context.Context, method domain.Method, phone, network, voucherCode string, amountUsd float64) (gateway.Credit, error) {
	if method == domain.MethodVoucher {
		return e.gateway.RedeemVoucher(ctx, voucherCode, phone)
	}

	e.bus.Emit(events.Event{Name: events.PaymentStarted, Payload: events.PaymentPayload{Method: method, AmountUsd: amountUsd}})

	session, err := e.gateway.StartPaystack(ctx, amountUsd, phone, network)
	if err != nil {
		return gateway.Credit{}, err
	}

	credit, err := e.gateway.ConfirmPaystack(ctx, session.Ref)
	if err != nil {
		return gateway.Credit{}, err
	}

	e.bus.Emit(events.Event{Name: events.PaymentSucceeded, Payload: events.PaymentPayload{Method: method, AmountUsd: amountUsd}})

	return credit, nil
}

func (e *Engine) validateStepLocked(surface bool) map[string]string {
	errs := make(map[string]string)

	switch e.session.Step {
	case StepReceiver:
		if msg := validation.Phone(e.session.PhoneE164, e.cfg.Countries); msg != "" {
			errs["phone"] = msg
		}

		if e.session.Method == domain.MethodVoucher {
			if msg := validation.Voucher(e.session.VoucherCode); msg != "" {
				errs["voucher"] = msg
			}
		} else {
			if msg := validation.Amount(e.session.AmountRaw); msg != "" {
				errs["amount"] = msg
			}
		}
	case StepSelection:
		if msg := validation.Selection(e.session.Selection); msg != "" {
			errs["selection"] = msg
		}
	}

	if surface {
		e.session.Errors = errs
	}

	return errs
}

// transitionLocked applies a validated step change and bumps the epoch so
// pending async continuations recognize their results as stale.
func (e *Engine) transitionLocked(to Step) {
	from := e.session.Step
	if !IsTransitionAllowed(from, to) {
		e.log.Warn("invalid step transition", "from", from.String(), "to", to.String())
		return
	}

	transitionRecorder(from.String(), to.String())
	e.epoch++
	e.session.Step = to
}

func (e *Engine) notifyStepChanged(snap Session) {
	e.renderer.RenderStep(snap)
	e.bus.Emit(events.Event{Name: events.StepChanged, Payload: events.StepChangedPayload{Step: int(snap.Step)}})
}

func (e *Engine) refresh(region Region, snap Session) {
	e.renderer.Refresh(region, snap)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
