package flow

import "github.com/fluxr/airtime-widget/internal/domain"

// Session is the single checkout session owned exclusively by the Engine.
// The rendering surface only ever sees value copies via Engine.Snapshot.
type Session struct {
	Step   Step
	Method domain.Method

	SelectedCountry domain.Country
	PhoneE164       string
	Network         string

	VoucherCode string
	AmountRaw   string
	AmountUsd   float64

	AvailableValueUsd float64
	Selection         *domain.Selection
	Bundles           []domain.Bundle
	BundlesLoading    bool

	PaymentPending bool

	Reference string
	Errors    map[string]string
	Notice    string
}

// clone returns a defensive copy safe to hand to observers and renderers.
func (s Session) clone() Session {
	out := s

	if s.Selection != nil {
		sel := *s.Selection
		out.Selection = &sel
	}

	if s.Bundles != nil {
		out.Bundles = append([]domain.Bundle(nil), s.Bundles...)
	}

	out.Errors = make(map[string]string, len(s.Errors))
	for field, msg := range s.Errors {
		out.Errors[field] = msg
	}

	return out
}

// newSession builds the reset state: everything cleared except the configured
// default country and method.
func newSession(cfg Config) Session {
	country, ok := domain.CountryByCode(cfg.Countries, cfg.DefaultCountryCode)
	if !ok && len(cfg.Countries) > 0 {
		country = cfg.Countries[0]
	}

	return Session{
		Step:            StepClosed,
		Method:          cfg.DefaultMethod,
		SelectedCountry: country,
		PhoneE164:       country.Code,
		Errors:          make(map[string]string),
	}
}
