// Package validation holds the pure per-field rules gating the checkout flow.
// Each rule returns an empty string when the value is acceptable, or the first
// failing rule's message. Rules never touch state and never raise.
package validation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fluxr/airtime-widget/internal/domain"
)

var (
	subscriberDigitsRe = regexp.MustCompile(`^\d{7,15}$`)
	voucherCharsRe     = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	amountDecimalsRe   = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// Phone validates a full E.164 number against the configured countries.
func Phone(phone string, countries []domain.Country) string {
	if phone == "" {
		return "Phone number is required"
	}
	if len(phone) < 8 {
		return "Phone number is too short"
	}

	country, ok := domain.CountryByPrefix(countries, phone)
	if !ok {
		return "Unsupported country code"
	}

	subscriber := strings.TrimPrefix(phone, country.Code)
	if !subscriberDigitsRe.MatchString(subscriber) {
		return "Invalid phone number format"
	}

	return ""
}

// Voucher validates a redeemable voucher code. The "invalid" substring rule is
// a synthetic rejection used by the demo backend; the gateway re-checks it.
func Voucher(code string) string {
	if code == "" {
		return "Voucher code is required"
	}
	if len(code) < 8 {
		return "Voucher code is too short"
	}
	if !voucherCharsRe.MatchString(code) {
		return "Voucher code can only contain letters, numbers, and hyphens"
	}
	if strings.Contains(strings.ToLower(code), "invalid") {
		return "Invalid voucher code"
	}

	return ""
}

// Amount validates the raw card-payment amount as entered, in USD.
func Amount(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Amount is required"
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "Amount must be a number"
	}
	if value < 1 {
		return "Minimum amount is $1.00"
	}
	if value > 1000 {
		return "Maximum amount is $1000.00"
	}
	if !amountDecimalsRe.MatchString(raw) {
		return "Amount must have up to 2 decimal places"
	}

	return ""
}

// Selection validates that a redemption option has been chosen.
func Selection(sel *domain.Selection) string {
	if sel == nil {
		return "Please select an option"
	}

	return ""
}
