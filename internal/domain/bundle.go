package domain

import "fmt"

// Bundle is a priced, named data/voice/combo allowance offer from a carrier.
type Bundle struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	PriceUsd float64 `json:"price_usd"`
}

// SelectionType distinguishes full-airtime redemption from a specific bundle.
type SelectionType string

const (
	// SelectionFull converts the whole available value into airtime.
	SelectionFull SelectionType = "full"
	// SelectionBundle redeems one specific bundle offer.
	SelectionBundle SelectionType = "bundle"
)

// Selection is the chosen redemption option for the available value.
type Selection struct {
	Type     SelectionType `json:"type"`
	BundleID string        `json:"bundle_id,omitempty"`
	Label    string        `json:"label"`
	PriceUsd float64       `json:"price_usd"`
}

// FullAirtimeSelection builds the "full airtime" selection for the given value.
func FullAirtimeSelection(availableValueUsd float64) *Selection {
	return &Selection{
		Type:     SelectionFull,
		Label:    fmt.Sprintf("Full airtime (%.2f)", availableValueUsd),
		PriceUsd: availableValueUsd,
	}
}

// BundleSelection builds a selection pointing at one bundle offer.
func BundleSelection(id, label string, priceUsd float64) *Selection {
	return &Selection{
		Type:     SelectionBundle,
		BundleID: id,
		Label:    label,
		PriceUsd: priceUsd,
	}
}
