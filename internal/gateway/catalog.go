package gateway

import (
	"sort"
	"strings"

	"github.com/fluxr/airtime-widget/internal/domain"
)

// demoCatalog is the static per-network bundle inventory served by the mock
// and fake bindings. Unknown networks yield an empty list, not an error.
var demoCatalog = map[string][]domain.Bundle{
	"Econet": {
		{ID: "econet-data-1gb-week", Name: "Weekly Data Bundle - 1GB", Type: "data", PriceUsd: 5.00},
		{ID: "econet-voice-100m", Name: "Monthly Voice Bundle - 100 Mins", Type: "voice", PriceUsd: 4.50},
		{ID: "econet-data-500mb", Name: "Daily Data Bundle - 500MB", Type: "data", PriceUsd: 2.50},
	},
	"NetOne": {
		{ID: "netone-data-2gb", Name: "Weekly Data Bundle - 2GB", Type: "data", PriceUsd: 5.00},
		{ID: "netone-voice-50m", Name: "Weekly Voice Bundle - 50 Mins", Type: "voice", PriceUsd: 3.00},
	},
	"Telecel": {
		{ID: "telecel-data-1gb", Name: "Weekly Data Bundle - 1GB", Type: "data", PriceUsd: 4.50},
		{ID: "telecel-combo", Name: "Combo Bundle - 500MB + 50 Mins", Type: "combo", PriceUsd: 5.00},
	},
	"Vodacom": {
		{ID: "vodacom-data-1gb", Name: "Weekly Data Bundle - 1GB", Type: "data", PriceUsd: 5.00},
		{ID: "vodacom-voice-100m", Name: "Monthly Voice Bundle - 100 Mins", Type: "voice", PriceUsd: 4.00},
	},
	"MTN": {
		{ID: "mtn-data-1gb", Name: "Weekly Data Bundle - 1GB", Type: "data", PriceUsd: 5.00},
		{ID: "mtn-voice-50m", Name: "Weekly Voice Bundle - 50 Mins", Type: "voice", PriceUsd: 3.50},
	},
	"Safaricom": {
		{ID: "safaricom-data-1gb", Name: "Weekly Data Bundle - 1GB", Type: "data", PriceUsd: 4.50},
		{ID: "safaricom-voice-100m", Name: "Monthly Voice Bundle - 100 Mins", Type: "voice", PriceUsd: 4.00},
	},
	"Airtel": {
		{ID: "airtel-data-1gb", Name: "Weekly Data Bundle - 1GB", Type: "data", PriceUsd: 4.50},
		{ID: "airtel-voice-50m", Name: "Weekly Voice Bundle - 50 Mins", Type: "voice", PriceUsd: 3.00},
	},
}

// filterAndSortBundles keeps bundles priced within maxUsd, sorted descending
// by price.
func filterAndSortBundles(bundles []domain.Bundle, maxUsd float64) []domain.Bundle {
	filtered := make([]domain.Bundle, 0, len(bundles))
	for _, b := range bundles {
		if b.PriceUsd <= maxUsd {
			filtered = append(filtered, b)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].PriceUsd > filtered[j].PriceUsd
	})

	return filtered
}

// containsInvalid implements the synthetic voucher rejection rule shared by
// the demo bindings. The production backend applies its own semantics.
func containsInvalid(code string) bool {
	return strings.Contains(strings.ToLower(code), "invalid")
}
