package config

import (
	pricingpkg "wattline/pkg/pricing"
)

// MustLoadPricing loads etc/pricing.yaml from the project root and panics
// on error. It isolates the tariff so callers that only price energy do
// not need a full application config.
func MustLoadPricing() *pricingpkg.Schedule {
	return pricingpkg.MustLoad()
}
