// Package pricing computes cash and e-transfer totals for hauling, moving,
// demolition and scrap jobs from a versioned rate configuration.
package pricing

import (
	"encoding/json"
	"fmt"
	"os"
)

// Canonical service types. Everything callers send is collapsed onto these
// once, at the boundary, through the alias table.
const (
	ServiceHaulAway     = "haul_away"
	ServiceSmallMove    = "small_move"
	ServiceItemDelivery = "item_delivery"
	ServiceDemolition   = "demolition"
	ServiceScrapPickup  = "scrap_pickup"
)

// serviceAliases maps legacy external names onto canonical values.
var serviceAliases = map[string]string{
	"dump_run":     ServiceHaulAway,
	"junk_removal": ServiceHaulAway,
	"junk":         ServiceHaulAway,
	"haulaway":     ServiceHaulAway,
	"moving":       ServiceSmallMove,
	"small_moving": ServiceSmallMove,
	"delivery":     ServiceItemDelivery,
}

// NormalizeServiceType resolves aliases to the canonical service type. The
// second return reports whether the result is a known canonical type.
func NormalizeServiceType(serviceType string) (string, bool) {
	if canonical, ok := serviceAliases[serviceType]; ok {
		return canonical, true
	}
	switch serviceType {
	case ServiceHaulAway, ServiceSmallMove, ServiceItemDelivery, ServiceDemolition, ServiceScrapPickup:
		return serviceType, true
	}
	return serviceType, false
}

// DisposalTier maps a garbage-bag count to a flat disposal allowance. Tiers
// are ordered by ascending MaxBags; counts above the last bound take the last
// tier's allowance.
type DisposalTier struct {
	MaxBags   int     `json:"max_bags"`
	Allowance float64 `json:"allowance"`
}

// ServiceRates holds the per-service knobs of the business profile.
type ServiceRates struct {
	HourlyRatePrimary float64 `json:"hourly_rate_primary"`
	HourlyRateHelper  float64 `json:"hourly_rate_helper"`
	MinimumHours      float64 `json:"minimum_hours"`
	MinimumTotal      float64 `json:"minimum_total"`
	MinimumCrew       int     `json:"minimum_crew"`
}

// Config is the versioned, read-only business profile. It is passed by value
// into every computation; the engine holds no process-wide rate state.
type Config struct {
	Version          int                     `json:"version"`
	CashTaxRate      float64                 `json:"cash_hst_rate"`
	EMTTaxRate       float64                 `json:"emt_hst_rate"`
	GasMinimum       float64                 `json:"gas_minimum"`
	WearMinimum      float64                 `json:"wear_and_tear_minimum"`
	Services         map[string]ServiceRates `json:"services"`
	DisposalTiers    []DisposalTier          `json:"disposal_tiers"`
	MattressFeeEach  float64                 `json:"mattress_fee_each"`
	BoxSpringFeeEach float64                 `json:"box_spring_fee_each"`
	ScrapCurbside    float64                 `json:"scrap_curbside_price"`
	ScrapInside      float64                 `json:"scrap_inside_price"`
	DisclaimerBase   string                  `json:"customer_disclaimer"`
}

// DefaultConfig returns the standing rate card.
func DefaultConfig() Config {
	return Config{
		Version:     1,
		CashTaxRate: 0.0,
		EMTTaxRate:  0.13,
		GasMinimum:  20.0,
		WearMinimum: 20.0,
		Services: map[string]ServiceRates{
			ServiceHaulAway: {
				HourlyRatePrimary: 20.0,
				HourlyRateHelper:  16.0,
				MinimumHours:      0,
				MinimumTotal:      50.0,
				MinimumCrew:       1,
			},
			ServiceSmallMove: {
				HourlyRatePrimary: 20.0,
				HourlyRateHelper:  16.0,
				MinimumHours:      2.0,
				MinimumTotal:      50.0,
				MinimumCrew:       2,
			},
			ServiceItemDelivery: {
				HourlyRatePrimary: 20.0,
				HourlyRateHelper:  16.0,
				MinimumHours:      1.0,
				MinimumTotal:      50.0,
				MinimumCrew:       1,
			},
			ServiceDemolition: {
				HourlyRatePrimary: 20.0,
				HourlyRateHelper:  16.0,
				MinimumHours:      2.0,
				MinimumTotal:      100.0,
				MinimumCrew:       2,
			},
		},
		DisposalTiers: []DisposalTier{
			{MaxBags: 5, Allowance: 50.0},
			{MaxBags: 15, Allowance: 80.0},
			{MaxBags: 0, Allowance: 120.0}, // catch-all, MaxBags ignored on the last tier
		},
		MattressFeeEach:  50.0,
		BoxSpringFeeEach: 50.0,
		ScrapCurbside:    0.0,
		ScrapInside:      30.0,
		DisclaimerBase: "This estimate is based on the information provided and may change after " +
			"an in-person view (stairs, heavy items, access, actual load size, multiple trips, etc.).",
	}
}

// LoadConfig reads a business-profile JSON file, falling back to defaults for
// fields the file omits. An empty path returns DefaultConfig unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read pricing config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse pricing config %s: %w", path, err)
	}
	return cfg, nil
}
