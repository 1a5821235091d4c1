package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownServiceType means the caller sent a service type that is not
	// canonical and not a known alias.
	ErrUnknownServiceType = errors.New("unknown service type")

	// ErrServiceNotConfigured means a canonical service type has no entry in
	// the rate table. This is an operator problem, never silently defaulted
	// to a price.
	ErrServiceNotConfigured = errors.New("service type not configured")
)

// Moving jobs never bill under 4 hours, whatever the config says.
const smallMoveHardMinHours = 4.0

// Input is one pricing computation. ServiceType may be an alias; it is
// normalized exactly once, here.
type Input struct {
	ServiceType         string  `json:"service_type"`
	Hours               float64 `json:"estimated_hours"`
	CrewSize            int     `json:"crew_size"`
	GarbageBagCount     int     `json:"garbage_bag_count"`
	MattressesCount     int     `json:"mattresses_count"`
	BoxSpringsCount     int     `json:"box_springs_count"`
	ScrapPickupLocation string  `json:"scrap_pickup_location"` // "curbside" or "inside"
}

// Breakdown is the internal cost detail. It is logged and persisted but never
// shown to the customer.
type Breakdown struct {
	CrewSize             int     `json:"crew_size"`
	BillableHours        float64 `json:"billable_hours"`
	PrimaryRateCAD       float64 `json:"primary_rate_cad"`
	HelperRateCAD        float64 `json:"helper_rate_cad"`
	TravelMinCAD         float64 `json:"travel_min_cad"`
	LaborCAD             float64 `json:"labor_cad"`
	DisposalAllowanceCAD float64 `json:"disposal_allowance_cad"`
	MattressBoxSpringCAD float64 `json:"mattress_boxspring_cad"`
	ScrapCAD             float64 `json:"scrap_cad"`
}

// Result is the full engine output for one computation.
type Result struct {
	ServiceType  string    `json:"service_type"`
	TotalCashCAD float64   `json:"total_cash_cad"`
	TotalEMTCAD  float64   `json:"total_emt_cad"`
	Disclaimer   string    `json:"disclaimer"`
	Internal     Breakdown `json:"_internal"`
}

// roundCashToNearest5 is the cash rounding law: nearest multiple of 5,
// half-up, i.e. floor((x + 2.5) / 5) * 5, in exact decimal arithmetic so cent
// values ending in .5 never drift on float happenstance.
func roundCashToNearest5(x decimal.Decimal) decimal.Decimal {
	five := decimal.NewFromInt(5)
	return x.Add(decimal.NewFromFloat(2.5)).Div(five).Floor().Mul(five)
}

func round2(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

// disposalAllowance looks up the bag-count tier: first match by ascending
// bound wins, any count past the last bound saturates to the last tier.
func disposalAllowance(tiers []DisposalTier, bagCount int) decimal.Decimal {
	if bagCount <= 0 || len(tiers) == 0 {
		return decimal.Zero
	}
	for i, tier := range tiers {
		if i == len(tiers)-1 || bagCount <= tier.MaxBags {
			return decimal.NewFromFloat(tier.Allowance)
		}
	}
	return decimal.Zero
}

func labor(hours decimal.Decimal, crewSize int, primary, helper decimal.Decimal) decimal.Decimal {
	if hours.Sign() <= 0 {
		return decimal.Zero
	}
	if crewSize < 1 {
		crewSize = 1
	}
	hourly := primary.Add(helper.Mul(decimal.NewFromInt(int64(crewSize - 1))))
	return hours.Mul(hourly)
}

// Compute prices one job. It is a pure function of the input and the supplied
// config: no I/O, no shared state.
func Compute(in Input, cfg Config) (Result, error) {
	serviceType, ok := NormalizeServiceType(in.ServiceType)
	if !ok {
		return Result{}, fmt.Errorf("service type %q: %w", in.ServiceType, ErrUnknownServiceType)
	}

	emtRate := decimal.NewFromFloat(cfg.EMTTaxRate)
	one := decimal.NewFromInt(1)

	// Scrap pickup is flat-rate by location and bypasses all labor and
	// disposal logic.
	if serviceType == ServiceScrapPickup {
		cash := decimal.NewFromFloat(cfg.ScrapCurbside)
		if in.ScrapPickupLocation == "inside" {
			cash = decimal.NewFromFloat(cfg.ScrapInside)
		}
		emt := round2(cash.Mul(one.Add(emtRate)))
		return Result{
			ServiceType:  serviceType,
			TotalCashCAD: round2(cash).InexactFloat64(),
			TotalEMTCAD:  emt.InexactFloat64(),
			Disclaimer: fmt.Sprintf(
				"Scrap pickup is flat-rate: curbside is free (picked up next time we're in the area); "+
					"inside removal is $%.0f. Cash is tax-free; EMT/e-transfer adds %g%% HST.",
				cfg.ScrapInside, cfg.EMTTaxRate*100),
			Internal: Breakdown{
				CrewSize: 1,
				ScrapCAD: round2(cash).InexactFloat64(),
			},
		}, nil
	}

	svc, ok := cfg.Services[serviceType]
	if !ok {
		return Result{}, fmt.Errorf("service type %q: %w", serviceType, ErrServiceNotConfigured)
	}

	billableHours := in.Hours
	if billableHours < svc.MinimumHours {
		billableHours = svc.MinimumHours
	}
	if serviceType == ServiceSmallMove && billableHours < smallMoveHardMinHours {
		billableHours = smallMoveHardMinHours
	}

	crewSize := in.CrewSize
	if crewSize < svc.MinimumCrew {
		crewSize = svc.MinimumCrew
	}
	if crewSize < 1 {
		crewSize = 1
	}

	primary := decimal.NewFromFloat(svc.HourlyRatePrimary)
	helper := decimal.NewFromFloat(svc.HourlyRateHelper)
	hours := decimal.NewFromFloat(billableHours)

	travel := decimal.NewFromFloat(cfg.GasMinimum).Add(decimal.NewFromFloat(cfg.WearMinimum))
	laborCost := labor(hours, crewSize, primary, helper)

	disposal := decimal.Zero
	if serviceType == ServiceHaulAway {
		disposal = disposalAllowance(cfg.DisposalTiers, in.GarbageBagCount)
	}

	mattress := decimal.Zero
	if in.MattressesCount > 0 || in.BoxSpringsCount > 0 {
		mattress = decimal.NewFromFloat(cfg.MattressFeeEach).Mul(decimal.NewFromInt(int64(in.MattressesCount))).
			Add(decimal.NewFromFloat(cfg.BoxSpringFeeEach).Mul(decimal.NewFromInt(int64(in.BoxSpringsCount))))
	}

	raw := travel.Add(laborCost).Add(disposal).Add(mattress)

	minTotal := decimal.NewFromFloat(svc.MinimumTotal)
	if raw.LessThan(minTotal) {
		raw = minTotal
	}

	cash := roundCashToNearest5(raw)
	emt := round2(cash.Mul(one.Add(emtRate)))

	disclaimer := fmt.Sprintf(
		"%s Removal & disposal included (if required). "+
			"Mattresses/box springs may have an additional disposal cost if included. "+
			"Cash is tax-free; EMT/e-transfer adds %g%% HST.",
		cfg.DisclaimerBase, cfg.EMTTaxRate*100)

	return Result{
		ServiceType:  serviceType,
		TotalCashCAD: round2(cash).InexactFloat64(),
		TotalEMTCAD:  emt.InexactFloat64(),
		Disclaimer:   disclaimer,
		Internal: Breakdown{
			CrewSize:             crewSize,
			BillableHours:        billableHours,
			PrimaryRateCAD:       svc.HourlyRatePrimary,
			HelperRateCAD:        svc.HourlyRateHelper,
			TravelMinCAD:         round2(travel).InexactFloat64(),
			LaborCAD:             round2(laborCost).InexactFloat64(),
			DisposalAllowanceCAD: round2(disposal).InexactFloat64(),
			MattressBoxSpringCAD: round2(mattress).InexactFloat64(),
		},
	}, nil
}
