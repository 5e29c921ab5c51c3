// Package impact holds the deterministic impact and score formulas used when
// the scoring oracle is not consulted or not reachable.
package impact

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

var (
	// quantity units per meal
	mealWeight = decimal.RequireFromString("0.4")
	// kg CO2 per quantity unit diverted from waste
	co2PerUnit = decimal.RequireFromString("2.5")

	// DriverRatePerDelivery is the flat earnings estimate per completed delivery.
	DriverRatePerDelivery = decimal.NewFromInt(15)
)

// BusinessImpactMultiplier scales delivered quantity into the displayed impact score.
const BusinessImpactMultiplier = 10

// Estimate is the expected impact of fulfilling a match.
type Estimate struct {
	MealsProvided int             `json:"mealsProvided"`
	PeopleServed  int             `json:"peopleServed"`
	CO2Saved      float64         `json:"co2Saved"`
	MoneySaved    decimal.Decimal `json:"moneySaved"`
}

// ForMatch computes the local impact estimate from the food item quantity and
// value and the recipient's serving capacity (1 when unset).
func ForMatch(quantity float64, estimatedValue decimal.Decimal, servingCapacity *int) Estimate {
	qty := decimal.NewFromFloat(quantity)
	people := 1
	if servingCapacity != nil && *servingCapacity > 0 {
		people = *servingCapacity
	}
	return Estimate{
		MealsProvided: int(qty.Div(mealWeight).Floor().IntPart()),
		PeopleServed:  people,
		CO2Saved:      qty.Mul(co2PerUnit).InexactFloat64(),
		MoneySaved:    estimatedValue,
	}
}

// Score is a match score breakdown; every component lies in [0,1].
type Score struct {
	Overall    float64           `json:"overall"`
	Distance   float64           `json:"distance"`
	Urgency    float64           `json:"urgency"`
	Capacity   float64           `json:"capacity"`
	Preference float64           `json:"preference"`
	Source     enums.ScoreSource `json:"source"`
}

// FallbackScore is used when the oracle cannot be reached. It is never used to
// replace a score the oracle did return.
func FallbackScore() Score {
	return Score{
		Overall:    0.8,
		Distance:   0.9,
		Urgency:    0.7,
		Capacity:   0.8,
		Preference: 0.8,
		Source:     enums.ScoreSourceFallback,
	}
}

func (s Score) Validate() error {
	components := map[string]float64{
		"overall":    s.Overall,
		"distance":   s.Distance,
		"urgency":    s.Urgency,
		"capacity":   s.Capacity,
		"preference": s.Preference,
	}
	for name, value := range components {
		if !(value >= 0 && value <= 1) {
			return fmt.Errorf("score %s %v outside [0,1]", name, value)
		}
	}
	if !s.Source.IsValid() {
		return fmt.Errorf("unknown score source %q", s.Source)
	}
	return nil
}

// DriverEarnings is the flat-rate estimate for completed deliveries.
func DriverEarnings(completed int64) decimal.Decimal {
	return DriverRatePerDelivery.Mul(decimal.NewFromInt(completed))
}

// BusinessImpactScore converts delivered quantity into the displayed score.
func BusinessImpactScore(deliveredQuantity float64) float64 {
	return decimal.NewFromFloat(deliveredQuantity).Mul(decimal.NewFromInt(BusinessImpactMultiplier)).InexactFloat64()
}
