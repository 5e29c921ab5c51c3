package oracle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/types"
)

// GeoJSONPoint is the [lng, lat] shape the oracle expects.
type GeoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func PointFrom(p types.GeographyPoint) GeoJSONPoint {
	return GeoJSONPoint{Type: "Point", Coordinates: [2]float64{p.Lng, p.Lat}}
}

type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// FoodSummary is the food item as sent to the oracle.
type FoodSummary struct {
	ID             uuid.UUID    `json:"_id"`
	Category       string       `json:"category"`
	Quantity       Quantity     `json:"quantity"`
	EstimatedValue float64      `json:"estimatedValue"`
	ExpiresAt      time.Time    `json:"expiresAt"`
	Location       GeoJSONPoint `json:"location"`
	DietaryInfo    []string     `json:"dietaryInfo"`
}

type RecipientProfile struct {
	Location            GeoJSONPoint `json:"location"`
	OrganizationType    string       `json:"organizationType,omitempty"`
	ServingCapacity     int          `json:"servingCapacity,omitempty"`
	DietaryRestrictions []string     `json:"dietaryRestrictions"`
}

type RecipientSummary struct {
	ID      uuid.UUID        `json:"_id"`
	Name    string           `json:"name,omitempty"`
	Profile RecipientProfile `json:"profile"`
}

type MatchRequest struct {
	FoodItem   FoodSummary        `json:"food_item"`
	Recipients []RecipientSummary `json:"recipients"`
}

type Impact struct {
	MealsProvided int     `json:"meals_provided"`
	PeopleServed  int     `json:"people_served"`
	CO2SavedKg    float64 `json:"co2_saved_kg"`
	MoneySavedUSD float64 `json:"money_saved_usd"`
}

// MatchResult is one scored recipient.
type MatchResult struct {
	RecipientID     uuid.UUID `json:"recipient_id"`
	Score           float64   `json:"score"`
	DistanceKm      float64   `json:"distance_km"`
	UrgencyScore    float64   `json:"urgency_score"`
	CapacityScore   float64   `json:"capacity_score"`
	PreferenceScore float64   `json:"preference_score"`
	Impact          Impact    `json:"estimated_impact"`
	Reasons         []string  `json:"reasons"`
}

// maxScoredDistanceKm is where the oracle's distance score reaches zero.
const maxScoredDistanceKm = 50.0

// DistanceScore normalizes DistanceKm into [0,1].
func (m MatchResult) DistanceScore() float64 {
	return Clamp01(1 - m.DistanceKm/maxScoredDistanceKm)
}

type matchResponse struct {
	Matches                  []MatchResult `json:"matches"`
	TotalPotentialRecipients int           `json:"total_potential_recipients"`
}

type PredictRequest struct {
	BusinessID           uuid.UUID `json:"business_id"`
	BusinessType         string    `json:"business_type,omitempty"`
	HistoricalAvgSurplus float64   `json:"historical_avg_surplus"`
	Capacity             int       `json:"capacity"`
	HasPromotion         bool      `json:"has_promotion"`
	Lat                  *float64  `json:"lat,omitempty"`
	Lng                  *float64  `json:"lng,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

type Prediction struct {
	PredictedSurplus float64         `json:"predicted_surplus"`
	Confidence       float64         `json:"confidence"`
	Recommendation   string          `json:"recommendation"`
	Factors          []string        `json:"factors"`
	WeatherImpact    json.RawMessage `json:"weather_impact,omitempty"`
}

// Clamp01 bounds a score to the closed unit interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
