// Package candidates finds the recipients a food item can be offered to.
package candidates

import (
	"context"
	"fmt"
	"sort"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/geo"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

const (
	DefaultRadiusMeters = 50000
	DefaultCap          = 20
)

// Index answers radius queries over recipient locations, nearest first.
type Index interface {
	RecipientsWithin(ctx context.Context, center types.GeographyPoint, radiusMeters float64, limit int) ([]models.User, error)
}

// Candidate is an eligible recipient and its great-circle distance to the item.
type Candidate struct {
	Recipient  models.User
	DistanceKm float64
}

type Selector struct {
	index        Index
	radiusMeters float64
	limit        int
}

func NewSelector(index Index, radiusMeters float64, limit int) (*Selector, error) {
	if index == nil {
		return nil, fmt.Errorf("candidate index required")
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Selector{index: index, radiusMeters: radiusMeters, limit: limit}, nil
}

// FindCandidates returns up to cap active recipients with a location inside
// the radius, ordered by haversine distance.
func (s *Selector) FindCandidates(ctx context.Context, item models.FoodItem) ([]Candidate, error) {
	found, err := s.index.RecipientsWithin(ctx, item.Location, s.radiusMeters, s.limit)
	if err != nil {
		return nil, fmt.Errorf("query recipients near food item: %w", err)
	}

	radiusKm := s.radiusMeters / 1000
	out := make([]Candidate, 0, len(found))
	for _, recipient := range found {
		if !recipient.IsActive || recipient.Location == nil {
			continue
		}
		d := geo.DistanceKm(item.Location.Lat, item.Location.Lng, recipient.Location.Lat, recipient.Location.Lng)
		if d > radiusKm {
			continue
		}
		out = append(out, Candidate{Recipient: recipient, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if len(out) > s.limit {
		out = out[:s.limit]
	}
	return out, nil
}
