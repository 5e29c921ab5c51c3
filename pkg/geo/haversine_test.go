package geo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/types"
)

func TestDistanceKm(t *testing.T) {
	nyc := types.GeographyPoint{Lat: 40.7128, Lng: -74.0060}
	la := types.GeographyPoint{Lat: 34.0522, Lng: -118.2437}

	require.InDelta(t, 3935.7, DistanceKm(nyc, la), 1.0)
	require.InDelta(t, DistanceKm(nyc, la), DistanceKm(la, nyc), 1e-9)
	require.Zero(t, DistanceKm(nyc, nyc))
}

func TestDistanceKmOneDegreeLatitude(t *testing.T) {
	a := types.GeographyPoint{Lat: 0, Lng: 0}
	b := types.GeographyPoint{Lat: 1, Lng: 0}
	require.InDelta(t, 111.19, DistanceKm(a, b), 0.01)
}

func TestRoundKm(t *testing.T) {
	require.Equal(t, 12.35, RoundKm(12.3456))
}
