package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoodItemStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to FoodItemStatus
		ok       bool
	}{
		{FoodItemStatusAvailable, FoodItemStatusClaimed, true},
		{FoodItemStatusAvailable, FoodItemStatusExpired, true},
		{FoodItemStatusAvailable, FoodItemStatusCancelled, true},
		{FoodItemStatusClaimed, FoodItemStatusInTransit, true},
		{FoodItemStatusClaimed, FoodItemStatusCancelled, true},
		{FoodItemStatusInTransit, FoodItemStatusDelivered, true},
		{FoodItemStatusAvailable, FoodItemStatusDelivered, false},
		{FoodItemStatusInTransit, FoodItemStatusCancelled, false},
		{FoodItemStatusDelivered, FoodItemStatusAvailable, false},
		{FoodItemStatusExpired, FoodItemStatusAvailable, false},
		{FoodItemStatusCancelled, FoodItemStatusClaimed, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	for _, terminal := range []FoodItemStatus{FoodItemStatusDelivered, FoodItemStatusExpired, FoodItemStatusCancelled} {
		require.True(t, terminal.IsTerminal())
	}
	require.False(t, FoodItemStatusClaimed.IsTerminal())
}

func TestMatchStatusTransitions(t *testing.T) {
	require.True(t, MatchStatusPending.CanTransitionTo(MatchStatusAccepted))
	require.True(t, MatchStatusPending.CanTransitionTo(MatchStatusDeclined))
	require.True(t, MatchStatusAccepted.CanTransitionTo(MatchStatusCompleted))
	require.True(t, MatchStatusAccepted.CanTransitionTo(MatchStatusCancelled))
	require.False(t, MatchStatusAccepted.CanTransitionTo(MatchStatusDeclined))
	require.False(t, MatchStatusCompleted.CanTransitionTo(MatchStatusCompleted))
	require.False(t, MatchStatusDeclined.CanTransitionTo(MatchStatusAccepted))
	require.True(t, MatchStatusAccepted.IsLive())
	require.False(t, MatchStatusDeclined.IsLive())
}

func TestParseDietaryTags(t *testing.T) {
	tags, err := ParseDietaryTags([]string{"vegan", "halal", "vegan"})
	require.NoError(t, err)
	require.Equal(t, []DietaryTag{DietaryVegan, DietaryHalal}, tags)

	_, err = ParseDietaryTags([]string{"paleo"})
	require.Error(t, err)
}

func TestParsers(t *testing.T) {
	_, err := ParseFoodCategory("bakery")
	require.NoError(t, err)
	_, err = ParseFoodCategory("furniture")
	require.Error(t, err)

	_, err = ParseQuantityUnit("servings")
	require.NoError(t, err)
	_, err = ParseQuantityUnit("tons")
	require.Error(t, err)

	role, err := ParseUserRole("driver")
	require.NoError(t, err)
	require.Equal(t, UserRoleDriver, role)

	require.Greater(t, UrgencyHigh.Rank(), UrgencyMedium.Rank())
	require.Greater(t, UrgencyMedium.Rank(), UrgencyLow.Rank())

	ev, err := ParseOutboxEventType("match-accepted")
	require.NoError(t, err)
	require.Equal(t, EventMatchAccepted, ev)
}

func TestParseOutboxDLQErrorReason(t *testing.T) {
	r, err := ParseOutboxDLQErrorReason("max_attempts")
	require.NoError(t, err)
	require.Equal(t, OutboxDLQReasonMaxAttempts, r)

	r, err = ParseOutboxDLQErrorReason("")
	require.NoError(t, err)
	require.Empty(t, r)

	_, err = ParseOutboxDLQErrorReason("timeout")
	require.ErrorContains(t, err, "timeout")
}
