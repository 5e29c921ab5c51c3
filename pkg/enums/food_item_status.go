package enums

// FoodItemStatus maps to the food_item_status enum in Postgres.
type FoodItemStatus string

const (
	FoodItemStatusAvailable FoodItemStatus = "available"
	FoodItemStatusClaimed   FoodItemStatus = "claimed"
	FoodItemStatusInTransit FoodItemStatus = "in_transit"
	FoodItemStatusDelivered FoodItemStatus = "delivered"
	FoodItemStatusExpired   FoodItemStatus = "expired"
	FoodItemStatusCancelled FoodItemStatus = "cancelled"
)

var validFoodItemStatuses = []FoodItemStatus{
	FoodItemStatusAvailable,
	FoodItemStatusClaimed,
	FoodItemStatusInTransit,
	FoodItemStatusDelivered,
	FoodItemStatusExpired,
	FoodItemStatusCancelled,
}

var foodItemTransitions = map[FoodItemStatus][]FoodItemStatus{
	FoodItemStatusAvailable: {FoodItemStatusClaimed, FoodItemStatusExpired, FoodItemStatusCancelled},
	FoodItemStatusClaimed:   {FoodItemStatusInTransit, FoodItemStatusCancelled, FoodItemStatusAvailable},
	FoodItemStatusInTransit: {FoodItemStatusDelivered},
}

func (s FoodItemStatus) String() string {
	return string(s)
}

func (s FoodItemStatus) IsValid() bool {
	return member(s, validFoodItemStatuses)
}

// IsTerminal reports whether no further status mutation is accepted.
func (s FoodItemStatus) IsTerminal() bool {
	switch s {
	case FoodItemStatusDelivered, FoodItemStatusExpired, FoodItemStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in a single step.
// claimed -> available is only used when the accepted match is cancelled.
func (s FoodItemStatus) CanTransitionTo(next FoodItemStatus) bool {
	return member(next, foodItemTransitions[s])
}

func ParseFoodItemStatus(value string) (FoodItemStatus, error) {
	return parse(value, "food item status", validFoodItemStatuses)
}
