package enums

// MatchStatus maps to the match_status enum in Postgres.
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusAccepted  MatchStatus = "accepted"
	MatchStatusDeclined  MatchStatus = "declined"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCancelled MatchStatus = "cancelled"
)

var validMatchStatuses = []MatchStatus{
	MatchStatusPending,
	MatchStatusAccepted,
	MatchStatusDeclined,
	MatchStatusCompleted,
	MatchStatusCancelled,
}

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:  {MatchStatusAccepted, MatchStatusDeclined, MatchStatusCancelled},
	MatchStatusAccepted: {MatchStatusCompleted, MatchStatusCancelled},
}

func (s MatchStatus) String() string {
	return string(s)
}

func (s MatchStatus) IsValid() bool {
	return member(s, validMatchStatuses)
}

// IsLive reports whether the match still holds interest in its food item.
func (s MatchStatus) IsLive() bool {
	return s == MatchStatusPending || s == MatchStatusAccepted
}

func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	return member(next, matchTransitions[s])
}

func ParseMatchStatus(value string) (MatchStatus, error) {
	return parse(value, "match status", validMatchStatuses)
}
