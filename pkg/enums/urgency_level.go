package enums

type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

var validUrgencyLevels = []UrgencyLevel{UrgencyLow, UrgencyMedium, UrgencyHigh}

func (u UrgencyLevel) String() string {
	return string(u)
}

func (u UrgencyLevel) IsValid() bool {
	return member(u, validUrgencyLevels)
}

// Rank orders levels for sorting, high first.
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	}
	return 0
}

func ParseUrgencyLevel(value string) (UrgencyLevel, error) {
	return parse(value, "urgency level", validUrgencyLevels)
}
