package fooditems

import (
	"time"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

const (
	highUrgencyWindow   = 6 * time.Hour
	mediumUrgencyWindow = 24 * time.Hour
)

// ComputeUrgency maps the time left until expiry onto an urgency tier. Both
// bounds are inclusive. The result is stamped on write and never refreshed on read.
func ComputeUrgency(now, expiresAt time.Time) enums.UrgencyLevel {
	remaining := expiresAt.Sub(now)
	switch {
	case remaining <= highUrgencyWindow:
		return enums.UrgencyHigh
	case remaining <= mediumUrgencyWindow:
		return enums.UrgencyMedium
	default:
		return enums.UrgencyLow
	}
}
