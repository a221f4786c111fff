package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Counter is the check-and-increment primitive. Implementations must make
// IncrementIfAllowed linearizable per (user, day, action): two concurrent
// calls must never both observe the last remaining slot.
type Counter interface {
	// IncrementIfAllowed adds amount to the action's counter unless doing so
	// would exceed limit. A nil limit never denies. Returns whether the
	// increment was applied and the counter value afterwards (or the current
	// value when denied).
	IncrementIfAllowed(ctx context.Context, userID snowflake.ID, day string, action Action, amount int64, limit *int64) (applied bool, used int64, err error)
	// Current reads the action's counter without modifying it.
	Current(ctx context.Context, userID snowflake.ID, day string, action Action) (int64, error)
}
