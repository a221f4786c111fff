package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
)

// Decision is the outcome of an enforce or peek call. Limit is nil for
// unlimited tiers, in which case Remaining is meaningless.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Limit     *int64 `json:"limit"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
}

// QuotaExceededError carries the numbers the caller needs to render
// "N requests remaining".
type QuotaExceededError struct {
	Action Action
	Limit  int64
	Used   int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota_exceeded: %s used %d of %d", e.Action, e.Used, e.Limit)
}

func (e *QuotaExceededError) Remaining() int64 {
	remaining := e.Limit - e.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

type Service interface {
	// Enforce atomically checks and increments the user's daily counter.
	// Denials return *QuotaExceededError and leave the counter untouched.
	Enforce(ctx context.Context, userID snowflake.ID, tier tierdomain.Tier, action Action, amount int64) (Decision, error)
	// Peek reads the same limit and counter without incrementing.
	Peek(ctx context.Context, userID snowflake.ID, tier tierdomain.Tier, action Action) (Decision, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidAmount = errors.New("invalid_amount")
)
