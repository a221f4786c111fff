// Package domain holds advisor payout intents. Balances are never
// stored; every check recomputes from the ledger minus outstanding
// withdrawals.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusApproved, StatusRejected},
	StatusApproved:   {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from→to is a legal withdrawal move.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Outstanding reports whether the withdrawal still counts against the
// advisor's balance.
func (s Status) Outstanding() bool {
	switch s {
	case StatusPending, StatusApproved, StatusProcessing:
		return true
	default:
		return false
	}
}

type WithdrawalRequest struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AdvisorID snowflake.ID `gorm:"not null;index" json:"advisor_id"`
	Amount    int64        `gorm:"not null" json:"amount"`
	Status    Status       `gorm:"type:varchar(16);not null;index" json:"status"`

	BankDetails datatypes.JSONMap `json:"bank_details"`

	DecidedBy      *snowflake.ID `json:"decided_by"`
	DecidedAt      *time.Time    `json:"decided_at"`
	DecisionReason *string       `gorm:"type:text" json:"decision_reason"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (WithdrawalRequest) TableName() string { return "withdrawal_requests" }
