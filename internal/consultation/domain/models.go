// Package domain holds the consultation request model and its lifecycle
// state machine. Every status change in the system goes through the
// transition table below; no other package writes the status column.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"gorm.io/datatypes"
)

// Status is a consultation lifecycle state.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusSubmitted       Status = "submitted"
	StatusPendingAdvisor  Status = "pending_advisor"
	StatusAccepted        Status = "accepted"
	StatusPaymentReserved Status = "payment_reserved"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusReleased        Status = "released"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
)

// transitions is the single authoritative allow-list. A status missing
// from the map is terminal.
var transitions = map[Status][]Status{
	StatusDraft:           {StatusSubmitted},
	StatusSubmitted:       {StatusPendingAdvisor},
	StatusPendingAdvisor:  {StatusAccepted, StatusCancelled},
	StatusAccepted:        {StatusPaymentReserved, StatusCancelled},
	StatusPaymentReserved: {StatusInProgress, StatusCancelled},
	StatusInProgress:      {StatusCompleted, StatusCancelled},
	StatusCompleted:       {StatusReleased},
}

// Valid reports whether s names a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusPendingAdvisor, StatusAccepted,
		StatusPaymentReserved, StatusInProgress, StatusCompleted,
		StatusReleased, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from→to appears in the transition table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ConsultationRequest is one advisory engagement. Tier, priority weight
// and discount rate are snapshotted at creation and never recomputed;
// milestone timestamps are set once, on first entry to their status.
type ConsultationRequest struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	RequesterID snowflake.ID    `gorm:"not null;index" json:"requester_id"`
	AdvisorID   *snowflake.ID   `gorm:"index" json:"advisor_id"`
	Tier        tierdomain.Tier `gorm:"type:varchar(32);not null" json:"tier"`

	PriorityWeight  int64 `gorm:"not null;default:0" json:"priority_weight"`
	DiscountRateBps int64 `gorm:"not null;default:0" json:"discount_rate_bps"`

	GrossAmount    *int64  `json:"gross_amount"`
	DiscountAmount *int64  `json:"discount_amount"`
	NetAmount      *int64  `json:"net_amount"`
	Currency       *string `gorm:"type:varchar(8)" json:"currency"`

	Status      Status         `gorm:"type:varchar(32);not null;index" json:"status"`
	Summary     string         `gorm:"type:text;not null" json:"summary"`
	Attachments datatypes.JSON `json:"attachments"`

	RatingScore *int64 `json:"rating_score"`

	SubmittedAt       *time.Time `json:"submitted_at"`
	AcceptedAt        *time.Time `json:"accepted_at"`
	PaymentReservedAt *time.Time `json:"payment_reserved_at"`
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	ReleasedAt        *time.Time `json:"released_at"`
	CancelledAt       *time.Time `json:"cancelled_at"`
	RatedAt           *time.Time `json:"rated_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ConsultationRequest) TableName() string { return "consultation_requests" }

// MilestoneColumn returns the column holding the milestone timestamp for
// entering s, or "" when s carries no milestone. Statuses are a closed
// set, so the name is safe to splice into SQL.
func MilestoneColumn(s Status) string {
	switch s {
	case StatusSubmitted:
		return "submitted_at"
	case StatusAccepted:
		return "accepted_at"
	case StatusPaymentReserved:
		return "payment_reserved_at"
	case StatusInProgress:
		return "started_at"
	case StatusCompleted:
		return "completed_at"
	case StatusReleased:
		return "released_at"
	case StatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}

// MilestoneField returns the pointer to the milestone timestamp entered
// with s, or nil when s carries no milestone.
func (c *ConsultationRequest) MilestoneField(s Status) **time.Time {
	switch s {
	case StatusSubmitted:
		return &c.SubmittedAt
	case StatusAccepted:
		return &c.AcceptedAt
	case StatusPaymentReserved:
		return &c.PaymentReservedAt
	case StatusInProgress:
		return &c.StartedAt
	case StatusCompleted:
		return &c.CompletedAt
	case StatusReleased:
		return &c.ReleasedAt
	case StatusCancelled:
		return &c.CancelledAt
	default:
		return nil
	}
}
