// Package domain holds the append-mostly order ledger. Orders record
// monetary facts; they are never deleted and, once completed, their
// amounts are frozen except for the one-time release write.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AnonymizedPayerID is the sentinel account reserved at bootstrap.
// Account deletion re-points orders here instead of breaking the payer
// reference.
const AnonymizedPayerID snowflake.ID = 1

// Account is the minimal party record orders reference as payer. The
// sentinel row with AnonymizedPayerID is reserved up front and never
// holds a real user.
type Account struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Kind        string       `gorm:"type:varchar(16);not null;default:user" json:"kind"`
	DisplayName string       `gorm:"type:varchar(255);not null;default:''" json:"display_name"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// AccountKindSentinel marks reserved system accounts.
const AccountKindSentinel = "sentinel"

// OrderStatus is the settlement status of a ledger entry, distinct from
// the consultation lifecycle.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderAssigned   OrderStatus = "assigned"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderAssigned, OrderCompleted, OrderCancelled},
	OrderAssigned:   {OrderInProgress, OrderCompleted, OrderCancelled},
	OrderInProgress: {OrderCompleted, OrderCancelled},
}

// CanTransition reports whether from→to is a legal settlement move.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Order is one ledger entry. PlatformFee and Payout stay null until
// release computes them.
type Order struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	PayerID   snowflake.ID  `gorm:"not null;index" json:"payer_id"`
	AdvisorID *snowflake.ID `gorm:"index" json:"advisor_id"`
	RequestID *snowflake.ID `gorm:"index" json:"request_id"`

	ServiceType string      `gorm:"type:varchar(64);not null" json:"service_type"`
	Status      OrderStatus `gorm:"type:varchar(16);not null;index" json:"status"`

	GrossAmount int64  `gorm:"not null" json:"gross_amount"`
	NetAmount   int64  `gorm:"not null" json:"net_amount"`
	PlatformFee *int64 `json:"platform_fee"`
	Payout      *int64 `json:"payout"`
	Currency    string `gorm:"type:varchar(8);not null" json:"currency"`

	GatewayProvider *string `gorm:"type:varchar(64)" json:"gateway_provider"`
	GatewayRef      *string `gorm:"type:varchar(255)" json:"gateway_ref"`

	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// ServiceTypeConsultation marks orders written by the escrow controller.
const ServiceTypeConsultation = "consultation"
