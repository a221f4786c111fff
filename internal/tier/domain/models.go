// Package domain contains persistence models for subscription tiers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier is a subscription level name.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

// Valid reports whether t names a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierPremium:
		return true
	default:
		return false
	}
}

// TierLimit is the per-tier limit table: daily quota per action family
// (nil = unlimited), contract access, discount rate and matching priority.
// Exactly one row exists per tier value.
type TierLimit struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	Tier             Tier         `gorm:"type:text;not null;uniqueIndex"`
	GeneralChatDaily *int64       `gorm:""`
	AdvisorChatDaily *int64       `gorm:""`
	ContractAccess   bool         `gorm:"not null;default:false"`
	DiscountRateBps  int64        `gorm:"not null;default:0"`
	PriorityWeight   int64        `gorm:"not null;default:1"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TierLimit) TableName() string { return "tier_limits" }
