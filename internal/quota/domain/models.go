// Package domain contains the per-user daily usage counters and the
// closed set of rate-limited action families.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Action is a rate-limited action family.
type Action string

const (
	ActionGeneralChat Action = "general-chat"
	ActionAdvisorChat Action = "advisor-chat"
)

// Valid reports whether the action belongs to the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionGeneralChat, ActionAdvisorChat:
		return true
	default:
		return false
	}
}

// Column returns the counter column backing the action. Actions are a
// closed set, so the column name is safe to splice into SQL.
func (a Action) Column() string {
	switch a {
	case ActionAdvisorChat:
		return "advisor_chat_count"
	default:
		return "general_chat_count"
	}
}

// UsageCounter is one row per (user, UTC calendar day). Counters only grow
// within their day; the next day gets a fresh row.
type UsageCounter struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"not null;uniqueIndex:ux_usage_counters_user_day,priority:1"`
	Day              string       `gorm:"type:text;not null;uniqueIndex:ux_usage_counters_user_day,priority:2"`
	GeneralChatCount int64        `gorm:"not null;default:0"`
	AdvisorChatCount int64        `gorm:"not null;default:0"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageCounter) TableName() string { return "usage_counters" }

// DayKey formats t as the UTC calendar-day bucket key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
