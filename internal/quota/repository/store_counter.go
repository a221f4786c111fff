package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
	"gorm.io/gorm"
)

// storeCounter backs the quota counter with the relational store. The
// increment is a single conditional upsert so that admission is decided
// and recorded in one statement.
type storeCounter struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewStoreCounter(db *gorm.DB, genID *snowflake.Node) quotadomain.Counter {
	return &storeCounter{db: db, genID: genID}
}

func (c *storeCounter) IncrementIfAllowed(ctx context.Context, userID snowflake.ID, day string, action quotadomain.Action, amount int64, limit *int64) (bool, int64, error) {
	// A fresh row starts at zero, so the insert path admits iff amount fits
	// the limit on its own. This keeps the upsert's WHERE guard (which only
	// applies to the update path) sufficient.
	if limit != nil && amount > *limit {
		used, err := c.Current(ctx, userID, day, action)
		return false, used, err
	}

	column := action.Column()
	now := time.Now().UTC()
	insertGeneral := int64(0)
	insertAdvisor := int64(0)
	if action == quotadomain.ActionAdvisorChat {
		insertAdvisor = amount
	} else {
		insertGeneral = amount
	}

	var result *gorm.DB
	if limit == nil {
		result = c.db.WithContext(ctx).Exec(fmt.Sprintf(
			`INSERT INTO usage_counters (id, user_id, day, general_chat_count, advisor_chat_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, day) DO UPDATE SET
				%s = usage_counters.%s + ?,
				updated_at = ?`,
			column, column),
			c.genID.Generate(), userID, day, insertGeneral, insertAdvisor, now, now,
			amount, now,
		)
	} else {
		result = c.db.WithContext(ctx).Exec(fmt.Sprintf(
			`INSERT INTO usage_counters (id, user_id, day, general_chat_count, advisor_chat_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, day) DO UPDATE SET
				%s = usage_counters.%s + ?,
				updated_at = ?
			 WHERE usage_counters.%s + ? <= ?`,
			column, column, column),
			c.genID.Generate(), userID, day, insertGeneral, insertAdvisor, now, now,
			amount, now,
			amount, *limit,
		)
	}
	if result.Error != nil {
		return false, 0, result.Error
	}

	used, err := c.Current(ctx, userID, day, action)
	if err != nil {
		return false, 0, err
	}
	return result.RowsAffected > 0, used, nil
}

func (c *storeCounter) Current(ctx context.Context, userID snowflake.ID, day string, action quotadomain.Action) (int64, error) {
	var used int64
	err := c.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT COALESCE(MAX(%s), 0) FROM usage_counters WHERE user_id = ? AND day = ?`,
		action.Column()),
		userID, day,
	).Scan(&used).Error
	if err != nil {
		return 0, err
	}
	return used, nil
}
