package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, row *WithdrawalRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WithdrawalRequest, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*WithdrawalRequest, error)
	// LockAdvisor serializes balance checks for one advisor within the
	// caller's transaction.
	LockAdvisor(ctx context.Context, tx *gorm.DB, advisorID snowflake.ID) error
	SumOutstanding(ctx context.Context, db *gorm.DB, advisorID snowflake.ID) (int64, error)
	UpdateDecision(ctx context.Context, tx *gorm.DB, row *WithdrawalRequest) error
	ListByAdvisor(ctx context.Context, db *gorm.DB, advisorID snowflake.ID) ([]*WithdrawalRequest, error)
}
