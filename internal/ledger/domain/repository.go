package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Order, error)
	FindByRequestID(ctx context.Context, db *gorm.DB, requestID snowflake.ID) (*Order, error)
	// Confirm settles a pending order with the gateway reference. Returns
	// the number of rows changed so callers can detect redelivery.
	Confirm(ctx context.Context, tx *gorm.DB, id snowflake.ID, provider, gatewayRef string) (int64, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, status OrderStatus) error
	SetReleaseAmounts(ctx context.Context, tx *gorm.DB, id snowflake.ID, platformFee, payout int64) error
	SumReleasedPayout(ctx context.Context, db *gorm.DB, advisorID snowflake.ID) (int64, error)
	ReassignPayer(ctx context.Context, tx *gorm.DB, from, to snowflake.ID) (int64, error)
}
