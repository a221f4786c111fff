package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByTier(ctx context.Context, db *gorm.DB, tier Tier) (*TierLimit, error)
	List(ctx context.Context, db *gorm.DB) ([]TierLimit, error)
	Upsert(ctx context.Context, db *gorm.DB, limit *TierLimit) error
}
