package repository

import (
	"context"

	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tierdomain.Repository {
	return &repo{}
}

func (r *repo) FindByTier(ctx context.Context, db *gorm.DB, tier tierdomain.Tier) (*tierdomain.TierLimit, error) {
	var limit tierdomain.TierLimit
	err := db.WithContext(ctx).Raw(
		`SELECT id, tier, general_chat_daily, advisor_chat_daily, contract_access,
		 discount_rate_bps, priority_weight, created_at, updated_at
		 FROM tier_limits WHERE tier = ?`,
		tier,
	).Scan(&limit).Error
	if err != nil {
		return nil, err
	}
	if limit.ID == 0 {
		return nil, nil
	}
	return &limit, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]tierdomain.TierLimit, error) {
	var limits []tierdomain.TierLimit
	err := db.WithContext(ctx).Raw(
		`SELECT id, tier, general_chat_daily, advisor_chat_daily, contract_access,
		 discount_rate_bps, priority_weight, created_at, updated_at
		 FROM tier_limits ORDER BY tier ASC`,
	).Scan(&limits).Error
	if err != nil {
		return nil, err
	}
	return limits, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, limit *tierdomain.TierLimit) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tier_limits (
			id, tier, general_chat_daily, advisor_chat_daily, contract_access,
			discount_rate_bps, priority_weight, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tier) DO UPDATE SET
			general_chat_daily = excluded.general_chat_daily,
			advisor_chat_daily = excluded.advisor_chat_daily,
			contract_access = excluded.contract_access,
			discount_rate_bps = excluded.discount_rate_bps,
			priority_weight = excluded.priority_weight,
			updated_at = excluded.updated_at`,
		limit.ID,
		limit.Tier,
		limit.GeneralChatDaily,
		limit.AdvisorChatDaily,
		limit.ContractAccess,
		limit.DiscountRateBps,
		limit.PriorityWeight,
		limit.CreatedAt,
		limit.UpdatedAt,
	).Error
}
