package domain

import (
	"context"
	"errors"
)

type UpdateTierLimitRequest struct {
	Tier             Tier   `json:"tier"`
	GeneralChatDaily *int64 `json:"general_chat_daily"`
	AdvisorChatDaily *int64 `json:"advisor_chat_daily"`
	ContractAccess   bool   `json:"contract_access"`
	DiscountRateBps  int64  `json:"discount_rate_bps"`
	PriorityWeight   int64  `json:"priority_weight"`
}

type Service interface {
	GetByTier(ctx context.Context, tier Tier) (*TierLimit, error)
	List(ctx context.Context) ([]TierLimit, error)
	Update(ctx context.Context, req UpdateTierLimitRequest) (*TierLimit, error)
}

var (
	ErrNotFound        = errors.New("tier_not_found")
	ErrInvalidTier     = errors.New("invalid_tier")
	ErrInvalidDiscount = errors.New("invalid_discount_rate")
	ErrInvalidPriority = errors.New("invalid_priority_weight")
)
