package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/counselhub/counselhub/internal/config"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  tierdomain.Repository
	Tiers *config.TierConfigHolder
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  tierdomain.Repository
	tiers *config.TierConfigHolder
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tier.service"),
		genID: p.GenID,
		repo:  p.Repo,
		tiers: p.Tiers,
	}
}

func (s *Service) GetByTier(ctx context.Context, tier tierdomain.Tier) (*tierdomain.TierLimit, error) {
	limit, err := s.repo.FindByTier(ctx, s.db, tier)
	if err != nil {
		return nil, err
	}
	if limit == nil {
		return nil, tierdomain.ErrNotFound
	}
	return limit, nil
}

func (s *Service) List(ctx context.Context) ([]tierdomain.TierLimit, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Update(ctx context.Context, req tierdomain.UpdateTierLimitRequest) (*tierdomain.TierLimit, error) {
	if req.Tier == "" {
		return nil, tierdomain.ErrInvalidTier
	}
	if req.DiscountRateBps < 0 || req.DiscountRateBps > 10_000 {
		return nil, tierdomain.ErrInvalidDiscount
	}
	if req.PriorityWeight < 0 {
		return nil, tierdomain.ErrInvalidPriority
	}

	now := time.Now().UTC()
	limit := &tierdomain.TierLimit{
		ID:               s.genID.Generate(),
		Tier:             req.Tier,
		GeneralChatDaily: req.GeneralChatDaily,
		AdvisorChatDaily: req.AdvisorChatDaily,
		ContractAccess:   req.ContractAccess,
		DiscountRateBps:  req.DiscountRateBps,
		PriorityWeight:   req.PriorityWeight,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Upsert(ctx, s.db, limit); err != nil {
		return nil, err
	}
	return s.GetByTier(ctx, req.Tier)
}

// SeedDefaults inserts missing tier rows from the mounted tier config.
// Existing rows are left untouched so admin edits survive restarts.
func (s *Service) SeedDefaults(ctx context.Context) error {
	for _, def := range s.tiers.Current().Defaults {
		existing, err := s.repo.FindByTier(ctx, s.db, tierdomain.Tier(def.Tier))
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		now := time.Now().UTC()
		limit := &tierdomain.TierLimit{
			ID:               s.genID.Generate(),
			Tier:             tierdomain.Tier(def.Tier),
			GeneralChatDaily: def.GeneralChatDaily,
			AdvisorChatDaily: def.AdvisorChatDaily,
			ContractAccess:   def.ContractAccess,
			DiscountRateBps:  def.DiscountRateBps,
			PriorityWeight:   def.PriorityWeight,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Upsert(ctx, s.db, limit); err != nil {
			return err
		}
		s.log.Info("seeded tier limits", zap.String("tier", def.Tier))
	}
	return nil
}
