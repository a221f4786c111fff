package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/counselhub/counselhub/internal/clock"
	"github.com/counselhub/counselhub/internal/observability/logger"
	"github.com/counselhub/counselhub/internal/observability/metrics"
	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Counter quotadomain.Counter
	Tiers   tierdomain.Service
	Metrics *metrics.Metrics
}

type service struct {
	log     *zap.Logger
	clock   clock.Clock
	counter quotadomain.Counter
	tiers   tierdomain.Service
	metrics *metrics.Metrics
}

func NewService(p Params) quotadomain.Service {
	return &service{
		log:     p.Log.Named("quota"),
		clock:   p.Clock,
		counter: p.Counter,
		tiers:   p.Tiers,
		metrics: p.Metrics,
	}
}

func (s *service) Enforce(ctx context.Context, userID snowflake.ID, tier tierdomain.Tier, action quotadomain.Action, amount int64) (quotadomain.Decision, error) {
	if !action.Valid() {
		return quotadomain.Decision{}, quotadomain.ErrInvalidAction
	}
	if amount <= 0 {
		return quotadomain.Decision{}, quotadomain.ErrInvalidAmount
	}

	limit, err := s.limitFor(ctx, tier, action)
	if err != nil {
		return quotadomain.Decision{}, err
	}

	day := quotadomain.DayKey(s.clock.Now())
	applied, used, err := s.counter.IncrementIfAllowed(ctx, userID, day, action, amount, limit)
	if err != nil {
		return quotadomain.Decision{}, err
	}

	s.metrics.RecordQuotaDecision(ctx, string(action), applied)

	if !applied {
		logger.FromContext(ctx).Info("quota denied",
			zap.String("action", string(action)),
			zap.Int64("user_id", int64(userID)),
			zap.Int64("used", used),
			zap.Int64p("limit", limit),
		)
		return decision(false, limit, used), &quotadomain.QuotaExceededError{
			Action: action,
			Limit:  *limit,
			Used:   used,
		}
	}
	return decision(true, limit, used), nil
}

func (s *service) Peek(ctx context.Context, userID snowflake.ID, tier tierdomain.Tier, action quotadomain.Action) (quotadomain.Decision, error) {
	if !action.Valid() {
		return quotadomain.Decision{}, quotadomain.ErrInvalidAction
	}

	limit, err := s.limitFor(ctx, tier, action)
	if err != nil {
		return quotadomain.Decision{}, err
	}

	day := quotadomain.DayKey(s.clock.Now())
	used, err := s.counter.Current(ctx, userID, day, action)
	if err != nil {
		return quotadomain.Decision{}, err
	}

	allowed := limit == nil || used < *limit
	return decision(allowed, limit, used), nil
}

// limitFor maps the action family to the tier's daily ceiling. Zero means
// the tier has no access to the action at all; nil means unlimited.
func (s *service) limitFor(ctx context.Context, tier tierdomain.Tier, action quotadomain.Action) (*int64, error) {
	limits, err := s.tiers.GetByTier(ctx, tier)
	if err != nil {
		return nil, err
	}
	if action == quotadomain.ActionAdvisorChat {
		return limits.AdvisorChatDaily, nil
	}
	return limits.GeneralChatDaily, nil
}

func decision(allowed bool, limit *int64, used int64) quotadomain.Decision {
	d := quotadomain.Decision{Allowed: allowed, Limit: limit, Used: used}
	if limit != nil {
		d.Remaining = *limit - used
		if d.Remaining < 0 {
			d.Remaining = 0
		}
	}
	return d
}
