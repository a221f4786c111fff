package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/counselhub/counselhub/internal/actorctx"
	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	"github.com/counselhub/counselhub/internal/clock"
	"github.com/counselhub/counselhub/internal/consultation/domain"
	"github.com/counselhub/counselhub/internal/observability/logger"
	"github.com/counselhub/counselhub/internal/observability/metrics"
	"github.com/counselhub/counselhub/internal/ratelimit"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"github.com/counselhub/counselhub/pkg/db/pagination"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Tiers   tierdomain.Service
	Audit   auditdomain.Service
	Metrics *metrics.Metrics
	Limiter *ratelimit.ChatLimiter `optional:"true"`
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	tiers   tierdomain.Service
	audit   auditdomain.Service
	metrics *metrics.Metrics
	limiter *ratelimit.ChatLimiter
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("consultation.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		tiers:   p.Tiers,
		audit:   p.Audit,
		metrics: p.Metrics,
		limiter: p.Limiter,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.ConsultationRequest, error) {
	if strings.TrimSpace(req.Summary) == "" {
		return nil, domain.ErrInvalidSummary
	}
	if req.GrossAmount != nil && *req.GrossAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	limits, err := s.tiers.GetByTier(ctx, req.Tier)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	row := &domain.ConsultationRequest{
		ID:              s.genID.Generate(),
		RequesterID:     req.RequesterID,
		Tier:            req.Tier,
		PriorityWeight:  limits.PriorityWeight,
		DiscountRateBps: limits.DiscountRateBps,
		Status:          domain.StatusSubmitted,
		Summary:         strings.TrimSpace(req.Summary),
		SubmittedAt:     &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if req.GrossAmount != nil {
		gross := *req.GrossAmount
		discount := gross * limits.DiscountRateBps / 10000
		net := gross - discount
		row.GrossAmount = &gross
		row.DiscountAmount = &discount
		row.NetAmount = &net
		row.Currency = req.Currency
	}

	if len(req.Attachments) > 0 {
		raw, err := json.Marshal(req.Attachments)
		if err != nil {
			return nil, err
		}
		row.Attachments = datatypes.JSON(raw)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, row); err != nil {
			return err
		}
		targetID := row.ID.String()
		if err := s.audit.Record(ctx, tx, "consultation.created", "consultation", &targetID, map[string]any{
			"tier":            string(row.Tier),
			"priority_weight": row.PriorityWeight,
		}); err != nil {
			return err
		}
		updated, err := s.applyTransition(ctx, tx, row, domain.StatusPendingAdvisor)
		if err != nil {
			return err
		}
		row = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("consultation created",
		zap.Int64("consultation_id", int64(row.ID)),
		zap.String("tier", string(row.Tier)),
	)
	return row, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.ConsultationRequest, error) {
	row, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	return row, nil
}

func (s *service) List(ctx context.Context, filter domain.ListFilter) (*domain.ListResult, error) {
	limit := filter.PageSize
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	query := domain.ListQuery{
		RequesterID: filter.RequesterID,
		AdvisorID:   filter.AdvisorID,
		Status:      filter.Status,
		Limit:       limit,
	}
	if token := strings.TrimSpace(filter.PageToken); token != "" {
		cursor, err := decodeCursor(token)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, s.db, query)
	if err != nil {
		return nil, err
	}

	result := &domain.ListResult{Requests: rows}
	if len(rows) > limit {
		result.Requests = rows[:limit]
		last := result.Requests[limit-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		result.NextPageToken = token
	}
	return result, nil
}

func (s *service) Transition(ctx context.Context, id snowflake.ID, target domain.Status) (*domain.ConsultationRequest, error) {
	token, ok, err := s.tryLock(ctx, id)
	if err != nil {
		s.log.Warn("transition lock unavailable", zap.Error(err))
	} else if !ok {
		return nil, domain.ErrInvalidState
	} else {
		defer s.releaseLock(ctx, id, token)
	}

	var row *domain.ConsultationRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err = s.TransitionTx(ctx, tx, id, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// TransitionTx is the single lifecycle guard. The row lock it takes holds
// until the caller's transaction commits, serializing concurrent attempts.
func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, target domain.Status) (*domain.ConsultationRequest, error) {
	if !target.Valid() {
		return nil, domain.ErrInvalidTransition
	}

	row, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}

	return s.applyTransition(ctx, tx, row, target)
}

func (s *service) AcceptTx(ctx context.Context, tx *gorm.DB, id, advisorID snowflake.ID) (*domain.ConsultationRequest, error) {
	row, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	if row.Status != domain.StatusPendingAdvisor {
		return nil, domain.ErrInvalidState
	}

	if err := s.repo.SetAdvisor(ctx, tx, id, advisorID, s.clock.Now()); err != nil {
		return nil, err
	}
	row.AdvisorID = &advisorID

	return s.applyTransition(ctx, tx, row, domain.StatusAccepted)
}

func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, row *domain.ConsultationRequest, target domain.Status) (*domain.ConsultationRequest, error) {
	from := row.Status
	if !domain.CanTransition(from, target) {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, tx, row.ID, target, now); err != nil {
		return nil, err
	}

	targetID := row.ID.String()
	if err := s.audit.Record(ctx, tx, "consultation.transition", "consultation", &targetID, map[string]any{
		"from": string(from),
		"to":   string(target),
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, string(from), string(target))

	updated := *row
	updated.Status = target
	updated.UpdatedAt = now
	if field := updated.MilestoneField(target); field != nil && *field == nil {
		at := now
		*field = &at
	}
	return &updated, nil
}

func (s *service) Rate(ctx context.Context, id snowflake.ID, stars int64) (*domain.ConsultationRequest, error) {
	if stars < 1 || stars > 5 {
		return nil, domain.ErrInvalidRating
	}

	var row *domain.ConsultationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if row == nil {
			return domain.ErrNotFound
		}
		if actor, ok := actorctx.ActorFromContext(ctx); ok && actor.Role == actorctx.RoleUser && actor.ID != row.RequesterID {
			return domain.ErrForbidden
		}
		if row.Status != domain.StatusReleased {
			return domain.ErrInvalidState
		}
		if row.RatedAt != nil {
			return domain.ErrAlreadyRated
		}

		now := s.clock.Now()
		if err := s.repo.SetRating(ctx, tx, id, stars, now); err != nil {
			return err
		}

		targetID := id.String()
		if err := s.audit.Record(ctx, tx, "consultation.rated", "consultation", &targetID, map[string]any{
			"stars": stars,
		}); err != nil {
			return err
		}

		row.RatingScore = &stars
		row.RatedAt = &now
		row.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) tryLock(ctx context.Context, id snowflake.ID) (string, bool, error) {
	if s.limiter == nil {
		return "", true, nil
	}
	return s.limiter.TryLockTransition(ctx, id)
}

func (s *service) releaseLock(ctx context.Context, id snowflake.ID, token string) {
	if s.limiter == nil || token == "" {
		return
	}
	if err := s.limiter.ReleaseTransition(ctx, id, token); err != nil {
		s.log.Warn("transition lock release failed", zap.Error(err))
	}
}

func decodeCursor(token string) (*domain.ListCursor, error) {
	raw, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw.CreatedAt)
	if err != nil {
		return nil, err
	}
	rawID, err := strconv.ParseInt(raw.ID, 10, 64)
	if err != nil {
		return nil, err
	}
	return &domain.ListCursor{CreatedAt: createdAt, ID: snowflake.ID(rawID)}, nil
}
