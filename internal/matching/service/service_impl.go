package service

import (
	"context"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/counselhub/counselhub/internal/actorctx"
	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	"github.com/counselhub/counselhub/internal/clock"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	"github.com/counselhub/counselhub/internal/matching/domain"
	"github.com/counselhub/counselhub/internal/observability/logger"
	"github.com/counselhub/counselhub/internal/observability/metrics"
	"github.com/counselhub/counselhub/internal/providers/email"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Consultations consultationdomain.Service
	Audit         auditdomain.Service
	Metrics       *metrics.Metrics
	Email         email.Provider `optional:"true"`
}

type service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	consultations consultationdomain.Service
	audit         auditdomain.Service
	metrics       *metrics.Metrics
	email         email.Provider
}

func NewService(p Params) domain.Service {
	return &service{
		db:            p.DB,
		log:           p.Log.Named("matching.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		consultations: p.Consultations,
		audit:         p.Audit,
		metrics:       p.Metrics,
		email:         p.Email,
	}
}

func (s *service) Match(ctx context.Context, requestID snowflake.ID, filters domain.Filters) ([]domain.RankedAdvisor, error) {
	request, err := s.consultations.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor, ok := actorctx.ActorFromContext(ctx); ok && actor.Role == actorctx.RoleUser && actor.ID != request.RequesterID {
		return nil, consultationdomain.ErrForbidden
	}
	if request.Status != consultationdomain.StatusPendingAdvisor {
		return nil, consultationdomain.ErrInvalidState
	}

	pool, err := s.repo.ListActivePool(ctx, s.db, domain.PoolQuery{
		MinRating:           filters.MinRating,
		RequireAvailability: filters.RequireAvailability,
	})
	if err != nil {
		return nil, err
	}
	pool = filterSlugs(pool, filters)

	ranked := rank(request.PriorityWeight, pool)

	now := s.clock.Now()
	rows := make([]*domain.RequestAssignment, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, &domain.RequestAssignment{
			ID:        s.genID.Generate(),
			RequestID: requestID,
			AdvisorID: r.AdvisorID,
			Rank:      r.Rank,
			Score:     r.Score,
			Status:    domain.AssignmentOffered,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.ReplaceAssignments(ctx, tx, requestID, rows); err != nil {
			return err
		}
		targetID := requestID.String()
		return s.audit.Record(ctx, tx, "matching.run", "consultation", &targetID, map[string]any{
			"candidates": len(rows),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMatchingRun(ctx, len(ranked))
	logger.FromContext(ctx).Info("matching run",
		zap.Int64("consultation_id", int64(requestID)),
		zap.Int("candidates", len(ranked)),
	)
	s.notifyOffers(ctx, requestID, pool)
	return ranked, nil
}

// notifyOffers emails the offered advisors. Failures are logged only; the
// matching run has already committed.
func (s *service) notifyOffers(ctx context.Context, requestID snowflake.ID, pool []*domain.AdvisorProfile) {
	if s.email == nil {
		return
	}
	recipients := make([]string, 0, len(pool))
	for _, advisor := range pool {
		if advisor.Email != nil && *advisor.Email != "" {
			recipients = append(recipients, *advisor.Email)
		}
	}
	if len(recipients) == 0 {
		return
	}
	subject := "New consultation offer"
	body := "<p>A consultation request matching your profile is waiting for a response.</p>" +
		"<p>Reference: " + requestID.String() + "</p>"
	if err := s.email.Send(ctx, recipients, subject, body); err != nil {
		s.log.Warn("offer notification failed",
			zap.Int64("consultation_id", int64(requestID)),
			zap.Error(err),
		)
	}
}

func (s *service) Respond(ctx context.Context, assignmentID, advisorID snowflake.ID, decision domain.Decision) (*domain.RespondResult, error) {
	if decision != domain.DecisionAccept && decision != domain.DecisionDecline {
		return nil, domain.ErrInvalidDecision
	}

	var result *domain.RespondResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err := s.repo.FindAssignmentForUpdate(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if assignment == nil {
			return domain.ErrAssignmentNotFound
		}
		if assignment.AdvisorID != advisorID {
			return consultationdomain.ErrForbidden
		}
		if assignment.Status != domain.AssignmentOffered {
			return domain.ErrAlreadyResponded
		}

		if decision == domain.DecisionDecline {
			if err := s.repo.UpdateAssignmentStatus(ctx, tx, assignmentID, domain.AssignmentDeclined); err != nil {
				return err
			}
			assignment.Status = domain.AssignmentDeclined

			request, err := s.consultations.Get(ctx, assignment.RequestID)
			if err != nil {
				return err
			}
			result = &domain.RespondResult{
				RequestID:  assignment.RequestID,
				Status:     request.Status,
				Assignment: assignment,
			}
			return nil
		}

		request, err := s.consultations.AcceptTx(ctx, tx, assignment.RequestID, advisorID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateAssignmentStatus(ctx, tx, assignmentID, domain.AssignmentAccepted); err != nil {
			return err
		}
		assignment.Status = domain.AssignmentAccepted

		result = &domain.RespondResult{
			RequestID:  assignment.RequestID,
			Status:     request.Status,
			Assignment: assignment,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// rank scores the pool and orders it deterministically: score descending,
// ties by ascending advisor id.
func rank(priorityWeight int64, pool []*domain.AdvisorProfile) []domain.RankedAdvisor {
	ranked := make([]domain.RankedAdvisor, 0, len(pool))
	for _, advisor := range pool {
		ranked = append(ranked, domain.RankedAdvisor{
			AdvisorID: advisor.ID,
			Score:     domain.Score(priorityWeight, advisor),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].AdvisorID < ranked[j].AdvisorID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func filterSlugs(pool []*domain.AdvisorProfile, filters domain.Filters) []*domain.AdvisorProfile {
	specialty := ""
	if filters.Specialty != nil {
		specialty = slug.Make(*filters.Specialty)
	}
	language := ""
	if filters.Language != nil {
		language = slug.Make(*filters.Language)
	}
	if specialty == "" && language == "" {
		return pool
	}

	filtered := pool[:0]
	for _, advisor := range pool {
		if specialty != "" && !containsSlug(advisor.SpecialtySlugs(), specialty) {
			continue
		}
		if language != "" && !containsSlug(advisor.LanguageSlugs(), language) {
			continue
		}
		filtered = append(filtered, advisor)
	}
	return filtered
}

func containsSlug(values []string, want string) bool {
	for _, v := range values {
		if slug.Make(v) == want {
			return true
		}
	}
	return false
}
