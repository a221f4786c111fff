package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	"github.com/counselhub/counselhub/internal/clock"
	ledgerdomain "github.com/counselhub/counselhub/internal/ledger/domain"
	"github.com/counselhub/counselhub/internal/observability/logger"
	"github.com/counselhub/counselhub/internal/withdrawal/domain"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Ledger ledgerdomain.Service
	Audit  auditdomain.Service
}

type service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   domain.Repository
	ledger ledgerdomain.Service
	audit  auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:     p.DB,
		log:    p.Log.Named("withdrawal.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		ledger: p.Ledger,
		audit:  p.Audit,
	}
}

func (s *service) Balance(ctx context.Context, advisorID snowflake.ID) (int64, error) {
	return s.balance(ctx, s.db, advisorID)
}

func (s *service) balance(ctx context.Context, conn *gorm.DB, advisorID snowflake.ID) (int64, error) {
	released, err := s.ledger.SumReleasedPayout(ctx, conn, advisorID)
	if err != nil {
		return 0, err
	}
	outstanding, err := s.repo.SumOutstanding(ctx, conn, advisorID)
	if err != nil {
		return 0, err
	}
	balance := released - outstanding
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

func (s *service) Request(ctx context.Context, advisorID snowflake.ID, amount int64, bankDetails map[string]any) (*domain.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var row *domain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.LockAdvisor(ctx, tx, advisorID); err != nil {
			return err
		}

		balance, err := s.balance(ctx, tx, advisorID)
		if err != nil {
			return err
		}
		if amount > balance {
			return domain.ErrInsufficientBalance
		}

		now := s.clock.Now()
		row = &domain.WithdrawalRequest{
			ID:          s.genID.Generate(),
			AdvisorID:   advisorID,
			Amount:      amount,
			Status:      domain.StatusPending,
			BankDetails: bankDetails,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, row); err != nil {
			return err
		}

		targetID := row.ID.String()
		return s.audit.Record(ctx, tx, "withdrawal.requested", "withdrawal", &targetID, map[string]any{
			"advisor_id": advisorID.String(),
			"amount":     amount,
			"balance":    balance,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("withdrawal requested",
		zap.Int64("withdrawal_id", int64(row.ID)),
		zap.Int64("advisor_id", int64(advisorID)),
		zap.Int64("amount", amount),
	)
	return row, nil
}

func (s *service) Approve(ctx context.Context, id, adminID snowflake.ID) (*domain.WithdrawalRequest, error) {
	return s.decide(ctx, id, adminID, domain.StatusApproved, nil, "withdrawal.approved")
}

func (s *service) Reject(ctx context.Context, id, adminID snowflake.ID, reason *string) (*domain.WithdrawalRequest, error) {
	return s.decide(ctx, id, adminID, domain.StatusRejected, reason, "withdrawal.rejected")
}

func (s *service) MarkProcessing(ctx context.Context, id, adminID snowflake.ID) (*domain.WithdrawalRequest, error) {
	return s.decide(ctx, id, adminID, domain.StatusProcessing, nil, "withdrawal.processing")
}

func (s *service) decide(ctx context.Context, id, adminID snowflake.ID, target domain.Status, reason *string, action string) (*domain.WithdrawalRequest, error) {
	var row *domain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if row == nil {
			return domain.ErrNotFound
		}
		if !domain.CanTransition(row.Status, target) {
			return domain.ErrInvalidStatus
		}

		now := s.clock.Now()
		from := row.Status
		row.Status = target
		row.DecidedBy = &adminID
		row.DecidedAt = &now
		row.DecisionReason = reason
		row.UpdatedAt = now

		if err := s.repo.UpdateDecision(ctx, tx, row); err != nil {
			return err
		}

		targetID := id.String()
		return s.audit.Record(ctx, tx, action, "withdrawal", &targetID, map[string]any{
			"from":     string(from),
			"to":       string(target),
			"admin_id": adminID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Complete stays unimplemented until a payout gateway confirms transfers.
// Failing loudly keeps "completed" truthful.
func (s *service) Complete(ctx context.Context, id snowflake.ID) (*domain.WithdrawalRequest, error) {
	return nil, domain.ErrNotImplemented
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.WithdrawalRequest, error) {
	row, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	return row, nil
}

func (s *service) ListByAdvisor(ctx context.Context, advisorID snowflake.ID) ([]*domain.WithdrawalRequest, error) {
	return s.repo.ListByAdvisor(ctx, s.db, advisorID)
}
