package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	"github.com/counselhub/counselhub/internal/clock"
	"github.com/counselhub/counselhub/internal/ledger/domain"
	"github.com/counselhub/counselhub/internal/observability/logger"
	"github.com/counselhub/counselhub/internal/observability/metrics"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Audit   auditdomain.Service
	Metrics *metrics.Metrics
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	audit   auditdomain.Service
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *service) AppendTx(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	if order.GrossAmount <= 0 || order.NetAmount <= 0 || order.NetAmount > order.GrossAmount {
		return domain.ErrInvalidAmount
	}
	if strings.TrimSpace(order.Currency) == "" {
		return domain.ErrInvalidCurrency
	}

	now := s.clock.Now()
	if order.ID == 0 {
		order.ID = s.genID.Generate()
	}
	if order.Status == "" {
		order.Status = domain.OrderPending
	}
	if order.ServiceType == "" {
		order.ServiceType = domain.ServiceTypeConsultation
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := s.repo.Insert(ctx, tx, order); err != nil {
		return err
	}
	s.metrics.RecordLedgerEntry(ctx, order.ServiceType)
	return nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *service) FindByRequest(ctx context.Context, requestID snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByRequestID(ctx, s.db, requestID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *service) ConfirmGateway(ctx context.Context, provider string, orderID snowflake.ID, gatewayRef string) (*domain.Order, error) {
	provider = strings.TrimSpace(provider)
	gatewayRef = strings.TrimSpace(gatewayRef)
	if gatewayRef == "" {
		return nil, domain.ErrInvalidGatewayRef
	}

	var order *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}

		switch order.Status {
		case domain.OrderPending:
		case domain.OrderCompleted:
			// Redelivery of the same confirmation is a no-op.
			if order.GatewayRef != nil && *order.GatewayRef == gatewayRef {
				return nil
			}
			return domain.ErrGatewayRefMismatch
		default:
			return domain.ErrInvalidOrderState
		}

		changed, err := s.repo.Confirm(ctx, tx, orderID, provider, gatewayRef)
		if err != nil {
			return err
		}
		if changed == 0 {
			return domain.ErrInvalidOrderState
		}

		now := s.clock.Now()
		order.Status = domain.OrderCompleted
		order.GatewayProvider = &provider
		order.GatewayRef = &gatewayRef
		order.ConfirmedAt = &now
		order.UpdatedAt = now

		targetID := orderID.String()
		return s.audit.Record(ctx, tx, "ledger.gateway_confirmed", "order", &targetID, map[string]any{
			"provider":    provider,
			"gateway_ref": gatewayRef,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentEvent(ctx, provider, "confirmed")
	logger.FromContext(ctx).Info("gateway confirmation settled",
		zap.Int64("order_id", int64(orderID)),
		zap.String("provider", provider),
	)
	return order, nil
}

func (s *service) CancelTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error {
	order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(order.Status, domain.OrderCancelled) {
		return domain.ErrInvalidOrderState
	}
	return s.repo.UpdateStatus(ctx, tx, orderID, domain.OrderCancelled)
}

func (s *service) SettleReleaseTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, platformFee, payout int64) (*domain.Order, error) {
	order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if order.Status != domain.OrderCompleted {
		return nil, domain.ErrInvalidOrderState
	}
	if order.PlatformFee != nil || order.Payout != nil {
		return nil, domain.ErrAlreadySettled
	}
	if platformFee < 0 || payout < 0 || platformFee+payout != order.GrossAmount {
		return nil, domain.ErrInvalidAmount
	}

	if err := s.repo.SetReleaseAmounts(ctx, tx, orderID, platformFee, payout); err != nil {
		return nil, err
	}
	order.PlatformFee = &platformFee
	order.Payout = &payout
	return order, nil
}

func (s *service) SumReleasedPayout(ctx context.Context, tx *gorm.DB, advisorID snowflake.ID) (int64, error) {
	conn := tx
	if conn == nil {
		conn = s.db
	}
	return s.repo.SumReleasedPayout(ctx, conn, advisorID)
}

func (s *service) AnonymizePayer(ctx context.Context, payerID snowflake.ID) (int64, error) {
	if payerID == 0 || payerID == domain.AnonymizedPayerID {
		return 0, domain.ErrSentinelPayer
	}

	var moved int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		moved, err = s.repo.ReassignPayer(ctx, tx, payerID, domain.AnonymizedPayerID)
		if err != nil {
			return err
		}
		targetID := payerID.String()
		return s.audit.Record(ctx, tx, "ledger.payer_anonymized", "user", &targetID, map[string]any{
			"orders_moved": moved,
		})
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}
