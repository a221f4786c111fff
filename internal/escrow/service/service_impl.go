package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	"github.com/counselhub/counselhub/internal/config"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	"github.com/counselhub/counselhub/internal/escrow/domain"
	ledgerdomain "github.com/counselhub/counselhub/internal/ledger/domain"
	"github.com/counselhub/counselhub/internal/observability/logger"
	"github.com/counselhub/counselhub/internal/observability/metrics"
)

const defaultCurrency = "USD"

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	Consultations consultationdomain.Service
	Ledger        ledgerdomain.Service
	LedgerRepo    ledgerdomain.Repository
	Audit         auditdomain.Service
	Metrics       *metrics.Metrics
}

type service struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           config.Config
	consultations consultationdomain.Service
	ledger        ledgerdomain.Service
	ledgerRepo    ledgerdomain.Repository
	audit         auditdomain.Service
	metrics       *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:            p.DB,
		log:           p.Log.Named("escrow.service"),
		cfg:           p.Config,
		consultations: p.Consultations,
		ledger:        p.Ledger,
		ledgerRepo:    p.LedgerRepo,
		audit:         p.Audit,
		metrics:       p.Metrics,
	}
}

func (s *service) Reserve(ctx context.Context, requestID snowflake.ID, amount int64, currency string) (*domain.ReserveResult, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}

	var result *domain.ReserveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.consultations.TransitionTx(ctx, tx, requestID, consultationdomain.StatusPaymentReserved)
		if err != nil {
			return err
		}

		gross := amount
		if request.GrossAmount != nil {
			if gross != 0 && gross != *request.GrossAmount {
				return ledgerdomain.ErrInvalidAmount
			}
			gross = *request.GrossAmount
		}
		if gross <= 0 {
			return ledgerdomain.ErrInvalidAmount
		}
		discount := gross * request.DiscountRateBps / 10000
		net := gross - discount

		if request.Currency != nil && *request.Currency != "" {
			currency = strings.ToUpper(*request.Currency)
		}

		order := &ledgerdomain.Order{
			PayerID:     request.RequesterID,
			AdvisorID:   request.AdvisorID,
			RequestID:   &requestID,
			ServiceType: ledgerdomain.ServiceTypeConsultation,
			Status:      ledgerdomain.OrderPending,
			GrossAmount: gross,
			NetAmount:   net,
			Currency:    currency,
		}
		if err := s.ledger.AppendTx(ctx, tx, order); err != nil {
			return err
		}

		targetID := requestID.String()
		if err := s.audit.Record(ctx, tx, "escrow.reserved", "consultation", &targetID, map[string]any{
			"order_id": order.ID.String(),
			"gross":    gross,
			"net":      net,
			"currency": currency,
		}); err != nil {
			return err
		}

		result = &domain.ReserveResult{Request: request, Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("payment reserved",
		zap.Int64("consultation_id", int64(requestID)),
		zap.Int64("gross", result.Order.GrossAmount),
	)
	return result, nil
}

func (s *service) Start(ctx context.Context, requestID snowflake.ID) (*consultationdomain.ConsultationRequest, error) {
	var request *consultationdomain.ConsultationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.consultations.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if current.Status != consultationdomain.StatusPaymentReserved {
			return consultationdomain.ErrInvalidState
		}

		order, err := s.ledgerRepo.FindByRequestID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderMissing
		}
		if order.Status != ledgerdomain.OrderCompleted {
			return domain.ErrPaymentNotConfirmed
		}

		request, err = s.consultations.TransitionTx(ctx, tx, requestID, consultationdomain.StatusInProgress)
		return err
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Complete(ctx context.Context, requestID snowflake.ID) (*consultationdomain.ConsultationRequest, error) {
	return s.consultations.Transition(ctx, requestID, consultationdomain.StatusCompleted)
}

func (s *service) Release(ctx context.Context, requestID snowflake.ID, feeBps *int64) (*domain.ReleaseResult, error) {
	bps := s.cfg.PlatformFeeBps
	if feeBps != nil {
		bps = *feeBps
	}
	if bps < 0 || bps > 10000 {
		return nil, domain.ErrInvalidFee
	}

	var result *domain.ReleaseResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.consultations.TransitionTx(ctx, tx, requestID, consultationdomain.StatusReleased)
		if err != nil {
			return err
		}

		order, err := s.ledgerRepo.FindByRequestID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderMissing
		}

		fee := order.GrossAmount * bps / 10000
		payout := order.GrossAmount - fee

		if _, err := s.ledger.SettleReleaseTx(ctx, tx, order.ID, fee, payout); err != nil {
			return err
		}

		targetID := requestID.String()
		if err := s.audit.Record(ctx, tx, "escrow.released", "consultation", &targetID, map[string]any{
			"order_id":     order.ID.String(),
			"fee_bps":      bps,
			"platform_fee": fee,
			"payout":       payout,
		}); err != nil {
			return err
		}

		result = &domain.ReleaseResult{Request: request, PlatformFee: fee, Payout: payout}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentEvent(ctx, "escrow", "released")
	logger.FromContext(ctx).Info("payment released",
		zap.Int64("consultation_id", int64(requestID)),
		zap.Int64("platform_fee", result.PlatformFee),
		zap.Int64("payout", result.Payout),
	)
	return result, nil
}

func (s *service) Cancel(ctx context.Context, requestID snowflake.ID) (*consultationdomain.ConsultationRequest, error) {
	var request *consultationdomain.ConsultationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = s.consultations.TransitionTx(ctx, tx, requestID, consultationdomain.StatusCancelled)
		if err != nil {
			return err
		}

		order, err := s.ledgerRepo.FindByRequestID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if order != nil && ledgerdomain.CanTransition(order.Status, ledgerdomain.OrderCancelled) {
			return s.ledger.CancelTx(ctx, tx, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}
