package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	"github.com/counselhub/counselhub/internal/ledger/domain"
	"github.com/counselhub/counselhub/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, payer_id, advisor_id, request_id, service_type, status,
			gross_amount, net_amount, platform_fee, payout, currency,
			gateway_provider, gateway_ref, created_at, updated_at, confirmed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.PayerID,
		order.AdvisorID,
		order.RequestID,
		order.ServiceType,
		order.Status,
		order.GrossAmount,
		order.NetAmount,
		order.PlatformFee,
		order.Payout,
		order.Currency,
		order.GatewayProvider,
		order.GatewayRef,
		order.CreatedAt,
		order.UpdatedAt,
		order.ConfirmedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := conn.WithContext(ctx).
		Raw(`SELECT * FROM orders WHERE id = ?`, id).
		Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := tx.WithContext(ctx).
		Raw(`SELECT * FROM orders WHERE id = ?`+db.LockClause(tx), id).
		Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindByRequestID(ctx context.Context, conn *gorm.DB, requestID snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := conn.WithContext(ctx).
		Raw(`SELECT * FROM orders WHERE request_id = ? ORDER BY created_at DESC LIMIT 1`, requestID).
		Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) Confirm(ctx context.Context, tx *gorm.DB, id snowflake.ID, provider, gatewayRef string) (int64, error) {
	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, gateway_provider = ?, gateway_ref = ?, confirmed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.OrderCompleted, provider, gatewayRef, now, now,
		id, domain.OrderPending,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, status domain.OrderStatus) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	).Error
}

func (r *repo) SetReleaseAmounts(ctx context.Context, tx *gorm.DB, id snowflake.ID, platformFee, payout int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE orders SET platform_fee = ?, payout = ?, updated_at = ? WHERE id = ?`,
		platformFee, payout, time.Now().UTC(), id,
	).Error
}

func (r *repo) SumReleasedPayout(ctx context.Context, conn *gorm.DB, advisorID snowflake.ID) (int64, error) {
	var total int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(o.payout), 0)
		 FROM orders o
		 JOIN consultation_requests c ON c.id = o.request_id
		 WHERE o.advisor_id = ?
		   AND o.status = ?
		   AND o.payout IS NOT NULL
		   AND c.status = ?`,
		advisorID, domain.OrderCompleted, consultationdomain.StatusReleased,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) ReassignPayer(ctx context.Context, tx *gorm.DB, from, to snowflake.ID) (int64, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE orders SET payer_id = ?, updated_at = ? WHERE payer_id = ?`,
		to, time.Now().UTC(), from,
	)
	return result.RowsAffected, result.Error
}
