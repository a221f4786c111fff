package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/counselhub/counselhub/internal/withdrawal/domain"
	"github.com/counselhub/counselhub/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, row *domain.WithdrawalRequest) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO withdrawal_requests (
			id, advisor_id, amount, status, bank_details,
			decided_by, decided_at, decision_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.AdvisorID,
		row.Amount,
		row.Status,
		row.BankDetails,
		row.DecidedBy,
		row.DecidedAt,
		row.DecisionReason,
		row.CreatedAt,
		row.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.WithdrawalRequest, error) {
	var row domain.WithdrawalRequest
	err := conn.WithContext(ctx).
		Raw(`SELECT * FROM withdrawal_requests WHERE id = ?`, id).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.WithdrawalRequest, error) {
	var row domain.WithdrawalRequest
	err := tx.WithContext(ctx).
		Raw(`SELECT * FROM withdrawal_requests WHERE id = ?`+db.LockClause(tx), id).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) LockAdvisor(ctx context.Context, tx *gorm.DB, advisorID snowflake.ID) error {
	var id snowflake.ID
	return tx.WithContext(ctx).
		Raw(`SELECT id FROM advisor_profiles WHERE id = ?`+db.LockClause(tx), advisorID).
		Scan(&id).Error
}

func (r *repo) SumOutstanding(ctx context.Context, conn *gorm.DB, advisorID snowflake.ID) (int64, error) {
	var total int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM withdrawal_requests
		 WHERE advisor_id = ? AND status IN (?, ?, ?)`,
		advisorID, domain.StatusPending, domain.StatusApproved, domain.StatusProcessing,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) UpdateDecision(ctx context.Context, tx *gorm.DB, row *domain.WithdrawalRequest) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE withdrawal_requests
		 SET status = ?, decided_by = ?, decided_at = ?, decision_reason = ?, updated_at = ?
		 WHERE id = ?`,
		row.Status,
		row.DecidedBy,
		row.DecidedAt,
		row.DecisionReason,
		row.UpdatedAt,
		row.ID,
	).Error
}

func (r *repo) ListByAdvisor(ctx context.Context, conn *gorm.DB, advisorID snowflake.ID) ([]*domain.WithdrawalRequest, error) {
	var rows []*domain.WithdrawalRequest
	err := conn.WithContext(ctx).
		Model(&domain.WithdrawalRequest{}).
		Where("advisor_id = ?", advisorID).
		Order("created_at desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
