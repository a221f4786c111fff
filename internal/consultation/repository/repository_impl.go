package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/counselhub/counselhub/internal/consultation/domain"
	"github.com/counselhub/counselhub/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, req *domain.ConsultationRequest) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO consultation_requests (
			id, requester_id, advisor_id, tier, priority_weight, discount_rate_bps,
			gross_amount, discount_amount, net_amount, currency,
			status, summary, attachments, submitted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.RequesterID,
		req.AdvisorID,
		req.Tier,
		req.PriorityWeight,
		req.DiscountRateBps,
		req.GrossAmount,
		req.DiscountAmount,
		req.NetAmount,
		req.Currency,
		req.Status,
		req.Summary,
		req.Attachments,
		req.SubmittedAt,
		req.CreatedAt,
		req.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.ConsultationRequest, error) {
	var req domain.ConsultationRequest
	err := conn.WithContext(ctx).
		Raw(`SELECT * FROM consultation_requests WHERE id = ?`, id).
		Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, nil
	}
	return &req, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.ConsultationRequest, error) {
	var req domain.ConsultationRequest
	err := tx.WithContext(ctx).
		Raw(`SELECT * FROM consultation_requests WHERE id = ?`+db.LockClause(tx), id).
		Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, nil
	}
	return &req, nil
}

func (r *repo) UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, target domain.Status, at time.Time) error {
	if column := domain.MilestoneColumn(target); column != "" {
		return tx.WithContext(ctx).Exec(fmt.Sprintf(
			`UPDATE consultation_requests
			 SET status = ?, %s = COALESCE(%s, ?), updated_at = ?
			 WHERE id = ?`,
			column, column),
			target, at, at, id,
		).Error
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE consultation_requests SET status = ?, updated_at = ? WHERE id = ?`,
		target, at, id,
	).Error
}

func (r *repo) SetAdvisor(ctx context.Context, tx *gorm.DB, id, advisorID snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE consultation_requests SET advisor_id = ?, updated_at = ? WHERE id = ?`,
		advisorID, at, id,
	).Error
}

func (r *repo) SetRating(ctx context.Context, tx *gorm.DB, id snowflake.ID, stars int64, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE consultation_requests
		 SET rating_score = ?, rated_at = ?, updated_at = ?
		 WHERE id = ? AND rated_at IS NULL`,
		stars, at, at, id,
	).Error
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, q domain.ListQuery) ([]*domain.ConsultationRequest, error) {
	var requests []*domain.ConsultationRequest
	stmt := conn.WithContext(ctx).Model(&domain.ConsultationRequest{})

	if q.RequesterID != nil {
		stmt = stmt.Where("requester_id = ?", *q.RequesterID)
	}
	if q.AdvisorID != nil {
		stmt = stmt.Where("advisor_id = ?", *q.AdvisorID)
	}
	if q.Status != nil {
		stmt = stmt.Where("status = ?", *q.Status)
	}
	if q.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			q.Cursor.CreatedAt,
			q.Cursor.CreatedAt,
			q.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if q.Limit > 0 {
		stmt = stmt.Limit(q.Limit + 1)
	}

	if err := stmt.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
