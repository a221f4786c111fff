package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/counselhub/counselhub/internal/matching/domain"
	"github.com/counselhub/counselhub/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListActivePool(ctx context.Context, conn *gorm.DB, q domain.PoolQuery) ([]*domain.AdvisorProfile, error) {
	var advisors []*domain.AdvisorProfile
	stmt := conn.WithContext(ctx).
		Model(&domain.AdvisorProfile{}).
		Where("active = ?", true)

	if q.MinRating != nil {
		stmt = stmt.Where("rating_score >= ?", *q.MinRating)
	}
	if q.RequireAvailability {
		stmt = stmt.Where("available = ?", true)
	}

	if err := stmt.Order("id asc").Find(&advisors).Error; err != nil {
		return nil, err
	}
	return advisors, nil
}

func (r *repo) ReplaceAssignments(ctx context.Context, tx *gorm.DB, requestID snowflake.ID, rows []*domain.RequestAssignment) error {
	err := tx.WithContext(ctx).Exec(
		`DELETE FROM request_assignments WHERE request_id = ?`, requestID,
	).Error
	if err != nil {
		return err
	}

	for _, row := range rows {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO request_assignments (
				id, request_id, advisor_id, rank, score, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID,
			row.RequestID,
			row.AdvisorID,
			row.Rank,
			row.Score,
			row.Status,
			row.CreatedAt,
			row.UpdatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindAssignmentForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.RequestAssignment, error) {
	var row domain.RequestAssignment
	err := tx.WithContext(ctx).
		Raw(`SELECT * FROM request_assignments WHERE id = ?`+db.LockClause(tx), id).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) UpdateAssignmentStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, status domain.AssignmentStatus) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE request_assignments SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	).Error
}

func (r *repo) ListAssignments(ctx context.Context, conn *gorm.DB, requestID snowflake.ID) ([]*domain.RequestAssignment, error) {
	var rows []*domain.RequestAssignment
	err := conn.WithContext(ctx).
		Model(&domain.RequestAssignment{}).
		Where("request_id = ?", requestID).
		Order("rank asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
