package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

type ListQuery struct {
	RequesterID *snowflake.ID
	AdvisorID   *snowflake.ID
	Status      *Status
	Cursor      *ListCursor
	Limit       int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, req *ConsultationRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ConsultationRequest, error)
	// FindByIDForUpdate locks the row for the remainder of the caller's
	// transaction.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*ConsultationRequest, error)
	// UpdateStatus persists the new status, stamps the milestone column on
	// first entry and bumps updated_at.
	UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, target Status, at time.Time) error
	SetAdvisor(ctx context.Context, tx *gorm.DB, id, advisorID snowflake.ID, at time.Time) error
	SetRating(ctx context.Context, tx *gorm.DB, id snowflake.ID, stars int64, at time.Time) error
	List(ctx context.Context, db *gorm.DB, q ListQuery) ([]*ConsultationRequest, error)
}
