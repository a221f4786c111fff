package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type PoolQuery struct {
	MinRating           *int64
	RequireAvailability bool
}

type Repository interface {
	// ListActivePool returns active advisors matching the structural
	// filters. Specialty and language filtering happens in the service,
	// which understands the slug encoding.
	ListActivePool(ctx context.Context, db *gorm.DB, q PoolQuery) ([]*AdvisorProfile, error)
	ReplaceAssignments(ctx context.Context, tx *gorm.DB, requestID snowflake.ID, rows []*RequestAssignment) error
	FindAssignmentForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*RequestAssignment, error)
	UpdateAssignmentStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, status AssignmentStatus) error
	ListAssignments(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]*RequestAssignment, error)
}
