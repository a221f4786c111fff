package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"gorm.io/gorm"
)

type CreateRequest struct {
	RequesterID snowflake.ID    `json:"requester_id"`
	Tier        tierdomain.Tier `json:"tier"`
	Summary     string          `json:"summary"`
	Attachments []string        `json:"attachments"`
	GrossAmount *int64          `json:"gross_amount"`
	Currency    *string         `json:"currency"`
}

type ListFilter struct {
	RequesterID *snowflake.ID
	AdvisorID   *snowflake.ID
	Status      *Status
	PageSize    int
	PageToken   string
}

type ListResult struct {
	Requests      []*ConsultationRequest
	NextPageToken string
}

type Service interface {
	// Create snapshots the tier's priority weight and discount rate,
	// computes the discounted amounts and submits the request into the
	// advisor queue.
	Create(ctx context.Context, req CreateRequest) (*ConsultationRequest, error)
	Get(ctx context.Context, id snowflake.ID) (*ConsultationRequest, error)
	List(ctx context.Context, filter ListFilter) (*ListResult, error)

	// Transition applies the lifecycle guard inside its own transaction.
	Transition(ctx context.Context, id snowflake.ID, target Status) (*ConsultationRequest, error)
	// TransitionTx applies the guard inside the caller's transaction so a
	// status change commits together with its side effects. The request
	// row is locked for the remainder of the transaction.
	TransitionTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, target Status) (*ConsultationRequest, error)
	// AcceptTx assigns the advisor and moves pending_advisor→accepted in
	// the caller's transaction.
	AcceptTx(ctx context.Context, tx *gorm.DB, id, advisorID snowflake.ID) (*ConsultationRequest, error)

	// Rate records a one-time star rating after release.
	Rate(ctx context.Context, id snowflake.ID, stars int64) (*ConsultationRequest, error)
}

var (
	ErrNotFound          = errors.New("consultation_not_found")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrInvalidState      = errors.New("invalid_state")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidRating     = errors.New("invalid_rating")
	ErrAlreadyRated      = errors.New("already_rated")
	ErrInvalidSummary    = errors.New("invalid_summary")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
)
