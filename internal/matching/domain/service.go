package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
)

// Filters narrow the advisor pool before ranking. Specialty and language
// values are normalized to slugs before comparison.
type Filters struct {
	Specialty           *string `json:"specialty"`
	MinRating           *int64  `json:"min_rating"`
	Language            *string `json:"language"`
	RequireAvailability bool    `json:"require_availability"`
}

type RankedAdvisor struct {
	AdvisorID snowflake.ID `json:"advisor_id"`
	Score     int64        `json:"score"`
	Rank      int          `json:"rank"`
}

type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

type RespondResult struct {
	RequestID  snowflake.ID              `json:"request_id"`
	Status     consultationdomain.Status `json:"status"`
	Assignment *RequestAssignment        `json:"assignment"`
}

type Service interface {
	// Match ranks the eligible advisor pool for a pending_advisor request
	// and replaces its assignments. Deterministic: equal scores break by
	// ascending advisor id.
	Match(ctx context.Context, requestID snowflake.ID, filters Filters) ([]RankedAdvisor, error)
	// Respond records an advisor's accept or decline of their offer.
	// Accepting assigns the advisor and moves the request to accepted.
	Respond(ctx context.Context, assignmentID, advisorID snowflake.ID, decision Decision) (*RespondResult, error)
}

var (
	ErrAssignmentNotFound = errors.New("assignment_not_found")
	ErrInvalidDecision    = errors.New("invalid_decision")
	ErrAlreadyResponded   = errors.New("assignment_already_responded")
)
