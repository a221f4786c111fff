// Package authorization maps roles to capabilities. Every operation
// declares the object/action pair it needs; handlers call Authorize once
// instead of comparing role strings inline. Ownership and assignment
// checks live here too so they are written exactly once.
package authorization

import (
	"context"
	"errors"

	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
)

const (
	ObjectConsultation = "consultation"
	ObjectAssignment   = "assignment"
	ObjectEscrow       = "escrow"
	ObjectUsage        = "usage"
	ObjectWithdrawal   = "withdrawal"
	ObjectBalance      = "balance"
	ObjectTier         = "tier"
	ObjectAuditLog     = "audit_log"
	ObjectLedger       = "ledger"
)

const (
	ActionConsultationCreate = "create"
	ActionConsultationView   = "view"
	ActionConsultationRate   = "rate"
	ActionConsultationCancel = "cancel"
	ActionConsultationMatch  = "match"

	ActionAssignmentRespond = "respond"

	ActionEscrowReserve  = "reserve"
	ActionEscrowStart    = "start"
	ActionEscrowComplete = "complete"
	ActionEscrowRelease  = "release"

	ActionUsageEnforce = "enforce"
	ActionUsageView    = "view"

	ActionWithdrawalRequest = "request"
	ActionWithdrawalView    = "view"
	ActionWithdrawalDecide  = "decide"

	ActionBalanceView = "view"

	ActionTierView   = "view"
	ActionTierUpdate = "update"

	ActionAuditLogView = "view"

	ActionLedgerAnonymize = "anonymize"
)

type Service interface {
	// Authorize checks the acting party in ctx against the capability.
	Authorize(ctx context.Context, object, action string) error
	// OwnsRequest fails with ErrForbidden when the acting user is neither
	// the requester nor an admin.
	OwnsRequest(ctx context.Context, request *consultationdomain.ConsultationRequest) error
	// IsAssignedAdvisor fails with ErrForbidden when the acting advisor is
	// not the one assigned to the request.
	IsAssignedAdvisor(ctx context.Context, request *consultationdomain.ConsultationRequest) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
