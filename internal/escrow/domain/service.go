// Package domain defines the escrow/release controller: the two
// money-moving moments of a consultation, reservation and release, plus
// the session start/complete guards between them.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	ledgerdomain "github.com/counselhub/counselhub/internal/ledger/domain"
)

type ReserveResult struct {
	Request *consultationdomain.ConsultationRequest `json:"request"`
	Order   *ledgerdomain.Order                     `json:"order"`
}

type ReleaseResult struct {
	Request     *consultationdomain.ConsultationRequest `json:"request"`
	PlatformFee int64                                   `json:"platform_fee"`
	Payout      int64                                   `json:"payout"`
}

type Service interface {
	// Reserve appends a pending ledger entry for the agreed amount and
	// moves the request to payment_reserved, atomically.
	Reserve(ctx context.Context, requestID snowflake.ID, amount int64, currency string) (*ReserveResult, error)
	// Start opens the session. Fails with ErrPaymentNotConfirmed until the
	// gateway has settled the reserved order.
	Start(ctx context.Context, requestID snowflake.ID) (*consultationdomain.ConsultationRequest, error)
	// Complete closes the working session. Moves no money.
	Complete(ctx context.Context, requestID snowflake.ID) (*consultationdomain.ConsultationRequest, error)
	// Release computes the platform fee off the gross amount (floored
	// basis points), freezes fee and payout on the settled order and moves
	// the request to released. Funds become withdrawable here and only here.
	Release(ctx context.Context, requestID snowflake.ID, feeBps *int64) (*ReleaseResult, error)
	// Cancel aborts the consultation and voids any unsettled order.
	Cancel(ctx context.Context, requestID snowflake.ID) (*consultationdomain.ConsultationRequest, error)
}

var (
	ErrPaymentNotConfirmed = errors.New("payment_not_confirmed")
	ErrOrderMissing        = errors.New("order_missing")
	ErrInvalidFee          = errors.New("invalid_fee_bps")
)
