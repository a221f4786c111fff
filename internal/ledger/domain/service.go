package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// AppendTx inserts a new ledger entry in the caller's transaction.
	// The entry starts pending; only gateway confirmation settles it.
	AppendTx(ctx context.Context, tx *gorm.DB, order *Order) error
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	FindByRequest(ctx context.Context, requestID snowflake.ID) (*Order, error)

	// ConfirmGateway settles a pending order on an external payment
	// confirmation. Idempotent: redelivery of the same reference returns
	// the already-settled order unchanged.
	ConfirmGateway(ctx context.Context, provider string, orderID snowflake.ID, gatewayRef string) (*Order, error)
	// CancelTx cancels an unsettled order in the caller's transaction.
	CancelTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error

	// SettleReleaseTx writes the one-time fee and payout figures onto a
	// completed order.
	SettleReleaseTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, platformFee, payout int64) (*Order, error)

	// SumReleasedPayout totals the advisor's withdrawable payout: settled
	// orders whose consultation has been released.
	SumReleasedPayout(ctx context.Context, tx *gorm.DB, advisorID snowflake.ID) (int64, error)

	// AnonymizePayer re-points a deleted account's orders to the reserved
	// sentinel payer.
	AnonymizePayer(ctx context.Context, payerID snowflake.ID) (int64, error)
}

var (
	ErrNotFound           = errors.New("order_not_found")
	ErrInvalidAmount      = errors.New("invalid_order_amount")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidGatewayRef  = errors.New("invalid_gateway_ref")
	ErrAlreadySettled     = errors.New("order_already_settled")
	ErrInvalidOrderState  = errors.New("invalid_order_state")
	ErrSentinelPayer      = errors.New("sentinel_payer_reserved")
	ErrGatewayRefMismatch = errors.New("gateway_ref_mismatch")
)
