package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Balance recomputes the advisor's withdrawable amount: released
	// ledger payouts minus outstanding withdrawals. Never cached.
	Balance(ctx context.Context, advisorID snowflake.ID) (int64, error)
	// Request creates a pending withdrawal after checking the amount
	// against the balance under an advisor-scoped lock. Deducts nothing.
	Request(ctx context.Context, advisorID snowflake.ID, amount int64, bankDetails map[string]any) (*WithdrawalRequest, error)
	Approve(ctx context.Context, id, adminID snowflake.ID) (*WithdrawalRequest, error)
	Reject(ctx context.Context, id, adminID snowflake.ID, reason *string) (*WithdrawalRequest, error)
	// MarkProcessing hands an approved withdrawal to the payout pipeline.
	MarkProcessing(ctx context.Context, id, adminID snowflake.ID) (*WithdrawalRequest, error)
	// Complete is the payout-gateway seam. It fails with ErrNotImplemented
	// so "completed" can only ever mean a confirmed external transfer.
	Complete(ctx context.Context, id snowflake.ID) (*WithdrawalRequest, error)
	Get(ctx context.Context, id snowflake.ID) (*WithdrawalRequest, error)
	ListByAdvisor(ctx context.Context, advisorID snowflake.ID) ([]*WithdrawalRequest, error)
}

var (
	ErrNotFound            = errors.New("withdrawal_not_found")
	ErrInvalidAmount       = errors.New("invalid_withdrawal_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidStatus       = errors.New("invalid_withdrawal_status")
	ErrNotImplemented      = errors.New("not_implemented")
)
