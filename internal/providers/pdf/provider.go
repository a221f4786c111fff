// Package pdf renders payment receipts for released consultations.
package pdf

import (
	"context"
	"io"
)

// ReceiptData carries preformatted strings; amount formatting is the
// caller's concern.
type ReceiptData struct {
	ReceiptNumber string
	RequestID     string
	Summary       string
	Tier          string

	PaidAt     string
	ReleasedAt string

	Currency    string
	Gross       string
	Discount    string
	Net         string
	PlatformFee string
	Payout      string
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	return nil, nil
}
