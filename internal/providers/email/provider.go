// Package email sends outbound notifications. Matching uses it to tell
// advisors about fresh offers; sends are best-effort and never block or
// fail the operation that triggered them.
package email

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
