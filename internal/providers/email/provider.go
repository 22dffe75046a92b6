package email

import "context"

// Provider dispatches invoice notifications. Dispatch is best-effort: the
// invoice transition commits before any send is attempted, and a failed
// send never rolls the invoice back.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
