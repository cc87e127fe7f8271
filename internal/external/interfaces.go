package external

import "context"

// EmailInput is a pre-rendered email. When HTML is empty only the plain text
// part is sent.
type EmailInput struct {
	To          string
	FromAddress string
	FromName    string
	Subject     string
	Text        string
	HTML        string
	// ReferenceID correlates provider events with a notification log row.
	ReferenceID string
}

// EmailProvider transmits pre-rendered email content and returns the
// provider's message id.
type EmailProvider interface {
	Send(ctx context.Context, input EmailInput) (providerMsgID string, err error)
}
