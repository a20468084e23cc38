package mail

import "context"

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message or fails; there are no retries at this layer.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
