package domain

import (
	"context"
	"errors"
)

// Notification is an operational alert for the administrative audience.
type Notification struct {
	Title   string
	Message string
	Data    map[string]any
}

// Notifier delivers admin notifications. Callers treat delivery as
// fire-and-forget; failures are logged, not propagated.
type Notifier interface {
	NotifyAdmins(ctx context.Context, n Notification) error
}

// Email is a single outbound message.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends customer-facing email. A send failure is a distinct,
// reportable error.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

var ErrSendFailed = errors.New("email_send_failed")
