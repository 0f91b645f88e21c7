package domain

import "context"

// Webhook event types the service reacts to.
const (
	EventTypePaymentSucceeded = "payment_intent.succeeded"
	EventTypePaymentFailed    = "payment_intent.payment_failed"
)

// PaymentEvent is a verified, parsed gateway webhook event.
type PaymentEvent struct {
	ProviderEventID string
	Type            string
	PaymentIntentID string
	SessionID       string
	// InvoiceID is the invoice reference the gateway echoes back from the
	// metadata attached at session creation.
	InvoiceID      string
	Amount         int64
	Currency       string
	FailureMessage string
}

// WebhookVerifier authenticates and decodes raw webhook payloads.
// VerifyAndParse returns ErrInvalidSignature when the payload cannot be
// trusted and ErrEventIgnored for event types outside the handled set.
type WebhookVerifier interface {
	VerifyAndParse(ctx context.Context, payload []byte, signatureHeader string) (*PaymentEvent, error)
}

// Service ingests gateway webhook deliveries.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}
