package domain

import (
	"context"
	"errors"
)

// CheckoutLineItem is one line of a hosted checkout session. UnitAmount is
// in minor units of Currency.
type CheckoutLineItem struct {
	Description string
	UnitAmount  int64
	Currency    string
	Quantity    int64
}

type CheckoutSessionRequest struct {
	CustomerID string
	LineItems  []CheckoutLineItem
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// SessionStatus is the live payment state of a checkout session as reported
// by the gateway.
type SessionStatus struct {
	Paid            bool
	PaymentIntentID string
}

// Gateway wraps the hosted-checkout operations of the payment provider.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (SessionStatus, error)
}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrGateway          = errors.New("gateway_error")
)
