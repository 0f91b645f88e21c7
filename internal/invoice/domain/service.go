package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/paylink/pkg/db/pagination"
)

// LineItemInput is one requested invoice line. UnitAmount is in minor units;
// the HTTP boundary converts decimal input via MinorUnits.
type LineItemInput struct {
	Description string
	Quantity    int64
	UnitAmount  int64
}

type CreateInvoiceRequest struct {
	CustomerName string
	Email        string
	Address      *string
	Currency     string
	LineItems    []LineItemInput
	DueDate      *time.Time
	Metadata     map[string]any
}

// CreateInvoiceResponse reports the created invoice. Warning is set when the
// best-effort send step failed; the invoice itself was still created.
type CreateInvoiceResponse struct {
	Invoice     InvoiceView `json:"invoice"`
	PaymentLink string      `json:"payment_link,omitempty"`
	Warning     string      `json:"warning,omitempty"`
}

// SendResult is the strict-mode result of re-issuing a payment email.
type SendResult struct {
	Invoice     InvoiceView `json:"invoice"`
	PaymentLink string      `json:"payment_link"`
}

// ConfirmOutcome summarizes a redirect reconciliation attempt.
type ConfirmOutcome string

const (
	// ConfirmOutcomePaid means the invoice is paid, whether this call won the
	// transition or an earlier signal already had.
	ConfirmOutcomePaid ConfirmOutcome = "paid"
	// ConfirmOutcomeProcessing means payment confirmation has not arrived;
	// the caller should retry shortly.
	ConfirmOutcomeProcessing ConfirmOutcome = "processing"
)

type ConfirmResult struct {
	Outcome ConfirmOutcome
	Invoice InvoiceView
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status   InvoiceStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
}

type ListInvoiceResponse struct {
	PageInfo pagination.PageInfo `json:"page_info"`
	Invoices []InvoiceView       `json:"invoices"`
}

// Service owns every status transition of guest invoices. No other component
// writes invoice state.
type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (CreateInvoiceResponse, error)
	SendPaymentEmail(ctx context.Context, id string) (SendResult, error)
	Get(ctx context.Context, id string) (InvoiceView, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	UpdateStatus(ctx context.Context, id string, status InvoiceStatus) (InvoiceView, error)

	// ApplyPaymentSucceeded reconciles a gateway "payment succeeded" signal.
	// The invoice is resolved by explicit id when the signal carries one,
	// falling back to session/intent references. Returns whether this call
	// performed the transition to paid.
	ApplyPaymentSucceeded(ctx context.Context, invoiceID, sessionID, paymentIntentID string) (bool, error)

	// ConfirmPayment reconciles a browser success redirect by pulling the
	// session state from the gateway.
	ConfirmPayment(ctx context.Context, id, sessionID string) (ConfirmResult, error)
}

var (
	ErrInvalidInvoiceID   = errors.New("invalid_invoice_id")
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrInvalidName        = errors.New("invalid_customer_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrMissingLineItems   = errors.New("missing_line_items")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidUnitAmount  = errors.New("invalid_unit_amount")
	ErrAmountTooLarge     = errors.New("amount_exceeds_ceiling")
	ErrInvalidDateRange   = errors.New("invalid_date_range")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvoiceAlreadyPaid = errors.New("invoice_already_paid")
	ErrStatusConflict     = errors.New("status_conflict")
	ErrNumberGeneration   = errors.New("invoice_number_generation_failed")
	ErrEmailSendFailed    = errors.New("email_send_failed")
)
