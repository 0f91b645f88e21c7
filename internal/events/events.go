package events

// Billing event types published to the outbox.
const (
	EventInvoiceCreated = "invoice.created"
	EventInvoiceSent    = "invoice.sent"
	EventInvoicePaid    = "invoice.paid"
)

// InvoicePayload captures the minimal data downstream consumers need.
type InvoicePayload struct {
	InvoiceID       string `json:"invoice_id"`
	InvoiceNumber   string `json:"invoice_number"`
	AmountTotal     int64  `json:"amount_total"`
	Currency        string `json:"currency"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p InvoicePayload) ToMap() map[string]any {
	payload := map[string]any{
		"invoice_id":     p.InvoiceID,
		"invoice_number": p.InvoiceNumber,
		"amount_total":   p.AmountTotal,
		"currency":       p.Currency,
	}
	if p.PaymentIntentID != "" {
		payload["payment_intent_id"] = p.PaymentIntentID
	}
	return payload
}
