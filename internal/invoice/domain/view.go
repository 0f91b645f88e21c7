package domain

import "time"

// LineItemView is the response shape of one invoice line, in decimal
// currency amounts.
type LineItemView struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// InvoiceView is the response representation of an invoice, decoupled from
// the persistence model.
type InvoiceView struct {
	ID            string         `json:"id"`
	Number        string         `json:"invoice_number"`
	CustomerName  string         `json:"customer_name"`
	Email         string         `json:"email"`
	Address       *string        `json:"address,omitempty"`
	LineItems     []LineItemView `json:"line_items"`
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	Status        InvoiceStatus  `json:"status"`
	InvoiceDate   time.Time      `json:"invoice_date"`
	DueDate       *time.Time     `json:"due_date,omitempty"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
	PaymentLink   string         `json:"payment_link,omitempty"`
	SessionID     string         `json:"stripe_checkout_session_id,omitempty"`
	PaymentIntent string         `json:"stripe_payment_intent_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewInvoiceView maps a stored invoice to its response shape. Pure function;
// the only translation point between persistence and API representations.
func NewInvoiceView(inv Invoice) InvoiceView {
	view := InvoiceView{
		ID:           inv.ID.String(),
		Number:       inv.Number,
		CustomerName: inv.CustomerName,
		Email:        inv.Email,
		Address:      inv.Address,
		LineItems:    make([]LineItemView, 0, len(inv.Items)),
		Amount:       MajorUnits(inv.AmountTotal),
		Currency:     inv.Currency,
		Status:       inv.Status,
		InvoiceDate:  inv.InvoiceDate,
		DueDate:      inv.DueDate,
		PaidAt:       inv.PaidAt,
		Metadata:     inv.Metadata,
		CreatedAt:    inv.CreatedAt,
	}
	if inv.StripePaymentLink != nil {
		view.PaymentLink = *inv.StripePaymentLink
	}
	if inv.StripeCheckoutSessionID != nil {
		view.SessionID = *inv.StripeCheckoutSessionID
	}
	if inv.StripePaymentIntentID != nil {
		view.PaymentIntent = *inv.StripePaymentIntentID
	}
	for _, item := range inv.Items {
		view.LineItems = append(view.LineItems, LineItemView{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   MajorUnits(item.UnitAmount),
			Total:       MajorUnits(item.TotalAmount),
		})
	}
	return view
}
