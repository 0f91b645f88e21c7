package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus tracks the payment lifecycle of a guest invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusUnpaid    InvoiceStatus = "unpaid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether the status is one of the modeled lifecycle states.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid,
		InvoiceStatusUnpaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// MaxAmountTotal is the checkout ceiling in minor units (999,999.99).
const MaxAmountTotal int64 = 99_999_999

// Invoice is a payable document for a customer with no account. Amounts are
// stored in minor units of the invoice currency.
type Invoice struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	Number       string        `gorm:"type:text;not null;uniqueIndex" json:"number"`
	CustomerName string        `gorm:"type:text;not null" json:"customer_name"`
	Email        string        `gorm:"type:text;not null" json:"email"`
	Address      *string       `gorm:"type:text" json:"address,omitempty"`
	AmountTotal  int64         `gorm:"not null" json:"amount_total"`
	Currency     string        `gorm:"type:text;not null" json:"currency"`
	Status       InvoiceStatus `gorm:"type:text;not null;default:'draft'" json:"status"`
	InvoiceDate  time.Time     `gorm:"not null" json:"invoice_date"`
	DueDate      *time.Time    `json:"due_date,omitempty"`
	PaidAt       *time.Time    `json:"paid_at,omitempty"`

	StripeCustomerID        *string `gorm:"type:text" json:"stripe_customer_id,omitempty"`
	StripeCheckoutSessionID *string `gorm:"type:text" json:"stripe_checkout_session_id,omitempty"`
	StripePaymentLink       *string `gorm:"type:text" json:"stripe_payment_link,omitempty"`
	StripePaymentIntentID   *string `gorm:"type:text" json:"stripe_payment_intent_id,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"items"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "non_user_invoices" }

// InvoiceLineItem is an immutable line of a guest invoice.
type InvoiceLineItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Quantity    int64        `gorm:"not null" json:"quantity"`
	UnitAmount  int64        `gorm:"not null" json:"unit_amount"`
	TotalAmount int64        `gorm:"not null" json:"total_amount"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "non_user_invoice_items" }

// MinorUnits converts a decimal currency amount to minor units, rounding to
// the nearest unit. This is the only place decimal input becomes integer
// money.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// MajorUnits converts minor units back to a decimal amount for responses.
func MajorUnits(amount int64) float64 {
	return float64(amount) / 100.0
}
