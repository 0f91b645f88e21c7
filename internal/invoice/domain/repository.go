package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows and pages invoice listings.
type ListFilter struct {
	Status   InvoiceStatus
	DateFrom *time.Time
	// DateTo is inclusive through end-of-day.
	DateTo *time.Time
	// Search matches customer name, email or invoice number.
	Search string
	Offset int
	Limit  int
}

// SessionUpdate carries the gateway references persisted after checkout
// session issuance.
type SessionUpdate struct {
	CustomerID  string
	SessionID   string
	PaymentLink string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindBySessionOrIntent(ctx context.Context, db *gorm.DB, sessionID, paymentIntentID string) (*Invoice, error)
	NumberExists(ctx context.Context, db *gorm.DB, number string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, int64, error)

	// UpdateCheckoutSession stores fresh session references and advances the
	// invoice to sent. Paid invoices are never touched.
	UpdateCheckoutSession(ctx context.Context, db *gorm.DB, id snowflake.ID, update SessionUpdate, now time.Time) (bool, error)

	// MarkPaid performs the single conditional transition to paid. It must be
	// one atomic compare-and-set against the row; the boolean reports whether
	// this call won the transition.
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentIntentID string, paidAt time.Time) (bool, error)

	// UpdateStatus applies an administrative transition, refusing to leave or
	// enter paid. The boolean reports whether a row changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status InvoiceStatus, now time.Time) (bool, error)
}
