package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	"gorm.io/gorm"
)

type repository struct{}

// Provide builds the gorm-backed invoice repository.
func Provide() invoicedomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).
		Preload("Items").
		First(&invoice, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindBySessionOrIntent(ctx context.Context, db *gorm.DB, sessionID, paymentIntentID string) (*invoicedomain.Invoice, error) {
	query := db.WithContext(ctx).Preload("Items")
	switch {
	case sessionID != "" && paymentIntentID != "":
		query = query.Where("stripe_checkout_session_id = ? OR stripe_payment_intent_id = ?", sessionID, paymentIntentID)
	case sessionID != "":
		query = query.Where("stripe_checkout_session_id = ?", sessionID)
	case paymentIntentID != "":
		query = query.Where("stripe_payment_intent_id = ?", paymentIntentID)
	default:
		return nil, nil
	}

	var invoice invoicedomain.Invoice
	err := query.First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) NumberExists(ctx context.Context, db *gorm.DB, number string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, int64, error) {
	applyFilter := func(query *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.DateFrom != nil {
			query = query.Where("invoice_date >= ?", filter.DateFrom)
		}
		if filter.DateTo != nil {
			endOfDay := time.Date(filter.DateTo.Year(), filter.DateTo.Month(), filter.DateTo.Day(),
				23, 59, 59, int(time.Second-time.Nanosecond), filter.DateTo.Location())
			query = query.Where("invoice_date <= ?", endOfDay)
		}
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			query = query.Where(
				"LOWER(customer_name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?) OR LOWER(number) LIKE LOWER(?)",
				pattern, pattern, pattern,
			)
		}
		return query
	}

	var total int64
	if err := applyFilter(db.WithContext(ctx).Model(&invoicedomain.Invoice{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []invoicedomain.Invoice
	err := applyFilter(db.WithContext(ctx).Model(&invoicedomain.Invoice{})).
		Preload("Items").
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *repository) UpdateCheckoutSession(ctx context.Context, db *gorm.DB, id snowflake.ID, update invoicedomain.SessionUpdate, now time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status <> ?", id, invoicedomain.InvoiceStatusPaid).
		Updates(map[string]any{
			"status":                     invoicedomain.InvoiceStatusSent,
			"stripe_customer_id":         update.CustomerID,
			"stripe_checkout_session_id": update.SessionID,
			"stripe_payment_link":        update.PaymentLink,
			"updated_at":                 now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkPaid is the single compare-and-set for the paid transition. Concurrent
// callers race on the status guard; exactly one sees RowsAffected > 0.
func (r *repository) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentIntentID string, paidAt time.Time) (bool, error) {
	updates := map[string]any{
		"status":     invoicedomain.InvoiceStatusPaid,
		"paid_at":    paidAt,
		"updated_at": paidAt,
	}
	if paymentIntentID != "" {
		updates["stripe_payment_intent_id"] = paymentIntentID
	}

	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status <> ?", id, invoicedomain.InvoiceStatusPaid).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status invoicedomain.InvoiceStatus, now time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status <> ?", id, invoicedomain.InvoiceStatusPaid).
		Updates(map[string]any{
			"status":     status,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
