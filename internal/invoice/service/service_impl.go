package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/paylink/internal/audit/domain"
	"github.com/smallbiznis/paylink/internal/cache"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/config"
	"github.com/smallbiznis/paylink/internal/events"
	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	notifydomain "github.com/smallbiznis/paylink/internal/notify/domain"
	"github.com/smallbiznis/paylink/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"github.com/smallbiznis/paylink/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const customerCacheTTL = 12 * time.Hour

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Cfg           config.Config
	Repo          invoicedomain.Repository
	Gateway       paymentdomain.Gateway
	Mailer        notifydomain.Mailer
	Notifier      notifydomain.Notifier
	Outbox        *events.Outbox
	CustomerCache cache.Cache[string, string]
	Audit         auditdomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	cfg           config.Config
	repo          invoicedomain.Repository
	gateway       paymentdomain.Gateway
	mailer        notifydomain.Mailer
	notifier      notifydomain.Notifier
	outbox        *events.Outbox
	customerCache cache.Cache[string, string]
	audit         auditdomain.Service
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("invoice.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		cfg:           p.Cfg,
		repo:          p.Repo,
		gateway:       p.Gateway,
		mailer:        p.Mailer,
		notifier:      p.Notifier,
		outbox:        p.Outbox,
		customerCache: p.CustomerCache,
		audit:         p.Audit,
	}
}

// Create validates and persists a new draft invoice, then attempts the send
// step. Gateway or email failure during the send step does not roll back the
// invoice; the response carries a warning instead.
func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.CreateInvoiceResponse, error) {
	invoice, err := s.buildInvoice(req)
	if err != nil {
		return invoicedomain.CreateInvoiceResponse{}, err
	}

	number, err := s.generateNumber(ctx, s.db, s.clock.Now())
	if err != nil {
		return invoicedomain.CreateInvoiceResponse{}, err
	}
	invoice.Number = number

	if err := s.repo.Insert(ctx, s.db, invoice); err != nil {
		return invoicedomain.CreateInvoiceResponse{}, err
	}

	if err := s.outbox.Publish(ctx, events.Event{
		Type:      events.EventInvoiceCreated,
		Payload:   s.eventPayload(invoice, "").ToMap(),
		DedupeKey: events.EventInvoiceCreated + ":" + invoice.ID.String(),
	}); err != nil {
		s.log.Warn("outbox publish failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.Number),
		zap.Int64("amount_total", invoice.AmountTotal),
		zap.Any("metadata", logger.MaskJSON(invoice.Metadata)),
	)

	s.auditInvoice(ctx, "invoice.created", invoice, map[string]any{
		"invoice_number": invoice.Number,
		"amount_total":   invoice.AmountTotal,
		"currency":       invoice.Currency,
	})

	s.notifyAdminsAsync(ctx, notifydomain.Notification{
		Title:   "New invoice created",
		Message: fmt.Sprintf("Invoice %s for %s (%s %.2f)", invoice.Number, invoice.CustomerName, strings.ToUpper(invoice.Currency), invoicedomain.MajorUnits(invoice.AmountTotal)),
		Data: map[string]any{
			"invoice_id":     invoice.ID.String(),
			"invoice_number": invoice.Number,
		},
	})

	resp := invoicedomain.CreateInvoiceResponse{}
	sent, err := s.issueAndEmail(ctx, invoice)
	if err != nil {
		s.log.Warn("invoice send step failed during creation",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		resp.Invoice = invoicedomain.NewInvoiceView(*invoice)
		resp.Warning = "invoice created but the payment email could not be sent"
		return resp, nil
	}

	resp.Invoice = invoicedomain.NewInvoiceView(*sent)
	if sent.StripePaymentLink != nil {
		resp.PaymentLink = *sent.StripePaymentLink
	}
	return resp, nil
}

// SendPaymentEmail re-issues a checkout session and payment email. Unlike
// the creation path, every failure here is returned to the caller.
func (s *Service) SendPaymentEmail(ctx context.Context, id string) (invoicedomain.SendResult, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.SendResult{}, err
	}

	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return invoicedomain.SendResult{}, err
	}
	if invoice.Status == invoicedomain.InvoiceStatusPaid {
		return invoicedomain.SendResult{}, invoicedomain.ErrInvoiceAlreadyPaid
	}

	sent, err := s.issueAndEmail(ctx, invoice)
	if err != nil {
		return invoicedomain.SendResult{}, err
	}

	result := invoicedomain.SendResult{Invoice: invoicedomain.NewInvoiceView(*sent)}
	if sent.StripePaymentLink != nil {
		result.PaymentLink = *sent.StripePaymentLink
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	return invoicedomain.NewInvoiceView(*invoice), nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
	}
	if req.DateFrom != nil && req.DateTo != nil && req.DateTo.Before(*req.DateFrom) {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidDateRange
	}

	page := req.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, s.db, invoicedomain.ListFilter{
		Status:   req.Status,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Search:   strings.TrimSpace(req.Search),
		Offset:   page.Offset(),
		Limit:    page.Limit,
	})
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	resp := invoicedomain.ListInvoiceResponse{
		PageInfo: pagination.NewPageInfo(page, total),
		Invoices: make([]invoicedomain.InvoiceView, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Invoices = append(resp.Invoices, invoicedomain.NewInvoiceView(row))
	}
	return resp, nil
}

// UpdateStatus applies an administrative cancelled/unpaid transition. Paid
// invoices are immutable and paid cannot be set by hand.
func (s *Service) UpdateStatus(ctx context.Context, id string, status invoicedomain.InvoiceStatus) (invoicedomain.InvoiceView, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if status != invoicedomain.InvoiceStatusCancelled && status != invoicedomain.InvoiceStatusUnpaid {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidStatus
	}

	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if invoice.Status == invoicedomain.InvoiceStatusPaid {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrStatusConflict
	}

	updated, err := s.repo.UpdateStatus(ctx, s.db, invoiceID, status, s.clock.Now())
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if !updated {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrStatusConflict
	}

	invoice, err = s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	s.auditInvoice(ctx, "invoice.status_updated", invoice, map[string]any{
		"status": string(status),
	})
	return invoicedomain.NewInvoiceView(*invoice), nil
}

// ApplyPaymentSucceeded reconciles a webhook "payment succeeded" signal.
// Replays and races resolve through markPaid's conditional write: only the
// first observation transitions and notifies.
func (s *Service) ApplyPaymentSucceeded(ctx context.Context, invoiceID, sessionID, paymentIntentID string) (bool, error) {
	var (
		invoice *invoicedomain.Invoice
		err     error
	)
	if invoiceID != "" {
		id, parseErr := parseID(invoiceID)
		if parseErr != nil {
			return false, parseErr
		}
		invoice, err = s.loadInvoice(ctx, id)
	} else {
		invoice, err = s.repo.FindBySessionOrIntent(ctx, s.db, sessionID, paymentIntentID)
		if err == nil && invoice == nil {
			err = invoicedomain.ErrInvoiceNotFound
		}
	}
	if err != nil {
		return false, err
	}

	return s.markPaid(ctx, invoice, paymentIntentID)
}

// ConfirmPayment reconciles a browser success redirect. The redirect has no
// proof of payment on its own, so the session state is pulled from the
// gateway; local paid state wins when the pull fails.
func (s *Service) ConfirmPayment(ctx context.Context, id, sessionID string) (invoicedomain.ConfirmResult, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.ConfirmResult{}, err
	}
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return invoicedomain.ConfirmResult{}, err
	}

	if invoice.Status == invoicedomain.InvoiceStatusPaid {
		return s.confirmResult(invoicedomain.ConfirmOutcomePaid, invoice), nil
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" && invoice.StripeCheckoutSessionID != nil {
		sessionID = *invoice.StripeCheckoutSessionID
	}
	if sessionID == "" {
		return s.confirmResult(invoicedomain.ConfirmOutcomeProcessing, invoice), nil
	}

	status, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		s.log.Warn("session retrieval failed during redirect reconciliation",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		// Re-read local state: the webhook may have landed while the pull
		// was failing.
		fresh, loadErr := s.loadInvoice(ctx, invoice.ID)
		if loadErr == nil && fresh.Status == invoicedomain.InvoiceStatusPaid {
			return s.confirmResult(invoicedomain.ConfirmOutcomePaid, fresh), nil
		}
		return s.confirmResult(invoicedomain.ConfirmOutcomeProcessing, invoice), nil
	}

	if !status.Paid {
		return s.confirmResult(invoicedomain.ConfirmOutcomeProcessing, invoice), nil
	}

	if _, err := s.markPaid(ctx, invoice, status.PaymentIntentID); err != nil {
		return invoicedomain.ConfirmResult{}, err
	}
	fresh, err := s.loadInvoice(ctx, invoice.ID)
	if err != nil {
		return invoicedomain.ConfirmResult{}, err
	}
	return s.confirmResult(invoicedomain.ConfirmOutcomePaid, fresh), nil
}

// markPaid performs the at-most-once transition to paid. The repository
// update is a single conditional write; the outbox event commits with it.
// Notifications fire only when this call won the transition.
func (s *Service) markPaid(ctx context.Context, invoice *invoicedomain.Invoice, paymentIntentID string) (bool, error) {
	if invoice.Status == invoicedomain.InvoiceStatusPaid {
		return false, nil
	}

	paidAt := s.clock.Now()
	won := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.repo.MarkPaid(ctx, tx, invoice.ID, paymentIntentID, paidAt)
		if err != nil {
			return err
		}
		if !updated {
			return nil
		}
		won = true
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventInvoicePaid,
			Payload:   s.eventPayload(invoice, paymentIntentID).ToMap(),
			DedupeKey: events.EventInvoicePaid + ":" + invoice.ID.String(),
		})
	})
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	s.log.Info("invoice paid",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.Number),
		zap.String("payment_intent_id", paymentIntentID),
	)

	s.auditInvoice(ctx, "invoice.paid", invoice, map[string]any{
		"payment_intent_id": paymentIntentID,
	})

	s.sendPaidReceipt(ctx, invoice, paidAt)
	s.notifyAdminsAsync(ctx, notifydomain.Notification{
		Title:   "Invoice paid",
		Message: fmt.Sprintf("Invoice %s was paid (%s %.2f)", invoice.Number, strings.ToUpper(invoice.Currency), invoicedomain.MajorUnits(invoice.AmountTotal)),
		Data: map[string]any{
			"invoice_id":        invoice.ID.String(),
			"invoice_number":    invoice.Number,
			"payment_intent_id": paymentIntentID,
		},
	})
	return true, nil
}

// issueAndEmail creates a checkout session, persists its references, and
// emails the payment link. Used by both the best-effort creation path and
// the strict re-send path.
func (s *Service) issueAndEmail(ctx context.Context, invoice *invoicedomain.Invoice) (*invoicedomain.Invoice, error) {
	customerID, err := s.ensureGatewayCustomer(ctx, invoice)
	if err != nil {
		return nil, err
	}

	lineItems := make([]paymentdomain.CheckoutLineItem, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		lineItems = append(lineItems, paymentdomain.CheckoutLineItem{
			Description: item.Description,
			UnitAmount:  item.UnitAmount,
			Currency:    invoice.Currency,
			Quantity:    item.Quantity,
		})
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionRequest{
		CustomerID: customerID,
		LineItems:  lineItems,
		SuccessURL: fmt.Sprintf("%s/non-user-invoices/%s/payment-success?session_id={CHECKOUT_SESSION_ID}", s.cfg.AppBaseURL, invoice.ID.String()),
		CancelURL:  fmt.Sprintf("%s/non-user-invoices/%s/payment-cancel", s.cfg.AppBaseURL, invoice.ID.String()),
		Metadata: map[string]string{
			"invoice_id":     invoice.ID.String(),
			"invoice_number": invoice.Number,
			"invoice_kind":   "non_user",
		},
	})
	if err != nil {
		return nil, err
	}

	// A re-send before payment overwrites the stale session reference. The
	// prior session is not voided; see DESIGN.md.
	now := s.clock.Now()
	updated, err := s.repo.UpdateCheckoutSession(ctx, s.db, invoice.ID, invoicedomain.SessionUpdate{
		CustomerID:  customerID,
		SessionID:   sess.ID,
		PaymentLink: sess.URL,
	}, now)
	if err != nil {
		return nil, err
	}
	if !updated {
		// The invoice was paid between load and update.
		return nil, invoicedomain.ErrInvoiceAlreadyPaid
	}

	fresh, err := s.loadInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}

	if err := s.sendPaymentLinkEmail(ctx, fresh, sess.URL); err != nil {
		return nil, fmt.Errorf("%w: %v", invoicedomain.ErrEmailSendFailed, err)
	}

	if err := s.outbox.Publish(ctx, events.Event{
		Type:      events.EventInvoiceSent,
		Payload:   s.eventPayload(fresh, "").ToMap(),
		DedupeKey: events.EventInvoiceSent + ":" + fresh.ID.String() + ":" + sess.ID,
	}); err != nil {
		s.log.Warn("outbox publish failed", zap.String("invoice_id", fresh.ID.String()), zap.Error(err))
	}

	s.auditInvoice(ctx, "invoice.sent", fresh, map[string]any{
		"session_id": sess.ID,
	})

	return fresh, nil
}

// ensureGatewayCustomer resolves the gateway customer for the invoice email,
// preferring the reference stored on the invoice, then the TTL cache, then a
// gateway create.
func (s *Service) ensureGatewayCustomer(ctx context.Context, invoice *invoicedomain.Invoice) (string, error) {
	if invoice.StripeCustomerID != nil && *invoice.StripeCustomerID != "" {
		return *invoice.StripeCustomerID, nil
	}

	email := strings.ToLower(strings.TrimSpace(invoice.Email))
	if cached, ok := s.customerCache.Get(email); ok {
		return cached, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, invoice.Email, invoice.CustomerName)
	if err != nil {
		return "", err
	}
	s.customerCache.Set(email, customerID, customerCacheTTL)
	return customerID, nil
}

func (s *Service) buildInvoice(req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, invoicedomain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invoicedomain.ErrInvalidEmail
	}
	if len(req.LineItems) == 0 {
		return nil, invoicedomain.ErrMissingLineItems
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	now := s.clock.Now()
	invoice := &invoicedomain.Invoice{
		ID:           s.genID.Generate(),
		CustomerName: name,
		Email:        email,
		Address:      req.Address,
		Currency:     currency,
		Status:       invoicedomain.InvoiceStatusDraft,
		InvoiceDate:  now,
		DueDate:      req.DueDate,
		Metadata:     datatypes.JSONMap(req.Metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if invoice.Metadata == nil {
		invoice.Metadata = datatypes.JSONMap{}
	}

	var total int64
	for _, item := range req.LineItems {
		if strings.TrimSpace(item.Description) == "" {
			return nil, invoicedomain.ErrMissingLineItems
		}
		if item.Quantity < 1 {
			return nil, invoicedomain.ErrInvalidQuantity
		}
		if item.UnitAmount < 0 {
			return nil, invoicedomain.ErrInvalidUnitAmount
		}
		// Bound each line before multiplying so the product cannot wrap.
		if item.UnitAmount > 0 && item.Quantity > invoicedomain.MaxAmountTotal/item.UnitAmount {
			return nil, invoicedomain.ErrAmountTooLarge
		}
		lineTotal := item.Quantity * item.UnitAmount
		total += lineTotal
		if total > invoicedomain.MaxAmountTotal {
			return nil, invoicedomain.ErrAmountTooLarge
		}
		invoice.Items = append(invoice.Items, invoicedomain.InvoiceLineItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitAmount,
			TotalAmount: lineTotal,
			CreatedAt:   now,
		})
	}
	invoice.AmountTotal = total

	return invoice, nil
}

func (s *Service) loadInvoice(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) confirmResult(outcome invoicedomain.ConfirmOutcome, invoice *invoicedomain.Invoice) invoicedomain.ConfirmResult {
	return invoicedomain.ConfirmResult{
		Outcome: outcome,
		Invoice: invoicedomain.NewInvoiceView(*invoice),
	}
}

func (s *Service) auditInvoice(ctx context.Context, action string, invoice *invoicedomain.Invoice, metadata map[string]any) {
	id := invoice.ID.String()
	if err := s.audit.AuditLog(ctx, action, "non_user_invoice", &id, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) notifyAdminsAsync(ctx context.Context, n notifydomain.Notification) {
	if err := s.notifier.NotifyAdmins(ctx, n); err != nil {
		s.log.Warn("admin notification failed", zap.String("title", n.Title), zap.Error(err))
	}
}

func (s *Service) eventPayload(invoice *invoicedomain.Invoice, paymentIntentID string) events.InvoicePayload {
	return events.InvoicePayload{
		InvoiceID:       invoice.ID.String(),
		InvoiceNumber:   invoice.Number,
		AmountTotal:     invoice.AmountTotal,
		Currency:        invoice.Currency,
		PaymentIntentID: paymentIntentID,
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return id, nil
}
