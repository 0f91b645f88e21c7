package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paylink/internal/config"
	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubInvoiceService struct {
	createResp  invoicedomain.CreateInvoiceResponse
	createErr   error
	getView     invoicedomain.InvoiceView
	getErr      error
	listResp    invoicedomain.ListInvoiceResponse
	listErr     error
	sendResult  invoicedomain.SendResult
	sendErr     error
	updateView  invoicedomain.InvoiceView
	updateErr   error
	confirmRes  invoicedomain.ConfirmResult
	confirmErr  error

	lastCreate  invoicedomain.CreateInvoiceRequest
	lastStatus  invoicedomain.InvoiceStatus
	confirmed   int
	lastSession string
}

func (s *stubInvoiceService) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.CreateInvoiceResponse, error) {
	s.lastCreate = req
	return s.createResp, s.createErr
}

func (s *stubInvoiceService) SendPaymentEmail(ctx context.Context, id string) (invoicedomain.SendResult, error) {
	return s.sendResult, s.sendErr
}

func (s *stubInvoiceService) Get(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	return s.getView, s.getErr
}

func (s *stubInvoiceService) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	return s.listResp, s.listErr
}

func (s *stubInvoiceService) UpdateStatus(ctx context.Context, id string, status invoicedomain.InvoiceStatus) (invoicedomain.InvoiceView, error) {
	s.lastStatus = status
	return s.updateView, s.updateErr
}

func (s *stubInvoiceService) ApplyPaymentSucceeded(ctx context.Context, invoiceID, sessionID, paymentIntentID string) (bool, error) {
	return false, nil
}

func (s *stubInvoiceService) ConfirmPayment(ctx context.Context, id, sessionID string) (invoicedomain.ConfirmResult, error) {
	s.confirmed++
	s.lastSession = sessionID
	return s.confirmRes, s.confirmErr
}

type stubPaymentService struct {
	err       error
	ingested  int
	signature string
}

func (s *stubPaymentService) IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	s.ingested++
	s.signature = signatureHeader
	return s.err
}

func newTestServer(t *testing.T, invoices *stubInvoiceService, payments *stubPaymentService) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := &Server{
		engine:        gin.New(),
		log:           zap.NewNop(),
		cfg:           config.Config{PublicRateLimit: 100},
		invoiceSvc:    invoices,
		paymentSvc:    payments,
		publicLimiter: newRateLimiter(100, time.Minute),
	}
	srv.engine.POST("/api/non-user-invoices", srv.CreateInvoice)
	srv.engine.GET("/api/non-user-invoices", srv.ListInvoices)
	srv.engine.GET("/api/non-user-invoices/:id", srv.GetInvoice)
	srv.engine.POST("/api/non-user-invoices/:id/send-email", srv.SendInvoiceEmail)
	srv.engine.PATCH("/api/non-user-invoices/:id/status", srv.UpdateInvoiceStatus)
	srv.engine.POST("/stripe/webhook", srv.StripeWebhook)
	srv.engine.GET("/non-user-invoices/:id/payment-success", srv.publicRateLimit(), srv.PaymentSuccessPage)
	srv.engine.GET("/non-user-invoices/:id/payment-cancel", srv.publicRateLimit(), srv.PaymentCancelPage)
	return srv
}

func perform(srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	return rec
}

func TestCreateInvoiceHandler(t *testing.T) {
	invoices := &stubInvoiceService{
		createResp: invoicedomain.CreateInvoiceResponse{
			Invoice:     invoicedomain.InvoiceView{ID: "1", Number: "INV-123456789"},
			PaymentLink: "https://checkout.example.com/cs_1",
		},
	}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	body := `{
		"customer_name": "Ada Lovelace",
		"email": "ada@example.com",
		"currency": "usd",
		"line_items": [{"description": "Consulting", "quantity": 2, "unit_amount": 50.00}]
	}`
	rec := perform(srv, http.MethodPost, "/api/non-user-invoices", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Decimal input converts to minor units at the boundary.
	if len(invoices.lastCreate.LineItems) != 1 || invoices.lastCreate.LineItems[0].UnitAmount != 5000 {
		t.Fatalf("expected 50.00 to convert to 5000 minor units, got %+v", invoices.lastCreate.LineItems)
	}

	var payload struct {
		Data invoicedomain.CreateInvoiceResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Data.Invoice.Number != "INV-123456789" {
		t.Fatalf("unexpected invoice number %q", payload.Data.Invoice.Number)
	}
}

func TestCreateInvoiceHandlerRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t, &stubInvoiceService{}, &stubPaymentService{})

	rec := perform(srv, http.MethodPost, "/api/non-user-invoices", "{not json", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateInvoiceHandlerMapsValidationError(t *testing.T) {
	invoices := &stubInvoiceService{createErr: invoicedomain.ErrMissingLineItems}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	rec := perform(srv, http.MethodPost, "/api/non-user-invoices", `{"customer_name":"x","email":"x@example.com"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetInvoiceHandlerNotFound(t *testing.T) {
	invoices := &stubInvoiceService{getErr: invoicedomain.ErrInvoiceNotFound}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	rec := perform(srv, http.MethodGet, "/api/non-user-invoices/999", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAbortWithErrorLogsThroughServerLogger(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	invoices := &stubInvoiceService{getErr: errors.New("boom")}
	srv := newTestServer(t, invoices, &stubPaymentService{})
	srv.log = zap.New(core)

	rec := perform(srv, http.MethodGet, "/api/non-user-invoices/1", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "an internal error occurred") {
		t.Fatalf("internal errors must not leak details: %s", rec.Body.String())
	}
	if got := len(logs.All()); got != 1 {
		t.Fatalf("expected one error log entry on the injected logger, got %d", got)
	}
}

func TestSendEmailHandlerConflictWhenPaid(t *testing.T) {
	invoices := &stubInvoiceService{sendErr: invoicedomain.ErrInvoiceAlreadyPaid}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	rec := perform(srv, http.MethodPost, "/api/non-user-invoices/1/send-email", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestUpdateStatusHandlerNormalizesInput(t *testing.T) {
	invoices := &stubInvoiceService{updateView: invoicedomain.InvoiceView{Status: invoicedomain.InvoiceStatusCancelled}}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	rec := perform(srv, http.MethodPatch, "/api/non-user-invoices/1/status", `{"status":" CANCELLED "}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if invoices.lastStatus != invoicedomain.InvoiceStatusCancelled {
		t.Fatalf("expected normalized status, got %q", invoices.lastStatus)
	}
}

func TestListInvoicesHandlerRejectsBadDate(t *testing.T) {
	srv := newTestServer(t, &stubInvoiceService{}, &stubPaymentService{})

	rec := perform(srv, http.MethodGet, "/api/non-user-invoices?date_from=yesterday", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStripeWebhookAlwaysAnswers200(t *testing.T) {
	payments := &stubPaymentService{err: invoicedomain.ErrInvoiceNotFound}
	srv := newTestServer(t, &stubInvoiceService{}, payments)

	rec := perform(srv, http.MethodPost, "/stripe/webhook", `{"id":"evt_1"}`, map[string]string{
		"Stripe-Signature": "t=1,v1=abc",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook must always answer 200, got %d", rec.Code)
	}

	var payload struct {
		Received bool `json:"received"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Received {
		t.Fatalf("rejected events must report received=false")
	}
	if payments.signature != "t=1,v1=abc" {
		t.Fatalf("signature header was not forwarded")
	}

	payments.err = nil
	rec = perform(srv, http.MethodPost, "/stripe/webhook", `{"id":"evt_2"}`, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Received {
		t.Fatalf("accepted events must report received=true")
	}
}

func TestPaymentSuccessPagePaid(t *testing.T) {
	invoices := &stubInvoiceService{
		confirmRes: invoicedomain.ConfirmResult{
			Outcome: invoicedomain.ConfirmOutcomePaid,
			Invoice: invoicedomain.InvoiceView{Number: "INV-123456789", Currency: "usd", Amount: 100},
		},
	}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	rec := perform(srv, http.MethodGet, "/non-user-invoices/1/payment-success?session_id=cs_1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if invoices.lastSession != "cs_1" {
		t.Fatalf("session id was not forwarded, got %q", invoices.lastSession)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Payment received") || !strings.Contains(body, "INV-123456789") {
		t.Fatalf("paid page missing expected content: %s", body)
	}
	if strings.Contains(body, `http-equiv="refresh"`) {
		t.Fatalf("paid page must not refresh")
	}
}

func TestPaymentSuccessPageProcessingRefreshes(t *testing.T) {
	invoices := &stubInvoiceService{
		confirmRes: invoicedomain.ConfirmResult{
			Outcome: invoicedomain.ConfirmOutcomeProcessing,
			Invoice: invoicedomain.InvoiceView{Number: "INV-123456789", Currency: "usd", Amount: 100},
		},
	}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	rec := perform(srv, http.MethodGet, "/non-user-invoices/1/payment-success", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http-equiv="refresh"`) {
		t.Fatalf("processing page should refresh itself")
	}
}

func TestPaymentSuccessPageUnknownInvoice(t *testing.T) {
	invoices := &stubInvoiceService{confirmErr: invoicedomain.ErrInvoiceNotFound}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	rec := perform(srv, http.MethodGet, "/non-user-invoices/999/payment-success", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPaymentCancelPageNeverConfirms(t *testing.T) {
	invoices := &stubInvoiceService{
		getView: invoicedomain.InvoiceView{Number: "INV-123456789", Currency: "usd", Amount: 100},
	}
	srv := newTestServer(t, invoices, &stubPaymentService{})

	rec := perform(srv, http.MethodGet, "/non-user-invoices/1/payment-cancel", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if invoices.confirmed != 0 {
		t.Fatalf("cancel page must never reconcile payment state")
	}
	if !strings.Contains(rec.Body.String(), "Payment cancelled") {
		t.Fatalf("cancel page missing expected content")
	}
}

func TestPublicRateLimit(t *testing.T) {
	invoices := &stubInvoiceService{
		getView: invoicedomain.InvoiceView{Number: "INV-123456789"},
	}
	srv := newTestServer(t, invoices, &stubPaymentService{})
	srv.publicLimiter = newRateLimiter(2, time.Minute)

	for i := 0; i < 2; i++ {
		rec := perform(srv, http.MethodGet, "/non-user-invoices/1/payment-cancel", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := perform(srv, http.MethodGet, "/non-user-invoices/1/payment-cancel", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the window fills, got %d", rec.Code)
	}
}
