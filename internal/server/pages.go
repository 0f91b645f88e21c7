package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	"go.uber.org/zap"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  {{if .Refresh}}<meta http-equiv="refresh" content="4">{{end}}
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; background: #f4f5f7; margin: 0; }
    .card { max-width: 480px; margin: 10vh auto; background: #fff; border-radius: 8px;
            padding: 32px; box-shadow: 0 1px 4px rgba(0,0,0,.12); text-align: center; }
    .icon { font-size: 48px; }
    h1 { font-size: 22px; margin: 12px 0 8px; color: #1f2933; }
    p { color: #52606d; margin: 6px 0; }
    .number { font-weight: bold; color: #1f2933; }
  </style>
</head>
<body>
  <div class="card">
    <div class="icon">{{.Icon}}</div>
    <h1>{{.Title}}</h1>
    {{if .Number}}<p class="number">Invoice {{.Number}}</p>{{end}}
    {{if .Amount}}<p>{{.Currency}} {{.Amount}}</p>{{end}}
    <p>{{.Message}}</p>
  </div>
</body>
</html>`))

type pageData struct {
	Title    string
	Icon     string
	Message  string
	Number   string
	Currency string
	Amount   string
	Refresh  bool
}

// PaymentSuccessPage handles the checkout success redirect. The redirect
// itself proves nothing, so the invoice is reconciled against the gateway
// before the page claims payment. While confirmation is pending the page
// refreshes itself.
func (s *Server) PaymentSuccessPage(c *gin.Context) {
	result, err := s.invoiceSvc.ConfirmPayment(c.Request.Context(), c.Param("id"), c.Query("session_id"))
	if err != nil {
		if errors.Is(err, invoicedomain.ErrInvoiceNotFound) || errors.Is(err, invoicedomain.ErrInvalidInvoiceID) {
			s.renderPage(c, http.StatusNotFound, pageData{
				Title:   "Invoice not found",
				Icon:    "❓",
				Message: "We could not find this invoice. Check the link in your email.",
			})
			return
		}
		s.log.Error("payment confirmation failed", zap.String("invoice_id", c.Param("id")), zap.Error(err))
		s.renderPage(c, http.StatusInternalServerError, pageData{
			Title:   "Something went wrong",
			Icon:    "⚠️",
			Message: "We could not confirm your payment right now. Please try the link again shortly.",
		})
		return
	}

	invoice := result.Invoice
	if result.Outcome == invoicedomain.ConfirmOutcomePaid {
		s.renderPage(c, http.StatusOK, pageData{
			Title:    "Payment received",
			Icon:     "✅",
			Message:  "Thank you. A receipt is on its way to your inbox.",
			Number:   invoice.Number,
			Currency: strings.ToUpper(invoice.Currency),
			Amount:   formatPageAmount(invoice.Amount),
		})
		return
	}

	s.renderPage(c, http.StatusOK, pageData{
		Title:    "Confirming your payment",
		Icon:     "⏳",
		Message:  "Your payment is being confirmed. This page refreshes automatically.",
		Number:   invoice.Number,
		Currency: strings.ToUpper(invoice.Currency),
		Amount:   formatPageAmount(invoice.Amount),
		Refresh:  true,
	})
}

// PaymentCancelPage renders the checkout cancel redirect. Cancelling never
// changes invoice state; the payment link in the email stays valid.
func (s *Server) PaymentCancelPage(c *gin.Context) {
	view, err := s.invoiceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderPage(c, http.StatusNotFound, pageData{
			Title:   "Invoice not found",
			Icon:    "❓",
			Message: "We could not find this invoice. Check the link in your email.",
		})
		return
	}

	s.renderPage(c, http.StatusOK, pageData{
		Title:    "Payment cancelled",
		Icon:     "↩️",
		Message:  "No charge was made. You can pay any time using the link in your email.",
		Number:   view.Number,
		Currency: strings.ToUpper(view.Currency),
		Amount:   formatPageAmount(view.Amount),
	})
}

func formatPageAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func (s *Server) renderPage(c *gin.Context, status int, data pageData) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(c.Writer, data); err != nil {
		s.log.Error("page render failed", zap.Error(err))
	}
}
