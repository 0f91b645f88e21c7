package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	notifydomain "github.com/smallbiznis/paylink/internal/notify/domain"
	"go.uber.org/zap"
)

var paymentLinkTmpl = template.Must(template.New("payment_link").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 4px;">Invoice {{.Number}}</h2>
  <p>Hi {{.CustomerName}},</p>
  <p>You have an invoice of <strong>{{.Currency}} {{.Amount}}</strong>{{if .DueDate}} due on {{.DueDate}}{{end}}.</p>
  <table style="width: 100%; border-collapse: collapse; margin: 16px 0;">
    <tr style="border-bottom: 1px solid #d2d6dc; text-align: left;">
      <th style="padding: 8px 4px;">Description</th>
      <th style="padding: 8px 4px; text-align: right;">Qty</th>
      <th style="padding: 8px 4px; text-align: right;">Amount</th>
    </tr>
    {{range .Items}}
    <tr style="border-bottom: 1px solid #eceff1;">
      <td style="padding: 8px 4px;">{{.Description}}</td>
      <td style="padding: 8px 4px; text-align: right;">{{.Quantity}}</td>
      <td style="padding: 8px 4px; text-align: right;">{{.Amount}}</td>
    </tr>
    {{end}}
  </table>
  <p style="text-align: center; margin: 28px 0;">
    <a href="{{.PaymentLink}}" style="background: #1d4ed8; color: #ffffff; padding: 12px 28px; border-radius: 6px; text-decoration: none;">Pay invoice</a>
  </p>
  <p style="color: #6b7280; font-size: 13px;">If the button does not work, open this link:<br>{{.PaymentLink}}</p>
</body>
</html>`))

var receiptTmpl = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 4px;">Payment received</h2>
  <p>Hi {{.CustomerName}},</p>
  <p>We received your payment of <strong>{{.Currency}} {{.Amount}}</strong> for invoice <strong>{{.Number}}</strong> on {{.PaidAt}}.</p>
  <p>No further action is needed. Thank you.</p>
</body>
</html>`))

type emailLineItem struct {
	Description string
	Quantity    int64
	Amount      string
}

type paymentLinkEmailData struct {
	Number       string
	CustomerName string
	Currency     string
	Amount       string
	DueDate      string
	Items        []emailLineItem
	PaymentLink  string
}

func (s *Service) sendPaymentLinkEmail(ctx context.Context, invoice *invoicedomain.Invoice, paymentLink string) error {
	data := paymentLinkEmailData{
		Number:       invoice.Number,
		CustomerName: invoice.CustomerName,
		Currency:     strings.ToUpper(invoice.Currency),
		Amount:       formatAmount(invoice.AmountTotal),
		PaymentLink:  paymentLink,
	}
	if invoice.DueDate != nil {
		data.DueDate = invoice.DueDate.Format("January 2, 2006")
	}
	for _, item := range invoice.Items {
		data.Items = append(data.Items, emailLineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			Amount:      formatAmount(item.TotalAmount),
		})
	}

	var buf bytes.Buffer
	if err := paymentLinkTmpl.Execute(&buf, data); err != nil {
		return err
	}

	return s.mailer.Send(ctx, notifydomain.Email{
		To:      invoice.Email,
		Subject: fmt.Sprintf("Invoice %s - %s %s due", invoice.Number, data.Currency, data.Amount),
		HTML:    buf.String(),
		Text: fmt.Sprintf("Invoice %s for %s %s. Pay online: %s",
			invoice.Number, data.Currency, data.Amount, paymentLink),
	})
}

// sendPaidReceipt is best effort; the invoice is already paid and a lost
// receipt must not surface as a reconciliation failure.
func (s *Service) sendPaidReceipt(ctx context.Context, invoice *invoicedomain.Invoice, paidAt time.Time) {
	data := struct {
		Number       string
		CustomerName string
		Currency     string
		Amount       string
		PaidAt       string
	}{
		Number:       invoice.Number,
		CustomerName: invoice.CustomerName,
		Currency:     strings.ToUpper(invoice.Currency),
		Amount:       formatAmount(invoice.AmountTotal),
		PaidAt:       paidAt.Format("January 2, 2006"),
	}

	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, data); err != nil {
		s.log.Warn("receipt template failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
		return
	}

	err := s.mailer.Send(ctx, notifydomain.Email{
		To:      invoice.Email,
		Subject: fmt.Sprintf("Payment received for invoice %s", invoice.Number),
		HTML:    buf.String(),
		Text: fmt.Sprintf("We received your payment of %s %s for invoice %s.",
			data.Currency, data.Amount, invoice.Number),
	})
	if err != nil {
		s.log.Warn("receipt email failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
	}
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%.2f", invoicedomain.MajorUnits(minor))
}
