package service

import (
	"context"
	"errors"

	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Verifier paymentdomain.WebhookVerifier
	Invoices invoicedomain.Service
}

type Service struct {
	log      *zap.Logger
	verifier paymentdomain.WebhookVerifier
	invoices invoicedomain.Service
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:      p.Log.Named("payment.service"),
		verifier: p.Verifier,
		invoices: p.Invoices,
	}
}

// IngestWebhook verifies a gateway delivery and routes it to the invoice
// lifecycle. Replays and unknown references are absorbed here so the gateway
// never sees a retryable failure for something already settled.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.verifier.VerifyAndParse(ctx, payload, signatureHeader)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}

	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		return s.applySucceeded(ctx, event)
	case paymentdomain.EventTypePaymentFailed:
		s.log.Warn("payment failed",
			zap.String("event_id", event.ProviderEventID),
			zap.String("payment_intent_id", event.PaymentIntentID),
			zap.String("invoice_id", event.InvoiceID),
			zap.String("failure", event.FailureMessage),
		)
		return nil
	}
	return nil
}

func (s *Service) applySucceeded(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	won, err := s.invoices.ApplyPaymentSucceeded(ctx, event.InvoiceID, event.SessionID, event.PaymentIntentID)
	if err != nil {
		// An event that references nothing we billed is logged and dropped;
		// returning an error would only make the gateway retry forever.
		if errors.Is(err, invoicedomain.ErrInvoiceNotFound) || errors.Is(err, invoicedomain.ErrInvalidInvoiceID) {
			s.log.Warn("payment event references unknown invoice",
				zap.String("event_id", event.ProviderEventID),
				zap.String("invoice_id", event.InvoiceID),
				zap.String("payment_intent_id", event.PaymentIntentID),
			)
			return nil
		}
		return err
	}

	if !won {
		s.log.Info("payment event replayed for settled invoice",
			zap.String("event_id", event.ProviderEventID),
			zap.String("invoice_id", event.InvoiceID),
		)
	}
	return nil
}
