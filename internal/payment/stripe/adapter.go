package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/webhook"
	"go.uber.org/zap"
)

// Adapter implements the payment gateway contract on Stripe hosted Checkout.
type Adapter struct {
	log           *zap.Logger
	webhookSecret string
}

// New configures the Stripe SDK with the account secret key and returns the
// adapter. The webhook signing secret is distinct from the API key.
func New(log *zap.Logger, secretKey, webhookSecret string) (*Adapter, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripe.Key = secretKey

	return &Adapter{
		log:           log.Named("payment.stripe"),
		webhookSecret: strings.TrimSpace(webhookSecret),
	}, nil
}

func (a *Adapter) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	if name != "" {
		params.Name = stripe.String(name)
	}

	cus, err := customer.New(params)
	if err != nil {
		return "", wrapError(err)
	}
	return cus.ID, nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, req paymentdomain.CheckoutSessionRequest) (paymentdomain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}

	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(item.Currency)),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Description),
				},
			},
		})
	}

	// Metadata rides on both the session and the payment intent so webhook
	// events of either object carry the invoice reference.
	if len(req.Metadata) > 0 {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{}
		for key, value := range req.Metadata {
			params.AddMetadata(key, value)
			params.PaymentIntentData.AddMetadata(key, value)
		}
	}

	sess, err := session.New(params)
	if err != nil {
		return paymentdomain.CheckoutSession{}, wrapError(err)
	}
	return paymentdomain.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (a *Adapter) RetrieveSession(ctx context.Context, sessionID string) (paymentdomain.SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(sessionID, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return paymentdomain.SessionStatus{}, paymentdomain.ErrSessionNotFound
		}
		return paymentdomain.SessionStatus{}, wrapError(err)
	}

	status := paymentdomain.SessionStatus{
		Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if sess.PaymentIntent != nil {
		status.PaymentIntentID = sess.PaymentIntent.ID
	}
	return status, nil
}

// VerifyAndParse authenticates a webhook delivery against the signing secret
// and decodes the handled payment intent events.
func (a *Adapter) VerifyAndParse(ctx context.Context, payload []byte, signatureHeader string) (*paymentdomain.PaymentEvent, error) {
	if a.webhookSecret == "" || signatureHeader == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, a.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, paymentdomain.ErrInvalidSignature
	}

	switch string(event.Type) {
	case paymentdomain.EventTypePaymentSucceeded, paymentdomain.EventTypePaymentFailed:
	default:
		a.log.Debug("ignoring webhook event", zap.String("type", string(event.Type)))
		return nil, paymentdomain.ErrEventIgnored
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	parsed := &paymentdomain.PaymentEvent{
		ProviderEventID: event.ID,
		Type:            string(event.Type),
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        string(intent.Currency),
	}
	if intent.Metadata != nil {
		parsed.InvoiceID = intent.Metadata["invoice_id"]
	}
	if intent.LastPaymentError != nil {
		parsed.FailureMessage = intent.LastPaymentError.Msg
	}
	return parsed, nil
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if stripeErr, ok := err.(*stripe.Error); ok {
		return fmt.Errorf("%w: %s (%s)", paymentdomain.ErrGateway, stripeErr.Msg, stripeErr.Code)
	}
	return fmt.Errorf("%w: %v", paymentdomain.ErrGateway, err)
}
