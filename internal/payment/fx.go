package payment

import (
	"github.com/smallbiznis/paylink/internal/config"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"github.com/smallbiznis/paylink/internal/payment/service"
	stripeadapter "github.com/smallbiznis/paylink/internal/payment/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideAdapter(log *zap.Logger, cfg config.Config) (*stripeadapter.Adapter, error) {
	return stripeadapter.New(log, cfg.StripeSecretKey, cfg.StripeWebhookSecret)
}

var Module = fx.Module("payment.service",
	fx.Provide(
		provideAdapter,
		func(a *stripeadapter.Adapter) paymentdomain.Gateway { return a },
		func(a *stripeadapter.Adapter) paymentdomain.WebhookVerifier { return a },
		service.NewService,
	),
)
