package notify

import (
	"github.com/smallbiznis/paylink/internal/notify/email"
	notifydomain "github.com/smallbiznis/paylink/internal/notify/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("notify",
	fx.Provide(
		email.NewSMTPMailer,
		func(m *email.SMTPMailer) notifydomain.Mailer { return m },
		NewAdminNotifier,
		func(n *AdminNotifier) notifydomain.Notifier { return n },
	),
)
