package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/paylink/internal/config"
	notifydomain "github.com/smallbiznis/paylink/internal/notify/domain"
	"go.uber.org/zap"
)

// AdminNotifier fans an operational notification out to the configured admin
// addresses. Delivery failures are logged per recipient and never propagate;
// the notifier always returns nil once the fan-out ran.
type AdminNotifier struct {
	log    *zap.Logger
	mailer notifydomain.Mailer
	emails []string
}

func NewAdminNotifier(log *zap.Logger, cfg config.Config, mailer notifydomain.Mailer) *AdminNotifier {
	return &AdminNotifier{
		log:    log.Named("notify.admin"),
		mailer: mailer,
		emails: cfg.AdminNotifyEmails,
	}
}

func (n *AdminNotifier) NotifyAdmins(ctx context.Context, notification notifydomain.Notification) error {
	if len(n.emails) == 0 {
		n.log.Debug("no admin recipients configured", zap.String("title", notification.Title))
		return nil
	}

	body := notification.Message
	if len(notification.Data) > 0 {
		var details strings.Builder
		details.WriteString(body)
		details.WriteString("\n\n")
		for key, value := range notification.Data {
			fmt.Fprintf(&details, "%s: %v\n", key, value)
		}
		body = details.String()
	}

	for _, to := range n.emails {
		err := n.mailer.Send(ctx, notifydomain.Email{
			To:      to,
			Subject: notification.Title,
			Text:    body,
		})
		if err != nil {
			n.log.Warn("admin notification delivery failed",
				zap.String("to", to),
				zap.String("title", notification.Title),
				zap.Error(err),
			)
		}
	}
	return nil
}
