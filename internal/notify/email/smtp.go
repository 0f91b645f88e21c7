package email

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"github.com/smallbiznis/paylink/internal/config"
	notifydomain "github.com/smallbiznis/paylink/internal/notify/domain"
	"go.uber.org/zap"
)

// SMTPMailer delivers mail over authenticated SMTP.
type SMTPMailer struct {
	log  *zap.Logger
	cfg  config.Config
	opts []gomail.Option
}

// NewSMTPMailer builds the mailer from SMTP settings. The client itself is
// created per send; go-mail clients are single-delivery by design here and a
// failed dial must not poison later sends.
func NewSMTPMailer(log *zap.Logger, cfg config.Config) (*SMTPMailer, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("smtp host is required")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	return &SMTPMailer{
		log:  log.Named("notify.smtp"),
		cfg:  cfg,
		opts: opts,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, email notifydomain.Email) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("%w: %v", notifydomain.ErrSendFailed, err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("%w: %v", notifydomain.ErrSendFailed, err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, email.Text)
	if email.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, email.HTML)
	}

	client, err := gomail.NewClient(m.cfg.SMTPHost, m.opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", notifydomain.ErrSendFailed, err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		m.log.Warn("smtp delivery failed", zap.String("to", email.To), zap.Error(err))
		return fmt.Errorf("%w: %v", notifydomain.ErrSendFailed, err)
	}

	m.log.Debug("email delivered", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}
