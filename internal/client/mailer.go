// SMTP delivery of alert and incident notifications.
//
// Environment:
//   - SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD
//   - SMTP_FROM: sender address
//   - SMTP_TLS: mandatory | opportunistic | none

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/model"
	tmpl "github.com/slatrack/backend/internal/template"
	"github.com/wneessen/go-mail"
)

type Mailer struct {
	cfg    config.SMTPConfig
	dialer func(ctx context.Context, msg *mail.Msg) error
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	m := &Mailer{cfg: cfg}
	m.dialer = m.dialAndSend
	return m
}

func (m *Mailer) Name() string { return "email" }

func (m *Mailer) IsConfigured() bool {
	return m.cfg.IsConfigured()
}

// Send emails the notification to its recipients. A notification without
// recipients is a no-op.
func (m *Mailer) Send(ctx context.Context, n model.Notification) error {
	if len(n.Recipients) == 0 {
		return nil
	}
	if !m.IsConfigured() {
		return fmt.Errorf("smtp host or sender not configured")
	}
	msg, err := m.buildMessage(n)
	if err != nil {
		return err
	}
	return m.dialer(ctx, msg)
}

func (m *Mailer) buildMessage(n model.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(n.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(tmpl.EmailSubject(n))

	body, err := tmpl.EmailBody(n)
	if err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(m.cfg.TLS)),
		mail.WithTimeout(15 * time.Second),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	c, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func tlsPolicy(v string) mail.TLSPolicy {
	switch v {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}
