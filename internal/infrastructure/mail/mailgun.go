package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/internal/core/domain"
)

const sendTimeout = 10 * time.Second

// MailgunConfig holds the Mailgun account and sender identity.
type MailgunConfig struct {
	Domain   string
	APIKey   string
	APIBase  string
	From     string
	FromName string
}

// sender is the subset of mailgun.Mailgun the notifier needs.
type sender interface {
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// MailgunNotifier implements ports.Notifier over the Mailgun HTTP API.
type MailgunNotifier struct {
	mg    sender
	from  string
	name  string
	links Links
	log   zerolog.Logger
}

func NewMailgunNotifier(cfg MailgunConfig, links Links, log zerolog.Logger) *MailgunNotifier {
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	return newMailgunNotifier(mg, cfg, links, log)
}

func newMailgunNotifier(mg sender, cfg MailgunConfig, links Links, log zerolog.Logger) *MailgunNotifier {
	name := cfg.FromName
	if name == "" {
		name = "ScoutMe"
	}
	return &MailgunNotifier{
		mg:    mg,
		from:  fmt.Sprintf("%s <%s>", name, cfg.From),
		name:  name,
		links: links,
		log:   log,
	}
}

func (n *MailgunNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	msg, err := verificationMessage(n.name, n.links.VerifyEmail(token))
	if err != nil {
		return fmt.Errorf("%w: render verification: %v", domain.ErrEmailSendFailed, err)
	}
	return n.send(ctx, email, msg, "verification")
}

func (n *MailgunNotifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	msg, err := resetMessage(n.name, n.links.ResetPassword(token))
	if err != nil {
		return fmt.Errorf("%w: render reset: %v", domain.ErrEmailSendFailed, err)
	}
	return n.send(ctx, email, msg, "password_reset")
}

func (n *MailgunNotifier) send(ctx context.Context, to string, msg message, kind string) error {
	m := mailgun.NewMessage(n.from, msg.Subject, msg.Text, to)
	m.SetHtml(msg.HTML)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, id, err := n.mg.Send(ctx, m)
	if err != nil {
		n.log.Error().Err(err).Str("kind", kind).Msg("mailgun send failed")
		return fmt.Errorf("%w: %v", domain.ErrEmailSendFailed, err)
	}

	n.log.Info().Str("kind", kind).Str("message_id", id).Msg("email sent")
	return nil
}
