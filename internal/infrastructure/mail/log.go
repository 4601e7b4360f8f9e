package mail

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/pkg/logger"
)

// LogNotifier writes account links to the log instead of sending mail.
// Selected with MAIL_DRIVER=log for local development.
type LogNotifier struct {
	links Links
	log   zerolog.Logger
}

func NewLogNotifier(links Links, log zerolog.Logger) *LogNotifier {
	return &LogNotifier{links: links, log: log}
}

func (n *LogNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	n.log.Info().Str("to", logger.MaskEmail(email)).Str("url", n.links.VerifyEmail(token)).Msg("verification email")
	return nil
}

func (n *LogNotifier) SendPasswordResetEmail(_ context.Context, email, token string) error {
	n.log.Info().Str("to", logger.MaskEmail(email)).Str("url", n.links.ResetPassword(token)).Msg("password reset email")
	return nil
}
