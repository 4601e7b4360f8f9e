package ports

import "context"

// Notifier delivers account emails. Implementations return an error wrapping
// domain.ErrEmailSendFailed when delivery fails.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// MailKind selects the Notifier method a queued job is delivered with.
type MailKind string

const (
	MailVerification  MailKind = "verification"
	MailPasswordReset MailKind = "password_reset"
)

// MailJob is a fire-and-forget email handed to a MailQueue.
type MailJob struct {
	Kind  MailKind
	To    string
	Token string
}

// MailQueue accepts jobs for background delivery. Enqueue reports false when
// the job was dropped.
type MailQueue interface {
	Enqueue(job MailJob) bool
}
