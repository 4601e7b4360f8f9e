package mail

import (
	"net/url"
	"strings"
)

// Links builds the frontend URLs embedded in account emails.
type Links struct {
	base string
}

func NewLinks(frontendBase string) Links {
	return Links{base: strings.TrimRight(frontendBase, "/")}
}

// VerifyEmail returns {base}/auth/verify-email?token={token}.
func (l Links) VerifyEmail(token string) string {
	return l.base + "/auth/verify-email?token=" + url.QueryEscape(token)
}

// ResetPassword returns {base}/auth/reset-password?token={token}.
func (l Links) ResetPassword(token string) string {
	return l.base + "/auth/reset-password?token=" + url.QueryEscape(token)
}
