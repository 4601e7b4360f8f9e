package domain

import "time"

const (
	MaxRequestsPerWindow = 3
	RequestWindowLength  = time.Hour
	// RetryAfterSeconds is the fixed hint returned with ErrRateLimitExceeded.
	RetryAfterSeconds = 3600
)

// RequestWindow is a lazily reset per-user counter.
type RequestWindow struct {
	Count  int
	LastAt *time.Time
}

// Admit applies the rolling-window policy for a new request at now and
// returns the window to persist if the request is allowed.
//
// A full window whose last request is older than RequestWindowLength is reset
// before counting; a full window still inside it is rejected.
func (w RequestWindow) Admit(now time.Time) (RequestWindow, error) {
	count := w.Count
	if count >= MaxRequestsPerWindow {
		if w.LastAt != nil && w.LastAt.After(now.Add(-RequestWindowLength)) {
			return w, ErrRateLimitExceeded
		}
		count = 0
	}

	at := now
	return RequestWindow{Count: count + 1, LastAt: &at}, nil
}

// RetryAfterError is a rate-limit rejection with a specific retry hint.
// It matches ErrRateLimitExceeded under errors.Is. Code, when set, replaces
// the default wire code.
type RetryAfterError struct {
	RetryAfter time.Duration
	Code       string
}

func (e *RetryAfterError) Error() string { return ErrRateLimitExceeded.Error() }

func (e *RetryAfterError) Unwrap() error { return ErrRateLimitExceeded }
