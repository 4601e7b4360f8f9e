// Package memory is a process-local user store used by tests and by
// STORE_DRIVER=memory for local development. It honours the same uniqueness
// and conditional-update rules as the database-backed stores.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scoutme/scoutme-api/internal/core/domain"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User), now: time.Now}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	c.VerificationToken = cloneString(u.VerificationToken)
	c.VerificationTokenExpires = cloneTime(u.VerificationTokenExpires)
	c.LastVerificationEmail = cloneTime(u.LastVerificationEmail)
	c.ResetToken = cloneString(u.ResetToken)
	c.ResetTokenExpires = cloneTime(u.ResetTokenExpires)
	c.LastResetRequest = cloneTime(u.LastResetRequest)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrEmailDuplicate
		}
	}

	c := cloneUser(user)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.users[c.ID] = c
	return cloneUser(c), nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool { return u.Email == email })
}

func (r *UserRepository) FindByVerificationToken(_ context.Context, token string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == token
	})
}

func (r *UserRepository) FindByResetToken(_ context.Context, token string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool {
		return u.ResetToken != nil && *u.ResetToken == token
	})
}

func (r *UserRepository) findBy(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) MarkEmailVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.EmailVerified = true
	u.VerificationToken = nil
	u.VerificationTokenExpires = nil
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *UserRepository) IssueVerificationToken(_ context.Context, id string, issue domain.TokenIssue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.VerificationEmailCount != issue.PrevCount {
		return domain.ErrConcurrentUpdate
	}
	token, expires := issue.Token, issue.ExpiresAt
	u.VerificationToken = &token
	u.VerificationTokenExpires = &expires
	u.VerificationEmailCount = issue.Window.Count
	u.LastVerificationEmail = cloneTime(issue.Window.LastAt)
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *UserRepository) IssueResetToken(_ context.Context, id string, issue domain.TokenIssue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.ResetRequestCount != issue.PrevCount {
		return domain.ErrConcurrentUpdate
	}
	token, expires := issue.Token, issue.ExpiresAt
	u.ResetToken = &token
	u.ResetTokenExpires = &expires
	u.ResetRequestCount = issue.Window.Count
	u.LastResetRequest = cloneTime(issue.Window.LastAt)
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *UserRepository) ResetPassword(_ context.Context, id, token, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.ResetToken == nil || *u.ResetToken != token {
		return domain.ErrInvalidResetToken
	}
	u.PasswordHash = passwordHash
	u.ResetToken = nil
	u.ResetTokenExpires = nil
	u.ResetRequestCount = 0
	u.LastResetRequest = nil
	u.UpdatedAt = r.now().UTC()
	return nil
}

// Name and Ping satisfy the readiness checker; the in-memory store is always up.
func (r *UserRepository) Name() string { return "memory" }

func (r *UserRepository) Ping(context.Context) error { return nil }
