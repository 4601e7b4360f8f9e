package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scoutme/scoutme-api/internal/core/domain"
	"github.com/scoutme/scoutme-api/internal/core/ports"
)

// AuthService implements the account lifecycle: register, verify email, login,
// refresh, resend verification, forgot and reset password.
type AuthService struct {
	repo     ports.UserRepository
	hasher   ports.PasswordHasher
	tokens   ports.TokenCodec
	opaque   ports.TokenGenerator
	notifier ports.Notifier
	queue    ports.MailQueue
	log      zerolog.Logger
	now      func() time.Time

	// decoy is hashed once at the configured cost and checked against when
	// no account matches, so unknown emails cost as much as wrong passwords.
	decoyOnce sync.Once
	decoy     string
}

// Deps groups the collaborators of AuthService.
type Deps struct {
	Repo     ports.UserRepository
	Hasher   ports.PasswordHasher
	Tokens   ports.TokenCodec
	Opaque   ports.TokenGenerator
	Notifier ports.Notifier
	Queue    ports.MailQueue
	Log      zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewAuthService(d Deps) *AuthService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		repo:     d.Repo,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		opaque:   d.Opaque,
		notifier: d.Notifier,
		queue:    d.Queue,
		log:      d.Log,
		now:      now,
	}
}

func (s *AuthService) decoyHash() string {
	s.decoyOnce.Do(func() {
		h, err := s.hasher.Hash("scoutme-login-decoy")
		if err != nil {
			s.log.Error().Err(err).Msg("decoy hash")
			return
		}
		s.decoy = h
	})
	return s.decoy
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if !in.UserType.Valid() {
		return nil, domain.ErrInvalidUserType
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailDuplicate
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	token, err := s.opaque.Generate()
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now().UTC()
	expires := now.Add(domain.VerificationTokenTTL)
	user, err := s.repo.Create(ctx, &domain.User{
		Email:                    email,
		PasswordHash:             hash,
		UserType:                 in.UserType,
		EmailVerified:            false,
		VerificationToken:        &token,
		VerificationTokenExpires: &expires,
		CreatedAt:                now,
		UpdatedAt:                now,
	})
	if err != nil {
		// The store's unique index catches a concurrent registration.
		if errors.Is(err, domain.ErrEmailDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	// Delivery failures are logged by the queue and never fail registration.
	if !s.queue.Enqueue(ports.MailJob{Kind: ports.MailVerification, To: user.Email, Token: token}) {
		s.log.Warn().Str("user_id", user.ID).Msg("verification email not queued")
	}

	s.log.Info().Str("user_id", user.ID).Str("user_type", string(user.UserType)).Msg("user registered")
	return &ports.RegisterResult{UserID: user.ID, Email: user.Email}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(password, s.decoyHash())
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, domain.ErrEmailNotVerified
	}

	access, err := s.tokens.SignAccess(accessClaims(user))
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	refresh, err := s.tokens.SignRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return &ports.LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         ports.ToPublicUser(user),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", err
		}
		return "", fmt.Errorf("refresh: %w", err)
	}

	access, err := s.tokens.SignAccess(accessClaims(user))
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	return access, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	user, err := s.repo.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidVerificationToken
		}
		return nil, fmt.Errorf("verify email: %w", err)
	}

	if user.EmailVerified {
		return nil, domain.ErrEmailAlreadyVerified
	}
	if domain.Expired(user.VerificationTokenExpires, s.now()) {
		return nil, domain.ErrVerificationTokenExpired
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}

	user.EmailVerified = true
	user.VerificationToken = nil
	user.VerificationTokenExpires = nil

	s.log.Info().Str("user_id", user.ID).Msg("email verified")
	return user, nil
}

// ResendVerification succeeds silently for unknown addresses.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("resend verification: %w", err)
	}

	if user.EmailVerified {
		return domain.ErrEmailAlreadyVerified
	}

	now := s.now().UTC()
	window, err := user.VerificationWindow().Admit(now)
	if err != nil {
		return err
	}

	token, err := s.opaque.Generate()
	if err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}

	issue := domain.TokenIssue{
		Token:     token,
		ExpiresAt: now.Add(domain.VerificationTokenTTL),
		PrevCount: user.VerificationEmailCount,
		Window:    window,
	}
	if err := s.repo.IssueVerificationToken(ctx, user.ID, issue); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		return fmt.Errorf("resend verification: %w", err)
	}

	return s.notifier.SendVerificationEmail(ctx, user.Email, token)
}

// ForgotPassword succeeds silently for unknown addresses.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("forgot password: %w", err)
	}

	now := s.now().UTC()
	window, err := user.ResetWindow().Admit(now)
	if err != nil {
		return err
	}

	token, err := s.opaque.Generate()
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	issue := domain.TokenIssue{
		Token:     token,
		ExpiresAt: now.Add(domain.ResetTokenTTL),
		PrevCount: user.ResetRequestCount,
		Window:    window,
	}
	if err := s.repo.IssueResetToken(ctx, user.ID, issue); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		return fmt.Errorf("forgot password: %w", err)
	}

	return s.notifier.SendPasswordResetEmail(ctx, user.Email, token)
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.repo.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidResetToken
		}
		return fmt.Errorf("reset password: %w", err)
	}

	if domain.Expired(user.ResetTokenExpires, s.now()) {
		return domain.ErrResetTokenExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	// Guarded on the token so two concurrent resets cannot both apply.
	if err := s.repo.ResetPassword(ctx, user.ID, token, hash); err != nil {
		if errors.Is(err, domain.ErrInvalidResetToken) {
			return err
		}
		return fmt.Errorf("reset password: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*ports.PublicUser, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pub := ports.ToPublicUser(user)
	return &pub, nil
}

func accessClaims(u *domain.User) ports.AccessClaims {
	return ports.AccessClaims{UserID: u.ID, Email: u.Email, UserType: u.UserType}
}
