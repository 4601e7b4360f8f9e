package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoutme/scoutme-api/internal/core/domain"
)

type userModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email         string    `gorm:"uniqueIndex;not null"`
	PasswordHash  string    `gorm:"not null"`
	UserType      string    `gorm:"type:varchar(16);not null"`
	EmailVerified bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	VerificationToken        *string `gorm:"uniqueIndex"`
	VerificationTokenExpires *time.Time
	VerificationEmailCount   int `gorm:"not null;default:0"`
	LastVerificationEmail    *time.Time

	ResetToken        *string `gorm:"uniqueIndex"`
	ResetTokenExpires *time.Time
	ResetRequestCount int `gorm:"not null;default:0"`
	LastResetRequest  *time.Time
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toDomain() *domain.User {
	return &domain.User{
		ID:                       m.ID.String(),
		Email:                    m.Email,
		PasswordHash:             m.PasswordHash,
		UserType:                 domain.UserType(m.UserType),
		EmailVerified:            m.EmailVerified,
		CreatedAt:                m.CreatedAt.UTC(),
		UpdatedAt:                m.UpdatedAt.UTC(),
		VerificationToken:        m.VerificationToken,
		VerificationTokenExpires: m.VerificationTokenExpires,
		VerificationEmailCount:   m.VerificationEmailCount,
		LastVerificationEmail:    m.LastVerificationEmail,
		ResetToken:               m.ResetToken,
		ResetTokenExpires:        m.ResetTokenExpires,
		ResetRequestCount:        m.ResetRequestCount,
		LastResetRequest:         m.LastResetRequest,
	}
}

// UserRepository implements ports.UserRepository on Postgres via gorm.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	m := userModel{
		ID:                       uuid.New(),
		Email:                    user.Email,
		PasswordHash:             user.PasswordHash,
		UserType:                 string(user.UserType),
		EmailVerified:            user.EmailVerified,
		CreatedAt:                user.CreatedAt,
		UpdatedAt:                user.UpdatedAt,
		VerificationToken:        user.VerificationToken,
		VerificationTokenExpires: user.VerificationTokenExpires,
		VerificationEmailCount:   user.VerificationEmailCount,
		LastVerificationEmail:    user.LastVerificationEmail,
	}

	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrEmailDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return m.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.first(ctx, "id = ?", uid)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	return r.first(ctx, "verification_token = ?", token)
}

func (r *UserRepository) FindByResetToken(ctx context.Context, token string) (*domain.User, error) {
	return r.first(ctx, "reset_token = ?", token)
}

func (r *UserRepository) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return m.toDomain(), nil
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.update(ctx, id, "", nil, map[string]any{
		"email_verified":             true,
		"verification_token":         nil,
		"verification_token_expires": nil,
	}, domain.ErrUserNotFound)
}

func (r *UserRepository) IssueVerificationToken(ctx context.Context, id string, issue domain.TokenIssue) error {
	return r.update(ctx, id, "verification_email_count = ?", issue.PrevCount, map[string]any{
		"verification_token":         issue.Token,
		"verification_token_expires": issue.ExpiresAt,
		"verification_email_count":   issue.Window.Count,
		"last_verification_email":    issue.Window.LastAt,
	}, domain.ErrConcurrentUpdate)
}

func (r *UserRepository) IssueResetToken(ctx context.Context, id string, issue domain.TokenIssue) error {
	return r.update(ctx, id, "reset_request_count = ?", issue.PrevCount, map[string]any{
		"reset_token":         issue.Token,
		"reset_token_expires": issue.ExpiresAt,
		"reset_request_count": issue.Window.Count,
		"last_reset_request":  issue.Window.LastAt,
	}, domain.ErrConcurrentUpdate)
}

func (r *UserRepository) ResetPassword(ctx context.Context, id, token, passwordHash string) error {
	return r.update(ctx, id, "reset_token = ?", token, map[string]any{
		"password_hash":       passwordHash,
		"reset_token":         nil,
		"reset_token_expires": nil,
		"reset_request_count": 0,
		"last_reset_request":  nil,
	}, domain.ErrInvalidResetToken)
}

// update writes fields to the row with id, additionally filtered by guard when
// it is non-empty, and returns onMiss when no row matched.
func (r *UserRepository) update(ctx context.Context, id, guard string, guardArg any, fields map[string]any, onMiss error) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	q := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", uid)
	if guard != "" {
		q = q.Where(guard, guardArg)
	}

	res := q.Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return onMiss
	}
	return nil
}
