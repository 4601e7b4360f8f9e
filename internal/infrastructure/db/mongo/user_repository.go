package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scoutme/scoutme-api/internal/core/domain"
)

const collectionUsers = "users"

type UserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(collectionUsers), now: time.Now}
}

// mongoUser mirrors domain.User. Token fields are unset rather than stored as
// null so the partial unique indexes only cover live tokens.
type mongoUser struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Email         string             `bson:"email"`
	PasswordHash  string             `bson:"password_hash"`
	UserType      string             `bson:"user_type"`
	EmailVerified bool               `bson:"email_verified"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`

	VerificationToken        *string    `bson:"verification_token,omitempty"`
	VerificationTokenExpires *time.Time `bson:"verification_token_expires,omitempty"`
	VerificationEmailCount   int        `bson:"verification_email_count"`
	LastVerificationEmail    *time.Time `bson:"last_verification_email_sent,omitempty"`

	ResetToken        *string    `bson:"reset_token,omitempty"`
	ResetTokenExpires *time.Time `bson:"reset_token_expires,omitempty"`
	ResetRequestCount int        `bson:"reset_request_count"`
	LastResetRequest  *time.Time `bson:"last_reset_request,omitempty"`
}

func toMongoUser(u *domain.User) mongoUser {
	return mongoUser{
		Email:                    u.Email,
		PasswordHash:             u.PasswordHash,
		UserType:                 string(u.UserType),
		EmailVerified:            u.EmailVerified,
		CreatedAt:                u.CreatedAt,
		UpdatedAt:                u.UpdatedAt,
		VerificationToken:        u.VerificationToken,
		VerificationTokenExpires: u.VerificationTokenExpires,
		VerificationEmailCount:   u.VerificationEmailCount,
		LastVerificationEmail:    u.LastVerificationEmail,
		ResetToken:               u.ResetToken,
		ResetTokenExpires:        u.ResetTokenExpires,
		ResetRequestCount:        u.ResetRequestCount,
		LastResetRequest:         u.LastResetRequest,
	}
}

func (mu mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:                       mu.ID.Hex(),
		Email:                    mu.Email,
		PasswordHash:             mu.PasswordHash,
		UserType:                 domain.UserType(mu.UserType),
		EmailVerified:            mu.EmailVerified,
		CreatedAt:                mu.CreatedAt.UTC(),
		UpdatedAt:                mu.UpdatedAt.UTC(),
		VerificationToken:        mu.VerificationToken,
		VerificationTokenExpires: mu.VerificationTokenExpires,
		VerificationEmailCount:   mu.VerificationEmailCount,
		LastVerificationEmail:    mu.LastVerificationEmail,
		ResetToken:               mu.ResetToken,
		ResetTokenExpires:        mu.ResetTokenExpires,
		ResetRequestCount:        mu.ResetRequestCount,
		LastResetRequest:         mu.LastResetRequest,
	}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoUser(user)
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"verification_token": token})
}

func (r *UserRepository) FindByResetToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"reset_token": token})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, nil, bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": r.now().UTC()},
		"$unset": bson.M{"verification_token": "", "verification_token_expires": ""},
	}, domain.ErrUserNotFound)
}

func (r *UserRepository) IssueVerificationToken(ctx context.Context, id string, issue domain.TokenIssue) error {
	return r.updateOne(ctx, id, bson.M{"verification_email_count": issue.PrevCount}, bson.M{
		"$set": bson.M{
			"verification_token":           issue.Token,
			"verification_token_expires":   issue.ExpiresAt,
			"verification_email_count":     issue.Window.Count,
			"last_verification_email_sent": issue.Window.LastAt,
			"updated_at":                   r.now().UTC(),
		},
	}, domain.ErrConcurrentUpdate)
}

func (r *UserRepository) IssueResetToken(ctx context.Context, id string, issue domain.TokenIssue) error {
	return r.updateOne(ctx, id, bson.M{"reset_request_count": issue.PrevCount}, bson.M{
		"$set": bson.M{
			"reset_token":         issue.Token,
			"reset_token_expires": issue.ExpiresAt,
			"reset_request_count": issue.Window.Count,
			"last_reset_request":  issue.Window.LastAt,
			"updated_at":          r.now().UTC(),
		},
	}, domain.ErrConcurrentUpdate)
}

func (r *UserRepository) ResetPassword(ctx context.Context, id, token, passwordHash string) error {
	return r.updateOne(ctx, id, bson.M{"reset_token": token}, bson.M{
		"$set": bson.M{
			"password_hash":       passwordHash,
			"reset_request_count": 0,
			"updated_at":          r.now().UTC(),
		},
		"$unset": bson.M{"reset_token": "", "reset_token_expires": "", "last_reset_request": ""},
	}, domain.ErrInvalidResetToken)
}

// updateOne applies update to the user with id when guard also matches and
// returns onMiss when no document matched.
func (r *UserRepository) updateOne(ctx context.Context, id string, guard, update bson.M, onMiss error) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": oid}
	for k, v := range guard {
		filter[k] = v
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return onMiss
	}
	return nil
}

// EnsureIndexes creates the unique indexes backing the lookup keys. Token
// indexes are partial so any number of users may have no live token.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	liveToken := func(field string) *options.IndexOptions {
		return options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{field: bson.M{"$type": "string"}})
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "verification_token", Value: 1}}, Options: liveToken("verification_token")},
		{Keys: bson.D{{Key: "reset_token", Value: 1}}, Options: liveToken("reset_token")},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
