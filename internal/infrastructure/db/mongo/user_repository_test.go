package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/scoutme/scoutme-api/internal/core/domain"
)

func newMockT(t *testing.T) *mtest.T {
	t.Helper()
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func matched(n int32) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

// sentFilter returns the "q" document of the single update that was issued.
func sentFilter(mt *mtest.T) bson.Raw {
	mt.Helper()
	ev := mt.GetStartedEvent()
	if ev == nil || ev.CommandName != "update" {
		mt.Fatalf("expected an update command, got %v", ev)
	}
	return ev.Command.Lookup("updates").Array().Index(0).Value().Document().Lookup("q").Document()
}

func TestUserRepository_Create(t *testing.T) {
	mt := newMockT(t)

	mt.Run("assigns object id", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u, err := repo.Create(context.Background(), &domain.User{Email: "alice@example.com", UserType: domain.UserTypePlayer})
		if err != nil {
			mt.Fatalf("Create: %v", err)
		}
		if _, err := primitive.ObjectIDFromHex(u.ID); err != nil {
			mt.Fatalf("expected an ObjectID hex id, got %q", u.ID)
		}
	})

	mt.Run("duplicate key maps to duplicate email", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: scoutme.users index: email_1",
		}))

		_, err := repo.Create(context.Background(), &domain.User{Email: "alice@example.com"})
		if !errors.Is(err, domain.ErrEmailDuplicate) {
			mt.Fatalf("expected ErrEmailDuplicate, got %v", err)
		}
	})
}

func TestUserRepository_Find(t *testing.T) {
	mt := newMockT(t)
	ns := "scoutme.users"

	mt.Run("decodes document", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		oid := primitive.NewObjectID()
		expires := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "email", Value: "bob@example.com"},
			{Key: "user_type", Value: "recruiter"},
			{Key: "email_verified", Value: false},
			{Key: "verification_token", Value: "abc"},
			{Key: "verification_token_expires", Value: primitive.NewDateTimeFromTime(expires)},
			{Key: "verification_email_count", Value: int32(2)},
		}))

		u, err := repo.FindByVerificationToken(context.Background(), "abc")
		if err != nil {
			mt.Fatalf("FindByVerificationToken: %v", err)
		}
		if u.ID != oid.Hex() || u.UserType != domain.UserTypeRecruiter || u.VerificationEmailCount != 2 {
			mt.Fatalf("unexpected user: %+v", u)
		}
		if u.VerificationToken == nil || *u.VerificationToken != "abc" || !u.VerificationTokenExpires.Equal(expires) {
			mt.Fatalf("token fields not decoded: %+v", u)
		}
	})

	mt.Run("no document maps to not found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		if _, err := repo.FindByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("malformed id is not found without a round trip", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)

		if _, err := repo.FindByID(context.Background(), "not-an-object-id"); !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
		if ev := mt.GetStartedEvent(); ev != nil {
			mt.Fatalf("expected no command, got %s", ev.CommandName)
		}
	})
}

func TestUserRepository_IssueTokenGuardsCounter(t *testing.T) {
	mt := newMockT(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issue := domain.TokenIssue{
		Token:     "fresh",
		ExpiresAt: now.Add(domain.VerificationTokenTTL),
		PrevCount: 2,
		Window:    domain.RequestWindow{Count: 3, LastAt: &now},
	}

	mt.Run("matched", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(matched(1))

		if err := repo.IssueVerificationToken(context.Background(), primitive.NewObjectID().Hex(), issue); err != nil {
			mt.Fatalf("IssueVerificationToken: %v", err)
		}
		q := sentFilter(mt)
		if got := q.Lookup("verification_email_count").AsInt64(); got != 2 {
			mt.Fatalf("expected the filter to pin the previous count 2, got %d", got)
		}
	})

	mt.Run("verification miss is a concurrent update", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(matched(0))

		err := repo.IssueVerificationToken(context.Background(), primitive.NewObjectID().Hex(), issue)
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			mt.Fatalf("expected ErrConcurrentUpdate, got %v", err)
		}
	})

	mt.Run("reset miss is a concurrent update", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(matched(0))

		err := repo.IssueResetToken(context.Background(), primitive.NewObjectID().Hex(), issue)
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			mt.Fatalf("expected ErrConcurrentUpdate, got %v", err)
		}
		if got := sentFilter(mt).Lookup("reset_request_count").AsInt64(); got != 2 {
			mt.Fatalf("expected reset counter guard of 2, got %d", got)
		}
	})
}

func TestUserRepository_ResetPasswordGuardsToken(t *testing.T) {
	mt := newMockT(t)

	mt.Run("stale token", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(matched(0))

		err := repo.ResetPassword(context.Background(), primitive.NewObjectID().Hex(), "old-token", "hash")
		if !errors.Is(err, domain.ErrInvalidResetToken) {
			mt.Fatalf("expected ErrInvalidResetToken, got %v", err)
		}
		if got := sentFilter(mt).Lookup("reset_token").StringValue(); got != "old-token" {
			mt.Fatalf("expected the filter to pin the reset token, got %q", got)
		}
	})

	mt.Run("current token", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(matched(1))

		if err := repo.ResetPassword(context.Background(), primitive.NewObjectID().Hex(), "live", "hash"); err != nil {
			mt.Fatalf("ResetPassword: %v", err)
		}
	})
}

func TestUserRepository_MarkEmailVerified(t *testing.T) {
	mt := newMockT(t)

	mt.Run("unknown user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(matched(0))

		err := repo.MarkEmailVerified(context.Background(), primitive.NewObjectID().Hex())
		if !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("server error is wrapped", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 91, Message: "shutdown in progress"}))

		err := repo.MarkEmailVerified(context.Background(), primitive.NewObjectID().Hex())
		if err == nil || errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected a wrapped store error, got %v", err)
		}
	})
}

func TestUserRepository_EnsureIndexes(t *testing.T) {
	mt := newMockT(t)

	mt.Run("token indexes are partial", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		if err := repo.EnsureIndexes(context.Background()); err != nil {
			mt.Fatalf("EnsureIndexes: %v", err)
		}
		ev := mt.GetStartedEvent()
		if ev == nil || ev.CommandName != "createIndexes" {
			mt.Fatalf("expected createIndexes, got %v", ev)
		}
		indexes := ev.Command.Lookup("indexes").Array()
		values, _ := indexes.Values()
		if len(values) != 3 {
			mt.Fatalf("expected 3 indexes, got %d", len(values))
		}
		for _, v := range values {
			idx := v.Document()
			if !idx.Lookup("unique").Boolean() {
				mt.Errorf("index %s should be unique", idx.Lookup("name").StringValue())
			}
			if _, ok := idx.Lookup("key", "email").Int32OK(); ok {
				continue
			}
			if _, err := idx.LookupErr("partialFilterExpression"); err != nil {
				mt.Errorf("token index %s must be partial", idx.Lookup("name").StringValue())
			}
		}
	})
}
