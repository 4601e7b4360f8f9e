package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	appName        = "scoutme-api"
	connectTimeout = 10 * time.Second
	// per-operation bound for repository calls
	defaultTimeout = 5 * time.Second
)

type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect dials the user store and pings the primary. Writes use majority
// acknowledgement so a conditional counter update is never rolled back after
// the caller has seen it succeed.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = connectTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetServerSelectionTimeout(timeout).
		SetWriteConcern(writeconcern.Majority())

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(cfg.Database), nil
}

type Checker struct {
	db *mongo.Database
}

func NewChecker(db *mongo.Database) *Checker {
	return &Checker{db: db}
}

func (c *Checker) Name() string { return "mongodb" }

// Ping runs a command against the configured database rather than the
// admin database, so a missing database grant also fails readiness.
func (c *Checker) Ping(ctx context.Context) error {
	return c.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}
