// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danielhkuo/tallyup/store"
)

// EnsureIndexes creates all indexes the application relies on.
// Safe to call multiple times - CreateMany is idempotent for
// identical index specs.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	polls := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "public", Value: 1}, {Key: "active", Value: 1}},
		},
	}
	if _, err := database.Collection(store.CollPolls).Indexes().CreateMany(ctx, polls); err != nil {
		return fmt.Errorf("failed to create poll indexes: %w", err)
	}

	votes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pollId", Value: 1}, {Key: "createdAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "voterIp", Value: 1}, {Key: "voterId", Value: 1}},
		},
	}
	if _, err := database.Collection(store.CollVotes).Indexes().CreateMany(ctx, votes); err != nil {
		return fmt.Errorf("failed to create vote indexes: %w", err)
	}

	users := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := database.Collection(store.CollUsers).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}
