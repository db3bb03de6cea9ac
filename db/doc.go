// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles MongoDB index creation.

# Index Creation

EnsureIndexes creates all indexes the application relies on:

	if err := db.EnsureIndexes(ctx, client.Database(cfg.MongoDatabase)); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - CreateMany is idempotent for identical
index specs.

# Indexes

	polls: slug (unique), (public, active)
	votes: (pollId, createdAt), (voterIp, voterId)
	users: email (unique)

The unique slug index backs lookup by share URL, and the unique email
index enforces one account per address at the database level. The vote
indexes serve tally reads and the anonymous vote quota check.
*/
package db
