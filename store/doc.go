// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store provides persistence for polls, votes, and users.

# Interfaces

Handlers depend on three small interfaces bundled into a Store:

	st := store.NewMongoStore(database)
	st.Polls.GetByID(ctx, id)
	st.Votes.HasVoted(ctx, pollID, voterID, ip)
	st.Users.RecordVote(ctx, userID)

Two implementations exist: the MongoDB store used in production and an
in-memory store used by tests. The memory store mirrors Mongo semantics
exactly - unique indexes surface as ErrDuplicate, conditional updates
as ErrNotFound - so handler tests exercise the same error paths.

# Atomic Updates

The operations that race under concurrent voting are single conditional
updates rather than read-modify-write sequences:

  - IncrementOptionCount matches poll and embedded option in one
    filtered $inc, so two concurrent votes can never lose an update.
  - ClaimReferralCredit flips the one-time referral flag only while the
    user's points are still zero; exactly one concurrent first-vote
    wins the claim.

# Errors

	store.ErrNotFound   referenced document does not exist
	store.ErrDuplicate  unique index violated (poll slug, user email)

Callers translate these to 404 and 409 responses.
*/
package store
