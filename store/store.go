// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/models"
)

var (
	// ErrNotFound is returned when a referenced document does not exist,
	// including the atomic tally update matching neither poll nor option.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique index would be violated
	// (poll slug, user email).
	ErrDuplicate = errors.New("duplicate key")
)

// PollStore persists polls and their embedded options and chat log.
type PollStore interface {
	Create(ctx context.Context, poll *models.Poll) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Poll, error)
	GetBySlug(ctx context.Context, slug string) (*models.Poll, error)
	// List returns polls visible to unauthenticated callers: public and active.
	List(ctx context.Context) ([]models.Poll, error)
	Update(ctx context.Context, id primitive.ObjectID, req models.UpdatePollRequest) (*models.Poll, error)
	// SetActive flips the soft-delete flag and returns the updated poll.
	// Setting an already-matching value is not an error.
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) (*models.Poll, error)
	// IncrementOptionCount performs the one atomic conditional update in the
	// system: match the poll by id AND the embedded option by id, increment
	// only that option's count, and return the option's post-update state.
	// Returns ErrNotFound when either id fails to match.
	IncrementOptionCount(ctx context.Context, pollID, optionID primitive.ObjectID) (*models.PollOption, error)
	// AppendChatMessage pushes onto the capped chat log, evicting the oldest
	// entries beyond models.ChatLogCap.
	AppendChatMessage(ctx context.Context, pollID primitive.ObjectID, msg models.ChatMessage) error
	GetChat(ctx context.Context, pollID primitive.ObjectID) ([]models.ChatMessage, error)
}

// VoteStore persists votes. Votes are never mutated or deleted by normal
// flow; the only write besides Create is the registration back-fill.
type VoteStore interface {
	Create(ctx context.Context, vote *models.Vote) error
	// CountAnonymousByIP counts votes from an IP that carry no voterId.
	CountAnonymousByIP(ctx context.Context, ip string) (int64, error)
	// HasVoted reports a prior vote on the poll by the given identity:
	// voterId when set, otherwise the anonymous IP.
	HasVoted(ctx context.Context, pollID primitive.ObjectID, voterID *primitive.ObjectID, ip string) (bool, error)
	ListByPoll(ctx context.Context, pollID primitive.ObjectID) ([]models.Vote, error)
	// ClaimAnonymousVotes sets voterId on all anonymous votes from the IP and
	// returns how many were claimed.
	ClaimAnonymousVotes(ctx context.Context, ip string, userID primitive.ObjectID) (int64, error)
}

// UserStore persists users and the referral/points counters.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, firstName, lastName, passwordHash *string) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// Verify flips the user matching (email, code, unverified) to verified
	// and clears the code. ErrNotFound when no user matches.
	Verify(ctx context.Context, email, code string) (*models.User, error)
	// ClaimReferralCredit atomically claims the one-time referral flag for a
	// user whose points are still zero. Reports whether this call won the
	// claim; a second concurrent first-vote loses and must not credit again.
	ClaimReferralCredit(ctx context.Context, id primitive.ObjectID) (bool, error)
	// CreditReferrer increments the referrer's referralPoints.
	CreditReferrer(ctx context.Context, id primitive.ObjectID, points int64) error
	// RecordVote increments the user's points and voteCount by one each and
	// returns the updated user.
	RecordVote(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Store bundles the three collections behind one dependency for handlers.
type Store struct {
	Polls PollStore
	Votes VoteStore
	Users UserStore
}
