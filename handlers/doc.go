// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Tallyup API.

# Handler Types

Each handler is a struct holding its dependencies:

  - PollHandler: Poll lifecycle (create, read, update, soft delete)
  - VoteHandler: Vote casting, tallies, voter listing
  - AuthHandler: Registration, login, session refresh, profile
  - ChatHandler: Per-poll message log
  - ShareHandler: Private poll invites and public share links

Handlers are created via constructor functions:

	voteHandler := handlers.NewVoteHandler(st, cfg, pub, vm)
	authHandler := handlers.NewAuthHandler(st, cfg, mail)

# Poll Lifecycle

Polls are created active and are soft-deleted (active=false) rather
than removed, so existing tallies stay readable:

	POST   /polls           → CreatePoll (creator or admin role)
	GET    /polls           → ListPolls (active public polls)
	GET    /polls/{pollId}  → GetPoll (private polls cloak as 404)
	PUT    /polls/{pollId}  → UpdatePoll (owner or admin)
	DELETE /polls/{pollId}  → DeletePoll (owner or admin, idempotent)

# Vote Casting

CastVote is the core operation. It resolves the voter identity
(authenticated user or client IP), enforces eligibility (poll open,
option exists, no duplicate vote, anonymous quota), records the vote,
atomically increments the option tally, awards points, credits the
referrer on a user's first vote, publishes a vote event, and returns
the updated option state:

	POST /polls/{pollId}/votes   → CastVote (optional auth)
	GET  /polls/{pollId}/votes   → GetPollVotes (tallies; private polls cloak)
	GET  /polls/{pollId}/voters  → GetPollVoters (IPs never exposed)

# Auth Flow

Registration is two-step: pre-register stores an unverified account and
mails a verification code; register verifies the code, claims any
anonymous votes cast from the same IP, and issues a session:

	POST /auth/pre-register → PreRegister
	POST /auth/register     → Register
	POST /auth/login        → Login
	POST /auth/refresh      → Refresh
	POST /auth/logout       → Logout

Access tokens travel in the Authorization response header; refresh
tokens live in an httpOnly cookie scoped to /auth.

# Sharing

Private polls are reached through emailed invite tokens; public polls
through share links whose token identifies the referrer:

	POST /polls/{pollId}/invites                  → CreateInvite
	GET  /poll_access/private/{accessToken}       → PrivatePollAccess
	POST /polls/{pollId}/public_poll_share_link   → CreateShareLink
	GET  /poll_access/public/{accessToken}        → PublicPollAccess
*/
package handlers
