// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token signing, password hashing, and identifier
generation.

# Token Types

All tokens are HMAC-SHA256 signed JWTs. Four types exist, each verified
against an expected type so a token cannot be replayed across purposes:

	TokenTypeAccess   short-lived session token (Authorization header)
	TokenTypeRefresh  long-lived session token (httpOnly cookie)
	TokenTypeInvite   time-limited private poll access, bound to an email
	TokenTypeShare    non-expiring public poll share link, bound to a referrer

# Session Tokens

	access, err := auth.SignSession(userID, role, auth.TokenTypeAccess, secret, ttl)
	claims, err := auth.Verify(access, secret, auth.TokenTypeAccess)

Verify returns ErrInvalidToken for bad signatures or expired tokens and
ErrWrongTokenType when the type claim does not match.

# Capability Tokens

Invite tokens grant access to a private poll:

	token, err := auth.SignInvite(pollID, email, secret, ttl)

Share tokens grant access to a public poll and carry the sharer's ID so
a signup through the link can credit the referrer:

	token, err := auth.SignShareLink(pollID, referrerID, secret)

Share tokens never expire.

# Passwords

Passwords are hashed with bcrypt at the default cost:

	hash, err := auth.HashPassword(password)
	err := auth.CheckPassword(hash, password)

# Slugs and IDs

GenerateSlug builds a URL-friendly poll slug from the title plus a short
random suffix, so two polls with the same title get distinct slugs:

	slug := auth.GenerateSlug("Favorite Season")  // "favorite-season-x7k2a9"

Random hex IDs and numeric verification codes:

	id, err := auth.GenerateID(16)  // 32 hex characters
	code := auth.GenerateVerificationCode()
*/
package auth
