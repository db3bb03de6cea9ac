// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Tallyup API.

# Route Registration

NewRouter creates a configured http.ServeMux from a Deps bundle:

	mux := router.NewRouter(router.Deps{
		Store:     st,
		Config:    cfg,
		Limiter:   limiter,
		Publisher: pub,
		Metrics:   m,
		Mailer:    mail,
	})

# Endpoints

Health and observability:

	GET /health
	GET /metrics

Polls:

	POST   /polls                    - Create poll (creator/admin)
	GET    /polls                    - List active public polls
	GET    /polls/{pollId}           - Poll detail
	PUT    /polls/{pollId}           - Update poll (owner/admin)
	DELETE /polls/{pollId}           - Soft delete (owner/admin)
	GET    /slugs/{slug}             - Poll by share slug
	GET    /polls/{pollId}/options   - Options without images

Voting:

	POST /polls/{pollId}/votes   - Cast vote (rate limited, optional auth)
	GET  /polls/{pollId}/votes   - Tallies (optional auth; private polls cloak)
	GET  /polls/{pollId}/voters  - Voter list (no IPs, same cloaking)

Chat:

	GET  /polls/{pollId}/chat          - Message log
	POST /polls/{pollId}/chat/message  - Post message (authed)

Sharing:

	POST /polls/{pollId}/invites                - Email private invite
	GET  /poll_access/private/{accessToken}     - Redeem invite
	POST /polls/{pollId}/public_poll_share_link - Create share link
	GET  /poll_access/public/{accessToken}      - Redeem share link

Auth (login endpoints rate limited):

	POST   /auth/pre-register
	POST   /auth/register
	POST   /auth/login
	POST   /auth/refresh
	POST   /auth/logout
	PUT    /auth/profile
	DELETE /auth/profile

# Middleware Composition

Every route is wrapped with logging and panic recovery. Authenticated
routes add RequireAuth, mixed routes OptionalAuth, and abuse-prone
routes a rate limit on top:

	authed  = logging(recover(RequireAuth(h)))
	limited = logging(recover(RateLimit(limiter, route, n, window, h)))
*/
package router
