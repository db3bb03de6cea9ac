// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Authentication

RequireAuth verifies the Bearer access token and passes the resolved
auth.Context to the handler; OptionalAuth passes nil for anonymous
requests instead of rejecting them:

	mux.HandleFunc("POST /polls", middleware.RequireAuth(secret, handler))
	mux.HandleFunc("GET /polls/{pollId}", middleware.OptionalAuth(secret, handler))

# Rate Limiting

RateLimit enforces a fixed-window limit per (route, client IP) pair
through a Limiter. Two implementations exist: RedisLimiter for
multi-instance deployments and MemoryLimiter for single-process use
and tests. Limiter errors fail open:

	middleware.RateLimit(limiter, "vote", 30, time.Minute, handler)

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# Panic Recovery

WithRecover converts panics into a sanitized 500 response so internal
details never reach the client.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

All responses share one envelope: {success, message, data}.

	middleware.SuccessResponse(w, http.StatusOK, "Vote cast", data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP and Location

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

ResolveLocation reads the X-Geo-* headers an edge proxy may set.
*/
package middleware
