// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/auth"
)

// AuthedHandler is a handler that receives the authenticated caller as an
// explicit value instead of digging it back out of the request.
type AuthedHandler func(w http.ResponseWriter, r *http.Request, ac auth.Context)

// OptionalAuthedHandler receives a nil context when the request carries no
// valid credential. Used by endpoints that serve both audiences, like vote
// casting.
type OptionalAuthedHandler func(w http.ResponseWriter, r *http.Request, ac *auth.Context)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func contextFromToken(token, secret string) (*auth.Context, error) {
	claims, err := auth.Verify(token, secret, auth.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Context{UserID: userID, Role: claims.Role}, nil
}

// RequireAuth rejects requests without a valid bearer access token.
func RequireAuth(secret string, next AuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			ErrorResponse(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		ac, err := contextFromToken(token, secret)
		if err != nil {
			ErrorResponse(w, http.StatusUnauthorized, "Invalid or expired access token")
			return
		}
		next(w, r, *ac)
	}
}

// OptionalAuth resolves a bearer token when present but lets anonymous
// requests through with a nil context. A malformed token is treated as
// anonymous rather than rejected.
func OptionalAuth(secret string, next OptionalAuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ac *auth.Context
		if token := bearerToken(r); token != "" {
			if resolved, err := contextFromToken(token, secret); err == nil {
				ac = resolved
			}
		}
		next(w, r, ac)
	}
}
