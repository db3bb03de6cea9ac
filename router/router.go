// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/tallyup/cliparse"
	"github.com/danielhkuo/tallyup/event"
	"github.com/danielhkuo/tallyup/handlers"
	"github.com/danielhkuo/tallyup/mailer"
	"github.com/danielhkuo/tallyup/metrics"
	"github.com/danielhkuo/tallyup/middleware"
	"github.com/danielhkuo/tallyup/store"
)

// Deps holds everything the route table needs wired in.
type Deps struct {
	Store     *store.Store
	Config    cliparse.Config
	Limiter   middleware.Limiter
	Publisher event.VotePublisher
	Metrics   *metrics.VoteMetrics
	Mailer    mailer.Sender
}

func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	cfg := d.Config

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(d.Store, cfg)
	voteHandler := handlers.NewVoteHandler(d.Store, cfg, d.Publisher, d.Metrics)
	authHandler := handlers.NewAuthHandler(d.Store, cfg, d.Mailer)
	chatHandler := handlers.NewChatHandler(d.Store)
	shareHandler := handlers.NewShareHandler(d.Store, cfg, d.Mailer)

	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithRecover(h))
	}
	authed := func(h middleware.AuthedHandler) http.HandlerFunc {
		return wrap(middleware.RequireAuth(cfg.AccessTokenSecret, h))
	}
	optional := func(h middleware.OptionalAuthedHandler) http.HandlerFunc {
		return wrap(middleware.OptionalAuth(cfg.AccessTokenSecret, h))
	}
	limited := func(route string, limit int, window time.Duration, h http.HandlerFunc) http.HandlerFunc {
		return wrap(middleware.RateLimit(d.Limiter, route, limit, window, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus scrape endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	// Poll management
	mux.HandleFunc("POST /polls", authed(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls", wrap(pollHandler.ListPolls))
	mux.HandleFunc("GET /polls/{pollId}", optional(pollHandler.GetPoll))
	mux.HandleFunc("PUT /polls/{pollId}", authed(pollHandler.UpdatePoll))
	mux.HandleFunc("DELETE /polls/{pollId}", authed(pollHandler.DeletePoll))
	// Slug lookup lives outside /polls: a literal segment in the {pollId}
	// position conflicts with the wildcard routes under ServeMux precedence.
	mux.HandleFunc("GET /slugs/{slug}", optional(pollHandler.GetPollBySlug))
	mux.HandleFunc("GET /polls/{pollId}/options", wrap(pollHandler.GetPollOptions))

	// Voting
	mux.HandleFunc("POST /polls/{pollId}/votes", limited("vote", 30, time.Minute,
		middleware.OptionalAuth(cfg.AccessTokenSecret, voteHandler.CastVote)))
	mux.HandleFunc("GET /polls/{pollId}/votes", optional(voteHandler.GetPollVotes))
	mux.HandleFunc("GET /polls/{pollId}/voters", optional(voteHandler.GetPollVoters))

	// Poll chat
	mux.HandleFunc("GET /polls/{pollId}/chat", optional(chatHandler.GetChat))
	mux.HandleFunc("POST /polls/{pollId}/chat/message", authed(chatHandler.PostMessage))

	// Invites and share links
	mux.HandleFunc("POST /polls/{pollId}/invites", authed(shareHandler.CreateInvite))
	mux.HandleFunc("GET /poll_access/private/{accessToken}", wrap(shareHandler.PrivatePollAccess))
	mux.HandleFunc("POST /polls/{pollId}/public_poll_share_link", authed(shareHandler.CreateShareLink))
	mux.HandleFunc("GET /poll_access/public/{accessToken}", wrap(shareHandler.PublicPollAccess))

	// Accounts and sessions
	mux.HandleFunc("POST /auth/pre-register", limited("pre-register", 10, time.Minute, authHandler.PreRegister))
	mux.HandleFunc("POST /auth/register", limited("register", 10, time.Minute, authHandler.Register))
	mux.HandleFunc("POST /auth/login", limited("login", 10, time.Minute, authHandler.Login))
	mux.HandleFunc("POST /auth/refresh", wrap(authHandler.Refresh))
	mux.HandleFunc("POST /auth/logout", wrap(authHandler.Logout))
	mux.HandleFunc("PUT /auth/profile", authed(authHandler.UpdateProfile))
	mux.HandleFunc("DELETE /auth/profile", authed(authHandler.DeleteProfile))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tallyup API v1"))
	})

	return mux
}
