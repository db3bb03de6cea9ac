// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/auth"
	"github.com/danielhkuo/tallyup/cliparse"
	"github.com/danielhkuo/tallyup/mailer"
	"github.com/danielhkuo/tallyup/middleware"
	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/store"
)

// ShareHandler issues and redeems the two poll capability tokens: expiring
// email invites to private polls, and non-expiring public share links that
// carry the sharer as referrer.
type ShareHandler struct {
	st   *store.Store
	cfg  cliparse.Config
	mail mailer.Sender
}

func NewShareHandler(st *store.Store, cfg cliparse.Config, mail mailer.Sender) *ShareHandler {
	return &ShareHandler{st: st, cfg: cfg, mail: mail}
}

// CreateInvite handles POST /polls/{pollId}/invites. Only the poll's creator
// (or an admin) can invite; the invitee gets a time-limited access link by
// email.
func (h *ShareHandler) CreateInvite(w http.ResponseWriter, r *http.Request, ac auth.Context) {
	pollID, ok := parsePollID(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid poll id")
		return
	}

	var req models.CreateInviteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid email address")
		return
	}

	poll, err := h.st.Polls.GetByID(r.Context(), pollID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err, "poll_id", pollID.Hex())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !canManagePoll(poll, &ac) {
		middleware.ErrorResponse(w, http.StatusForbidden, "only the poll creator can send invites")
		return
	}

	token, err := auth.SignInvite(pollID, email, h.cfg.ShareTokenSecret, h.cfg.InviteTTL)
	if err != nil {
		slog.Error("failed to sign invite", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create invite")
		return
	}
	expiresAt := time.Now().UTC().Add(h.cfg.InviteTTL)

	link := fmt.Sprintf("%s/poll_access/private/%s", h.cfg.BaseURL, token)
	body := fmt.Sprintf("You have been invited to the poll %q.\n\nOpen it here: %s\n\nThe link expires %s.\n",
		poll.Title, link, expiresAt.Format(time.RFC1123))
	if err := h.mail.Send(email, "You're invited to a Tallyup poll", body); err != nil {
		slog.Error("failed to send invite mail", "error", err, "email", email)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to send invite")
		return
	}

	slog.Info("invite sent", "poll_id", pollID.Hex(), "inviter", ac.UserID.Hex())

	middleware.SuccessResponse(w, http.StatusCreated, "Invite sent", models.InviteResponse{
		Email:     email,
		ExpiresAt: expiresAt,
	})
}

// PrivatePollAccess handles GET /poll_access/private/{accessToken}.
// The token alone grants read access; no session is required.
func (h *ShareHandler) PrivatePollAccess(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.Verify(r.PathValue("accessToken"), h.cfg.ShareTokenSecret, auth.TokenTypeInvite)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid or expired invite")
		return
	}

	h.servePollByToken(w, r, claims.PollID)
}

// CreateShareLink handles POST /polls/{pollId}/public_poll_share_link. The
// caller becomes the referrer encoded in the link; users who register through
// it credit the caller's referral points on their first vote. Share links do
// not expire.
func (h *ShareHandler) CreateShareLink(w http.ResponseWriter, r *http.Request, ac auth.Context) {
	pollID, ok := parsePollID(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid poll id")
		return
	}

	poll, err := h.st.Polls.GetByID(r.Context(), pollID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err, "poll_id", pollID.Hex())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !poll.Public {
		middleware.ErrorResponse(w, http.StatusForbidden, "share links are for public polls; use an invite")
		return
	}

	token, err := auth.SignShareLink(pollID, ac.UserID, h.cfg.ShareTokenSecret)
	if err != nil {
		slog.Error("failed to sign share link", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create share link")
		return
	}

	middleware.SuccessResponse(w, http.StatusCreated, "Share link created", models.ShareLinkResponse{
		AccessToken: token,
		ShareURL:    fmt.Sprintf("%s/poll_access/public/%s", h.cfg.BaseURL, token),
	})
}

// PublicPollAccess handles GET /poll_access/public/{accessToken}.
// Resolves a share link to its poll; the client keeps the token to pass as
// referralToken at pre-registration.
func (h *ShareHandler) PublicPollAccess(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.Verify(r.PathValue("accessToken"), h.cfg.ShareTokenSecret, auth.TokenTypeShare)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid share link")
		return
	}

	h.servePollByToken(w, r, claims.PollID)
}

func (h *ShareHandler) servePollByToken(w http.ResponseWriter, r *http.Request, pollIDHex string) {
	pollID, err := primitive.ObjectIDFromHex(pollIDHex)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid access token")
		return
	}

	poll, err := h.st.Polls.GetByID(r.Context(), pollID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err, "poll_id", pollIDHex)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !poll.Active {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}

	middleware.SuccessResponse(w, http.StatusOK, "", poll)
}
