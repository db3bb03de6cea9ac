// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/auth"
	"github.com/danielhkuo/tallyup/cliparse"
	"github.com/danielhkuo/tallyup/middleware"
	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/store"
)

type PollHandler struct {
	st  *store.Store
	cfg cliparse.Config
}

func NewPollHandler(st *store.Store, cfg cliparse.Config) *PollHandler {
	return &PollHandler{st: st, cfg: cfg}
}

// parsePollID reads the {pollId} path value. A malformed id is a validation
// failure, not a lookup miss.
func parsePollID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(r.PathValue("pollId"))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// CreatePoll handles POST /polls. Only admins and subscribers may create.
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request, ac auth.Context) {
	if ac.Role != models.RoleAdmin && ac.Role != models.RoleSubscriber {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only admins and subscribers can create polls")
		return
	}

	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(req.PollOptions) < 2 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll must have at least 2 options")
		return
	}
	for _, opt := range req.PollOptions {
		if opt.Text == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "every option needs text")
			return
		}
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "endDate must be after startDate")
		return
	}

	options := make([]models.PollOption, len(req.PollOptions))
	for i, opt := range req.PollOptions {
		options[i] = models.PollOption{
			ID:    primitive.NewObjectID(),
			Text:  opt.Text,
			Image: opt.Image,
			Count: 0,
		}
	}

	public := true
	if req.Public != nil {
		public = *req.Public
	}

	poll := &models.Poll{
		Title:              req.Title,
		Description:        req.Description,
		CreatorID:          ac.UserID,
		PollOptions:        options,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		Active:             true,
		Public:             public,
		AllowMultipleVotes: req.AllowMultipleVotes,
		Category:           req.Category,
	}

	// The slug carries a random suffix, so a collision means we were
	// extraordinarily unlucky; one more draw settles it.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		poll.Slug = auth.GenerateSlug(req.Title)
		if err = h.st.Polls.Create(r.Context(), poll); !errors.Is(err, store.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		slog.Error("failed to insert poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created", "poll_id", poll.ID.Hex(), "creator", ac.UserID.Hex(), "slug", poll.Slug)

	middleware.SuccessResponse(w, http.StatusCreated, "Poll created", poll)
}

// ListPolls handles GET /polls. Returns public, active polls only.
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := h.st.Polls.List(r.Context())
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.SuccessResponse(w, http.StatusOK, "", polls)
}

// GetPoll handles GET /polls/:pollId. Private polls are visible only to
// their creator and admins; everyone else sees a 404 so the id leaks
// nothing.
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request, ac *auth.Context) {
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
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !poll.Public && !canManagePoll(poll, ac) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}

	middleware.SuccessResponse(w, http.StatusOK, "", poll)
}

// GetPollBySlug handles GET /slugs/:slug.
func (h *PollHandler) GetPollBySlug(w http.ResponseWriter, r *http.Request, ac *auth.Context) {
	slug := r.PathValue("slug")
	if slug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return
	}

	poll, err := h.st.Polls.GetBySlug(r.Context(), slug)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !poll.Public && !canManagePoll(poll, ac) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}

	middleware.SuccessResponse(w, http.StatusOK, "", poll)
}

// UpdatePoll handles PUT /polls/:pollId. Creator or admin only.
func (h *PollHandler) UpdatePoll(w http.ResponseWriter, r *http.Request, ac auth.Context) {
	pollID, ok := parsePollID(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid poll id")
		return
	}

	var req models.UpdatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.st.Polls.GetByID(r.Context(), pollID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !canManagePoll(poll, &ac) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the poll creator can modify it")
		return
	}

	updated, err := h.st.Polls.Update(r.Context(), pollID, req)
	if err != nil {
		slog.Error("failed to update poll", "error", err, "poll_id", pollID.Hex())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update poll")
		return
	}

	slog.Info("poll updated", "poll_id", pollID.Hex())

	middleware.SuccessResponse(w, http.StatusOK, "Poll updated", updated)
}

// DeletePoll handles DELETE /polls/:pollId. Polls are never hard-deleted:
// this flips active=false and is idempotent, so deleting twice succeeds
// with the same result.
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request, ac auth.Context) {
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
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !canManagePoll(poll, &ac) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only the poll creator can delete it")
		return
	}

	updated, err := h.st.Polls.SetActive(r.Context(), pollID, false)
	if err != nil {
		slog.Error("failed to deactivate poll", "error", err, "poll_id", pollID.Hex())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete poll")
		return
	}

	slog.Info("poll deactivated", "poll_id", pollID.Hex())

	middleware.SuccessResponse(w, http.StatusOK, "Poll deleted", updated)
}

// GetPollOptions handles GET /polls/:pollId/options. Returns option texts
// and counts in creation order with image fields stripped.
func (h *PollHandler) GetPollOptions(w http.ResponseWriter, r *http.Request) {
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
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	options := make([]models.PollOptionView, len(poll.PollOptions))
	for i, opt := range poll.PollOptions {
		options[i] = models.PollOptionView{
			ID:    opt.ID.Hex(),
			Text:  opt.Text,
			Count: opt.Count,
		}
	}

	middleware.SuccessResponse(w, http.StatusOK, "", options)
}

// canManagePoll reports whether the caller may modify the poll.
func canManagePoll(poll *models.Poll, ac *auth.Context) bool {
	if ac == nil {
		return false
	}
	return ac.Role == models.RoleAdmin || poll.CreatorID == ac.UserID
}
