// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/tallyup/auth"
	"github.com/danielhkuo/tallyup/middleware"
	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/store"
)

// maxChatMessageLen bounds a single chat message body.
const maxChatMessageLen = 1000

type ChatHandler struct {
	st *store.Store
}

func NewChatHandler(st *store.Store) *ChatHandler {
	return &ChatHandler{st: st}
}

// GetChat handles GET /polls/{pollId}/chat. Messages come back oldest first,
// at most models.ChatLogCap of them.
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request, ac *auth.Context) {
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
	if !poll.Public && !canManagePoll(poll, ac) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}

	messages, err := h.st.Polls.GetChat(r.Context(), pollID)
	if err != nil {
		slog.Error("failed to query chat", "error", err, "poll_id", pollID.Hex())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	middleware.SuccessResponse(w, http.StatusOK, "", messages)
}

// PostMessage handles POST /polls/{pollId}/chat/message. Requires a session;
// the author is always the token's user, never a body field.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request, ac auth.Context) {
	pollID, ok := parsePollID(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid poll id")
		return
	}

	var req models.PostChatMessageRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(content) > maxChatMessageLen {
		middleware.ErrorResponse(w, http.StatusBadRequest, "content too long")
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
	if !poll.Active {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is closed")
		return
	}

	msg := models.ChatMessage{
		UserID:    ac.UserID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.st.Polls.AppendChatMessage(r.Context(), pollID, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
			return
		}
		slog.Error("failed to append chat message", "error", err, "poll_id", pollID.Hex())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to post message")
		return
	}

	middleware.SuccessResponse(w, http.StatusCreated, "Message posted", msg)
}
