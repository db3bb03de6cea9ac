// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/auth"
	"github.com/danielhkuo/tallyup/cliparse"
	"github.com/danielhkuo/tallyup/event"
	"github.com/danielhkuo/tallyup/metrics"
	"github.com/danielhkuo/tallyup/middleware"
	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/store"
)

type VoteHandler struct {
	st  *store.Store
	cfg cliparse.Config
	pub event.VotePublisher
	vm  *metrics.VoteMetrics
}

func NewVoteHandler(st *store.Store, cfg cliparse.Config, pub event.VotePublisher, vm *metrics.VoteMetrics) *VoteHandler {
	return &VoteHandler{st: st, cfg: cfg, pub: pub, vm: vm}
}

// CastVote handles POST /polls/:pollId/votes
//
// The only cross-request atomic step is the tally increment; everything else
// is per-request. The anonymous quota check is check-then-act and therefore
// a best-effort throttle under concurrency.
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request, ac *auth.Context) {
	start := time.Now()
	defer func() {
		if h.vm != nil {
			h.vm.CastDuration.Observe(time.Since(start).Seconds())
		}
	}()

	pollID, ok := parsePollID(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid poll id")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PollOptionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "pollOptionId is required")
		return
	}
	optionID, err := primitive.ObjectIDFromHex(req.PollOptionID)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid pollOptionId")
		return
	}

	loc := middleware.ResolveLocation(r)
	voter := h.resolveVoter(r.Context(), ac, req.VoterID)

	// Eligibility: anonymous voters get a fixed number of votes per IP.
	if voter == nil {
		n, err := h.st.Votes.CountAnonymousByIP(r.Context(), loc.IP)
		if err != nil {
			slog.Error("failed to count anonymous votes", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if n >= models.AnonymousVoteQuota {
			h.reject("quota")
			middleware.ErrorResponse(w, http.StatusForbidden, "maximum free votes reached")
			return
		}
	}

	poll, err := h.st.Polls.GetByID(r.Context(), pollID)
	if errors.Is(err, store.ErrNotFound) {
		h.reject("poll_not_found")
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !poll.OpenForVoting(time.Now()) {
		h.reject("poll_closed")
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not open for voting")
		return
	}

	if !poll.AllowMultipleVotes {
		var voterID *primitive.ObjectID
		if voter != nil {
			voterID = &voter.ID
		}
		voted, err := h.st.Votes.HasVoted(r.Context(), pollID, voterID, loc.IP)
		if err != nil {
			slog.Error("failed to check prior vote", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if voted {
			h.reject("duplicate")
			middleware.ErrorResponse(w, http.StatusForbidden, "already voted on this poll")
			return
		}
	}

	// Validate the option against the referenced poll before recording
	// anything, so a stale option id mutates no state.
	if poll.OptionByID(optionID) == nil {
		h.reject("option_not_found")
		middleware.ErrorResponse(w, http.StatusNotFound, "poll or option not found")
		return
	}

	vote := &models.Vote{
		PollID:         pollID,
		PollOptionID:   optionID,
		VoterIP:        loc.IP,
		VoterCountry:   loc.Country,
		VoterRegion:    loc.Region,
		VoterCity:      loc.City,
		VoterEthnicity: req.VoterEthnicity,
		VoterGender:    req.VoterGender,
	}
	if voter != nil {
		vote.VoterID = &voter.ID
	}

	if err := h.st.Votes.Create(r.Context(), vote); err != nil {
		slog.Error("failed to insert vote", "error", err, "poll_id", pollID.Hex())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	// The single atomic increment. A miss here means the poll or option
	// vanished between validation and update; terminal, not retried.
	tally, err := h.st.Polls.IncrementOptionCount(r.Context(), pollID, optionID)
	if errors.Is(err, store.ErrNotFound) {
		h.reject("option_not_found")
		middleware.ErrorResponse(w, http.StatusNotFound, "poll or option not found")
		return
	}
	if err != nil {
		slog.Error("failed to increment tally", "error", err, "poll_id", pollID.Hex())
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	data := models.CastVoteData{
		OptionVoteTally: models.OptionVoteTally{
			PollOptionText: tally.Text,
			Count:          tally.Count,
			ID:             tally.ID.Hex(),
		},
	}

	if voter != nil {
		h.creditReferral(r.Context(), voter)

		updated, err := h.st.Users.RecordVote(r.Context(), voter.ID)
		if err != nil {
			// The vote itself stands; only the response omits the totals.
			slog.Error("failed to update voter points", "error", err, "user_id", voter.ID.Hex())
		} else {
			earned := int64(1)
			data.PointsEarned = &earned
			data.TotalPoints = &updated.Points
			data.VoteCount = &updated.VoteCount
		}
	}

	h.publish(*vote)
	if h.vm != nil {
		h.vm.VotesCast.WithLabelValues(pollID.Hex()).Inc()
	}

	slog.Info("vote recorded", "poll_id", pollID.Hex(), "option_id", optionID.Hex(), "anonymous", voter == nil)

	middleware.SuccessResponse(w, http.StatusCreated, "Vote recorded", data)
}

// resolveVoter turns the request's credentials into a user, preferring the
// verified bearer token over a voterId in the body. An unresolvable id means
// the vote proceeds anonymously.
func (h *VoteHandler) resolveVoter(ctx context.Context, ac *auth.Context, bodyVoterID string) *models.User {
	var userID primitive.ObjectID
	switch {
	case ac != nil:
		userID = ac.UserID
	case bodyVoterID != "":
		id, err := primitive.ObjectIDFromHex(bodyVoterID)
		if err != nil {
			return nil
		}
		userID = id
	default:
		return nil
	}

	user, err := h.st.Users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("failed to resolve voter", "error", err, "user_id", userID.Hex())
		}
		return nil
	}
	return user
}

// creditReferral awards the referrer their one-time bonus for this voter's
// first scored action. Failures are logged and swallowed: crediting must
// never fail the vote.
func (h *VoteHandler) creditReferral(ctx context.Context, voter *models.User) {
	if voter.ReferrerID == nil || voter.Points != 0 || voter.ReferralCredited {
		return
	}

	// One-time flag, not the mutable points counter: two racing first-votes
	// claim at most once.
	won, err := h.st.Users.ClaimReferralCredit(ctx, voter.ID)
	if err != nil {
		slog.Error("failed to claim referral credit", "error", err, "user_id", voter.ID.Hex())
		return
	}
	if !won {
		return
	}

	if err := h.st.Users.CreditReferrer(ctx, *voter.ReferrerID, models.ReferralBonusPoints); err != nil {
		slog.Error("failed to credit referrer", "error", err, "referrer_id", voter.ReferrerID.Hex())
		return
	}
	if h.vm != nil {
		h.vm.ReferralCredit.Inc()
	}

	slog.Info("referral credited", "referrer_id", voter.ReferrerID.Hex(), "referred_id", voter.ID.Hex())
}

// publish emits the vote event off the request path; delivery is
// best-effort.
func (h *VoteHandler) publish(vote models.Vote) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.pub.Publish(ctx, vote); err != nil {
			slog.Warn("failed to publish vote event", "error", err, "poll_id", vote.PollID.Hex())
		}
	}()
}

func (h *VoteHandler) reject(reason string) {
	if h.vm != nil {
		h.vm.VotesRejected.WithLabelValues(reason).Inc()
	}
}

// GetPollVotes handles GET /polls/:pollId/votes. The per-option counts come
// from the poll document itself - the atomic increments make it the source
// of truth for the tally. Private polls are cloaked as 404 for everyone but
// their creator, same as GetPoll.
func (h *VoteHandler) GetPollVotes(w http.ResponseWriter, r *http.Request, ac *auth.Context) {
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

	tallies := models.PollTallies{
		PollID:  pollID.Hex(),
		Options: make([]models.PollOptionView, len(poll.PollOptions)),
	}
	for i, opt := range poll.PollOptions {
		tallies.Options[i] = models.PollOptionView{
			ID:    opt.ID.Hex(),
			Text:  opt.Text,
			Count: opt.Count,
		}
		tallies.TotalVotes += opt.Count
	}

	middleware.SuccessResponse(w, http.StatusOK, "", tallies)
}

// GetPollVoters handles GET /polls/:pollId/voters. IPs are never included,
// and private polls are cloaked as 404 for everyone but their creator.
func (h *VoteHandler) GetPollVoters(w http.ResponseWriter, r *http.Request, ac *auth.Context) {
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

	votes, err := h.st.Votes.ListByPoll(r.Context(), pollID)
	if err != nil {
		slog.Error("failed to list votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	voters := make([]models.VoterSummary, len(votes))
	for i, v := range votes {
		voters[i] = models.VoterSummary{
			Anonymous:    v.VoterID == nil,
			VoterCountry: v.VoterCountry,
			VoterRegion:  v.VoterRegion,
			VoterCity:    v.VoterCity,
			VotedAt:      v.CreatedAt,
		}
		if v.VoterID != nil {
			voters[i].VoterID = v.VoterID.Hex()
		}
	}

	middleware.SuccessResponse(w, http.StatusOK, "", voters)
}
