// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/auth"
	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/testutil"
)

// testClientIP is what GetClientIP resolves for httptest requests.
const testClientIP = "192.0.2.1"

type voteEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    models.CastVoteData `json:"data"`
}

type talliesEnvelope struct {
	Data models.PollTallies `json:"data"`
}

func TestCastVoteAnonymous(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	poll := testutil.CreateTestPoll(t, st, creator.ID, "Tea", "Coffee")

	body := models.CastVoteRequest{PollOptionID: poll.PollOptions[1].ID.Hex()}
	req := testutil.MakeRequest("POST", "/polls/"+poll.ID.Hex()+"/votes", body, map[string]string{
		"X-Geo-Country": "NL",
		"X-Geo-City":    "Amsterdam",
	})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp voteEnvelope
	testutil.AssertJSON(t, w, &resp)
	if resp.Data.OptionVoteTally.Count != 1 {
		t.Errorf("expected tally 1, got %d", resp.Data.OptionVoteTally.Count)
	}
	if resp.Data.OptionVoteTally.PollOptionText != "Coffee" {
		t.Errorf("expected voted option text, got %q", resp.Data.OptionVoteTally.PollOptionText)
	}
	if resp.Data.PointsEarned != nil || resp.Data.TotalPoints != nil {
		t.Error("anonymous votes should not report points")
	}

	// The vote carries location but the tally endpoint never exposes IPs
	votes, err := st.Votes.ListByPoll(context.Background(), poll.ID)
	if err != nil {
		t.Fatalf("failed to list votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected 1 vote, got %d", len(votes))
	}
	if votes[0].VoterID != nil {
		t.Error("anonymous vote should have no voterId")
	}
	if votes[0].VoterIP != testClientIP {
		t.Errorf("expected voter ip %s, got %s", testClientIP, votes[0].VoterIP)
	}
	if votes[0].VoterCountry != "NL" {
		t.Errorf("expected geo country NL, got %q", votes[0].VoterCountry)
	}
}

func TestCastVoteAuthenticatedPoints(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	voter := testutil.CreateTestUser(t, st, models.RoleUser)
	poll := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")

	body := models.CastVoteRequest{PollOptionID: poll.PollOptions[0].ID.Hex()}
	req := testutil.MakeRequest("POST", "/polls/"+poll.ID.Hex()+"/votes", body, testutil.AuthHeader(t, cfg, voter))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp voteEnvelope
	testutil.AssertJSON(t, w, &resp)
	if resp.Data.PointsEarned == nil || *resp.Data.PointsEarned != 1 {
		t.Fatal("expected pointsEarned=1 for an authenticated vote")
	}
	if resp.Data.TotalPoints == nil || *resp.Data.TotalPoints != 1 {
		t.Error("expected totalPoints=1 after first vote")
	}
	if resp.Data.VoteCount == nil || *resp.Data.VoteCount != 1 {
		t.Error("expected voteCount=1 after first vote")
	}

	updated, err := st.Users.GetByID(context.Background(), voter.ID)
	if err != nil {
		t.Fatalf("failed to reload voter: %v", err)
	}
	if updated.Points != 1 || updated.VoteCount != 1 {
		t.Errorf("expected points=1 voteCount=1, got points=%d voteCount=%d", updated.Points, updated.VoteCount)
	}
}

func TestCastVoteDuplicateRejected(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	voter := testutil.CreateTestUser(t, st, models.RoleUser)
	poll := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")
	headers := testutil.AuthHeader(t, cfg, voter)
	path := "/polls/" + poll.ID.Hex() + "/votes"
	body := models.CastVoteRequest{PollOptionID: poll.PollOptions[0].ID.Hex()}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", path, body, headers))
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Same user again, even on the other option
	body.PollOptionID = poll.PollOptions[1].ID.Hex()
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", path, body, headers))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	// Tally unchanged by the rejected attempt
	stored, _ := st.Polls.GetByID(context.Background(), poll.ID)
	if got := stored.PollOptions[0].Count + stored.PollOptions[1].Count; got != 1 {
		t.Errorf("expected total tally 1 after duplicate rejection, got %d", got)
	}
}

func TestCastVoteMultipleAllowed(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	voter := testutil.CreateTestUser(t, st, models.RoleUser)

	poll := &models.Poll{
		Title:              "Vote early, vote often",
		CreatorID:          creator.ID,
		PollOptions:        []models.PollOption{{ID: primitive.NewObjectID(), Text: "A"}, {ID: primitive.NewObjectID(), Text: "B"}},
		Active:             true,
		Public:             true,
		AllowMultipleVotes: true,
		Slug:               auth.GenerateSlug("Vote early, vote often"),
	}
	if err := st.Polls.Create(context.Background(), poll); err != nil {
		t.Fatalf("failed to seed poll: %v", err)
	}

	headers := testutil.AuthHeader(t, cfg, voter)
	path := "/polls/" + poll.ID.Hex() + "/votes"
	body := models.CastVoteRequest{PollOptionID: poll.PollOptions[0].ID.Hex()}

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest("POST", path, body, headers))
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	stored, _ := st.Polls.GetByID(context.Background(), poll.ID)
	if stored.PollOptions[0].Count != 3 {
		t.Errorf("expected tally 3, got %d", stored.PollOptions[0].Count)
	}
}

func TestCastVoteAnonymousQuota(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)

	// Burn the whole quota across earlier polls from the same IP
	for i := 0; i < models.AnonymousVoteQuota; i++ {
		earlier := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")
		testutil.CastTestVote(t, st, earlier, 0, nil, testClientIP)
	}

	poll := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")
	body := models.CastVoteRequest{PollOptionID: poll.PollOptions[0].ID.Hex()}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+poll.ID.Hex()+"/votes", body, nil))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	var resp voteEnvelope
	testutil.AssertJSON(t, w, &resp)
	if resp.Message != "maximum free votes reached" {
		t.Errorf("expected quota message, got %q", resp.Message)
	}

	// No vote was recorded for the rejected attempt
	votes, _ := st.Votes.ListByPoll(context.Background(), poll.ID)
	if len(votes) != 0 {
		t.Errorf("expected no votes on poll, got %d", len(votes))
	}
}

func TestCastVoteUnknownOption(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	poll := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")

	body := models.CastVoteRequest{PollOptionID: primitive.NewObjectID().Hex()}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+poll.ID.Hex()+"/votes", body, nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)

	// A failed reference check mutates nothing
	votes, _ := st.Votes.ListByPoll(context.Background(), poll.ID)
	if len(votes) != 0 {
		t.Errorf("expected no votes recorded, got %d", len(votes))
	}
	stored, _ := st.Polls.GetByID(context.Background(), poll.ID)
	for _, opt := range stored.PollOptions {
		if opt.Count != 0 {
			t.Errorf("expected untouched tallies, option %s has %d", opt.Text, opt.Count)
		}
	}
}

func TestCastVotePollNotOpen(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)

	// Soft-deleted poll
	deleted := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")
	if _, err := st.Polls.SetActive(context.Background(), deleted.ID, false); err != nil {
		t.Fatalf("failed to deactivate poll: %v", err)
	}
	body := models.CastVoteRequest{PollOptionID: deleted.PollOptions[0].ID.Hex()}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+deleted.ID.Hex()+"/votes", body, nil))
	testutil.AssertStatus(t, w, http.StatusConflict)

	// Poll whose window has closed
	ended := time.Now().Add(-time.Hour)
	expired := &models.Poll{
		Title:       "Too late",
		CreatorID:   creator.ID,
		PollOptions: []models.PollOption{{ID: primitive.NewObjectID(), Text: "A"}, {ID: primitive.NewObjectID(), Text: "B"}},
		Active:      true,
		Public:      true,
		EndDate:     &ended,
		Slug:        auth.GenerateSlug("Too late"),
	}
	if err := st.Polls.Create(context.Background(), expired); err != nil {
		t.Fatalf("failed to seed poll: %v", err)
	}
	body = models.CastVoteRequest{PollOptionID: expired.PollOptions[0].ID.Hex()}
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+expired.ID.Hex()+"/votes", body, testutil.AuthHeader(t, cfg, creator)))
	testutil.AssertStatus(t, w, http.StatusConflict)
}

func TestCastVoteMalformedIDs(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	poll := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")

	// Bad poll id in the path
	body := models.CastVoteRequest{PollOptionID: poll.PollOptions[0].ID.Hex()}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/garbage/votes", body, nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Bad option id in the body
	body = models.CastVoteRequest{PollOptionID: "garbage"}
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+poll.ID.Hex()+"/votes", body, nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Missing option id entirely
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+poll.ID.Hex()+"/votes", models.CastVoteRequest{}, nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Unknown poll
	body = models.CastVoteRequest{PollOptionID: poll.PollOptions[0].ID.Hex()}
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+primitive.NewObjectID().Hex()+"/votes", body, nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestCastVoteReferralCredit(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	referrer := testutil.CreateTestUser(t, st, models.RoleUser)

	// A user who registered through the referrer's share link
	hash, _ := auth.HashPassword(testutil.TestPassword)
	referred := &models.User{
		FirstName:    "Referred",
		LastName:     "User",
		Email:        "referred@tallyup.test",
		PasswordHash: hash,
		Role:         models.RoleUser,
		ReferrerID:   &referrer.ID,
		Verified:     true,
	}
	if err := st.Users.Create(context.Background(), referred); err != nil {
		t.Fatalf("failed to seed referred user: %v", err)
	}

	pollA := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")
	pollB := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")
	headers := testutil.AuthHeader(t, cfg, referred)

	// First vote credits the referrer exactly once
	body := models.CastVoteRequest{PollOptionID: pollA.PollOptions[0].ID.Hex()}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+pollA.ID.Hex()+"/votes", body, headers))
	testutil.AssertStatus(t, w, http.StatusCreated)

	r1, _ := st.Users.GetByID(context.Background(), referrer.ID)
	if r1.ReferralPoints != models.ReferralBonusPoints {
		t.Fatalf("expected referrer to earn %d referral points, got %d", models.ReferralBonusPoints, r1.ReferralPoints)
	}

	// Second vote on another poll must not credit again
	body = models.CastVoteRequest{PollOptionID: pollB.PollOptions[0].ID.Hex()}
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+pollB.ID.Hex()+"/votes", body, headers))
	testutil.AssertStatus(t, w, http.StatusCreated)

	r2, _ := st.Users.GetByID(context.Background(), referrer.ID)
	if r2.ReferralPoints != models.ReferralBonusPoints {
		t.Errorf("referral bonus must be one-time, got %d", r2.ReferralPoints)
	}

	// The voter's own points accrued normally
	v, _ := st.Users.GetByID(context.Background(), referred.ID)
	if v.Points != 2 || v.VoteCount != 2 {
		t.Errorf("expected voter points=2 voteCount=2, got %d/%d", v.Points, v.VoteCount)
	}
}

func TestGetPollVotesTallies(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	poll := testutil.CreateTestPoll(t, st, creator.ID, "Red", "Green", "Blue")

	testutil.CastTestVote(t, st, poll, 0, nil, "203.0.113.1")
	testutil.CastTestVote(t, st, poll, 0, nil, "203.0.113.2")
	testutil.CastTestVote(t, st, poll, 2, nil, "203.0.113.3")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/polls/"+poll.ID.Hex()+"/votes", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp talliesEnvelope
	testutil.AssertJSON(t, w, &resp)
	if resp.Data.TotalVotes != 3 {
		t.Errorf("expected 3 total votes, got %d", resp.Data.TotalVotes)
	}
	counts := map[string]int64{}
	for _, opt := range resp.Data.Options {
		counts[opt.Text] = opt.Count
	}
	if counts["Red"] != 2 || counts["Green"] != 0 || counts["Blue"] != 1 {
		t.Errorf("unexpected tallies: %v", counts)
	}
}

func TestGetPollVotesPrivateCloaked(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	stranger := testutil.CreateTestUser(t, st, models.RoleUser)

	poll := &models.Poll{
		Title:       "Invite only",
		CreatorID:   creator.ID,
		PollOptions: []models.PollOption{{ID: primitive.NewObjectID(), Text: "A"}, {ID: primitive.NewObjectID(), Text: "B"}},
		Active:      true,
		Public:      false,
		Slug:        auth.GenerateSlug("Invite only"),
	}
	if err := st.Polls.Create(context.Background(), poll); err != nil {
		t.Fatalf("failed to seed poll: %v", err)
	}
	testutil.CastTestVote(t, st, poll, 0, nil, "203.0.113.7")

	// A private poll is indistinguishable from a missing one to outsiders
	for _, path := range []string{
		"/polls/" + poll.ID.Hex() + "/votes",
		"/polls/" + poll.ID.Hex() + "/voters",
	} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest("GET", path, nil, nil))
		testutil.AssertStatus(t, w, http.StatusNotFound)

		w = httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest("GET", path, nil, testutil.AuthHeader(t, cfg, stranger)))
		testutil.AssertStatus(t, w, http.StatusNotFound)

		w = httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest("GET", path, nil, testutil.AuthHeader(t, cfg, creator)))
		testutil.AssertStatus(t, w, http.StatusOK)
	}
}

func TestGetPollVotersHidesIPs(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	voter := testutil.CreateTestUser(t, st, models.RoleUser)
	poll := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")

	testutil.CastTestVote(t, st, poll, 0, &voter.ID, "203.0.113.9")
	testutil.CastTestVote(t, st, poll, 1, nil, "203.0.113.10")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/polls/"+poll.ID.Hex()+"/voters", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 voters, got %d", len(resp.Data))
	}

	sawAnonymous := false
	for _, v := range resp.Data {
		for key := range v {
			if key == "voterIp" || key == "ip" {
				t.Errorf("voter summary must not expose IPs, found key %q", key)
			}
		}
		if anon, _ := v["anonymous"].(bool); anon {
			sawAnonymous = true
			if _, present := v["voterId"]; present {
				t.Error("anonymous voter should carry no voterId")
			}
		}
	}
	if !sawAnonymous {
		t.Error("expected one anonymous voter in the summary")
	}
}
