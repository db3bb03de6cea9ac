// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/tallyup/auth"
	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/testutil"
)

func TestInviteCreatorOnly(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	stranger := testutil.CreateTestUser(t, st, models.RoleUser)

	poll := &models.Poll{
		Title:       "Members only",
		CreatorID:   creator.ID,
		PollOptions: []models.PollOption{{Text: "A"}, {Text: "B"}},
		Active:      true,
		Public:      false,
		Slug:        auth.GenerateSlug("Members only"),
	}
	if err := st.Polls.Create(context.Background(), poll); err != nil {
		t.Fatalf("failed to seed poll: %v", err)
	}
	path := "/polls/" + poll.ID.Hex() + "/invites"
	body := models.CreateInviteRequest{Email: "guest@example.com"}

	// Not the creator
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", path, body, testutil.AuthHeader(t, cfg, stranger)))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	// Creator succeeds
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", path, body, testutil.AuthHeader(t, cfg, creator)))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp struct {
		Data models.InviteResponse `json:"data"`
	}
	testutil.AssertJSON(t, w, &resp)
	if resp.Data.Email != "guest@example.com" {
		t.Errorf("expected invitee email in response, got %q", resp.Data.Email)
	}
	if resp.Data.ExpiresAt.IsZero() {
		t.Error("invite should carry an expiry")
	}
}

func TestPrivatePollAccess(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)

	poll := &models.Poll{
		Title:       "Invitation required",
		CreatorID:   creator.ID,
		PollOptions: []models.PollOption{{Text: "A"}, {Text: "B"}},
		Active:      true,
		Public:      false,
		Slug:        auth.GenerateSlug("Invitation required"),
	}
	if err := st.Polls.Create(context.Background(), poll); err != nil {
		t.Fatalf("failed to seed poll: %v", err)
	}

	token, err := auth.SignInvite(poll.ID, "guest@example.com", cfg.ShareTokenSecret, cfg.InviteTTL)
	if err != nil {
		t.Fatalf("failed to sign invite: %v", err)
	}

	// The capability alone grants access, no session needed
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/poll_access/private/"+token, nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp pollEnvelope
	testutil.AssertJSON(t, w, &resp)
	if resp.Data.ID != poll.ID {
		t.Errorf("expected poll %s, got %s", poll.ID.Hex(), resp.Data.ID.Hex())
	}

	// Garbage token
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/poll_access/private/garbage", nil, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	// A share token is not an invite token
	shareTok, _ := auth.SignShareLink(poll.ID, creator.ID, cfg.ShareTokenSecret)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/poll_access/private/"+shareTok, nil, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func TestShareLinkFlow(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	sharer := testutil.CreateTestUser(t, st, models.RoleUser)
	poll := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+poll.ID.Hex()+"/public_poll_share_link", nil, testutil.AuthHeader(t, cfg, sharer)))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp struct {
		Data models.ShareLinkResponse `json:"data"`
	}
	testutil.AssertJSON(t, w, &resp)
	if resp.Data.AccessToken == "" {
		t.Fatal("expected a share token")
	}
	if !strings.Contains(resp.Data.ShareURL, resp.Data.AccessToken) {
		t.Error("share URL should embed the token")
	}

	// The link resolves to the poll
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/poll_access/public/"+resp.Data.AccessToken, nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	// Registering through the link records the sharer as referrer
	body := models.PreRegisterRequest{
		FirstName:     "Came",
		LastName:      "Through",
		Email:         "through-the-link@example.com",
		Password:      "a-long-enough-password",
		ReferralToken: resp.Data.AccessToken,
	}
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/pre-register", body, nil))
	testutil.AssertStatus(t, w, http.StatusCreated)

	user, err := st.Users.GetByEmail(context.Background(), "through-the-link@example.com")
	if err != nil {
		t.Fatalf("expected user to exist: %v", err)
	}
	if user.ReferrerID == nil || *user.ReferrerID != sharer.ID {
		t.Error("expected the sharer recorded as referrer")
	}
}

func TestShareLinkRequiresPublicPoll(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)

	private := &models.Poll{
		Title:       "Not shareable",
		CreatorID:   creator.ID,
		PollOptions: []models.PollOption{{Text: "A"}, {Text: "B"}},
		Active:      true,
		Public:      false,
		Slug:        auth.GenerateSlug("Not shareable"),
	}
	if err := st.Polls.Create(context.Background(), private); err != nil {
		t.Fatalf("failed to seed poll: %v", err)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/polls/"+private.ID.Hex()+"/public_poll_share_link", nil, testutil.AuthHeader(t, cfg, creator)))
	testutil.AssertStatus(t, w, http.StatusForbidden)
}
