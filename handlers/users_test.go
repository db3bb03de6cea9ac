// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/testutil"
)

type userEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    models.User `json:"data"`
}

func TestPreRegisterAndVerifyFlow(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)

	body := models.PreRegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "Ada@Example.COM",
		Password:  "a-long-enough-password",
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/pre-register", body, nil))
	testutil.AssertStatus(t, w, http.StatusCreated)

	// Email is stored lowercased, account starts unverified
	user, err := st.Users.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("expected user to exist: %v", err)
	}
	if user.Verified {
		t.Error("pre-registered user should not be verified yet")
	}
	if user.VerificationCode == "" {
		t.Fatal("expected a verification code to be stored")
	}

	// Wrong code is rejected
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/register", models.RegisterRequest{
		Email:            "ada@example.com",
		VerificationCode: "not-the-code",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Correct code verifies and logs in
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/register", models.RegisterRequest{
		Email:            "ada@example.com",
		VerificationCode: user.VerificationCode,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	if got := w.Header().Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
		t.Errorf("expected access token in Authorization header, got %q", got)
	}
	if !hasRefreshCookie(w) {
		t.Error("expected a refresh cookie to be set")
	}

	verified, _ := st.Users.GetByEmail(context.Background(), "ada@example.com")
	if !verified.Verified {
		t.Error("user should be verified after registration")
	}
	if verified.VerificationCode != "" {
		t.Error("verification code should be cleared after use")
	}
}

func TestPreRegisterValidation(t *testing.T) {
	mux, _, _ := testutil.NewTestRouter(t)

	tests := []struct {
		name string
		body models.PreRegisterRequest
	}{
		{"missing name", models.PreRegisterRequest{Email: "x@example.com", Password: "long-enough-pw"}},
		{"bad email", models.PreRegisterRequest{FirstName: "A", LastName: "B", Email: "not-an-email", Password: "long-enough-pw"}},
		{"short password", models.PreRegisterRequest{FirstName: "A", LastName: "B", Email: "x@example.com", Password: "short"}},
		{"bogus referral token", models.PreRegisterRequest{FirstName: "A", LastName: "B", Email: "x@example.com", Password: "long-enough-pw", ReferralToken: "garbage"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/pre-register", tt.body, nil))
			testutil.AssertStatus(t, w, http.StatusBadRequest)
		})
	}
}

func TestPreRegisterDuplicateEmail(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	existing := testutil.CreateTestUser(t, st, models.RoleUser)

	body := models.PreRegisterRequest{
		FirstName: "Copy",
		LastName:  "Cat",
		Email:     existing.Email,
		Password:  "a-long-enough-password",
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/pre-register", body, nil))
	testutil.AssertStatus(t, w, http.StatusConflict)
}

func TestRegisterBackfillsAnonymousVotes(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	creator := testutil.CreateTestUser(t, st, models.RoleSubscriber)
	pollA := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")
	pollB := testutil.CreateTestPoll(t, st, creator.ID, "A", "B")

	// Two anonymous votes from the IP the registration will come from
	testutil.CastTestVote(t, st, pollA, 0, nil, testClientIP)
	testutil.CastTestVote(t, st, pollB, 1, nil, testClientIP)
	// And one from elsewhere that must stay anonymous
	testutil.CastTestVote(t, st, pollA, 1, nil, "203.0.113.77")

	body := models.PreRegisterRequest{
		FirstName: "New",
		LastName:  "Voter",
		Email:     "newvoter@example.com",
		Password:  "a-long-enough-password",
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/pre-register", body, nil))
	testutil.AssertStatus(t, w, http.StatusCreated)

	user, _ := st.Users.GetByEmail(context.Background(), "newvoter@example.com")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/register", models.RegisterRequest{
		Email:            user.Email,
		VerificationCode: user.VerificationCode,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	claimed := 0
	votesA, _ := st.Votes.ListByPoll(context.Background(), pollA.ID)
	votesB, _ := st.Votes.ListByPoll(context.Background(), pollB.ID)
	for _, v := range append(votesA, votesB...) {
		if v.VoterID != nil && *v.VoterID == user.ID {
			claimed++
		}
		if v.VoterIP == "203.0.113.77" && v.VoterID != nil {
			t.Error("vote from a different IP must not be claimed")
		}
	}
	if claimed != 2 {
		t.Errorf("expected 2 back-filled votes, got %d", claimed)
	}
}

func TestLogin(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	user := testutil.CreateTestUser(t, st, models.RoleUser)

	// Wrong password
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/login", models.LoginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	// Unknown email gets the same answer
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/login", models.LoginRequest{
		Email:    "nobody@example.com",
		Password: testutil.TestPassword,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	// Success sets both tokens
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/login", models.LoginRequest{
		Email:    user.Email,
		Password: testutil.TestPassword,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	if got := w.Header().Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
		t.Errorf("expected access token in Authorization header, got %q", got)
	}
	if !hasRefreshCookie(w) {
		t.Error("expected refresh cookie on login")
	}

	var resp userEnvelope
	testutil.AssertJSON(t, w, &resp)
	if resp.Data.Email != user.Email {
		t.Errorf("expected logged-in user in response, got %q", resp.Data.Email)
	}
}

func TestLoginUnverified(t *testing.T) {
	mux, _, _ := testutil.NewTestRouter(t)

	body := models.PreRegisterRequest{
		FirstName: "Not",
		LastName:  "Verified",
		Email:     "pending@example.com",
		Password:  "a-long-enough-password",
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/pre-register", body, nil))
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/login", models.LoginRequest{
		Email:    "pending@example.com",
		Password: "a-long-enough-password",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusForbidden)
}

func TestRefreshToken(t *testing.T) {
	mux, st, _ := testutil.NewTestRouter(t)
	user := testutil.CreateTestUser(t, st, models.RoleUser)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/login", models.LoginRequest{
		Email:    user.Email,
		Password: testutil.TestPassword,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	cookies := w.Result().Cookies()
	req := testutil.MakeRequest("POST", "/auth/refresh", nil, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)
	if got := w.Header().Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
		t.Errorf("expected refreshed access token, got %q", got)
	}

	// No cookie at all
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/refresh", nil, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	user := testutil.CreateTestUser(t, st, models.RoleUser)

	newFirst := "Updated"
	newPassword := "my-new-long-password"
	body := models.UpdateProfileRequest{FirstName: &newFirst, Password: &newPassword}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("PUT", "/auth/profile", body, testutil.AuthHeader(t, cfg, user)))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp userEnvelope
	testutil.AssertJSON(t, w, &resp)
	if resp.Data.FirstName != "Updated" {
		t.Errorf("expected updated name, got %q", resp.Data.FirstName)
	}

	// Old password no longer works, new one does
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/login", models.LoginRequest{
		Email:    user.Email,
		Password: testutil.TestPassword,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/login", models.LoginRequest{
		Email:    user.Email,
		Password: newPassword,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestDeleteProfile(t *testing.T) {
	mux, st, cfg := testutil.NewTestRouter(t)
	user := testutil.CreateTestUser(t, st, models.RoleUser)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("DELETE", "/auth/profile", nil, testutil.AuthHeader(t, cfg, user)))
	testutil.AssertStatus(t, w, http.StatusOK)

	if _, err := st.Users.GetByID(context.Background(), user.ID); err == nil {
		t.Error("deleted user should be gone from the store")
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/auth/login", models.LoginRequest{
		Email:    user.Email,
		Password: testutil.TestPassword,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func hasRefreshCookie(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if strings.Contains(c.Name, "refresh") && c.Value != "" && c.HttpOnly {
			return true
		}
	}
	return false
}
