// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/auth"
	"github.com/danielhkuo/tallyup/cliparse"
	"github.com/danielhkuo/tallyup/event"
	"github.com/danielhkuo/tallyup/mailer"
	"github.com/danielhkuo/tallyup/metrics"
	"github.com/danielhkuo/tallyup/middleware"
	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/router"
	"github.com/danielhkuo/tallyup/store"
)

// TestPassword is the plaintext password every test user is created with.
const TestPassword = "correct-horse-battery"

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:               3318,
		MongoDatabase:      "tallyup_test",
		AccessTokenSecret:  "test-access-secret",
		RefreshTokenSecret: "test-refresh-secret",
		ShareTokenSecret:   "test-share-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		InviteTTL:          7 * 24 * time.Hour,
		SMTPFrom:           "no-reply@tallyup.test",
		BaseURL:            "http://localhost:3318",
	}
}

// NewTestRouter builds the full route table over an in-memory store, with
// the in-process rate limiter, a no-op event publisher, and a logging mailer.
// Requests served through it get real path values and middleware.
func NewTestRouter(t *testing.T) (*http.ServeMux, *store.Store, cliparse.Config) {
	t.Helper()

	st := store.NewMemoryStore()
	cfg := GetTestConfig()
	mux := router.NewRouter(router.Deps{
		Store:     st,
		Config:    cfg,
		Limiter:   middleware.NewMemoryLimiter(),
		Publisher: event.NopPublisher{},
		Metrics:   metrics.NewVoteMetrics(prometheus.NewRegistry(), "tallyup"),
		Mailer:    mailer.LogSender{},
	})
	return mux, st, cfg
}

// CreateTestUser inserts a verified user with the given role and returns it.
// The password is always TestPassword.
func CreateTestUser(t *testing.T, st *store.Store, role string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}

	suffix, _ := auth.GenerateID(6)
	user := &models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        "user-" + suffix + "@tallyup.test",
		PasswordHash: hash,
		Role:         role,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// AuthHeader returns the Authorization header map for a signed access token.
func AuthHeader(t *testing.T, cfg cliparse.Config, user *models.User) map[string]string {
	t.Helper()

	token, err := auth.SignSession(user.ID, user.Role, auth.TokenTypeAccess, cfg.AccessTokenSecret, cfg.AccessTokenTTL)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// CreateTestPoll inserts an active public poll owned by creatorID with one
// option per label, and returns it.
func CreateTestPoll(t *testing.T, st *store.Store, creatorID primitive.ObjectID, labels ...string) *models.Poll {
	t.Helper()

	options := make([]models.PollOption, len(labels))
	for i, label := range labels {
		options[i] = models.PollOption{ID: primitive.NewObjectID(), Text: label}
	}

	poll := &models.Poll{
		Title:       "Test Poll",
		Description: "A test poll",
		CreatorID:   creatorID,
		PollOptions: options,
		Active:      true,
		Public:      true,
		Slug:        auth.GenerateSlug("Test Poll"),
		CreatedAt:   time.Now().UTC(),
	}
	if err := st.Polls.Create(context.Background(), poll); err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return poll
}

// CastTestVote records a vote the way the vote handler does: insert the vote
// document, then bump the option tally.
func CastTestVote(t *testing.T, st *store.Store, poll *models.Poll, optionIdx int, voterID *primitive.ObjectID, ip string) *models.Vote {
	t.Helper()

	vote := &models.Vote{
		PollID:       poll.ID,
		PollOptionID: poll.PollOptions[optionIdx].ID,
		VoterID:      voterID,
		VoterIP:      ip,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.Votes.Create(context.Background(), vote); err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
	if _, err := st.Polls.IncrementOptionCount(context.Background(), poll.ID, vote.PollOptionID); err != nil {
		t.Fatalf("Failed to bump test tally: %v", err)
	}
	return vote
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
