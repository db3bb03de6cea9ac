// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/auth"
	"github.com/danielhkuo/tallyup/cliparse"
	"github.com/danielhkuo/tallyup/mailer"
	"github.com/danielhkuo/tallyup/middleware"
	"github.com/danielhkuo/tallyup/models"
	"github.com/danielhkuo/tallyup/store"
)

// refreshCookieName is the httpOnly cookie carrying the refresh token.
const refreshCookieName = "tallyup_refresh"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type AuthHandler struct {
	st   *store.Store
	cfg  cliparse.Config
	mail mailer.Sender
}

func NewAuthHandler(st *store.Store, cfg cliparse.Config, mail mailer.Sender) *AuthHandler {
	return &AuthHandler{st: st, cfg: cfg, mail: mail}
}

// PreRegister handles POST /auth/pre-register. Creates an unverified user
// and emails them a verification code. An optional referral token (from a
// public share link) records who referred them.
func (h *AuthHandler) PreRegister(w http.ResponseWriter, r *http.Request) {
	var req models.PreRegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.FirstName == "" || req.LastName == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "firstName and lastName are required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	var referrerID *primitive.ObjectID
	if req.ReferralToken != "" {
		claims, err := auth.Verify(req.ReferralToken, h.cfg.ShareTokenSecret, auth.TokenTypeShare)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "invalid referral token")
			return
		}
		id, err := primitive.ObjectIDFromHex(claims.ReferrerID)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "invalid referral token")
			return
		}
		referrerID = &id
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	user := &models.User{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            email,
		PasswordHash:     hash,
		Role:             models.RoleUser,
		ReferrerID:       referrerID,
		UserIP:           middleware.GetClientIP(r),
		Verified:         false,
		VerificationCode: auth.GenerateVerificationCode(),
	}

	if err := h.st.Users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			middleware.ErrorResponse(w, http.StatusConflict, "email already registered")
			return
		}
		slog.Error("failed to insert user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	body := fmt.Sprintf("Welcome to Tallyup, %s!\n\nYour verification code is: %s\n", user.FirstName, user.VerificationCode)
	if err := h.mail.Send(email, "Verify your Tallyup account", body); err != nil {
		// The code is persisted; a resend can recover from a mail outage.
		slog.Warn("failed to send verification mail", "error", err, "email", email)
	}

	slog.Info("user pre-registered", "user_id", user.ID.Hex(), "referred", referrerID != nil)

	middleware.SuccessResponse(w, http.StatusCreated, "Verification code sent", map[string]string{"email": email})
}

// Register handles POST /auth/register. Confirms the emailed code, marks the
// user verified, back-fills their earlier anonymous votes from the same IP,
// and logs them in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.VerificationCode == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email and verificationCode are required")
		return
	}

	user, err := h.st.Users.Verify(r.Context(), email, req.VerificationCode)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid verification code")
		return
	}
	if err != nil {
		slog.Error("failed to verify user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to verify")
		return
	}

	// Votes cast anonymously from this IP before the account existed now
	// belong to it.
	ip := middleware.GetClientIP(r)
	claimed, err := h.st.Votes.ClaimAnonymousVotes(r.Context(), ip, user.ID)
	if err != nil {
		slog.Warn("failed to back-fill anonymous votes", "error", err, "user_id", user.ID.Hex())
	} else if claimed > 0 {
		slog.Info("anonymous votes back-filled", "user_id", user.ID.Hex(), "count", claimed)
	}

	if err := h.issueSession(w, user); err != nil {
		slog.Error("failed to issue session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to verify")
		return
	}

	slog.Info("user verified", "user_id", user.ID.Hex())

	middleware.SuccessResponse(w, http.StatusOK, "Account verified", user)
}

// Login handles POST /auth/login. The access token is returned in the
// Authorization response header, the refresh token in an httpOnly cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.st.Users.GetByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !user.Verified {
		middleware.ErrorResponse(w, http.StatusForbidden, "email not verified")
		return
	}

	if err := h.issueSession(w, user); err != nil {
		slog.Error("failed to issue session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	slog.Info("user logged in", "user_id", user.ID.Hex())

	middleware.SuccessResponse(w, http.StatusOK, "Logged in", user)
}

// Refresh handles POST /auth/refresh. Exchanges the refresh cookie for a
// fresh access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	claims, err := auth.Verify(cookie.Value, h.cfg.RefreshTokenSecret, auth.TokenTypeRefresh)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	user, err := h.st.Users.GetByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	access, err := auth.SignSession(user.ID, user.Role, auth.TokenTypeAccess, h.cfg.AccessTokenSecret, h.cfg.AccessTokenTTL)
	if err != nil {
		slog.Error("failed to sign access token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to refresh")
		return
	}
	w.Header().Set("Authorization", "Bearer "+access)

	middleware.SuccessResponse(w, http.StatusOK, "Token refreshed", nil)
}

// Logout handles POST /auth/logout. Sessions are stateless, so logging out
// just drops the refresh cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	middleware.SuccessResponse(w, http.StatusOK, "Logged out", nil)
}

// UpdateProfile handles PUT /auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, ac auth.Context) {
	var req models.UpdateProfileRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var passwordHash *string
	if req.Password != nil {
		if len(*req.Password) < 8 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update profile")
			return
		}
		passwordHash = &hash
	}

	user, err := h.st.Users.UpdateProfile(r.Context(), ac.UserID, req.FirstName, req.LastName, passwordHash)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to update profile", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	slog.Info("profile updated", "user_id", ac.UserID.Hex())

	middleware.SuccessResponse(w, http.StatusOK, "Profile updated", user)
}

// DeleteProfile handles DELETE /auth/profile. Removes the account; votes
// already cast keep their voterId (the reference is weak) but no longer
// resolve to a user.
func (h *AuthHandler) DeleteProfile(w http.ResponseWriter, r *http.Request, ac auth.Context) {
	if err := h.st.Users.Delete(r.Context(), ac.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("failed to delete user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	slog.Info("user deleted", "user_id", ac.UserID.Hex())

	middleware.SuccessResponse(w, http.StatusOK, "Account deleted", nil)
}

// issueSession signs both tokens for a user: access token in the
// Authorization response header, refresh token as an httpOnly cookie.
func (h *AuthHandler) issueSession(w http.ResponseWriter, user *models.User) error {
	access, err := auth.SignSession(user.ID, user.Role, auth.TokenTypeAccess, h.cfg.AccessTokenSecret, h.cfg.AccessTokenTTL)
	if err != nil {
		return err
	}
	refresh, err := auth.SignSession(user.ID, user.Role, auth.TokenTypeRefresh, h.cfg.RefreshTokenSecret, h.cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}

	w.Header().Set("Authorization", "Bearer "+access)
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refresh,
		Path:     "/auth",
		MaxAge:   int(h.cfg.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}
