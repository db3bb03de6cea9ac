package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User role constants
const (
	RoleAdmin      = "admin"
	RoleSubscriber = "subscriber"
	RoleUser       = "user"
)

// ChatLogCap is the maximum number of chat messages retained per poll.
const ChatLogCap = 200

// AnonymousVoteQuota is the number of votes a single IP may cast without an
// account before further votes are rejected.
const AnonymousVoteQuota = 5

// ReferralBonusPoints is credited to a referrer when their referred user
// casts a qualifying first vote.
const ReferralBonusPoints = 10

// Request types

type CreatePollRequest struct {
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	PollOptions        []PollOptionRequest `json:"pollOptions"`
	StartDate          *time.Time          `json:"startDate,omitempty"`
	EndDate            *time.Time          `json:"endDate,omitempty"`
	Public             *bool               `json:"public,omitempty"`
	AllowMultipleVotes bool                `json:"allowMultipleVotes"`
	Category           string              `json:"category"`
}

type PollOptionRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type UpdatePollRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Public      *bool      `json:"public,omitempty"`
	Category    *string    `json:"category,omitempty"`
}

type CastVoteRequest struct {
	VoterID        string `json:"voterId,omitempty"`
	PollOptionID   string `json:"pollOptionId"`
	VoterEthnicity string `json:"voterEthnicity,omitempty"`
	VoterGender    string `json:"voterGender,omitempty"`
}

type PreRegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	// ReferralToken is the public share link capability, if the user arrived
	// through one. Its referrerId claim becomes the new user's referrer.
	ReferralToken string `json:"referralToken,omitempty"`
}

type RegisterRequest struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verificationCode"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Password  *string `json:"password,omitempty"`
}

type CreateInviteRequest struct {
	Email string `json:"email"`
}

type PostChatMessageRequest struct {
	Content string `json:"content"`
}

// Response types

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// OptionVoteTally is the post-increment state of the voted option.
type OptionVoteTally struct {
	PollOptionText string `json:"pollOptionText"`
	Count          int64  `json:"count"`
	ID             string `json:"id"`
}

// CastVoteData is the data payload for a successful vote. The user fields are
// present only when the vote is attributed to an authenticated user.
type CastVoteData struct {
	OptionVoteTally OptionVoteTally `json:"optionVoteTally"`
	PointsEarned    *int64          `json:"pointsEarned,omitempty"`
	TotalPoints     *int64          `json:"totalPoints,omitempty"`
	VoteCount       *int64          `json:"voteCount,omitempty"`
}

// PollOptionView is the public shape of a poll option (image stripped).
type PollOptionView struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Count int64  `json:"count"`
}

// PollTallies aggregates per-option counts for GET /polls/{id}/votes.
type PollTallies struct {
	PollID     string           `json:"pollId"`
	TotalVotes int64            `json:"totalVotes"`
	Options    []PollOptionView `json:"options"`
}

// VoterSummary describes one voter for GET /polls/{id}/voters. Anonymous
// voters carry only location fields.
type VoterSummary struct {
	VoterID      string    `json:"voterId,omitempty"`
	Anonymous    bool      `json:"anonymous"`
	VoterCountry string    `json:"voterCountry,omitempty"`
	VoterRegion  string    `json:"voterRegion,omitempty"`
	VoterCity    string    `json:"voterCity,omitempty"`
	VotedAt      time.Time `json:"votedAt"`
}

type ShareLinkResponse struct {
	AccessToken string `json:"accessToken"`
	ShareURL    string `json:"shareUrl"`
}

type InviteResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Domain types

type Poll struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title              string             `bson:"title" json:"title"`
	Description        string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatorID          primitive.ObjectID `bson:"creatorId" json:"creatorId"`
	PollOptions        []PollOption       `bson:"pollOptions" json:"pollOptions"`
	StartDate          *time.Time         `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate            *time.Time         `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Active             bool               `bson:"active" json:"active"`
	Public             bool               `bson:"public" json:"public"`
	AllowMultipleVotes bool               `bson:"allowMultipleVotes" json:"allowMultipleVotes"`
	Category           string             `bson:"category,omitempty" json:"category,omitempty"`
	Slug               string             `bson:"slug" json:"slug"`
	ChatMessages       []ChatMessage      `bson:"chatMessages,omitempty" json:"-"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
}

type PollOption struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Text  string             `bson:"text" json:"text"`
	Image string             `bson:"image,omitempty" json:"image,omitempty"`
	Count int64              `bson:"count" json:"count"`
}

type ChatMessage struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Vote struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PollID         primitive.ObjectID  `bson:"pollId" json:"pollId"`
	PollOptionID   primitive.ObjectID  `bson:"pollOptionId" json:"pollOptionId"`
	VoterID        *primitive.ObjectID `bson:"voterId,omitempty" json:"voterId,omitempty"`
	VoterIP        string              `bson:"voterIp" json:"-"` // Never expose in JSON
	VoterCountry   string              `bson:"voterCountry,omitempty" json:"voterCountry,omitempty"`
	VoterRegion    string              `bson:"voterRegion,omitempty" json:"voterRegion,omitempty"`
	VoterCity      string              `bson:"voterCity,omitempty" json:"voterCity,omitempty"`
	VoterEthnicity string              `bson:"voterEthnicity,omitempty" json:"voterEthnicity,omitempty"`
	VoterGender    string              `bson:"voterGender,omitempty" json:"voterGender,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
}

type User struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FirstName        string              `bson:"firstName" json:"firstName"`
	LastName         string              `bson:"lastName" json:"lastName"`
	Email            string              `bson:"email" json:"email"` // stored lowercase, unique
	PasswordHash     string              `bson:"passwordHash" json:"-"`
	Role             string              `bson:"role" json:"role"`
	ReferrerID       *primitive.ObjectID `bson:"referrerId,omitempty" json:"referrerId,omitempty"`
	ReferralCredited bool                `bson:"referralCredited" json:"-"`
	Points           int64               `bson:"points" json:"points"`
	ReferralPoints   int64               `bson:"referralPoints" json:"referralPoints"`
	VoteCount        int64               `bson:"voteCount" json:"voteCount"`
	UserIP           string              `bson:"userIp,omitempty" json:"-"`
	Verified         bool                `bson:"verified" json:"verified"`
	VerificationCode string              `bson:"verificationCode,omitempty" json:"-"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
}

// CanCreatePolls reports whether the user's role allows poll creation.
func (u *User) CanCreatePolls() bool {
	return u.Role == RoleAdmin || u.Role == RoleSubscriber
}

// OptionByID returns the embedded option with the given id, or nil.
func (p *Poll) OptionByID(id primitive.ObjectID) *PollOption {
	for i := range p.PollOptions {
		if p.PollOptions[i].ID == id {
			return &p.PollOptions[i]
		}
	}
	return nil
}

// OpenForVoting reports whether the poll accepts votes at the given time.
// A soft-deleted poll (active=false) never does; start/end dates are
// optional bounds.
func (p *Poll) OpenForVoting(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartDate != nil && now.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && now.After(*p.EndDate) {
		return false
	}
	return true
}
