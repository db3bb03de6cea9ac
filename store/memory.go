// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/danielhkuo/tallyup/models"
)

// NewMemoryStore builds a Store backed by in-process maps. It mirrors the
// Mongo implementation's semantics, including the unique slug/email checks
// and the atomicity of the tally increment, and is what the handler tests
// run against.
func NewMemoryStore() *Store {
	return &Store{
		Polls: &memoryPollStore{polls: make(map[primitive.ObjectID]*models.Poll)},
		Votes: &memoryVoteStore{},
		Users: &memoryUserStore{users: make(map[primitive.ObjectID]*models.User)},
	}
}

// Polls

type memoryPollStore struct {
	mu    sync.Mutex
	polls map[primitive.ObjectID]*models.Poll
}

func copyPoll(p *models.Poll) *models.Poll {
	cp := *p
	cp.PollOptions = append([]models.PollOption(nil), p.PollOptions...)
	cp.ChatMessages = append([]models.ChatMessage(nil), p.ChatMessages...)
	return &cp
}

func (s *memoryPollStore) Create(ctx context.Context, poll *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.polls {
		if existing.Slug == poll.Slug {
			return ErrDuplicate
		}
	}
	if poll.ID.IsZero() {
		poll.ID = primitive.NewObjectID()
	}
	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = time.Now().UTC()
	}
	s.polls[poll.ID] = copyPoll(poll)
	return nil
}

func (s *memoryPollStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPoll(poll), nil
}

func (s *memoryPollStore) GetBySlug(ctx context.Context, slug string) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, poll := range s.polls {
		if poll.Slug == slug {
			return copyPoll(poll), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryPollStore) List(ctx context.Context) ([]models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	polls := []models.Poll{}
	for _, poll := range s.polls {
		if poll.Public && poll.Active {
			polls = append(polls, *copyPoll(poll))
		}
	}
	sort.Slice(polls, func(i, j int) bool {
		return polls[i].CreatedAt.After(polls[j].CreatedAt)
	})
	return polls, nil
}

func (s *memoryPollStore) Update(ctx context.Context, id primitive.ObjectID, req models.UpdatePollRequest) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Title != nil {
		poll.Title = *req.Title
	}
	if req.Description != nil {
		poll.Description = *req.Description
	}
	if req.StartDate != nil {
		poll.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		poll.EndDate = req.EndDate
	}
	if req.Public != nil {
		poll.Public = *req.Public
	}
	if req.Category != nil {
		poll.Category = *req.Category
	}
	return copyPoll(poll), nil
}

func (s *memoryPollStore) SetActive(ctx context.Context, id primitive.ObjectID, active bool) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	poll.Active = active
	return copyPoll(poll), nil
}

func (s *memoryPollStore) IncrementOptionCount(ctx context.Context, pollID, optionID primitive.ObjectID) (*models.PollOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return nil, ErrNotFound
	}
	opt := poll.OptionByID(optionID)
	if opt == nil {
		return nil, ErrNotFound
	}
	opt.Count++
	cp := *opt
	return &cp, nil
}

func (s *memoryPollStore) AppendChatMessage(ctx context.Context, pollID primitive.ObjectID, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	poll.ChatMessages = append(poll.ChatMessages, msg)
	if len(poll.ChatMessages) > models.ChatLogCap {
		poll.ChatMessages = poll.ChatMessages[len(poll.ChatMessages)-models.ChatLogCap:]
	}
	return nil
}

func (s *memoryPollStore) GetChat(ctx context.Context, pollID primitive.ObjectID) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.ChatMessage{}, poll.ChatMessages...), nil
}

// Votes

type memoryVoteStore struct {
	mu    sync.Mutex
	votes []models.Vote
}

func (s *memoryVoteStore) Create(ctx context.Context, vote *models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vote.ID.IsZero() {
		vote.ID = primitive.NewObjectID()
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}
	s.votes = append(s.votes, *vote)
	return nil
}

func (s *memoryVoteStore) CountAnonymousByIP(ctx context.Context, ip string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.votes {
		if s.votes[i].VoterIP == ip && s.votes[i].VoterID == nil {
			n++
		}
	}
	return n, nil
}

func (s *memoryVoteStore) HasVoted(ctx context.Context, pollID primitive.ObjectID, voterID *primitive.ObjectID, ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.votes {
		v := &s.votes[i]
		if v.PollID != pollID {
			continue
		}
		if voterID != nil {
			if v.VoterID != nil && *v.VoterID == *voterID {
				return true, nil
			}
		} else if v.VoterID == nil && v.VoterIP == ip {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryVoteStore) ListByPoll(ctx context.Context, pollID primitive.ObjectID) ([]models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes := []models.Vote{}
	for i := range s.votes {
		if s.votes[i].PollID == pollID {
			votes = append(votes, s.votes[i])
		}
	}
	return votes, nil
}

func (s *memoryVoteStore) ClaimAnonymousVotes(ctx context.Context, ip string, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.votes {
		if s.votes[i].VoterIP == ip && s.votes[i].VoterID == nil {
			id := userID
			s.votes[i].VoterID = &id
			n++
		}
	}
	return n, nil
}

// Users

type memoryUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func (s *memoryUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memoryUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *memoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, firstName, lastName, passwordHash *string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if firstName != nil {
		user.FirstName = *firstName
	}
	if lastName != nil {
		user.LastName = *lastName
	}
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	cp := *user
	return &cp, nil
}

func (s *memoryUserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memoryUserStore) Verify(ctx context.Context, email, code string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email && !user.Verified && user.VerificationCode == code {
			user.Verified = true
			user.VerificationCode = ""
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUserStore) ClaimReferralCredit(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok || user.ReferralCredited || user.Points != 0 {
		return false, nil
	}
	user.ReferralCredited = true
	return true, nil
}

func (s *memoryUserStore) CreditReferrer(ctx context.Context, id primitive.ObjectID, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.ReferralPoints += points
	return nil
}

func (s *memoryUserStore) RecordVote(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user.Points++
	user.VoteCount++
	cp := *user
	return &cp, nil
}
