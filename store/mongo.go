// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/danielhkuo/tallyup/models"
)

// Collection names.
const (
	CollPolls = "polls"
	CollVotes = "votes"
	CollUsers = "users"
)

// NewMongoStore builds a Store backed by the given database. Callers are
// expected to have run db.EnsureIndexes against the same database.
func NewMongoStore(database *mongo.Database) *Store {
	return &Store{
		Polls: &mongoPollStore{coll: database.Collection(CollPolls)},
		Votes: &mongoVoteStore{coll: database.Collection(CollVotes)},
		Users: &mongoUserStore{coll: database.Collection(CollUsers)},
	}
}

func translateMongoErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// Polls

type mongoPollStore struct {
	coll *mongo.Collection
}

func (s *mongoPollStore) Create(ctx context.Context, poll *models.Poll) error {
	if poll.ID.IsZero() {
		poll.ID = primitive.NewObjectID()
	}
	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, poll)
	return translateMongoErr(err)
}

func (s *mongoPollStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Poll, error) {
	var poll models.Poll
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&poll)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &poll, nil
}

func (s *mongoPollStore) GetBySlug(ctx context.Context, slug string) (*models.Poll, error) {
	var poll models.Poll
	err := s.coll.FindOne(ctx, bson.M{"slug": slug}).Decode(&poll)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &poll, nil
}

func (s *mongoPollStore) List(ctx context.Context) ([]models.Poll, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"public": true, "active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	polls := []models.Poll{}
	if err := cur.All(ctx, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}

func (s *mongoPollStore) Update(ctx context.Context, id primitive.ObjectID, req models.UpdatePollRequest) (*models.Poll, error) {
	set := bson.M{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.StartDate != nil {
		set["startDate"] = *req.StartDate
	}
	if req.EndDate != nil {
		set["endDate"] = *req.EndDate
	}
	if req.Public != nil {
		set["public"] = *req.Public
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}
	if len(set) == 0 {
		return s.GetByID(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var poll models.Poll
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&poll)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &poll, nil
}

func (s *mongoPollStore) SetActive(ctx context.Context, id primitive.ObjectID, active bool) (*models.Poll, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var poll models.Poll
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": active}}, opts).Decode(&poll)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &poll, nil
}

// IncrementOptionCount matches the poll AND the embedded option in a single
// conditional update so concurrent votes for the same option never lose an
// increment to a read-modify-write interleaving.
func (s *mongoPollStore) IncrementOptionCount(ctx context.Context, pollID, optionID primitive.ObjectID) (*models.PollOption, error) {
	filter := bson.M{"_id": pollID, "pollOptions._id": optionID}
	update := bson.M{"$inc": bson.M{"pollOptions.$.count": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var poll models.Poll
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&poll); err != nil {
		return nil, translateMongoErr(err)
	}

	opt := poll.OptionByID(optionID)
	if opt == nil {
		// The filter matched, so the option must be present; a miss here
		// means the document changed shape mid-flight.
		return nil, ErrNotFound
	}
	return opt, nil
}

func (s *mongoPollStore) AppendChatMessage(ctx context.Context, pollID primitive.ObjectID, msg models.ChatMessage) error {
	update := bson.M{
		"$push": bson.M{
			"chatMessages": bson.M{
				"$each":  bson.A{msg},
				"$slice": -models.ChatLogCap,
			},
		},
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": pollID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoPollStore) GetChat(ctx context.Context, pollID primitive.ObjectID) ([]models.ChatMessage, error) {
	opts := options.FindOne().SetProjection(bson.M{"chatMessages": 1})
	var poll models.Poll
	if err := s.coll.FindOne(ctx, bson.M{"_id": pollID}, opts).Decode(&poll); err != nil {
		return nil, translateMongoErr(err)
	}
	if poll.ChatMessages == nil {
		return []models.ChatMessage{}, nil
	}
	return poll.ChatMessages, nil
}

// Votes

type mongoVoteStore struct {
	coll *mongo.Collection
}

func (s *mongoVoteStore) Create(ctx context.Context, vote *models.Vote) error {
	if vote.ID.IsZero() {
		vote.ID = primitive.NewObjectID()
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, vote)
	return translateMongoErr(err)
}

func (s *mongoVoteStore) CountAnonymousByIP(ctx context.Context, ip string) (int64, error) {
	filter := bson.M{"voterIp": ip, "voterId": bson.M{"$exists": false}}
	return s.coll.CountDocuments(ctx, filter)
}

func (s *mongoVoteStore) HasVoted(ctx context.Context, pollID primitive.ObjectID, voterID *primitive.ObjectID, ip string) (bool, error) {
	filter := bson.M{"pollId": pollID}
	if voterID != nil {
		filter["voterId"] = *voterID
	} else {
		filter["voterIp"] = ip
		filter["voterId"] = bson.M{"$exists": false}
	}
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *mongoVoteStore) ListByPoll(ctx context.Context, pollID primitive.ObjectID) ([]models.Vote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"pollId": pollID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	votes := []models.Vote{}
	if err := cur.All(ctx, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

func (s *mongoVoteStore) ClaimAnonymousVotes(ctx context.Context, ip string, userID primitive.ObjectID) (int64, error) {
	filter := bson.M{"voterIp": ip, "voterId": bson.M{"$exists": false}}
	res, err := s.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"voterId": userID}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Users

type mongoUserStore struct {
	coll *mongo.Collection
}

func (s *mongoUserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, user)
	return translateMongoErr(err)
}

func (s *mongoUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translateMongoErr(err)
	}
	return &user, nil
}

func (s *mongoUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, translateMongoErr(err)
	}
	return &user, nil
}

func (s *mongoUserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, firstName, lastName, passwordHash *string) (*models.User, error) {
	set := bson.M{}
	if firstName != nil {
		set["firstName"] = *firstName
	}
	if lastName != nil {
		set["lastName"] = *lastName
	}
	if passwordHash != nil {
		set["passwordHash"] = *passwordHash
	}
	if len(set) == 0 {
		return s.GetByID(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user); err != nil {
		return nil, translateMongoErr(err)
	}
	return &user, nil
}

func (s *mongoUserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoUserStore) Verify(ctx context.Context, email, code string) (*models.User, error) {
	filter := bson.M{"email": email, "verificationCode": code, "verified": false}
	update := bson.M{
		"$set":   bson.M{"verified": true},
		"$unset": bson.M{"verificationCode": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		return nil, translateMongoErr(err)
	}
	return &user, nil
}

// ClaimReferralCredit is a compare-and-set on the one-time flag: only the
// first caller for a user whose points are still zero wins. This is what
// keeps the referrer from being credited twice when two first-votes race.
func (s *mongoUserStore) ClaimReferralCredit(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "referralCredited": false, "points": 0}
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"referralCredited": true}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *mongoUserStore) CreditReferrer(ctx context.Context, id primitive.ObjectID, points int64) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"referralPoints": points}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoUserStore) RecordVote(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	update := bson.M{"$inc": bson.M{"points": 1, "voteCount": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		return nil, translateMongoErr(err)
	}
	return &user, nil
}
