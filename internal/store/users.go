package store

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// User as persisted. Roles holds role ids, not role objects; responses
// re-resolve them through the lookup aggregation. Username, password, and
// email stay unset until the account is activated, and the omitempty tags
// keep them absent from the document so the partial unique index on
// username only sees activated accounts.
type User struct {
	ID               int64   `json:"id" bson:"_id"`
	FirstName        string  `json:"firstName" bson:"firstName"`
	LastNamePaternal string  `json:"lastNamePaternal" bson:"lastNamePaternal"`
	LastNameMaternal string  `json:"lastNameMaternal" bson:"lastNameMaternal"`
	Roles            []int64 `json:"roles" bson:"roles"`
	Username         string  `json:"-" bson:"username,omitempty"`
	Password         string  `json:"-" bson:"password,omitempty"`
	Enabled          bool    `json:"enabled" bson:"enabled"`
	Email            string  `json:"-" bson:"email,omitempty"`
}

// SetPassword stores the bcrypt hash of text.
func (u *User) SetPassword(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// ComparePassword checks text against the stored hash.
func (u *User) ComparePassword(text string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(text))
}

// HasPassword reports whether the account ever set a password, which is the
// "already active" signal for the activation flow.
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// UserWithRoles is the read model produced by the role lookup aggregation:
// the user's role ids replaced with the full role records at read time.
type UserWithRoles struct {
	ID               int64  `json:"id" bson:"_id"`
	FirstName        string `json:"firstName" bson:"firstName"`
	LastNamePaternal string `json:"lastNamePaternal" bson:"lastNamePaternal"`
	LastNameMaternal string `json:"lastNameMaternal" bson:"lastNameMaternal"`
	Roles            []Role `json:"roles" bson:"roles"`
}

type UsersStore struct {
	db        *mongo.Database
	sequences *SequencesStore
}

func (s *UsersStore) collection() *mongo.Collection {
	return s.db.Collection(UserCollection)
}

// roleLookupStage joins user.roles (ids) against role._id, replacing the
// array in place.
func roleLookupStage() bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: RoleCollection},
		{Key: "localField", Value: "roles"},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: "roles"},
	}}}
}

// Create persists a new user, assigning an id from the sequence generator
// when unset.
func (s *UsersStore) Create(ctx context.Context, user *User) error {
	if user.ID == 0 {
		id, err := s.sequences.Next(ctx, UserCollection)
		if err != nil {
			return err
		}
		user.ID = id
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.collection().InsertOne(ctx, user)
	return wrapWriteError(err)
}

// CreateAll inserts the batch in order with ids assigned up front. Not
// transactional across documents: a mid-batch failure leaves a prefix saved.
func (s *UsersStore) CreateAll(ctx context.Context, users []*User) error {
	if len(users) == 0 {
		return nil
	}

	docs := make([]any, 0, len(users))
	for _, user := range users {
		if user.ID == 0 {
			id, err := s.sequences.Next(ctx, UserCollection)
			if err != nil {
				return err
			}
			user.ID = id
		}
		docs = append(docs, user)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.collection().InsertMany(ctx, docs)
	return wrapWriteError(err)
}

// Update replaces the whole document. Callers fetch first and mutate, so
// fields they leave alone survive the replace.
func (s *UsersStore) Update(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.collection().ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return wrapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) GetByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var user User
	err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UsersStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var user User
	err := s.collection().FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDWithRoles is the single-record join variant: match on _id, then
// look up the role records.
func (s *UsersStore) GetByIDWithRoles(ctx context.Context, id int64) (*UserWithRoles, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		roleLookupStage(),
	}

	cursor, err := s.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var results []UserWithRoles
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return &results[0], nil
}

// List returns users with their roles joined in. q.All bypasses pagination
// and returns the whole collection as one page.
func (s *UsersStore) List(ctx context.Context, q PageQuery) (*Page[UserWithRoles], error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if q.All {
		cursor, err := s.collection().Aggregate(ctx, mongo.Pipeline{roleLookupStage()})
		if err != nil {
			return nil, err
		}
		var users []UserWithRoles
		if err := cursor.All(ctx, &users); err != nil {
			return nil, err
		}
		return NewUnpagedPage(users), nil
	}

	return s.aggregatePage(ctx, nil, q)
}

// SearchByName matches the first name only, case-insensitive substring.
func (s *UsersStore) SearchByName(ctx context.Context, name string, q PageQuery) (*Page[UserWithRoles], error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	match := bson.M{"firstName": primitive.Regex{Pattern: regexp.QuoteMeta(name), Options: "i"}}
	return s.aggregatePage(ctx, match, q)
}

func (s *UsersStore) aggregatePage(ctx context.Context, match bson.M, q PageQuery) (*Page[UserWithRoles], error) {
	countFilter := bson.M{}
	pipeline := mongo.Pipeline{}
	if match != nil {
		countFilter = match
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	pipeline = append(pipeline,
		roleLookupStage(),
		bson.D{{Key: "$sort", Value: q.Sort()}},
		bson.D{{Key: "$skip", Value: q.Offset()}},
		bson.D{{Key: "$limit", Value: int64(q.Size)}},
	)

	cursor, err := s.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var users []UserWithRoles
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	total, err := s.collection().CountDocuments(ctx, countFilter)
	if err != nil {
		return nil, err
	}
	return NewPage(users, q, total), nil
}

// Delete removes a user unconditionally; there is no referential guard in
// the user direction.
func (s *UsersStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DisableMissingUsername force-disables every user that never completed
// activation (no username stored). One-shot backfill used by the bootstrap
// seeder; returns how many documents changed.
func (s *UsersStore) DisableMissingUsername(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.collection().UpdateMany(ctx,
		bson.M{"username": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"enabled": false}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *UsersStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.collection().CountDocuments(ctx, bson.M{})
}
