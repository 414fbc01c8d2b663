package store

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Role is a named permission grouping. Key is the stable machine-readable
// identifier carried as an authority in access tokens; Name is the
// human-readable label. Both are globally unique.
type Role struct {
	ID   int64  `json:"id" bson:"_id"`
	Key  string `json:"key" bson:"key"`
	Name string `json:"name" bson:"name"`
}

type RolesStore struct {
	db        *mongo.Database
	sequences *SequencesStore
}

func (s *RolesStore) collection() *mongo.Collection {
	return s.db.Collection(RoleCollection)
}

// Create persists a new role, assigning an id from the sequence generator
// when the role arrives without one. Unique-index violations on key or name
// come back as *DuplicateKeyError; there is no pre-check, the index decides.
func (s *RolesStore) Create(ctx context.Context, role *Role) error {
	if role.ID == 0 {
		id, err := s.sequences.Next(ctx, RoleCollection)
		if err != nil {
			return err
		}
		role.ID = id
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.collection().InsertOne(ctx, role)
	return wrapWriteError(err)
}

// CreateAll inserts the batch in order with ids assigned up front. The batch
// is not transactional: a mid-batch failure can leave a prefix persisted.
func (s *RolesStore) CreateAll(ctx context.Context, roles []*Role) error {
	if len(roles) == 0 {
		return nil
	}

	docs := make([]any, 0, len(roles))
	for _, role := range roles {
		if role.ID == 0 {
			id, err := s.sequences.Next(ctx, RoleCollection)
			if err != nil {
				return err
			}
			role.ID = id
		}
		docs = append(docs, role)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.collection().InsertMany(ctx, docs)
	return wrapWriteError(err)
}

// Update overwrites key and name of an existing role. ErrNotFound when the
// id is absent; ids are never reassigned.
func (s *RolesStore) Update(ctx context.Context, role *Role) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := s.collection().ReplaceOne(ctx, bson.M{"_id": role.ID}, role)
	if err != nil {
		return wrapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RolesStore) GetByID(ctx context.Context, id int64) (*Role, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var role Role
	err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&role)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *RolesStore) GetByIDs(ctx context.Context, ids []int64) ([]Role, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	cursor, err := s.collection().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	var roles []Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetByKeys resolves role keys to full records. Missing keys are simply
// absent from the result; the caller computes the difference.
func (s *RolesStore) GetByKeys(ctx context.Context, keys []string) ([]Role, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	cursor, err := s.collection().Find(ctx, bson.M{"key": bson.M{"$in": keys}})
	if err != nil {
		return nil, err
	}

	var roles []Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// List returns one sorted page, or the whole collection when q.All is set.
func (s *RolesStore) List(ctx context.Context, q PageQuery) (*Page[Role], error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if q.All {
		cursor, err := s.collection().Find(ctx, bson.M{})
		if err != nil {
			return nil, err
		}
		var roles []Role
		if err := cursor.All(ctx, &roles); err != nil {
			return nil, err
		}
		return NewUnpagedPage(roles), nil
	}

	return s.findPage(ctx, bson.M{}, q)
}

// SearchByName matches the name field by case-insensitive substring. An
// empty page is a valid result, not an error.
func (s *RolesStore) SearchByName(ctx context.Context, name string, q PageQuery) (*Page[Role], error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	filter := bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(name), Options: "i"}}
	return s.findPage(ctx, filter, q)
}

func (s *RolesStore) findPage(ctx context.Context, filter bson.M, q PageQuery) (*Page[Role], error) {
	total, err := s.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(q.Sort()).
		SetSkip(q.Offset()).
		SetLimit(int64(q.Size))

	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var roles []Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return NewPage(roles, q, total), nil
}

// Delete removes a role by id. ErrNotFound when absent, ErrRoleInUse when
// any user still references the id in its roles array.
func (s *RolesStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if err := s.collection().FindOne(ctx, bson.M{"_id": id}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}

	inUse, err := s.db.Collection(UserCollection).CountDocuments(ctx, bson.M{"roles": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if inUse > 0 {
		return ErrRoleInUse
	}

	_, err = s.collection().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *RolesStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.collection().CountDocuments(ctx, bson.M{})
}
