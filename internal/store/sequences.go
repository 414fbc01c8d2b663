package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionSequence is the per-collection counter document standing in for
// a native auto-increment. Current holds the last issued value.
type CollectionSequence struct {
	Collection string `bson:"_id"`
	Current    int64  `bson:"current"`
}

type SequencesStore struct {
	db *mongo.Database
}

// Next issues the next id for collection. The upsert, the $inc, and the read
// of the new value happen in a single FindOneAndUpdate, so concurrent callers
// never receive the same value twice. A missing counter document is created
// by the upsert and the first issued value is 1.
//
// Store errors are returned as-is; retrying is the caller's decision.
func (s *SequencesStore) Next(ctx context.Context, collection string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res := s.db.Collection(SequenceCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": collection},
		bson.M{"$inc": bson.M{"current": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var seq CollectionSequence
	if err := res.Decode(&seq); err != nil {
		return 0, err
	}
	return seq.Current, nil
}
