package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InitializationTask records a one-time bootstrap task so it survives
// process restarts. Written once, never updated.
type InitializationTask struct {
	Key         string    `bson:"_id" json:"key"`
	Description string    `bson:"description" json:"description"`
	Executed    bool      `bson:"executed" json:"executed"`
	ExecutedAt  time.Time `bson:"executedAt" json:"executedAt"`
}

type InitTasksStore struct {
	db *mongo.Database
}

func (s *InitTasksStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	n, err := s.db.Collection(InitTaskCollection).CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkExecuted stamps and persists the completion record for a task.
func (s *InitTasksStore) MarkExecuted(ctx context.Context, task *InitializationTask) error {
	task.Executed = true
	task.ExecutedAt = time.Now()

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.db.Collection(InitTaskCollection).InsertOne(ctx, task)
	return wrapWriteError(err)
}
