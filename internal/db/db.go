package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// New connects to MongoDB and pings it before handing the client back, so a
// bad address fails at startup instead of on the first request.
func New(addr string, maxPoolSize uint64, maxIdleTime string) (*mongo.Client, error) {
	idle, err := time.ParseDuration(maxIdleTime)
	if err != nil {
		return nil, err
	}

	opts := options.Client().
		ApplyURI(addr).
		SetMaxPoolSize(maxPoolSize).
		SetMaxConnIdleTime(idle)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return client, nil
}

// EnsureIndexes creates the unique indexes the stores rely on for conflict
// detection. Creation is idempotent, so this runs on every startup.
//
// The username index is partial: documents without a username (accounts
// pending activation) are excluded, otherwise the second disabled user would
// collide on the missing field.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	roleIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := database.Collection("role").Indexes().CreateMany(ctx, roleIndexes); err != nil {
		return err
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"username": bson.M{"$exists": true}}),
		},
	}
	if _, err := database.Collection("user").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return err
	}

	return nil
}
