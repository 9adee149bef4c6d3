package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes(db *mongo.Database) error {
	if db == nil {
		return errors.New("mongo database is nil; call InitMongo() first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events := db.Collection("session_events")
	_, err := events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "at", Value: 1}},
			Options: options.Index().SetName("by_session_at"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: -1}},
			Options: options.Index().SetName("by_user_at"),
		},
	})
	return err
}
