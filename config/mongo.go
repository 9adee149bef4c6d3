package config

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var MongoClient *mongo.Client

// InitMongo connects the optional session event store. It reports
// (false, nil) when MONGO_URI is not configured.
func InitMongo(s *Settings) (bool, error) {
	if s.MongoURI == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(s.MongoURI).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(10).
		SetMinPoolSize(1)

	// Atlas clusters behind some proxies only negotiate TLS 1.2
	if os.Getenv("MONGO_FORCE_TLS12") == "true" {
		clientOpts = clientOpts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return false, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return false, err
	}

	MongoClient = client
	return true, nil
}

func MongoDatabase(s *Settings) *mongo.Database {
	return MongoClient.Database(s.MongoDB)
}
