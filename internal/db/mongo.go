package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	mongoClient *mongo.Client
	Mongo       *mongo.Database
)

// InitMongo connects to MongoDB, which holds the append-only location
// sample history. Everything else lives in PostgreSQL.
func InitMongo(uri, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("unable to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("unable to ping mongodb: %w", err)
	}

	mongoClient = client
	Mongo = client.Database(dbName)

	// Location history is always read newest-first per user.
	locations := Mongo.Collection("location_samples")
	_, err = locations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "captured_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("unable to create location index: %w", err)
	}

	log.Println("Connected to MongoDB")
	return nil
}

// CloseMongo disconnects the MongoDB client
func CloseMongo() {
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}
}
