package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectDB opens a client, pings it and returns the configured database.
func ConnectDB(cfg *config.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logrus.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")
	return client.Database(cfg.MongoDB), nil
}

// Indexes lists the indexes each collection needs. The unique ones back the
// one-blocking-claim-per-pair, claim code and one-donation-per-item rules.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"users": {
			{
				Keys:    bson.D{{Key: "wallet_address", Value: 1}},
				Options: options.Index().SetName("uniq_wallet").SetUnique(true).SetSparse(true),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("uniq_email").SetUnique(true).SetSparse(true),
			},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		"food_items": {
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "available_until", Value: 1}}},
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
			{Keys: bson.D{{Key: "canteen_name", Value: 1}}},
		},
		"food_claims": {
			{
				Keys:    bson.D{{Key: "claim_code", Value: 1}},
				Options: options.Index().SetName("uniq_claim_code").SetUnique(true).SetSparse(true),
			},
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "food_item_id", Value: 1}},
				Options: options.Index().
					SetName("uniq_blocking_claim").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"blocking": true}),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "food_item_id", Value: 1}}},
		},
		"food_donations": {
			{
				Keys:    bson.D{{Key: "food_item_id", Value: 1}},
				Options: options.Index().SetName("uniq_donation_item").SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		"events": {
			{Keys: bson.D{{Key: "ends_at", Value: 1}, {Key: "starts_at", Value: 1}}},
		},
		"notifications": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}, {Key: "target_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
	}
}

// EnsureIndexes creates every index from Indexes. Existing indexes with the
// same keys and options are left alone by the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for collection, models := range Indexes() {
		names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
		logrus.WithFields(logrus.Fields{
			"collection": collection,
			"indexes":    names,
		}).Debug("Indexes ensured")
	}
	return nil
}
