package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ClaimFilter narrows claim listings. Zero fields are ignored.
type ClaimFilter struct {
	Status       models.ClaimStatus
	UserID       primitive.ObjectID
	FoodItemID   primitive.ObjectID
	CreatedAfter time.Time
}

func (f ClaimFilter) bson() bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.UserID.IsZero() {
		filter["user_id"] = f.UserID
	}
	if !f.FoodItemID.IsZero() {
		filter["food_item_id"] = f.FoodItemID
	}
	if !f.CreatedAfter.IsZero() {
		filter["created_at"] = bson.M{"$gte": f.CreatedAfter}
	}
	return filter
}

// ClaimRepository handles database operations on food claims.
type ClaimRepository struct {
	collection *mongo.Collection
}

func NewClaimRepository(db *mongo.Database) *ClaimRepository {
	return &ClaimRepository{collection: db.Collection("food_claims")}
}

// CreateClaim inserts a claim. A second blocking claim for the same
// (user, item) pair violates the partial unique index and yields ErrDuplicate.
func (r *ClaimRepository) CreateClaim(ctx context.Context, claim *models.FoodClaim) (*models.FoodClaim, error) {
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now()
	}
	claim.UpdatedAt = claim.CreatedAt
	claim.Blocking = claim.Status.Blocking()

	result, err := r.collection.InsertOne(ctx, claim)
	if err != nil {
		logrus.WithError(err).Warn("Failed to insert claim")
		return nil, fmt.Errorf("failed to create claim: %w", translate(err))
	}
	claim.ID = result.InsertedID.(primitive.ObjectID)

	logrus.WithFields(logrus.Fields{
		"claimID": claim.ID.Hex(),
		"userID":  claim.UserID.Hex(),
		"itemID":  claim.FoodItemID.Hex(),
	}).Info("Claim created")
	return claim, nil
}

func (r *ClaimRepository) GetClaimByID(ctx context.Context, id primitive.ObjectID) (*models.FoodClaim, error) {
	var claim models.FoodClaim
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&claim); err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", translate(err))
	}
	return &claim, nil
}

func (r *ClaimRepository) GetClaimByCode(ctx context.Context, code string) (*models.FoodClaim, error) {
	var claim models.FoodClaim
	if err := r.collection.FindOne(ctx, bson.M{"claim_code": code}).Decode(&claim); err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", translate(err))
	}
	return &claim, nil
}

// HasBlockingClaim reports whether the user already holds a pending,
// reserved or claimed claim on the item.
func (r *ClaimRepository) HasBlockingClaim(ctx context.Context, userID, itemID primitive.ObjectID) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{
		"user_id":      userID,
		"food_item_id": itemID,
		"blocking":     true,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check existing claims: %w", err)
	}
	return n > 0, nil
}

// ListClaims returns claims matching the filter, oldest first.
func (r *ClaimRepository) ListClaims(ctx context.Context, filter ClaimFilter) ([]models.FoodClaim, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter.bson(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get claims: %w", err)
	}
	defer cursor.Close(ctx)

	var claims []models.FoodClaim
	if err := cursor.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	return claims, nil
}

// CountBlockingByItem returns the number of blocking claims per item id.
func (r *ClaimRepository) CountBlockingByItem(ctx context.Context, itemIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	counts := make(map[primitive.ObjectID]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"food_item_id": bson.M{"$in": itemIDs}, "blocking": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$food_item_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count claims: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode claim counts: %w", err)
	}
	for _, row := range rows {
		counts[row.ID] = row.Count
	}
	return counts, nil
}

// DistinctClaimants returns the users that ever claimed any of the items.
func (r *ClaimRepository) DistinctClaimants(ctx context.Context, itemIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	values, err := r.collection.Distinct(ctx, "user_id", bson.M{"food_item_id": bson.M{"$in": itemIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claimants: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// TransitionClaim applies t only if the claim is still in t.From. A claim in
// any other state yields ErrConflict; an unknown id yields ErrNotFound.
func (r *ClaimRepository) TransitionClaim(ctx context.Context, id primitive.ObjectID, t models.ClaimTransition, at time.Time) (*models.FoodClaim, error) {
	filter := bson.M{"_id": id, "status": t.From}
	if t.NotExpiredAt != nil {
		filter["expires_at"] = bson.M{"$gte": *t.NotExpiredAt}
	}

	set := bson.M{
		"status":     t.To,
		"blocking":   t.To.Blocking(),
		"updated_at": at,
	}
	if t.ClaimCode != "" {
		set["claim_code"] = t.ClaimCode
	}
	if t.ExpiresAt != nil {
		set["expires_at"] = *t.ExpiresAt
	}
	if t.ClaimedAt != nil {
		set["claimed_at"] = *t.ClaimedAt
	}
	if t.RejectionReason != "" {
		set["rejection_reason"] = t.RejectionReason
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var claim models.FoodClaim
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&claim)
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"claimID": id.Hex(),
			"from":    t.From,
			"to":      t.To,
		}).Info("Claim transitioned")
		return &claim, nil
	}

	err = translate(err)
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing claim from one that moved on.
		if _, lookupErr := r.GetClaimByID(ctx, id); lookupErr == nil {
			return nil, ErrConflict
		}
	}
	return nil, fmt.Errorf("failed to transition claim: %w", err)
}

// ExpireOverdue moves every reserved claim whose hold lapsed before now to
// expired and returns how many changed.
func (r *ClaimRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"status": models.ClaimReserved, "expires_at": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"status": models.ClaimExpired, "blocking": false, "updated_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire claims: %w", err)
	}
	if res.ModifiedCount > 0 {
		logrus.Infof("Expired %d overdue reservations", res.ModifiedCount)
	}
	return res.ModifiedCount, nil
}

// DeleteClaimsByItem removes every claim on an item.
func (r *ClaimRepository) DeleteClaimsByItem(ctx context.Context, itemID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"food_item_id": itemID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete claims: %w", err)
	}
	return res.DeletedCount, nil
}
