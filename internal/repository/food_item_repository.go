package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FoodItemRepository struct handles database operations related to food items
type FoodItemRepository struct {
	collection *mongo.Collection
}

// NewFoodItemRepository creates a new instance of FoodItemRepository
func NewFoodItemRepository(db *mongo.Database) *FoodItemRepository {
	return &FoodItemRepository{
		collection: db.Collection("food_items"),
	}
}

// CreateFoodItem creates a new food item in the database
func (r *FoodItemRepository) CreateFoodItem(ctx context.Context, item *models.FoodItem) (*models.FoodItem, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.UpdatedAt = item.CreatedAt

	result, err := r.collection.InsertOne(ctx, item)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert food item")
		return nil, fmt.Errorf("failed to insert food item: %w", translate(err))
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		logger.Log.Error("Failed to cast inserted ID")
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	item.ID = insertedID

	logger.Log.WithField("food_item_id", item.ID.Hex()).Info("Food item created successfully")
	return item, nil
}

// GetFoodItemByID fetches a food item by its ID
func (r *FoodItemRepository) GetFoodItemByID(ctx context.Context, id primitive.ObjectID) (*models.FoodItem, error) {
	var item models.FoodItem
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to find food item: %w", translate(err))
	}
	return &item, nil
}

// ListActiveFoodItems returns items whose stored flag is true (or missing)
// and whose availability window has not closed, soonest-expiring first.
func (r *FoodItemRepository) ListActiveFoodItems(ctx context.Context, now time.Time) ([]models.FoodItem, error) {
	filter := bson.M{
		"is_active":       bson.M{"$ne": false},
		"available_until": bson.M{"$gte": now},
	}
	return r.find(ctx, filter, bson.D{{Key: "available_until", Value: 1}})
}

// ListFoodItemsByCreator returns the listings created by one admin, newest first.
func (r *FoodItemRepository) ListFoodItemsByCreator(ctx context.Context, adminID primitive.ObjectID) ([]models.FoodItem, error) {
	return r.find(ctx, bson.M{"created_by": adminID}, bson.D{{Key: "created_at", Value: -1}})
}

// ListFoodItemsByCanteen returns every listing from a canteen.
func (r *FoodItemRepository) ListFoodItemsByCanteen(ctx context.Context, canteen string) ([]models.FoodItem, error) {
	return r.find(ctx, bson.M{"canteen_name": canteen}, nil)
}

// ListAllFoodItems returns every listing.
func (r *FoodItemRepository) ListAllFoodItems(ctx context.Context) ([]models.FoodItem, error) {
	return r.find(ctx, bson.M{}, nil)
}

// ListExpiredWithStock returns inactive items past their window that still
// hold stock.
func (r *FoodItemRepository) ListExpiredWithStock(ctx context.Context, now time.Time) ([]models.FoodItem, error) {
	filter := bson.M{
		"is_active":          false,
		"available_until":    bson.M{"$lt": now},
		"quantity_available": bson.M{"$gt": 0},
	}
	return r.find(ctx, filter, nil)
}

func (r *FoodItemRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]models.FoodItem, error) {
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to fetch food items")
		return nil, fmt.Errorf("failed to fetch food items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.FoodItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode food items: %w", err)
	}
	return items, nil
}

// UpdateFoodItem applies a partial update and returns the stored result.
func (r *FoodItemRepository) UpdateFoodItem(ctx context.Context, id primitive.ObjectID, patch models.FoodItemPatch, at time.Time) (*models.FoodItem, error) {
	set := bson.M{"updated_at": at}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.CanteenName != nil {
		set["canteen_name"] = *patch.CanteenName
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.QuantityAvailable != nil {
		set["quantity_available"] = *patch.QuantityAvailable
	}
	if patch.AvailableUntil != nil {
		set["available_until"] = *patch.AvailableUntil
	}
	if patch.ImageURL != nil {
		set["image_url"] = *patch.ImageURL
	}
	if patch.IsActive != nil {
		set["is_active"] = *patch.IsActive
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var item models.FoodItem
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&item)
	if err != nil {
		logger.Log.WithError(err).WithField("food_item_id", id.Hex()).Error("Failed to update food item")
		return nil, fmt.Errorf("failed to update food item: %w", translate(err))
	}

	logger.Log.WithField("food_item_id", id.Hex()).Info("Food item updated successfully")
	return &item, nil
}

// DecrementQuantity subtracts qty from the item's stock in a single update,
// flooring the result at zero.
func (r *FoodItemRepository) DecrementQuantity(ctx context.Context, id primitive.ObjectID, qty int, at time.Time) (*models.FoodItem, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"quantity_available": bson.M{"$max": bson.A{
				0,
				bson.M{"$subtract": bson.A{"$quantity_available", qty}},
			}},
			"updated_at": at,
		}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var item models.FoodItem
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&item); err != nil {
		logger.Log.WithError(err).WithField("food_item_id", id.Hex()).Error("Failed to decrement stock")
		return nil, fmt.Errorf("failed to decrement stock: %w", translate(err))
	}
	return &item, nil
}

// SyncActiveFlags deactivates items whose window closed and reactivates
// inactive items that are back in their window with stock.
func (r *FoodItemRepository) SyncActiveFlags(ctx context.Context, now time.Time) (deactivated, reactivated int64, err error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"available_until": bson.M{"$lt": now}, "is_active": bson.M{"$ne": false}},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to deactivate expired items: %w", err)
	}
	deactivated = res.ModifiedCount

	res, err = r.collection.UpdateMany(ctx,
		bson.M{"is_active": false, "available_until": bson.M{"$gt": now}, "quantity_available": bson.M{"$gte": 1}},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	)
	if err != nil {
		return deactivated, 0, fmt.Errorf("failed to reactivate items: %w", err)
	}
	reactivated = res.ModifiedCount

	if deactivated > 0 || reactivated > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"deactivated": deactivated,
			"reactivated": reactivated,
		}).Info("Food item activity flags synced")
	}
	return deactivated, reactivated, nil
}

// DeleteFoodItem deletes a food item from the database by its ID
func (r *FoodItemRepository) DeleteFoodItem(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logger.Log.WithError(err).WithField("food_item_id", id.Hex()).Error("Failed to delete food item")
		return fmt.Errorf("failed to delete food item: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	logger.Log.WithField("food_item_id", id.Hex()).Info("Food item deleted successfully")
	return nil
}
