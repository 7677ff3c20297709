package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection("notifications"),
	}
}

// CreateNotifications inserts a batch of notifications
func (r *NotificationRepository) CreateNotifications(ctx context.Context, notifs []models.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(notifs))
	for i := range notifs {
		notifs[i].Stamp(now)
		docs = append(docs, notifs[i])
	}

	_, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert notifications")
		return fmt.Errorf("failed to create notifications: %w", err)
	}
	return nil
}

// NotificationExists reports whether the user already holds a notification of
// notifType about targetID.
func (r *NotificationRepository) NotificationExists(ctx context.Context, userID primitive.ObjectID, notifType string, targetID primitive.ObjectID) (bool, error) {
	filter := bson.M{"user_id": userID, "type": notifType, "target_id": targetID}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up notification: %w", err)
	}
	return n > 0, nil
}

// GetUserNotifications returns all unexpired notifications for a user
func (r *NotificationRepository) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]models.Notification, error) {
	filter := bson.M{
		"user_id":    userID,
		"expires_at": bson.M{"$gt": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// MarkAsRead sets notification's Read to true if it belongs to the user
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNotification deletes a notification owned by the user
func (r *NotificationRepository) DeleteNotification(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredNotifications removes notifications whose retention lapsed
func (r *NotificationRepository) DeleteExpiredNotifications(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{"expires_at": bson.M{"$lte": now}}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	logrus.Infof("Deleted %d expired notifications", result.DeletedCount)
	return result.DeletedCount, nil
}
