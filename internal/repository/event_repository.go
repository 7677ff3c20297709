package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EventRepository struct {
	collection *mongo.Collection
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{collection: db.Collection("events")}
}

func (r *EventRepository) CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.UpdatedAt = event.CreatedAt

	result, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	event.ID = result.InsertedID.(primitive.ObjectID)
	return event, nil
}

func (r *EventRepository) GetEventByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var event models.Event
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to get event: %w", translate(err))
	}
	return &event, nil
}

// ListUpcomingEvents returns events that have not ended, soonest first.
func (r *EventRepository) ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"ends_at": bson.M{"$gte": now}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

// ReplaceEvent stores the full event document.
func (r *EventRepository) ReplaceEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	event.UpdatedAt = time.Now()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": event.ID}, event)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return event, nil
}

func (r *EventRepository) DeleteEvent(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
