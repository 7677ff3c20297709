package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/hibiken/asynq"
)

const (
	// ClaimEmailTask is scheduled on every claim transition a student hears about.
	ClaimEmailTask = "claim:email"
	// NewItemFanOutTask is scheduled when an admin lists a new food item.
	NewItemFanOutTask = "food_item:fan_out"
)

// NewItemPayload carries the listing so the worker does not need to re-read it.
type NewItemPayload struct {
	Item models.FoodItem `json:"item"`
}

// AsynqDispatcher publishes side effects to Redis for cmd/worker.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) ClaimStatusChanged(ctx context.Context, ev services.ClaimEvent) error {
	return enqueue(ctx, d.client, ClaimEmailTask, ev)
}

func (d *AsynqDispatcher) FoodItemCreated(ctx context.Context, item models.FoodItem) error {
	return enqueue(ctx, d.client, NewItemFanOutTask, NewItemPayload{Item: item})
}

func enqueue(ctx context.Context, client *asynq.Client, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue %s task: %w", taskType, err)
	}
	return nil
}
