package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dias221467/FoodRescue/internal/metrics"
	"github.com/Dias221467/FoodRescue/internal/queue"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	notifier queue.Notifier
}

// NewProcessor constructs a worker processor.
func NewProcessor(notifier queue.Notifier) *Processor {
	return &Processor{notifier: notifier}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ClaimEmailTask, p.handleClaimEmail)
	mux.HandleFunc(queue.NewItemFanOutTask, p.handleFanOut)
	return mux
}

func (p *Processor) handleClaimEmail(ctx context.Context, task *asynq.Task) error {
	var ev services.ClaimEvent
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return fmt.Errorf("decode payload: %w: %v", asynq.SkipRetry, err)
	}
	err := p.notifier.SendClaimEmail(ctx, ev)
	metrics.RecordTask(queue.ClaimEmailTask, err == nil)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"claimID": ev.ClaimID.Hex(),
			"kind":    ev.Kind,
		}).Warn("Claim email failed")
		return err
	}
	return nil
}

func (p *Processor) handleFanOut(ctx context.Context, task *asynq.Task) error {
	var payload queue.NewItemPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %v", asynq.SkipRetry, err)
	}
	n, err := p.notifier.FanOutNewItem(ctx, payload.Item)
	metrics.RecordTask(queue.NewItemFanOutTask, err == nil)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"food_item_id": payload.Item.ID.Hex(),
		"recipients":   n,
	}).Info("Fan-out task processed")
	return nil
}
