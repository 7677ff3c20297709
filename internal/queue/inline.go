package queue

import (
	"context"
	"time"

	"github.com/Dias221467/FoodRescue/internal/metrics"
	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/sirupsen/logrus"
)

// Notifier performs the side effects behind each task type.
type Notifier interface {
	SendClaimEmail(ctx context.Context, ev services.ClaimEvent) error
	FanOutNewItem(ctx context.Context, item models.FoodItem) (int, error)
}

// InlineDispatcher runs side effects in a background goroutine of the API
// process. It is used when no Redis is configured.
type InlineDispatcher struct {
	notifier Notifier
	timeout  time.Duration
}

func NewInlineDispatcher(notifier Notifier) *InlineDispatcher {
	return &InlineDispatcher{notifier: notifier, timeout: 30 * time.Second}
}

func (d *InlineDispatcher) ClaimStatusChanged(_ context.Context, ev services.ClaimEvent) error {
	go d.run(ClaimEmailTask, func(ctx context.Context) error {
		return d.notifier.SendClaimEmail(ctx, ev)
	})
	return nil
}

func (d *InlineDispatcher) FoodItemCreated(_ context.Context, item models.FoodItem) error {
	go d.run(NewItemFanOutTask, func(ctx context.Context) error {
		_, err := d.notifier.FanOutNewItem(ctx, item)
		return err
	})
	return nil
}

// The request context is not reused: it is cancelled once the response is written.
func (d *InlineDispatcher) run(task string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := fn(ctx)
	metrics.RecordTask(task, err == nil)
	if err != nil {
		logrus.WithError(err).WithField("task", task).Warn("Inline task failed")
	}
}
