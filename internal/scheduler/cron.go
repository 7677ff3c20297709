package scheduler

import (
	"context"
	"time"

	"github.com/Dias221467/FoodRescue/internal/jobs"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	SweepSpec = "@every 5m"
	PurgeSpec = "0 0 * * *"

	jobTimeout = time.Minute
)

// StartCronJobs schedules the expiry sweep every five minutes and the
// notification purge daily. Stop the returned cron on shutdown.
func StartCronJobs(sweeper *jobs.ExpirySweeper) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if _, err := sweeper.RunSweep(ctx); err != nil {
			logrus.WithError(err).Error("Expiry sweep failed")
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(PurgeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if _, err := sweeper.PurgeNotifications(ctx); err != nil {
			logrus.WithError(err).Error("DeleteExpiredNotifications failed")
		}
	}); err != nil {
		return nil, err
	}

	c.Start()
	logrus.WithField("jobs", len(c.Entries())).Info("Cron jobs started")
	return c, nil
}
