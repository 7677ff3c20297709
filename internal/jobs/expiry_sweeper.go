package jobs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

type ClaimExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

type ItemSweeper interface {
	Sweep(ctx context.Context) (deactivated, reactivated int64, err error)
}

type NotificationPurger interface {
	DeleteExpiredNotifications(ctx context.Context) (int64, error)
}

// ExpirySweeper runs the periodic corrections that keep stored state in line
// with the clock.
type ExpirySweeper struct {
	Claims        ClaimExpirer
	Items         ItemSweeper
	Notifications NotificationPurger
}

// NewExpirySweeper creates a new instance of ExpirySweeper
func NewExpirySweeper(claims ClaimExpirer, items ItemSweeper, notifications NotificationPurger) *ExpirySweeper {
	return &ExpirySweeper{
		Claims:        claims,
		Items:         items,
		Notifications: notifications,
	}
}

// SweepResult counts what a RunSweep pass changed.
type SweepResult struct {
	ExpiredClaims    int64
	DeactivatedItems int64
	ReactivatedItems int64
}

// RunSweep expires lapsed reservations and corrects item activity flags.
// Both steps run even if the first one fails.
func (s *ExpirySweeper) RunSweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var firstErr error

	expired, err := s.Claims.ExpireOverdue(ctx)
	if err != nil {
		firstErr = fmt.Errorf("failed to expire claims: %w", err)
	}
	res.ExpiredClaims = expired

	deactivated, reactivated, err := s.Items.Sweep(ctx)
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to sweep food items: %w", err)
	}
	res.DeactivatedItems, res.ReactivatedItems = deactivated, reactivated

	logrus.WithFields(logrus.Fields{
		"expired_claims":    res.ExpiredClaims,
		"deactivated_items": res.DeactivatedItems,
		"reactivated_items": res.ReactivatedItems,
	}).Info("Expiry sweep completed")
	return res, firstErr
}

// PurgeNotifications drops notifications past their expiry.
func (s *ExpirySweeper) PurgeNotifications(ctx context.Context) (int64, error) {
	n, err := s.Notifications.DeleteExpiredNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	logrus.WithField("deleted", n).Info("Expired notifications purged")
	return n, nil
}
