package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dias221467/FoodRescue/internal/jobs"
	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository/memory"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type failingExpirer struct{}

func (failingExpirer) ExpireOverdue(context.Context) (int64, error) {
	return 0, errors.New("mongo down")
}

func TestRunSweepExpiresClaimsAndItems(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	items := services.NewFoodItemService(store.FoodItems, store.Claims, store.Donations, nil)
	items.Now = clock
	claims := services.NewClaimService(store.Claims, store.FoodItems, nil, 30*time.Minute)
	claims.Now = clock
	notifs := services.NewNotificationService(store.Notifications, store.Users, store.FoodItems, store.Claims, nil)
	notifs.Now = clock

	admin := primitive.NewObjectID()
	item, err := items.Create(ctx, admin, services.FoodItemInput{
		Name:           "Rice bowls",
		CanteenName:    "North Hall",
		Quantity:       5,
		AvailableUntil: now.Add(time.Hour),
	})
	require.NoError(t, err)

	claim, err := claims.Submit(ctx, primitive.NewObjectID(), services.ClaimRequest{FoodItemID: item.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = claims.Approve(ctx, claim.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	sweeper := jobs.NewExpirySweeper(claims, items, notifs)
	res, err := sweeper.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ExpiredClaims)
	assert.Equal(t, int64(1), res.DeactivatedItems)

	got, err := claims.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimExpired, got.Status)

	res, err = sweeper.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, jobs.SweepResult{}, res)
}

func TestRunSweepStillSweepsItemsWhenClaimsFail(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	items := services.NewFoodItemService(store.FoodItems, store.Claims, store.Donations, nil)
	items.Now = func() time.Time { return now }
	_, err := items.Create(ctx, primitive.NewObjectID(), services.FoodItemInput{
		Name:           "Soup",
		CanteenName:    "South Hall",
		Quantity:       2,
		AvailableUntil: now.Add(time.Minute),
	})
	require.NoError(t, err)
	now = now.Add(time.Hour)

	sweeper := jobs.NewExpirySweeper(failingExpirer{}, items, nil)
	res, err := sweeper.RunSweep(ctx)
	assert.ErrorContains(t, err, "failed to expire claims")
	assert.Equal(t, int64(1), res.DeactivatedItems)
}

func TestPurgeNotifications(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	notifs := services.NewNotificationService(store.Notifications, store.Users, store.FoodItems, store.Claims, nil)
	notifs.Now = func() time.Time { return now }

	user := primitive.NewObjectID()
	require.NoError(t, notifs.CreateNotification(ctx, user, models.NotificationNewItem, "New food", "Soup at South Hall", nil))

	sweeper := jobs.NewExpirySweeper(nil, nil, notifs)
	n, err := sweeper.PurgeNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	now = now.Add(8 * 24 * time.Hour)
	n, err = sweeper.PurgeNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
