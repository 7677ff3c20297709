package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFanOutNewItemReachesPastClaimants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	north := f.createItem(t, 5, time.Hour)
	f.submit(t, alice, north, 1)
	f.submit(t, bob, north, 1)
	f.submit(t, f.admin, north, 1)

	south, err := f.items.Create(ctx, f.admin, services.FoodItemInput{
		Name: "Idli", CanteenName: "South Canteen", Quantity: 3, AvailableUntil: f.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	f.submit(t, carol, south, 1)

	fresh := f.createItem(t, 4, 2*time.Hour)
	n, err := f.notifs.FanOutNewItem(ctx, *fresh)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []primitive.ObjectID{alice, bob} {
		notifs, err := f.notifs.GetUserNotifications(ctx, id)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, models.NotificationNewItem, notifs[0].Type)
		require.NotNil(t, notifs[0].TargetID)
		assert.Equal(t, fresh.ID, *notifs[0].TargetID)
	}
	for _, id := range []primitive.ObjectID{carol, f.admin} {
		notifs, err := f.notifs.GetUserNotifications(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, notifs)
	}
}

func TestNotificationReadDeleteScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, stranger := primitive.NewObjectID(), primitive.NewObjectID()

	require.NoError(t, f.notifs.CreateNotification(ctx, owner, models.NotificationNewItem, "Hi", "There", nil))
	notifs, err := f.notifs.GetUserNotifications(ctx, owner)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	id := notifs[0].ID

	assert.ErrorIs(t, f.notifs.MarkNotificationAsRead(ctx, id, stranger), services.ErrNotificationNotFound)
	require.NoError(t, f.notifs.MarkNotificationAsRead(ctx, id, owner))
	notifs, _ = f.notifs.GetUserNotifications(ctx, owner)
	assert.True(t, notifs[0].Read)

	assert.ErrorIs(t, f.notifs.DeleteNotification(ctx, id, stranger), services.ErrNotificationNotFound)
	require.NoError(t, f.notifs.DeleteNotification(ctx, id, owner))
	notifs, _ = f.notifs.GetUserNotifications(ctx, owner)
	assert.Empty(t, notifs)
}

func TestNotificationExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := primitive.NewObjectID()
	require.NoError(t, f.notifs.CreateNotification(ctx, owner, models.NotificationNewItem, "Hi", "There", nil))

	f.clock.Advance(8 * 24 * time.Hour)
	notifs, err := f.notifs.GetUserNotifications(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, notifs)

	n, err := f.notifs.DeleteExpiredNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSendClaimEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	withEmail, err := f.store.Users.CreateUser(ctx, &models.User{Email: "ana@uni.edu", Role: models.RoleStudent})
	require.NoError(t, err)
	noEmail, err := f.store.Users.CreateUser(ctx, &models.User{WalletAddress: "0x01", Role: models.RoleStudent})
	require.NoError(t, err)

	ev := services.ClaimEvent{Kind: services.ClaimEventApproved, ClaimID: primitive.NewObjectID(), UserID: withEmail.ID, ClaimCode: "ABC123", FoodName: "Dal"}
	require.NoError(t, f.notifs.SendClaimEmail(ctx, ev))
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "ana@uni.edu|Your claim was approved", f.mailer.sent[0])

	stored, err := f.notifs.GetUserNotifications(ctx, withEmail.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.NotificationClaimApproved, stored[0].Type)
	assert.Contains(t, stored[0].Message, "ABC123")

	ev.UserID = noEmail.ID
	ev.Kind = services.ClaimEventSubmitted
	require.NoError(t, f.notifs.SendClaimEmail(ctx, ev))
	assert.Len(t, f.mailer.sent, 1)

	ev.UserID = primitive.NewObjectID()
	assert.Error(t, f.notifs.SendClaimEmail(ctx, ev))
}

func TestSendClaimEmailRetryStoresOneNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mailer.err = errBoom
	user, err := f.store.Users.CreateUser(ctx, &models.User{Email: "kai@uni.edu", Role: models.RoleStudent})
	require.NoError(t, err)

	ev := services.ClaimEvent{Kind: services.ClaimEventApproved, ClaimID: primitive.NewObjectID(), UserID: user.ID, ClaimCode: "XYZ9"}
	for attempt := 0; attempt < 6; attempt++ {
		assert.ErrorIs(t, f.notifs.SendClaimEmail(ctx, ev), errBoom)
	}
	assert.Len(t, f.mailer.sent, 6)

	stored, err := f.notifs.GetUserNotifications(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// A rejection of a different claim is its own notification.
	ev.Kind = services.ClaimEventRejected
	ev.ClaimID = primitive.NewObjectID()
	assert.ErrorIs(t, f.notifs.SendClaimEmail(ctx, ev), errBoom)
	stored, err = f.notifs.GetUserNotifications(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
