package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository/memory"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEventLifecycle(t *testing.T) {
	clock := newTestClock()
	svc := services.NewEventService(memory.New().Events)
	svc.Now = clock.Now
	ctx := context.Background()
	admin := primitive.NewObjectID()
	start := clock.Now().Add(24 * time.Hour)

	var verr *services.ValidationError
	_, err := svc.Create(ctx, admin, models.Event{Title: "Food drive", Location: "Quad", StartsAt: start, EndsAt: start})
	assert.ErrorAs(t, err, &verr)

	ev, err := svc.Create(ctx, admin, models.Event{Title: "Food drive", Location: "Quad", StartsAt: start, EndsAt: start.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, admin, ev.CreatedBy)

	upcoming, err := svc.ListUpcoming(ctx)
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)

	title := "Winter food drive"
	_, err = svc.Update(ctx, primitive.NewObjectID(), ev.ID, models.EventPatch{Title: &title})
	assert.ErrorIs(t, err, services.ErrForbidden)

	updated, err := svc.Update(ctx, admin, ev.ID, models.EventPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "Quad", updated.Location)

	early := start.Add(-48 * time.Hour)
	_, err = svc.Update(ctx, admin, ev.ID, models.EventPatch{EndsAt: &early})
	assert.ErrorAs(t, err, &verr)

	clock.Advance(72 * time.Hour)
	upcoming, err = svc.ListUpcoming(ctx)
	require.NoError(t, err)
	assert.Empty(t, upcoming)

	assert.ErrorIs(t, svc.Delete(ctx, primitive.NewObjectID(), ev.ID), services.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin, ev.ID))
	assert.ErrorIs(t, svc.Delete(ctx, admin, ev.ID), services.ErrEventNotFound)
}
