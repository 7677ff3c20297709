package services

import (
	"context"
	"strings"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventService struct {
	events EventStore
	Now    func() time.Time
}

func NewEventService(events EventStore) *EventService {
	return &EventService{events: events, Now: time.Now}
}

func validateEvent(ev *models.Event) error {
	if strings.TrimSpace(ev.Title) == "" {
		return invalid("title", "is required")
	}
	if strings.TrimSpace(ev.Location) == "" {
		return invalid("location", "is required")
	}
	if ev.StartsAt.IsZero() || ev.EndsAt.IsZero() {
		return invalid("starts_at", "start and end are required")
	}
	if !ev.EndsAt.After(ev.StartsAt) {
		return invalid("ends_at", "must be after starts_at")
	}
	return nil
}

func (s *EventService) Create(ctx context.Context, adminID primitive.ObjectID, ev models.Event) (*models.Event, error) {
	if err := validateEvent(&ev); err != nil {
		return nil, err
	}
	ev.ID = primitive.NilObjectID
	ev.CreatedBy = adminID
	ev.CreatedAt = s.Now()
	return s.events.CreateEvent(ctx, &ev)
}

// ListUpcoming returns events that have not ended, by start time.
func (s *EventService) ListUpcoming(ctx context.Context) ([]models.Event, error) {
	return s.events.ListUpcomingEvents(ctx, s.Now())
}

func (s *EventService) Update(ctx context.Context, adminID, id primitive.ObjectID, patch models.EventPatch) (*models.Event, error) {
	ev, err := s.owned(ctx, adminID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(ev)
	if err := validateEvent(ev); err != nil {
		return nil, err
	}
	updated, err := s.events.ReplaceEvent(ctx, ev)
	if err != nil {
		return nil, mapNotFound(err, ErrEventNotFound)
	}
	return updated, nil
}

func (s *EventService) Delete(ctx context.Context, adminID, id primitive.ObjectID) error {
	if _, err := s.owned(ctx, adminID, id); err != nil {
		return err
	}
	return mapNotFound(s.events.DeleteEvent(ctx, id), ErrEventNotFound)
}

func (s *EventService) owned(ctx context.Context, adminID, id primitive.ObjectID) (*models.Event, error) {
	ev, err := s.events.GetEventByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrEventNotFound)
	}
	if ev.CreatedBy != adminID {
		return nil, ErrForbidden
	}
	return ev, nil
}
