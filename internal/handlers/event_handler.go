package handlers

import (
	"net/http"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
)

type EventHandler struct {
	Service *services.EventService
}

func NewEventHandler(service *services.EventService) *EventHandler {
	return &EventHandler{Service: service}
}

type createEventRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	Location    string    `json:"location" validate:"required,max=200"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
	EndsAt      time.Time `json:"endsAt" validate:"required"`
}

type updateEventRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Location    *string    `json:"location" validate:"omitempty,max=200"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
}

// GET /api/events
func (h *EventHandler) ListUpcomingHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.Service.ListUpcoming(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// POST /api/events
func (h *EventHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	event, err := h.Service.Create(r.Context(), actor.UserID, models.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// PUT /api/events/{id}
func (h *EventHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "event")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	event, err := h.Service.Update(r.Context(), actor.UserID, id, models.EventPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DELETE /api/events/{id}
func (h *EventHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "event")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), actor.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Event deleted")
}
