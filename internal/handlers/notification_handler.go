package handlers

import (
	"net/http"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/Dias221467/FoodRescue/pkg/logger"
)

type NotificationHandler struct {
	Service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: service}
}

// GET /api/notifications
func (h *NotificationHandler) GetUserNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	notifications, err := h.Service.GetUserNotifications(r.Context(), actor.UserID)
	if err != nil {
		logger.Log.Errorf("Failed to fetch notifications: %v", err)
		writeError(w, r, err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// PUT /api/notifications/{id}/read
func (h *NotificationHandler) MarkAsReadHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	notifID, err := pathID(r, "notification")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Service.MarkNotificationAsRead(r.Context(), notifID, actor.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification marked as read")
}

// DELETE /api/notifications/{id}
func (h *NotificationHandler) DeleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	notifID, err := pathID(r, "notification")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Service.DeleteNotification(r.Context(), notifID, actor.UserID); err != nil {
		logger.Log.Errorf("Failed to delete notification: %v", err)
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification deleted")
}
