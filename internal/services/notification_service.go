package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationService struct {
	repo   NotificationStore
	users  UserStore
	items  FoodItemStore
	claims ClaimStore
	mailer Mailer

	Now func() time.Time
}

func NewNotificationService(repo NotificationStore, users UserStore, items FoodItemStore, claims ClaimStore, mailer Mailer) *NotificationService {
	return &NotificationService{
		repo:   repo,
		users:  users,
		items:  items,
		claims: claims,
		mailer: mailer,
		Now:    time.Now,
	}
}

// CreateNotification logs a new notification for a user
func (s *NotificationService) CreateNotification(ctx context.Context, userID primitive.ObjectID, notifType, title, message string, targetID *primitive.ObjectID) error {
	return s.NotifyUsers(ctx, []primitive.ObjectID{userID}, notifType, title, message, targetID)
}

// NotifyUsers stores the same notification for every user in ids
func (s *NotificationService) NotifyUsers(ctx context.Context, ids []primitive.ObjectID, notifType, title, message string, targetID *primitive.ObjectID) error {
	now := s.Now()
	notifs := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		notifs = append(notifs, models.Notification{
			UserID:    id,
			Type:      notifType,
			Title:     title,
			Message:   message,
			TargetID:  targetID,
			CreatedAt: now,
		})
	}
	return s.repo.CreateNotifications(ctx, notifs)
}

// GetUserNotifications returns the unexpired notifications of a user
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	return s.repo.GetUserNotifications(ctx, userID, s.Now())
}

// MarkNotificationAsRead sets the "read" status of a notification to true
func (s *NotificationService) MarkNotificationAsRead(ctx context.Context, notifID, userID primitive.ObjectID) error {
	return mapNotFound(s.repo.MarkAsRead(ctx, notifID, userID), ErrNotificationNotFound)
}

// DeleteNotification deletes a specific notification
func (s *NotificationService) DeleteNotification(ctx context.Context, notifID, userID primitive.ObjectID) error {
	return mapNotFound(s.repo.DeleteNotification(ctx, notifID, userID), ErrNotificationNotFound)
}

// DeleteExpiredNotifications is run daily by cron
func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredNotifications(ctx, s.Now())
}

// FanOutNewItem tells every student who ever claimed from the item's canteen
// that a new listing is up. The creating admin is skipped.
func (s *NotificationService) FanOutNewItem(ctx context.Context, item models.FoodItem) (int, error) {
	siblings, err := s.items.ListFoodItemsByCanteen(ctx, item.CanteenName)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch canteen items: %w", err)
	}
	itemIDs := make([]primitive.ObjectID, 0, len(siblings))
	for _, sib := range siblings {
		itemIDs = append(itemIDs, sib.ID)
	}

	claimants, err := s.claims.DistinctClaimants(ctx, itemIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch claimants: %w", err)
	}
	recipients := claimants[:0]
	for _, id := range claimants {
		if id != item.CreatedBy {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	message := fmt.Sprintf("%s has %d portion(s) of %s available until %s.",
		item.CanteenName, item.QuantityAvailable, item.Name, item.AvailableUntil.Format("Jan 2 15:04"))
	itemID := item.ID
	if err := s.NotifyUsers(ctx, recipients, models.NotificationNewItem, "New food available", message, &itemID); err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"food_item_id": item.ID.Hex(),
		"recipients":   len(recipients),
	}).Info("New item notifications sent")
	return len(recipients), nil
}

// SendClaimEmail emails the claimant about a lifecycle step. Approvals and
// rejections are also stored as in-app notifications, once per claim, so a
// retried task does not repeat them.
func (s *NotificationService) SendClaimEmail(ctx context.Context, ev ClaimEvent) error {
	user, err := s.users.GetUserByID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("failed to load claimant: %w", err)
	}

	subject, body := claimEmail(ev)
	switch ev.Kind {
	case ClaimEventApproved:
		s.notifyOnce(ctx, user.ID, models.NotificationClaimApproved, subject, body, ev.ClaimID)
	case ClaimEventRejected:
		s.notifyOnce(ctx, user.ID, models.NotificationClaimRejected, subject, body, ev.ClaimID)
	}

	if user.Email == "" || s.mailer == nil {
		logrus.WithField("userID", user.ID.Hex()).Debug("No email address on file, skipping claim email")
		return nil
	}
	return s.mailer.Send(ctx, user.Email, subject, body)
}

func (s *NotificationService) notifyOnce(ctx context.Context, userID primitive.ObjectID, notifType, title, message string, claimID primitive.ObjectID) {
	log := logrus.WithFields(logrus.Fields{"claimID": claimID.Hex(), "type": notifType})
	exists, err := s.repo.NotificationExists(ctx, userID, notifType, claimID)
	if err != nil {
		log.WithError(err).Warn("Failed to look up claim notification")
		return
	}
	if exists {
		return
	}
	if err := s.CreateNotification(ctx, userID, notifType, title, message, &claimID); err != nil {
		log.WithError(err).Warn("Failed to store claim notification")
	}
}

func claimEmail(ev ClaimEvent) (subject, body string) {
	food := ev.FoodName
	if food == "" {
		food = "your food item"
	}
	switch ev.Kind {
	case ClaimEventSubmitted:
		return "Claim request received",
			fmt.Sprintf("We received your request for %d x %s at %s. You will get a pickup code once a canteen admin approves it.", ev.Quantity, food, ev.Canteen)
	case ClaimEventApproved:
		return "Your claim was approved",
			fmt.Sprintf("Show code %s at %s to pick up %d x %s. The code is valid until %s.", ev.ClaimCode, ev.Canteen, ev.Quantity, food, ev.ExpiresAt.Format("15:04 Jan 2"))
	case ClaimEventRejected:
		return "Your claim was rejected",
			fmt.Sprintf("Your request for %s was rejected: %s", food, ev.Reason)
	case ClaimEventCompleted:
		return "Enjoy your meal",
			fmt.Sprintf("You picked up %d x %s. Thanks for helping cut food waste!", ev.Quantity, food)
	}
	return "Claim update", fmt.Sprintf("Your claim for %s changed.", food)
}
