package services

import (
	"context"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The store interfaces below are satisfied by the MongoDB repositories in
// internal/repository and by the in-memory driver in
// internal/repository/memory.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByWallet(ctx context.Context, address string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	MergeProfile(ctx context.Context, id primitive.ObjectID, profile models.UserProfile, seenAt time.Time) (*models.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, from, to models.Role) (*models.User, error)
	UpdateLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error
	GetUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

type FoodItemStore interface {
	CreateFoodItem(ctx context.Context, item *models.FoodItem) (*models.FoodItem, error)
	GetFoodItemByID(ctx context.Context, id primitive.ObjectID) (*models.FoodItem, error)
	ListActiveFoodItems(ctx context.Context, now time.Time) ([]models.FoodItem, error)
	ListFoodItemsByCreator(ctx context.Context, adminID primitive.ObjectID) ([]models.FoodItem, error)
	ListFoodItemsByCanteen(ctx context.Context, canteen string) ([]models.FoodItem, error)
	ListAllFoodItems(ctx context.Context) ([]models.FoodItem, error)
	ListExpiredWithStock(ctx context.Context, now time.Time) ([]models.FoodItem, error)
	UpdateFoodItem(ctx context.Context, id primitive.ObjectID, patch models.FoodItemPatch, at time.Time) (*models.FoodItem, error)
	DecrementQuantity(ctx context.Context, id primitive.ObjectID, qty int, at time.Time) (*models.FoodItem, error)
	SyncActiveFlags(ctx context.Context, now time.Time) (deactivated, reactivated int64, err error)
	DeleteFoodItem(ctx context.Context, id primitive.ObjectID) error
}

type ClaimStore interface {
	CreateClaim(ctx context.Context, claim *models.FoodClaim) (*models.FoodClaim, error)
	GetClaimByID(ctx context.Context, id primitive.ObjectID) (*models.FoodClaim, error)
	GetClaimByCode(ctx context.Context, code string) (*models.FoodClaim, error)
	HasBlockingClaim(ctx context.Context, userID, itemID primitive.ObjectID) (bool, error)
	ListClaims(ctx context.Context, filter repository.ClaimFilter) ([]models.FoodClaim, error)
	CountBlockingByItem(ctx context.Context, itemIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error)
	DistinctClaimants(ctx context.Context, itemIDs []primitive.ObjectID) ([]primitive.ObjectID, error)
	TransitionClaim(ctx context.Context, id primitive.ObjectID, t models.ClaimTransition, at time.Time) (*models.FoodClaim, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	DeleteClaimsByItem(ctx context.Context, itemID primitive.ObjectID) (int64, error)
}

type DonationStore interface {
	CreateDonation(ctx context.Context, donation *models.FoodDonation) (*models.FoodDonation, error)
	DonationExistsForItem(ctx context.Context, itemID primitive.ObjectID) (bool, error)
	GetDonationByID(ctx context.Context, id primitive.ObjectID) (*models.FoodDonation, error)
	ListDonations(ctx context.Context, status models.DonationStatus) ([]models.FoodDonation, error)
	TransitionDonation(ctx context.Context, id primitive.ObjectID, t models.DonationTransition) (*models.FoodDonation, error)
	DeleteDonationsByItem(ctx context.Context, itemID primitive.ObjectID) (int64, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error)
	GetEventByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error)
	ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error)
	ReplaceEvent(ctx context.Context, event *models.Event) (*models.Event, error)
	DeleteEvent(ctx context.Context, id primitive.ObjectID) error
}

type NotificationStore interface {
	CreateNotifications(ctx context.Context, notifs []models.Notification) error
	NotificationExists(ctx context.Context, userID primitive.ObjectID, notifType string, targetID primitive.ObjectID) (bool, error)
	GetUserNotifications(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID primitive.ObjectID) error
	DeleteNotification(ctx context.Context, id, userID primitive.ObjectID) error
	DeleteExpiredNotifications(ctx context.Context, now time.Time) (int64, error)
}

// Stores bundles one implementation of every store.
type Stores struct {
	Users         UserStore
	FoodItems     FoodItemStore
	Claims        ClaimStore
	Donations     DonationStore
	Events        EventStore
	Notifications NotificationStore
}
