package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FoodItemInput holds the fields an admin supplies for a new listing.
type FoodItemInput struct {
	Name           string
	Description    string
	CanteenName    string
	Location       string
	Quantity       int
	AvailableUntil time.Time
	ImageURL       string
}

// ImageRemover deletes a stored image by the URL an item carried.
type ImageRemover interface {
	Delete(ctx context.Context, url string) error
}

// FoodItemService manages canteen listings.
type FoodItemService struct {
	items      FoodItemStore
	claims     ClaimStore
	donations  DonationStore
	dispatcher Dispatcher

	Now func() time.Time
	// Images, when set, drops images that an update replaced or a delete
	// orphaned.
	Images ImageRemover
}

func NewFoodItemService(items FoodItemStore, claims ClaimStore, donations DonationStore, dispatcher Dispatcher) *FoodItemService {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &FoodItemService{
		items:      items,
		claims:     claims,
		donations:  donations,
		dispatcher: dispatcher,
		Now:        time.Now,
	}
}

// Sweep brings the stored activity flags in line with the clock.
func (s *FoodItemService) Sweep(ctx context.Context) (deactivated, reactivated int64, err error) {
	return s.items.SyncActiveFlags(ctx, s.Now())
}

// ListActive sweeps, then returns the open listings with their live claim counts.
func (s *FoodItemService) ListActive(ctx context.Context) ([]models.FoodItemView, error) {
	if _, _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}
	now := s.Now()
	items, err := s.items.ListActiveFoodItems(ctx, now)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, items, now)
}

func (s *FoodItemService) ListByCreator(ctx context.Context, adminID primitive.ObjectID) ([]models.FoodItemView, error) {
	items, err := s.items.ListFoodItemsByCreator(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, items, s.Now())
}

func (s *FoodItemService) Get(ctx context.Context, id primitive.ObjectID) (*models.FoodItemView, error) {
	item, err := s.items.GetFoodItemByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrFoodItemNotFound)
	}
	views, err := s.views(ctx, []models.FoodItem{*item}, s.Now())
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *FoodItemService) views(ctx context.Context, items []models.FoodItem, now time.Time) ([]models.FoodItemView, error) {
	ids := make([]primitive.ObjectID, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	counts, err := s.claims.CountBlockingByItem(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.FoodItemView, len(items))
	for i := range items {
		views[i] = models.FoodItemView{
			FoodItem:     items[i],
			Claimable:    items[i].ClaimableAt(now),
			ActiveClaims: counts[items[i].ID],
		}
	}
	return views, nil
}

// Create stores a new listing owned by adminID and announces it.
func (s *FoodItemService) Create(ctx context.Context, adminID primitive.ObjectID, in FoodItemInput) (*models.FoodItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CanteenName = strings.TrimSpace(in.CanteenName)
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	if in.CanteenName == "" {
		return nil, invalid("canteenName", "is required")
	}
	if in.AvailableUntil.IsZero() {
		return nil, invalid("availableUntil", "is required")
	}
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	now := s.Now()
	active := in.AvailableUntil.After(now)
	item, err := s.items.CreateFoodItem(ctx, &models.FoodItem{
		Name:              in.Name,
		Description:       in.Description,
		CanteenName:       in.CanteenName,
		Location:          in.Location,
		QuantityAvailable: in.Quantity,
		AvailableUntil:    in.AvailableUntil,
		IsActive:          &active,
		ImageURL:          in.ImageURL,
		CreatedBy:         adminID,
		CreatedAt:         now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.dispatcher.FoodItemCreated(ctx, *item); err != nil {
		logrus.WithError(err).WithField("food_item_id", item.ID.Hex()).Warn("Failed to dispatch new item notification")
	}
	return item, nil
}

// Update applies a partial update. Only the creating admin may edit.
func (s *FoodItemService) Update(ctx context.Context, adminID, id primitive.ObjectID, patch models.FoodItemPatch) (*models.FoodItem, error) {
	item, err := s.items.GetFoodItemByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrFoodItemNotFound)
	}
	if item.CreatedBy != adminID {
		return nil, ErrForbidden
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("name", "cannot be empty")
	}
	if patch.CanteenName != nil && strings.TrimSpace(*patch.CanteenName) == "" {
		return nil, invalid("canteenName", "cannot be empty")
	}
	if patch.QuantityAvailable != nil && *patch.QuantityAvailable < 0 {
		return nil, invalid("quantityAvailable", "cannot be negative")
	}

	now := s.Now()
	next := *item
	patch.Apply(&next)
	active := next.AvailableUntil.After(now) && next.QuantityAvailable > 0
	patch.IsActive = &active

	updated, err := s.items.UpdateFoodItem(ctx, id, patch, now)
	if err != nil {
		return nil, mapNotFound(err, ErrFoodItemNotFound)
	}
	if item.ImageURL != updated.ImageURL {
		s.removeImage(ctx, item.ImageURL)
	}
	return updated, nil
}

// Delete removes the item with its donations and claims.
func (s *FoodItemService) Delete(ctx context.Context, adminID, id primitive.ObjectID) error {
	item, err := s.items.GetFoodItemByID(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrFoodItemNotFound)
	}

	donations, err := s.donations.DeleteDonationsByItem(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete donations: %w", err)
	}
	claims, err := s.claims.DeleteClaimsByItem(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete claims: %w", err)
	}
	if err := s.items.DeleteFoodItem(ctx, id); err != nil {
		return mapNotFound(err, ErrFoodItemNotFound)
	}
	s.removeImage(ctx, item.ImageURL)

	logrus.WithFields(logrus.Fields{
		"food_item_id": id.Hex(),
		"admin_id":     adminID.Hex(),
		"claims":       claims,
		"donations":    donations,
	}).Info("Food item deleted with dependents")
	return nil
}

// removeImage logs failures and never returns them.
func (s *FoodItemService) removeImage(ctx context.Context, url string) {
	if s.Images == nil || url == "" {
		return
	}
	if err := s.Images.Delete(ctx, url); err != nil {
		logrus.WithError(err).WithField("image_url", url).Warn("Failed to delete replaced image")
	}
}

// DecrementStock takes qty off the item, never going below zero.
func (s *FoodItemService) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (*models.FoodItem, error) {
	if qty < 1 {
		return nil, invalid("quantity", "must be at least 1")
	}
	item, err := s.items.DecrementQuantity(ctx, id, qty, s.Now())
	if err != nil {
		return nil, mapNotFound(err, ErrFoodItemNotFound)
	}
	return item, nil
}
