package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dias221467/FoodRescue/internal/metrics"
	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DonationService turns expired stock into NGO donation records.
type DonationService struct {
	items     FoodItemStore
	donations DonationStore

	Now func() time.Time
}

func NewDonationService(items FoodItemStore, donations DonationStore) *DonationService {
	return &DonationService{items: items, donations: donations, Now: time.Now}
}

// TransferExpired sweeps activity flags, then records one donation for every
// expired item that still has stock and no donation yet. It returns how many
// records were created; running it again creates none for the same items.
func (s *DonationService) TransferExpired(ctx context.Context) (int, error) {
	now := s.Now()
	if _, _, err := s.items.SyncActiveFlags(ctx, now); err != nil {
		return 0, err
	}

	items, err := s.items.ListExpiredWithStock(ctx, now)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, item := range items {
		exists, err := s.donations.DonationExistsForItem(ctx, item.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		_, err = s.donations.CreateDonation(ctx, &models.FoodDonation{
			FoodItemID:      item.ID,
			FoodName:        item.Name,
			CanteenName:     item.CanteenName,
			QuantityDonated: item.QuantityAvailable,
			Status:          models.DonationAvailable,
			CreatedAt:       now,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			// Another transfer got there first.
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to transfer item %s: %w", item.ID.Hex(), err)
		}
		created++
	}

	metrics.RecordDonations(created)
	logrus.WithFields(logrus.Fields{
		"candidates": len(items),
		"created":    created,
	}).Info("Expired stock transferred to donations")
	return created, nil
}

// Reserve assigns an available donation to an NGO.
func (s *DonationService) Reserve(ctx context.Context, id primitive.ObjectID, ngo models.NGOContact) (*models.FoodDonation, error) {
	ngo.Name = strings.TrimSpace(ngo.Name)
	if ngo.Name == "" {
		return nil, invalid("ngoName", "is required")
	}
	return s.transition(ctx, id, models.DonationTransition{
		From: models.DonationAvailable,
		To:   models.DonationReservedForNGO,
		NGO:  &ngo,
	})
}

// Collect marks a reserved donation as picked up.
func (s *DonationService) Collect(ctx context.Context, id primitive.ObjectID) (*models.FoodDonation, error) {
	return s.transition(ctx, id, models.DonationTransition{
		From: models.DonationReservedForNGO,
		To:   models.DonationCollected,
	})
}

func (s *DonationService) transition(ctx context.Context, id primitive.ObjectID, t models.DonationTransition) (*models.FoodDonation, error) {
	t.At = s.Now()
	donation, err := s.donations.TransitionDonation(ctx, id, t)
	if err == nil {
		return donation, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, mapNotFound(err, ErrDonationNotFound)
	}
	current, getErr := s.donations.GetDonationByID(ctx, id)
	if getErr != nil {
		return nil, mapNotFound(getErr, ErrDonationNotFound)
	}
	return nil, invalidState("donation is %s", current.Status)
}

// List returns donations, optionally narrowed to one status.
func (s *DonationService) List(ctx context.Context, status models.DonationStatus) ([]models.FoodDonation, error) {
	switch status {
	case "", models.DonationAvailable, models.DonationReservedForNGO, models.DonationCollected:
	default:
		return nil, invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.donations.ListDonations(ctx, status)
}
