package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DonationRepository struct {
	collection *mongo.Collection
}

func NewDonationRepository(db *mongo.Database) *DonationRepository {
	return &DonationRepository{collection: db.Collection("food_donations")}
}

// CreateDonation inserts a donation; a second donation for the same item
// yields ErrDuplicate.
func (r *DonationRepository) CreateDonation(ctx context.Context, donation *models.FoodDonation) (*models.FoodDonation, error) {
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = time.Now()
	}
	donation.UpdatedAt = donation.CreatedAt

	result, err := r.collection.InsertOne(ctx, donation)
	if err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", translate(err))
	}
	donation.ID = result.InsertedID.(primitive.ObjectID)
	return donation, nil
}

func (r *DonationRepository) DonationExistsForItem(ctx context.Context, itemID primitive.ObjectID) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"food_item_id": itemID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check donation: %w", err)
	}
	return n > 0, nil
}

func (r *DonationRepository) GetDonationByID(ctx context.Context, id primitive.ObjectID) (*models.FoodDonation, error) {
	var donation models.FoodDonation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&donation); err != nil {
		return nil, fmt.Errorf("failed to get donation: %w", translate(err))
	}
	return &donation, nil
}

// ListDonations returns donations, optionally restricted to one status, newest first.
func (r *DonationRepository) ListDonations(ctx context.Context, status models.DonationStatus) ([]models.FoodDonation, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get donations: %w", err)
	}
	defer cursor.Close(ctx)

	var donations []models.FoodDonation
	if err := cursor.All(ctx, &donations); err != nil {
		return nil, fmt.Errorf("failed to decode donations: %w", err)
	}
	return donations, nil
}

// TransitionDonation applies t only if the donation is still in t.From.
func (r *DonationRepository) TransitionDonation(ctx context.Context, id primitive.ObjectID, t models.DonationTransition) (*models.FoodDonation, error) {
	set := bson.M{"status": t.To, "updated_at": t.At}
	switch t.To {
	case models.DonationReservedForNGO:
		set["reserved_at"] = t.At
	case models.DonationCollected:
		set["collected_at"] = t.At
	}
	if t.NGO != nil {
		set["ngo_name"] = t.NGO.Name
		set["ngo_contact"] = t.NGO.Contact
		set["ngo_phone"] = t.NGO.Phone
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var donation models.FoodDonation
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": t.From}, bson.M{"$set": set}, opts).Decode(&donation)
	if err == nil {
		logrus.WithFields(logrus.Fields{"donationID": id.Hex(), "status": t.To}).Info("Donation transitioned")
		return &donation, nil
	}

	err = translate(err)
	if errors.Is(err, ErrNotFound) {
		if _, lookupErr := r.GetDonationByID(ctx, id); lookupErr == nil {
			return nil, ErrConflict
		}
	}
	return nil, fmt.Errorf("failed to update donation: %w", err)
}

func (r *DonationRepository) DeleteDonationsByItem(ctx context.Context, itemID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"food_item_id": itemID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete donations: %w", err)
	}
	return res.DeletedCount, nil
}
