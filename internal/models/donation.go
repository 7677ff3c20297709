package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DonationStatus tracks an NGO pickup of expired stock.
type DonationStatus string

const (
	DonationAvailable      DonationStatus = "available"
	DonationReservedForNGO DonationStatus = "reserved_for_ngo"
	DonationCollected      DonationStatus = "collected"
)

// FoodDonation records unclaimed-at-expiry inventory offered to NGOs.
type FoodDonation struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FoodItemID      primitive.ObjectID `bson:"food_item_id" json:"food_item_id"`
	FoodName        string             `bson:"food_name" json:"food_name"`
	CanteenName     string             `bson:"canteen_name" json:"canteen_name"`
	QuantityDonated int                `bson:"quantity_donated" json:"quantity_donated"`
	Status          DonationStatus     `bson:"status" json:"status"`
	NGOName         string             `bson:"ngo_name,omitempty" json:"ngo_name,omitempty"`
	NGOContact      string             `bson:"ngo_contact,omitempty" json:"ngo_contact,omitempty"`
	NGOPhone        string             `bson:"ngo_phone,omitempty" json:"ngo_phone,omitempty"`
	ReservedAt      *time.Time         `bson:"reserved_at,omitempty" json:"reserved_at,omitempty"`
	CollectedAt     *time.Time         `bson:"collected_at,omitempty" json:"collected_at,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// NGOContact is the pickup party entered by an admin when reserving.
type NGOContact struct {
	Name    string `json:"ngoName" validate:"required"`
	Contact string `json:"ngoContact"`
	Phone   string `json:"ngoPhone"`
}

// DonationTransition is a guarded donation status change.
type DonationTransition struct {
	From DonationStatus
	To   DonationStatus
	NGO  *NGOContact
	At   time.Time
}
