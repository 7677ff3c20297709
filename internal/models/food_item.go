package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FoodItem is a batch of surplus meals offered by a canteen.
type FoodItem struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name              string             `bson:"name" json:"name"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	CanteenName       string             `bson:"canteen_name" json:"canteen_name"`
	Location          string             `bson:"location,omitempty" json:"location,omitempty"`
	QuantityAvailable int                `bson:"quantity_available" json:"quantity_available"`
	AvailableUntil    time.Time          `bson:"available_until" json:"available_until"`
	// IsActive is stored so that bulk queries can filter on it; the sweep keeps
	// it in line with AvailableUntil. Legacy documents may not carry it.
	IsActive  *bool              `bson:"is_active,omitempty" json:"is_active"`
	ImageURL  string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ActiveFlag returns the stored flag, treating a missing value as active.
func (f *FoodItem) ActiveFlag() bool {
	return f.IsActive == nil || *f.IsActive
}

// ClaimableAt reports whether a student may claim from the item at now.
func (f *FoodItem) ClaimableAt(now time.Time) bool {
	return f.ActiveFlag() && f.AvailableUntil.After(now) && f.QuantityAvailable > 0
}

// ExpiredAt reports whether the availability window has closed.
func (f *FoodItem) ExpiredAt(now time.Time) bool {
	return f.AvailableUntil.Before(now)
}

// FoodItemPatch carries a partial update; nil fields keep their prior value.
type FoodItemPatch struct {
	Name              *string
	Description       *string
	CanteenName       *string
	Location          *string
	QuantityAvailable *int
	AvailableUntil    *time.Time
	ImageURL          *string
	IsActive          *bool
}

// Apply copies the set fields of p onto item.
func (p FoodItemPatch) Apply(item *FoodItem) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.CanteenName != nil {
		item.CanteenName = *p.CanteenName
	}
	if p.Location != nil {
		item.Location = *p.Location
	}
	if p.QuantityAvailable != nil {
		item.QuantityAvailable = *p.QuantityAvailable
	}
	if p.AvailableUntil != nil {
		item.AvailableUntil = *p.AvailableUntil
	}
	if p.ImageURL != nil {
		item.ImageURL = *p.ImageURL
	}
	if p.IsActive != nil {
		active := *p.IsActive
		item.IsActive = &active
	}
}

// FoodItemView is the listing shape returned to clients.
type FoodItemView struct {
	FoodItem     `bson:",inline"`
	Claimable    bool  `json:"claimable"`
	ActiveClaims int64 `json:"active_claims"`
}
