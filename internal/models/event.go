package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is an admin-authored calendar entry, e.g. a food drive.
type Event struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Location    string             `bson:"location" json:"location"`
	StartsAt    time.Time          `bson:"starts_at" json:"starts_at"`
	EndsAt      time.Time          `bson:"ends_at" json:"ends_at"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// EventPatch carries a partial event update; nil fields keep their value.
type EventPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// Apply copies the set fields of p onto ev.
func (p EventPatch) Apply(ev *Event) {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.StartsAt != nil {
		ev.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		ev.EndsAt = *p.EndsAt
	}
}
