package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimStatus is the lifecycle state of a FoodClaim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimReserved ClaimStatus = "reserved"
	ClaimClaimed  ClaimStatus = "claimed"
	ClaimRejected ClaimStatus = "rejected"
	ClaimExpired  ClaimStatus = "expired"
)

// Blocking reports whether a claim in status s prevents the same student from
// claiming the same item again.
func (s ClaimStatus) Blocking() bool {
	return s == ClaimPending || s == ClaimReserved || s == ClaimClaimed
}

// Terminal reports whether no transition leaves s.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimClaimed || s == ClaimRejected || s == ClaimExpired
}

// Valid reports whether s is a known status.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimReserved, ClaimClaimed, ClaimRejected, ClaimExpired:
		return true
	}
	return false
}

// FoodClaim is one student's reservation against one FoodItem.
type FoodClaim struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	FoodItemID      primitive.ObjectID `bson:"food_item_id" json:"food_item_id"`
	QuantityClaimed int                `bson:"quantity_claimed" json:"quantity_claimed"`
	ClaimCode       string             `bson:"claim_code,omitempty" json:"claim_code,omitempty"` // unset until approval
	Status          ClaimStatus        `bson:"status" json:"status"`
	Blocking        bool               `bson:"blocking" json:"-"`
	ExpiresAt       time.Time          `bson:"expires_at" json:"expires_at"`
	ClaimedAt       *time.Time         `bson:"claimed_at,omitempty" json:"claimed_at,omitempty"`
	RejectionReason string             `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	Metadata        map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// ClaimTransition describes a guarded status change. The store applies it
// only if the claim is currently in From (and, when NotExpiredAt is set, its
// ExpiresAt is not before that instant).
type ClaimTransition struct {
	From            ClaimStatus
	To              ClaimStatus
	NotExpiredAt    *time.Time
	ClaimCode       string
	ExpiresAt       *time.Time
	ClaimedAt       *time.Time
	RejectionReason string
}
