package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationTTL is how long a notification stays visible before the purge
// removes it.
const NotificationTTL = 7 * 24 * time.Hour

const (
	NotificationNewItem       = "new_food_item"
	NotificationClaimApproved = "claim_approved"
	NotificationClaimRejected = "claim_rejected"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Type      string              `bson:"type" json:"type"`
	Title     string              `bson:"title" json:"title"`
	Message   string              `bson:"message" json:"message"`
	Read      bool                `bson:"read" json:"read"`
	TargetID  *primitive.ObjectID `bson:"target_id,omitempty" json:"target_id,omitempty"` // food item or claim
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time           `bson:"expires_at" json:"expires_at"`
}

// Stamp fills CreatedAt when unset and derives ExpiresAt from it.
func (n *Notification) Stamp(now time.Time) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.ExpiresAt = n.CreatedAt.Add(NotificationTTL)
}

// VisibleAt reports whether the notification has not yet expired.
func (n *Notification) VisibleAt(now time.Time) bool {
	return n.ExpiresAt.After(now)
}
