package services

import (
	"context"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimEventKind names the lifecycle step a claim email describes.
type ClaimEventKind string

const (
	ClaimEventSubmitted ClaimEventKind = "submitted"
	ClaimEventApproved  ClaimEventKind = "approved"
	ClaimEventRejected  ClaimEventKind = "rejected"
	ClaimEventCompleted ClaimEventKind = "completed"
)

// ClaimEvent carries what a student email needs about a claim transition.
type ClaimEvent struct {
	Kind      ClaimEventKind     `json:"kind"`
	ClaimID   primitive.ObjectID `json:"claim_id"`
	UserID    primitive.ObjectID `json:"user_id"`
	FoodName  string             `json:"food_name"`
	Canteen   string             `json:"canteen"`
	Quantity  int                `json:"quantity"`
	ClaimCode string             `json:"claim_code,omitempty"`
	ExpiresAt time.Time          `json:"expires_at"`
	Reason    string             `json:"reason,omitempty"`
}

// Dispatcher publishes best-effort side effects. Implementations live in
// internal/queue; callers log failures and carry on.
type Dispatcher interface {
	ClaimStatusChanged(ctx context.Context, ev ClaimEvent) error
	FoodItemCreated(ctx context.Context, item models.FoodItem) error
}

// Mailer delivers a plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// noopDispatcher is used when no dispatcher is wired.
type noopDispatcher struct{}

func (noopDispatcher) ClaimStatusChanged(context.Context, ClaimEvent) error   { return nil }
func (noopDispatcher) FoodItemCreated(context.Context, models.FoodItem) error { return nil }
