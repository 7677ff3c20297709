package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Dias221467/FoodRescue/internal/metrics"
	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultClaimHold = 30 * time.Minute

	codeAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeSuffixLength = 4
	codeAttempts     = 5
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID primitive.ObjectID
	Role   models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// ClaimRequest is a student's request for part of a food item.
type ClaimRequest struct {
	FoodItemID primitive.ObjectID
	Quantity   int
	Metadata   map[string]string
}

// ClaimVerification is the result of checking a claim code at the counter.
type ClaimVerification struct {
	Claim *models.FoodClaim `json:"claim"`
	Item  *models.FoodItem  `json:"food_item,omitempty"`
}

// StockKeeper takes redeemed portions off an item.
type StockKeeper interface {
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (*models.FoodItem, error)
}

// ClaimService drives the claim state machine:
// pending -> reserved|rejected, reserved -> claimed|expired.
type ClaimService struct {
	claims     ClaimStore
	items      FoodItemStore
	dispatcher Dispatcher

	HoldDuration time.Duration
	Now          func() time.Time
	NewCode      func(now time.Time) (string, error)
	// Stock defaults to an inventory service over the same item store.
	Stock StockKeeper
}

func NewClaimService(claims ClaimStore, items FoodItemStore, dispatcher Dispatcher, hold time.Duration) *ClaimService {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	if hold <= 0 {
		hold = DefaultClaimHold
	}
	s := &ClaimService{
		claims:       claims,
		items:        items,
		dispatcher:   dispatcher,
		HoldDuration: hold,
		Now:          time.Now,
		NewCode:      GenerateClaimCode,
	}
	s.Stock = &FoodItemService{items: items, dispatcher: noopDispatcher{}, Now: func() time.Time { return s.Now() }}
	return s
}

// GenerateClaimCode returns the base-36 unix-millis timestamp followed by
// four random base-36 characters, uppercased.
func GenerateClaimCode(now time.Time) (string, error) {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeSuffixLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate claim code: %w", err)
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Submit creates a pending claim for the user.
func (s *ClaimService) Submit(ctx context.Context, userID primitive.ObjectID, req ClaimRequest) (*models.FoodClaim, error) {
	item, err := s.items.GetFoodItemByID(ctx, req.FoodItemID)
	if err != nil {
		return nil, mapNotFound(err, ErrFoodItemNotFound)
	}

	now := s.Now()
	if !item.ClaimableAt(now) {
		return nil, ErrItemUnavailable
	}
	if req.Quantity < 1 {
		return nil, invalid("quantityClaimed", "must be at least 1")
	}
	if req.Quantity > item.QuantityAvailable {
		return nil, invalid("quantityClaimed", fmt.Sprintf("only %d left", item.QuantityAvailable))
	}

	exists, err := s.claims.HasBlockingClaim(ctx, userID, item.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateClaim
	}

	claim, err := s.claims.CreateClaim(ctx, &models.FoodClaim{
		UserID:          userID,
		FoodItemID:      item.ID,
		QuantityClaimed: req.Quantity,
		Status:          models.ClaimPending,
		ExpiresAt:       now.Add(s.HoldDuration),
		Metadata:        req.Metadata,
		CreatedAt:       now,
	})
	if err != nil {
		// Lost the race against a concurrent submit for the same pair.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateClaim
		}
		return nil, err
	}

	metrics.RecordClaimTransition(string(models.ClaimPending))
	s.publish(ctx, ClaimEventSubmitted, claim, item, "")
	return claim, nil
}

// Approve reserves a pending claim and issues its pickup code.
func (s *ClaimService) Approve(ctx context.Context, claimID primitive.ObjectID) (*models.FoodClaim, error) {
	now := s.Now()
	expiresAt := now.Add(s.HoldDuration)

	var lastErr error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.NewCode(now)
		if err != nil {
			return nil, err
		}
		claim, err := s.claims.TransitionClaim(ctx, claimID, models.ClaimTransition{
			From:      models.ClaimPending,
			To:        models.ClaimReserved,
			ClaimCode: code,
			ExpiresAt: &expiresAt,
		}, now)
		if err == nil {
			metrics.RecordClaimTransition(string(models.ClaimReserved))
			s.publish(ctx, ClaimEventApproved, claim, nil, "")
			return claim, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, s.transitionError(ctx, claimID, err)
		}
		logrus.WithField("claimID", claimID.Hex()).Warn("Claim code collision, regenerating")
		lastErr = err
	}
	return nil, fmt.Errorf("failed to issue a unique claim code after %d attempts: %w", codeAttempts, lastErr)
}

// Reject closes a pending claim with a reason. No code is ever issued.
func (s *ClaimService) Reject(ctx context.Context, claimID primitive.ObjectID, reason string) (*models.FoodClaim, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "rejected by admin"
	}
	claim, err := s.claims.TransitionClaim(ctx, claimID, models.ClaimTransition{
		From:            models.ClaimPending,
		To:              models.ClaimRejected,
		RejectionReason: reason,
	}, s.Now())
	if err != nil {
		return nil, s.transitionError(ctx, claimID, err)
	}
	metrics.RecordClaimTransition(string(models.ClaimRejected))
	s.publish(ctx, ClaimEventRejected, claim, nil, reason)
	return claim, nil
}

// Verify checks a pickup code without changing anything.
func (s *ClaimService) Verify(ctx context.Context, code string) (*ClaimVerification, error) {
	claim, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.ClaimReserved {
		return nil, invalidState("claim is %s", claim.Status)
	}
	if s.Now().After(claim.ExpiresAt) {
		return nil, ErrClaimExpired
	}

	result := &ClaimVerification{Claim: claim}
	if item, err := s.items.GetFoodItemByID(ctx, claim.FoodItemID); err == nil {
		result.Item = item
	}
	return result, nil
}

// Complete hands out a reserved claim. The owner or any admin may do it.
func (s *ClaimService) Complete(ctx context.Context, claimID primitive.ObjectID, actor Actor) (*models.FoodClaim, error) {
	claim, err := s.claims.GetClaimByID(ctx, claimID)
	if err != nil {
		return nil, mapNotFound(err, ErrClaimNotFound)
	}
	if claim.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.redeem(ctx, claim)
}

// RedeemByCode completes the reserved claim holding code.
func (s *ClaimService) RedeemByCode(ctx context.Context, code string) (*models.FoodClaim, error) {
	claim, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.redeem(ctx, claim)
}

// redeem moves reserved -> claimed only while the hold is still valid, then
// takes the quantity off the item. A lapsed hold is marked expired instead.
func (s *ClaimService) redeem(ctx context.Context, claim *models.FoodClaim) (*models.FoodClaim, error) {
	if claim.Status != models.ClaimReserved {
		return nil, invalidState("claim is %s", claim.Status)
	}

	now := s.Now()
	updated, err := s.claims.TransitionClaim(ctx, claim.ID, models.ClaimTransition{
		From:         models.ClaimReserved,
		To:           models.ClaimClaimed,
		NotExpiredAt: &now,
		ClaimedAt:    &now,
	}, now)
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, mapNotFound(err, ErrClaimNotFound)
		}
		current, getErr := s.claims.GetClaimByID(ctx, claim.ID)
		if getErr != nil {
			return nil, mapNotFound(getErr, ErrClaimNotFound)
		}
		if current.Status == models.ClaimReserved && current.ExpiresAt.Before(now) {
			if _, expErr := s.claims.TransitionClaim(ctx, claim.ID, models.ClaimTransition{
				From: models.ClaimReserved,
				To:   models.ClaimExpired,
			}, now); expErr == nil {
				metrics.RecordClaimTransition(string(models.ClaimExpired))
			}
			return nil, ErrClaimExpired
		}
		return nil, invalidState("claim is %s", current.Status)
	}
	metrics.RecordClaimTransition(string(models.ClaimClaimed))

	item, err := s.Stock.DecrementStock(ctx, updated.FoodItemID, updated.QuantityClaimed)
	if err != nil {
		logrus.WithError(err).WithField("claimID", updated.ID.Hex()).Error("Claim completed but stock decrement failed")
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}
	metrics.RecordMealsRescued(updated.QuantityClaimed)

	s.publish(ctx, ClaimEventCompleted, updated, item, "")
	return updated, nil
}

// ExpireOverdue marks every lapsed reservation expired.
func (s *ClaimService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.claims.ExpireOverdue(ctx, s.Now())
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < n; i++ {
		metrics.RecordClaimTransition(string(models.ClaimExpired))
	}
	return n, nil
}

func (s *ClaimService) Get(ctx context.Context, claimID primitive.ObjectID) (*models.FoodClaim, error) {
	claim, err := s.claims.GetClaimByID(ctx, claimID)
	if err != nil {
		return nil, mapNotFound(err, ErrClaimNotFound)
	}
	return claim, nil
}

// ListPending returns the approval queue, oldest first.
func (s *ClaimService) ListPending(ctx context.Context) ([]models.FoodClaim, error) {
	return s.claims.ListClaims(ctx, repository.ClaimFilter{Status: models.ClaimPending})
}

func (s *ClaimService) ListMine(ctx context.Context, userID primitive.ObjectID) ([]models.FoodClaim, error) {
	return s.claims.ListClaims(ctx, repository.ClaimFilter{UserID: userID})
}

// ListAll returns every claim, optionally narrowed to one status.
func (s *ClaimService) ListAll(ctx context.Context, status models.ClaimStatus) ([]models.FoodClaim, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.claims.ListClaims(ctx, repository.ClaimFilter{Status: status})
}

func (s *ClaimService) findByCode(ctx context.Context, code string) (*models.FoodClaim, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, invalid("claimCode", "is required")
	}
	claim, err := s.claims.GetClaimByCode(ctx, code)
	if err != nil {
		return nil, mapNotFound(err, ErrClaimNotFound)
	}
	return claim, nil
}

// transitionError turns a store miss into not-found or a state error naming
// the claim's current status.
func (s *ClaimService) transitionError(ctx context.Context, claimID primitive.ObjectID, err error) error {
	if !errors.Is(err, repository.ErrConflict) {
		return mapNotFound(err, ErrClaimNotFound)
	}
	current, getErr := s.claims.GetClaimByID(ctx, claimID)
	if getErr != nil {
		return mapNotFound(getErr, ErrClaimNotFound)
	}
	return invalidState("claim is %s", current.Status)
}

func (s *ClaimService) publish(ctx context.Context, kind ClaimEventKind, claim *models.FoodClaim, item *models.FoodItem, reason string) {
	if item == nil {
		if found, err := s.items.GetFoodItemByID(ctx, claim.FoodItemID); err == nil {
			item = found
		}
	}
	ev := ClaimEvent{
		Kind:      kind,
		ClaimID:   claim.ID,
		UserID:    claim.UserID,
		Quantity:  claim.QuantityClaimed,
		ClaimCode: claim.ClaimCode,
		ExpiresAt: claim.ExpiresAt,
		Reason:    reason,
	}
	if item != nil {
		ev.FoodName = item.Name
		ev.Canteen = item.CanteenName
	}
	if err := s.dispatcher.ClaimStatusChanged(ctx, ev); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"claimID": claim.ID.Hex(),
			"kind":    kind,
		}).Warn("Failed to dispatch claim event")
	}
}
