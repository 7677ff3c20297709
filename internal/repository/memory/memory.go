// Package memory is an in-process store with the same guarantees as the
// MongoDB repositories: unique wallet/email, one blocking claim per
// (user, item), unique claim codes, one donation per item, and conditional
// status transitions. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store groups the in-memory collections.
type Store struct {
	Users         *UserRepository
	FoodItems     *FoodItemRepository
	Claims        *ClaimRepository
	Donations     *DonationRepository
	Events        *EventRepository
	Notifications *NotificationRepository
}

// New returns an empty store.
func New() *Store {
	return &Store{
		Users:         &UserRepository{users: map[primitive.ObjectID]*models.User{}},
		FoodItems:     &FoodItemRepository{items: map[primitive.ObjectID]*models.FoodItem{}},
		Claims:        &ClaimRepository{claims: map[primitive.ObjectID]*models.FoodClaim{}},
		Donations:     &DonationRepository{donations: map[primitive.ObjectID]*models.FoodDonation{}},
		Events:        &EventRepository{events: map[primitive.ObjectID]*models.Event{}},
		Notifications: &NotificationRepository{notifs: map[primitive.ObjectID]*models.Notification{}},
	}
}

func stamp(created *time.Time) time.Time {
	if created.IsZero() {
		*created = time.Now()
	}
	return *created
}

// ---- users ----

type UserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
}

func (r *UserRepository) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if user.WalletAddress != "" && u.WalletAddress == user.WalletAddress {
			return nil, repository.ErrDuplicate
		}
		if user.Email != "" && u.Email == user.Email {
			return nil, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.UpdatedAt = stamp(&user.CreatedAt)
	if user.LastActiveAt.IsZero() {
		user.LastActiveAt = user.CreatedAt
	}
	cp := *user
	r.users[user.ID] = &cp
	return user, nil
}

func (r *UserRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) GetUserByWallet(_ context.Context, address string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.WalletAddress != "" && u.WalletAddress == address })
}

func (r *UserRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email != "" && u.Email == email })
}

func (r *UserRepository) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *UserRepository) MergeProfile(_ context.Context, id primitive.ObjectID, profile models.UserProfile, seenAt time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if profile.Email != "" {
		for _, other := range r.users {
			if other.ID != id && other.Email == profile.Email {
				return nil, repository.ErrDuplicate
			}
		}
		u.Email = profile.Email
	}
	if profile.Name != "" {
		u.Name = profile.Name
	}
	u.LastActiveAt = seenAt
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (r *UserRepository) SetRole(_ context.Context, id primitive.ObjectID, from, to models.Role) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if u.Role != from {
		return nil, repository.ErrConflict
	}
	u.Role = to
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (r *UserRepository) UpdateLastActive(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastActiveAt = at
	}
	return nil
}

func (r *UserRepository) GetUsersByRole(_ context.Context, role models.Role) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- food items ----

type FoodItemRepository struct {
	mu    sync.RWMutex
	items map[primitive.ObjectID]*models.FoodItem
}

func copyItem(item *models.FoodItem) models.FoodItem {
	cp := *item
	if item.IsActive != nil {
		active := *item.IsActive
		cp.IsActive = &active
	}
	return cp
}

func (r *FoodItemRepository) CreateFoodItem(_ context.Context, item *models.FoodItem) (*models.FoodItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = primitive.NewObjectID()
	item.UpdatedAt = stamp(&item.CreatedAt)
	cp := copyItem(item)
	r.items[item.ID] = &cp
	return item, nil
}

func (r *FoodItemRepository) GetFoodItemByID(_ context.Context, id primitive.ObjectID) (*models.FoodItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyItem(item)
	return &cp, nil
}

func (r *FoodItemRepository) filter(match func(*models.FoodItem) bool, less func(a, b *models.FoodItem) bool) []models.FoodItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.FoodItem
	for _, item := range r.items {
		if match(item) {
			out = append(out, copyItem(item))
		}
	}
	if less != nil {
		sort.Slice(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	}
	return out
}

func (r *FoodItemRepository) ListActiveFoodItems(_ context.Context, now time.Time) ([]models.FoodItem, error) {
	return r.filter(
		func(f *models.FoodItem) bool { return f.ActiveFlag() && !f.AvailableUntil.Before(now) },
		func(a, b *models.FoodItem) bool { return a.AvailableUntil.Before(b.AvailableUntil) },
	), nil
}

func (r *FoodItemRepository) ListFoodItemsByCreator(_ context.Context, adminID primitive.ObjectID) ([]models.FoodItem, error) {
	return r.filter(
		func(f *models.FoodItem) bool { return f.CreatedBy == adminID },
		func(a, b *models.FoodItem) bool { return a.CreatedAt.After(b.CreatedAt) },
	), nil
}

func (r *FoodItemRepository) ListFoodItemsByCanteen(_ context.Context, canteen string) ([]models.FoodItem, error) {
	return r.filter(func(f *models.FoodItem) bool { return f.CanteenName == canteen }, nil), nil
}

func (r *FoodItemRepository) ListAllFoodItems(_ context.Context) ([]models.FoodItem, error) {
	return r.filter(func(*models.FoodItem) bool { return true }, nil), nil
}

func (r *FoodItemRepository) ListExpiredWithStock(_ context.Context, now time.Time) ([]models.FoodItem, error) {
	return r.filter(func(f *models.FoodItem) bool {
		return f.IsActive != nil && !*f.IsActive && f.AvailableUntil.Before(now) && f.QuantityAvailable > 0
	}, nil), nil
}

func (r *FoodItemRepository) UpdateFoodItem(_ context.Context, id primitive.ObjectID, patch models.FoodItemPatch, at time.Time) (*models.FoodItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	patch.Apply(item)
	item.UpdatedAt = at
	cp := copyItem(item)
	return &cp, nil
}

func (r *FoodItemRepository) DecrementQuantity(_ context.Context, id primitive.ObjectID, qty int, at time.Time) (*models.FoodItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item.QuantityAvailable -= qty
	if item.QuantityAvailable < 0 {
		item.QuantityAvailable = 0
	}
	item.UpdatedAt = at
	cp := copyItem(item)
	return &cp, nil
}

func (r *FoodItemRepository) SyncActiveFlags(_ context.Context, now time.Time) (deactivated, reactivated int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		switch {
		case item.AvailableUntil.Before(now) && item.ActiveFlag():
			inactive := false
			item.IsActive = &inactive
			item.UpdatedAt = now
			deactivated++
		case !item.ActiveFlag() && item.AvailableUntil.After(now) && item.QuantityAvailable >= 1:
			active := true
			item.IsActive = &active
			item.UpdatedAt = now
			reactivated++
		}
	}
	return deactivated, reactivated, nil
}

func (r *FoodItemRepository) DeleteFoodItem(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// ---- claims ----

type ClaimRepository struct {
	mu     sync.RWMutex
	claims map[primitive.ObjectID]*models.FoodClaim
}

func copyClaim(c *models.FoodClaim) models.FoodClaim {
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	if c.ClaimedAt != nil {
		at := *c.ClaimedAt
		cp.ClaimedAt = &at
	}
	return cp
}

func (r *ClaimRepository) CreateClaim(_ context.Context, claim *models.FoodClaim) (*models.FoodClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	claim.Blocking = claim.Status.Blocking()
	for _, c := range r.claims {
		if claim.Blocking && c.Blocking && c.UserID == claim.UserID && c.FoodItemID == claim.FoodItemID {
			return nil, repository.ErrDuplicate
		}
		if claim.ClaimCode != "" && c.ClaimCode == claim.ClaimCode {
			return nil, repository.ErrDuplicate
		}
	}
	claim.ID = primitive.NewObjectID()
	claim.UpdatedAt = stamp(&claim.CreatedAt)
	cp := copyClaim(claim)
	r.claims[claim.ID] = &cp
	return claim, nil
}

func (r *ClaimRepository) GetClaimByID(_ context.Context, id primitive.ObjectID) (*models.FoodClaim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyClaim(c)
	return &cp, nil
}

func (r *ClaimRepository) GetClaimByCode(_ context.Context, code string) (*models.FoodClaim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.claims {
		if c.ClaimCode != "" && c.ClaimCode == code {
			cp := copyClaim(c)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ClaimRepository) HasBlockingClaim(_ context.Context, userID, itemID primitive.ObjectID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.claims {
		if c.Blocking && c.UserID == userID && c.FoodItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (r *ClaimRepository) ListClaims(_ context.Context, f repository.ClaimFilter) ([]models.FoodClaim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.FoodClaim
	for _, c := range r.claims {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if !f.UserID.IsZero() && c.UserID != f.UserID {
			continue
		}
		if !f.FoodItemID.IsZero() && c.FoodItemID != f.FoodItemID {
			continue
		}
		if !f.CreatedAfter.IsZero() && c.CreatedAt.Before(f.CreatedAfter) {
			continue
		}
		out = append(out, copyClaim(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ClaimRepository) CountBlockingByItem(_ context.Context, itemIDs []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[primitive.ObjectID]bool, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = true
	}
	counts := make(map[primitive.ObjectID]int64, len(itemIDs))
	for _, c := range r.claims {
		if c.Blocking && want[c.FoodItemID] {
			counts[c.FoodItemID]++
		}
	}
	return counts, nil
}

func (r *ClaimRepository) DistinctClaimants(_ context.Context, itemIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[primitive.ObjectID]bool, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = true
	}
	seen := map[primitive.ObjectID]bool{}
	var out []primitive.ObjectID
	for _, c := range r.claims {
		if want[c.FoodItemID] && !seen[c.UserID] {
			seen[c.UserID] = true
			out = append(out, c.UserID)
		}
	}
	return out, nil
}

func (r *ClaimRepository) TransitionClaim(_ context.Context, id primitive.ObjectID, t models.ClaimTransition, at time.Time) (*models.FoodClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if c.Status != t.From {
		return nil, repository.ErrConflict
	}
	if t.NotExpiredAt != nil && c.ExpiresAt.Before(*t.NotExpiredAt) {
		return nil, repository.ErrConflict
	}
	if t.ClaimCode != "" {
		for _, other := range r.claims {
			if other.ID != id && other.ClaimCode == t.ClaimCode {
				return nil, repository.ErrDuplicate
			}
		}
		c.ClaimCode = t.ClaimCode
	}
	c.Status = t.To
	c.Blocking = t.To.Blocking()
	if t.ExpiresAt != nil {
		c.ExpiresAt = *t.ExpiresAt
	}
	if t.ClaimedAt != nil {
		claimedAt := *t.ClaimedAt
		c.ClaimedAt = &claimedAt
	}
	if t.RejectionReason != "" {
		c.RejectionReason = t.RejectionReason
	}
	c.UpdatedAt = at
	cp := copyClaim(c)
	return &cp, nil
}

func (r *ClaimRepository) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.claims {
		if c.Status == models.ClaimReserved && c.ExpiresAt.Before(now) {
			c.Status = models.ClaimExpired
			c.Blocking = false
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *ClaimRepository) DeleteClaimsByItem(_ context.Context, itemID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.claims {
		if c.FoodItemID == itemID {
			delete(r.claims, id)
			n++
		}
	}
	return n, nil
}

// ---- donations ----

type DonationRepository struct {
	mu        sync.RWMutex
	donations map[primitive.ObjectID]*models.FoodDonation
}

func (r *DonationRepository) CreateDonation(_ context.Context, d *models.FoodDonation) (*models.FoodDonation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.donations {
		if existing.FoodItemID == d.FoodItemID {
			return nil, repository.ErrDuplicate
		}
	}
	d.ID = primitive.NewObjectID()
	d.UpdatedAt = stamp(&d.CreatedAt)
	cp := *d
	r.donations[d.ID] = &cp
	return d, nil
}

func (r *DonationRepository) DonationExistsForItem(_ context.Context, itemID primitive.ObjectID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.donations {
		if d.FoodItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (r *DonationRepository) GetDonationByID(_ context.Context, id primitive.ObjectID) (*models.FoodDonation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *DonationRepository) ListDonations(_ context.Context, status models.DonationStatus) ([]models.FoodDonation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.FoodDonation
	for _, d := range r.donations {
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *DonationRepository) TransitionDonation(_ context.Context, id primitive.ObjectID, t models.DonationTransition) (*models.FoodDonation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if d.Status != t.From {
		return nil, repository.ErrConflict
	}
	d.Status = t.To
	at := t.At
	switch t.To {
	case models.DonationReservedForNGO:
		d.ReservedAt = &at
	case models.DonationCollected:
		d.CollectedAt = &at
	}
	if t.NGO != nil {
		d.NGOName, d.NGOContact, d.NGOPhone = t.NGO.Name, t.NGO.Contact, t.NGO.Phone
	}
	d.UpdatedAt = at
	cp := *d
	return &cp, nil
}

func (r *DonationRepository) DeleteDonationsByItem(_ context.Context, itemID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, d := range r.donations {
		if d.FoodItemID == itemID {
			delete(r.donations, id)
			n++
		}
	}
	return n, nil
}

// ---- events ----

type EventRepository struct {
	mu     sync.RWMutex
	events map[primitive.ObjectID]*models.Event
}

func (r *EventRepository) CreateEvent(_ context.Context, ev *models.Event) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = primitive.NewObjectID()
	ev.UpdatedAt = stamp(&ev.CreatedAt)
	cp := *ev
	r.events[ev.ID] = &cp
	return ev, nil
}

func (r *EventRepository) GetEventByID(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (r *EventRepository) ListUpcomingEvents(_ context.Context, now time.Time) ([]models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Event
	for _, ev := range r.events {
		if !ev.EndsAt.Before(now) {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *EventRepository) ReplaceEvent(_ context.Context, ev *models.Event) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[ev.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	ev.UpdatedAt = time.Now()
	cp := *ev
	r.events[ev.ID] = &cp
	return ev, nil
}

func (r *EventRepository) DeleteEvent(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

// ---- notifications ----

type NotificationRepository struct {
	mu     sync.RWMutex
	notifs map[primitive.ObjectID]*models.Notification
}

func (r *NotificationRepository) CreateNotifications(_ context.Context, notifs []models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range notifs {
		n := notifs[i]
		n.ID = primitive.NewObjectID()
		n.Stamp(time.Now())
		r.notifs[n.ID] = &n
	}
	return nil
}

func (r *NotificationRepository) NotificationExists(_ context.Context, userID primitive.ObjectID, notifType string, targetID primitive.ObjectID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.notifs {
		if n.UserID == userID && n.Type == notifType && n.TargetID != nil && *n.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (r *NotificationRepository) GetUserNotifications(_ context.Context, userID primitive.ObjectID, now time.Time) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Notification
	for _, n := range r.notifs {
		if n.UserID == userID && n.VisibleAt(now) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *NotificationRepository) MarkAsRead(_ context.Context, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifs[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	n.Read = true
	return nil
}

func (r *NotificationRepository) DeleteNotification(_ context.Context, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifs[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.notifs, id)
	return nil
}

func (r *NotificationRepository) DeleteExpiredNotifications(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, notif := range r.notifs {
		if !notif.VisibleAt(now) {
			delete(r.notifs, id)
			n++
		}
	}
	return n, nil
}
