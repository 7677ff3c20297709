package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository/memory"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingDispatcher struct {
	mu          sync.Mutex
	claimEvents []services.ClaimEvent
	items       []models.FoodItem
	err         error
}

func (d *recordingDispatcher) ClaimStatusChanged(_ context.Context, ev services.ClaimEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimEvents = append(d.claimEvents, ev)
	return d.err
}

func (d *recordingDispatcher) FoodItemCreated(_ context.Context, item models.FoodItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, item)
	return d.err
}

func (d *recordingDispatcher) kinds() []services.ClaimEventKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]services.ClaimEventKind, len(d.claimEvents))
	for i, ev := range d.claimEvents {
		out[i] = ev.Kind
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	return m.err
}

type fixture struct {
	store      *memory.Store
	clock      *testClock
	dispatcher *recordingDispatcher

	claims    *services.ClaimService
	items     *services.FoodItemService
	donations *services.DonationService
	stats     *services.StatsService
	notifs    *services.NotificationService
	mailer    *recordingMailer

	admin primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clock := newTestClock()
	disp := &recordingDispatcher{}
	mailer := &recordingMailer{}

	f := &fixture{
		store:      store,
		clock:      clock,
		dispatcher: disp,
		claims:     services.NewClaimService(store.Claims, store.FoodItems, disp, 30*time.Minute),
		items:      services.NewFoodItemService(store.FoodItems, store.Claims, store.Donations, disp),
		donations:  services.NewDonationService(store.FoodItems, store.Donations),
		stats:      services.NewStatsService(store.FoodItems, store.Claims),
		notifs:     services.NewNotificationService(store.Notifications, store.Users, store.FoodItems, store.Claims, mailer),
		mailer:     mailer,
		admin:      primitive.NewObjectID(),
	}
	f.claims.Now = clock.Now
	f.items.Now = clock.Now
	f.donations.Now = clock.Now
	f.stats.Now = clock.Now
	f.notifs.Now = clock.Now
	return f
}

func (f *fixture) createItem(t *testing.T, qty int, window time.Duration) *models.FoodItem {
	t.Helper()
	item, err := f.items.Create(context.Background(), f.admin, services.FoodItemInput{
		Name:           "Veg Biryani",
		CanteenName:    "North Canteen",
		Quantity:       qty,
		AvailableUntil: f.clock.Now().Add(window),
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) submit(t *testing.T, user primitive.ObjectID, item *models.FoodItem, qty int) *models.FoodClaim {
	t.Helper()
	claim, err := f.claims.Submit(context.Background(), user, services.ClaimRequest{FoodItemID: item.ID, Quantity: qty})
	require.NoError(t, err)
	return claim
}

func (f *fixture) reserved(t *testing.T, user primitive.ObjectID, item *models.FoodItem, qty int) *models.FoodClaim {
	t.Helper()
	claim := f.submit(t, user, item, qty)
	approved, err := f.claims.Approve(context.Background(), claim.ID)
	require.NoError(t, err)
	return approved
}

func (f *fixture) stock(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	item, err := f.store.FoodItems.GetFoodItemByID(context.Background(), id)
	require.NoError(t, err)
	return item.QuantityAvailable
}

var errBoom = errors.New("boom")
