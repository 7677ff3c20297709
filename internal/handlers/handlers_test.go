package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/Dias221467/FoodRescue/internal/handlers"
	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/noncestore"
	"github.com/Dias221467/FoodRescue/internal/repository/memory"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/Dias221467/FoodRescue/internal/storage"
	jwtutil "github.com/Dias221467/FoodRescue/pkg/jwt"
	"github.com/Dias221467/FoodRescue/pkg/middleware"
	"github.com/Dias221467/FoodRescue/pkg/wallet"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

type apiFixture struct {
	router    *mux.Router
	store     *memory.Store
	uploadDir string
	superKey  *secp256k1.PrivateKey
}

func newAPI(t *testing.T, tweaks ...func(*handlers.RouterOptions)) *apiFixture {
	t.Helper()
	store := memory.New()
	uploadDir := t.TempDir()

	superKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	superWallet := wallet.PubkeyToAddress(superKey.PubKey())

	cfg := &config.Config{JWTSecret: testSecret, TokenExpiry: time.Hour, FrontendURL: "http://localhost:3000"}
	identity := services.NewIdentityService(store.Users, noncestore.NewMemoryStore(5*time.Minute), "", []string{superWallet})
	images := storage.NewDiskStore(uploadDir)
	items := services.NewFoodItemService(store.FoodItems, store.Claims, store.Donations, nil)
	items.Images = images
	claims := services.NewClaimService(store.Claims, store.FoodItems, nil, 30*time.Minute)
	donations := services.NewDonationService(store.FoodItems, store.Donations)
	stats := services.NewStatsService(store.FoodItems, store.Claims)
	events := services.NewEventService(store.Events)
	notifs := services.NewNotificationService(store.Notifications, store.Users, store.FoodItems, store.Claims, nil)

	opts := handlers.RouterOptions{
		JWTSecret:    testSecret,
		IsSuperadmin: identity.IsSuperadmin,
		LastActive:   identity,
		UploadDir:    uploadDir,
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}

	router := handlers.NewRouter(handlers.Handlers{
		Auth:          handlers.NewAuthHandler(identity, cfg),
		FoodItems:     handlers.NewFoodItemHandler(items, images),
		Claims:        handlers.NewClaimHandler(claims),
		Donations:     handlers.NewDonationHandler(donations),
		Stats:         handlers.NewStatsHandler(stats),
		Events:        handlers.NewEventHandler(events),
		Notifications: handlers.NewNotificationHandler(notifs),
	}, opts)
	return &apiFixture{router: router, store: store, uploadDir: uploadDir, superKey: superKey}
}

func token(t *testing.T, id primitive.ObjectID, role models.Role, walletAddr string) string {
	t.Helper()
	tok, err := jwtutil.GenerateToken(id.Hex(), "", walletAddr, string(role), testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, rec, &body)
	return body.Message
}

func TestHealthz(t *testing.T) {
	api := newAPI(t)
	rec := api.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthAndRoleGuards(t *testing.T) {
	api := newAPI(t)
	student := token(t, primitive.NewObjectID(), models.RoleStudent, "")
	pending := token(t, primitive.NewObjectID(), models.RolePendingAdmin, "")

	rec := api.do(t, "POST", "/api/food-claims", "", map[string]interface{}{"foodItemId": primitive.NewObjectID().Hex()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", message(t, rec))

	rec = api.do(t, "POST", "/api/food-items", student, map[string]interface{}{"name": "Soup"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, "GET", "/api/food-claims/pending", pending, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, "POST", "/api/food-claims", pending, map[string]interface{}{"foodItemId": primitive.NewObjectID().Hex()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, "GET", "/api/admin/pending-admins", token(t, primitive.NewObjectID(), models.RoleAdmin, "0x0000000000000000000000000000000000000001"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClaimLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)
	adminID := primitive.NewObjectID()
	admin := token(t, adminID, models.RoleAdmin, "")
	studentID := primitive.NewObjectID()
	student := token(t, studentID, models.RoleStudent, "")

	rec := api.do(t, "POST", "/api/food-items", admin, map[string]interface{}{
		"name":              "Veg curry",
		"canteenName":       "North Hall",
		"quantityAvailable": 5,
		"availableUntil":    time.Now().Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item models.FoodItem
	decode(t, rec, &item)
	assert.Equal(t, adminID, item.CreatedBy)

	rec = api.do(t, "GET", "/api/food-items", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]interface{}
	decode(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, true, listed[0]["claimable"])

	rec = api.do(t, "POST", "/api/food-claims", student, map[string]interface{}{
		"foodItemId":      item.ID.Hex(),
		"quantityClaimed": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var claim models.FoodClaim
	decode(t, rec, &claim)
	assert.Equal(t, models.ClaimPending, claim.Status)
	assert.Empty(t, claim.ClaimCode)

	rec = api.do(t, "POST", "/api/food-claims", student, map[string]interface{}{
		"foodItemId":      item.ID.Hex(),
		"quantityClaimed": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.ErrDuplicateClaim.Error(), message(t, rec))

	rec = api.do(t, "PUT", "/api/food-claims/"+claim.ID.Hex()+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &claim)
	require.Equal(t, models.ClaimReserved, claim.Status)
	require.NotEmpty(t, claim.ClaimCode)

	rec = api.do(t, "PUT", "/api/food-claims/"+claim.ID.Hex()+"/approve", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "claim is reserved", message(t, rec))

	rec = api.do(t, "POST", "/api/food-claims/verify", student, map[string]string{"claimCode": claim.ClaimCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, "POST", "/api/food-claims/redeem", admin, map[string]string{"claimCode": claim.ClaimCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &claim)
	assert.Equal(t, models.ClaimClaimed, claim.Status)

	rec = api.do(t, "GET", "/api/food-items/"+item.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &item)
	assert.Equal(t, 3, item.QuantityAvailable)

	rec = api.do(t, "GET", "/api/food-claims/my", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.FoodClaim
	decode(t, rec, &mine)
	assert.Len(t, mine, 1)

	rec = api.do(t, "GET", "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats services.CampusStats
	decode(t, rec, &stats)
	assert.Equal(t, 2, stats.TotalMealsSaved)
}

func TestErrorStatuses(t *testing.T) {
	api := newAPI(t)
	admin := token(t, primitive.NewObjectID(), models.RoleAdmin, "")

	rec := api.do(t, "GET", "/api/food-items/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, "GET", "/api/food-items/"+primitive.NewObjectID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, "POST", "/api/food-claims/redeem", admin, map[string]string{"claimCode": "NOPE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, "POST", "/api/food-claims/verify", admin, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "claimCode: is required", message(t, rec))

	rec = api.do(t, "GET", "/api/food-claims?status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateFoodItemWithImage(t *testing.T) {
	api := newAPI(t)
	admin := token(t, primitive.NewObjectID(), models.RoleAdmin, "")

	build := func(method, path string, fields map[string]string, contentType string) *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			require.NoError(t, mw.WriteField(k, v))
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="meal.png"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+admin)
		return req
	}

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, build("POST", "/api/food-items", map[string]string{
		"name":              "Pasta",
		"canteenName":       "East Hall",
		"quantityAvailable": "4",
		"availableUntil":    time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}, "image/png"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item models.FoodItem
	decode(t, rec, &item)
	require.True(t, strings.HasPrefix(item.ImageURL, "/uploads/"))
	_, err := os.Stat(filepath.Join(api.uploadDir, filepath.Base(item.ImageURL)))
	assert.NoError(t, err)

	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest("GET", item.ImageURL, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing canteen: the upload is stored, then removed when Create fails.
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, build("POST", "/api/food-items", map[string]string{
		"name":           "Pasta",
		"availableUntil": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}, "image/png"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	entries, err := os.ReadDir(api.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, build("POST", "/api/food-items", map[string]string{"name": "Pasta"}, "image/gif"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A new image replaces the stored one; deleting the item removes the last.
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, build("PUT", "/api/food-items/"+item.ID.Hex(), map[string]string{}, "image/png"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.FoodItem
	decode(t, rec, &updated)
	require.NotEqual(t, item.ImageURL, updated.ImageURL)
	_, err = os.Stat(filepath.Join(api.uploadDir, filepath.Base(item.ImageURL)))
	assert.True(t, os.IsNotExist(err))
	entries, err = os.ReadDir(api.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	rec = api.do(t, "DELETE", "/api/food-items/"+item.ID.Hex(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries, err = os.ReadDir(api.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWalletLoginAndSuperadminApproval(t *testing.T) {
	api := newAPI(t)

	login := func(key *secp256k1.PrivateKey, extra map[string]interface{}) (string, models.User) {
		addr := wallet.PubkeyToAddress(key.PubKey())
		rec := api.do(t, "GET", "/api/auth/nonce?address="+url.QueryEscape(addr), "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		challenge := message(t, rec)

		body := map[string]interface{}{"address": addr, "signature": wallet.Sign(key, challenge)}
		for k, v := range extra {
			body[k] = v
		}
		rec = api.do(t, "POST", "/api/auth/wallet", "", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Token string      `json:"token"`
			User  models.User `json:"user"`
		}
		decode(t, rec, &resp)
		return resp.Token, resp.User
	}

	studentKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	studentTok, student := login(studentKey, map[string]interface{}{"name": "Ada"})
	assert.Equal(t, models.RoleStudent, student.Role)

	rec := api.do(t, "GET", "/api/auth/me", studentTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	decode(t, rec, &me)
	assert.Equal(t, "Ada", me.Name)

	// Replayed signature: the nonce was consumed.
	addr := wallet.PubkeyToAddress(studentKey.PubKey())
	rec = api.do(t, "POST", "/api/auth/wallet", "", map[string]interface{}{
		"address":   addr,
		"signature": wallet.Sign(studentKey, services.ChallengeMessage("stale")),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	superTok, super := login(api.superKey, nil)
	assert.Equal(t, models.RoleAdmin, super.Role)

	_, err = api.store.Users.CreateUser(context.Background(), &models.User{
		Email:      "pending@campus.edu",
		AuthMethod: models.AuthMethodGoogle,
		Role:       models.RolePendingAdmin,
	})
	require.NoError(t, err)

	rec = api.do(t, "GET", "/api/admin/pending-admins", superTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []models.User
	decode(t, rec, &pending)
	require.Len(t, pending, 1)

	rec = api.do(t, "PUT", "/api/admin/users/"+pending[0].ID.Hex()+"/approve", superTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved models.User
	decode(t, rec, &approved)
	assert.Equal(t, models.RoleAdmin, approved.Role)

	rec = api.do(t, "PUT", "/api/admin/users/"+pending[0].ID.Hex()+"/approve", superTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyAdminPasswordWithoutHash(t *testing.T) {
	api := newAPI(t)
	rec := api.do(t, "POST", "/api/auth/verify-admin-password", "", map[string]string{"password": "guess"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	decode(t, rec, &body)
	assert.False(t, body["valid"])
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	api := newAPI(t)
	rec := api.do(t, "GET", "/api/auth/google/login", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsAreOwnerScoped(t *testing.T) {
	api := newAPI(t)
	ownerID := primitive.NewObjectID()
	owner := token(t, ownerID, models.RoleStudent, "")
	other := token(t, primitive.NewObjectID(), models.RoleStudent, "")

	require.NoError(t, api.store.Notifications.CreateNotifications(context.Background(), []models.Notification{{
		UserID:    ownerID,
		Type:      models.NotificationNewItem,
		Title:     "New food available",
		Message:   "Soup at South Hall",
		CreatedAt: time.Now(),
	}}))

	rec := api.do(t, "GET", "/api/notifications", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notifs []models.Notification
	decode(t, rec, &notifs)
	require.Len(t, notifs, 1)
	id := notifs[0].ID.Hex()

	rec = api.do(t, "PUT", "/api/notifications/"+id+"/read", other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, "PUT", "/api/notifications/"+id+"/read", owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, "DELETE", "/api/notifications/"+id, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, "GET", "/api/notifications", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func (f *apiFixture) createListing(t *testing.T, admin string) models.FoodItem {
	t.Helper()
	rec := f.do(t, "POST", "/api/food-items", admin, map[string]interface{}{
		"name":              "Lentil soup",
		"canteenName":       "South Hall",
		"quantityAvailable": 10,
		"availableUntil":    time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item models.FoodItem
	decode(t, rec, &item)
	return item
}

func TestClaimSubmissionRateLimitedPerUser(t *testing.T) {
	api := newAPI(t, func(opts *handlers.RouterOptions) {
		opts.RateLimiter = middleware.NewRateLimiter(1, 1)
	})
	item := api.createListing(t, token(t, primitive.NewObjectID(), models.RoleAdmin, ""))
	first := token(t, primitive.NewObjectID(), models.RoleStudent, "")
	second := token(t, primitive.NewObjectID(), models.RoleStudent, "")
	body := map[string]interface{}{"foodItemId": item.ID.Hex()}

	// httptest requests share one RemoteAddr, as students behind campus NAT do.
	rec := api.do(t, "POST", "/api/food-claims", first, body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = api.do(t, "POST", "/api/food-claims", second, body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, "POST", "/api/food-claims", first, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRejectWithoutBody(t *testing.T) {
	api := newAPI(t)
	admin := token(t, primitive.NewObjectID(), models.RoleAdmin, "")
	item := api.createListing(t, admin)

	submit := func() models.FoodClaim {
		rec := api.do(t, "POST", "/api/food-claims", token(t, primitive.NewObjectID(), models.RoleStudent, ""), map[string]interface{}{"foodItemId": item.ID.Hex()})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var claim models.FoodClaim
		decode(t, rec, &claim)
		return claim
	}

	claim := submit()
	rec := api.do(t, "PUT", "/api/food-claims/"+claim.ID.Hex()+"/reject", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Chunked transfer: no Content-Length, empty body.
	claim = submit()
	req := httptest.NewRequest("PUT", "/api/food-claims/"+claim.ID.Hex()+"/reject", io.NopCloser(strings.NewReader("")))
	req.ContentLength = -1
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &claim)
	assert.Equal(t, models.ClaimRejected, claim.Status)
	assert.Empty(t, claim.RejectionReason)

	claim = submit()
	rec = api.do(t, "PUT", "/api/food-claims/"+claim.ID.Hex()+"/reject", admin, map[string]string{"reason": "Out of stock"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &claim)
	assert.Equal(t, "Out of stock", claim.RejectionReason)
}
