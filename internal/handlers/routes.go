package handlers

import (
	"net/http"

	"github.com/Dias221467/FoodRescue/internal/metrics"
	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/pkg/middleware"
	"github.com/gorilla/mux"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Auth          *AuthHandler
	FoodItems     *FoodItemHandler
	Claims        *ClaimHandler
	Donations     *DonationHandler
	Stats         *StatsHandler
	Events        *EventHandler
	Notifications *NotificationHandler
}

// RouterOptions carries the cross-cutting pieces the routes are wrapped in.
type RouterOptions struct {
	JWTSecret    string
	IsSuperadmin func(wallet string) bool
	LastActive   middleware.LastActiveUpdater
	RateLimiter  *middleware.RateLimiter
	// UploadDir is served under /uploads/ when images are kept on disk.
	UploadDir string
}

// NewRouter wires the handlers onto a gorilla/mux router.
func NewRouter(h Handlers, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.Use(metrics.InstrumentHandler)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	if opts.UploadDir != "" {
		router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))))
	}

	auth := middleware.AuthMiddleware(opts.JWTSecret)
	chain := func(h http.HandlerFunc, wrappers ...func(http.Handler) http.Handler) http.Handler {
		var handler http.Handler = h
		for i := len(wrappers) - 1; i >= 0; i-- {
			handler = wrappers[i](handler)
		}
		return handler
	}
	limited := func(next http.Handler) http.Handler {
		if opts.RateLimiter == nil {
			return next
		}
		return opts.RateLimiter.Handler(next)
	}
	touch := func(next http.Handler) http.Handler {
		if opts.LastActive == nil {
			return next
		}
		return middleware.UpdateLastActiveMiddleware(opts.LastActive)(next)
	}
	isSuper := opts.IsSuperadmin
	if isSuper == nil {
		isSuper = func(string) bool { return false }
	}

	public := func(h http.HandlerFunc) http.Handler { return h }
	user := func(h http.HandlerFunc) http.Handler { return chain(h, auth, touch) }
	admin := func(h http.HandlerFunc) http.Handler {
		return chain(h, auth, touch, middleware.RequireRole(string(models.RoleAdmin)))
	}
	super := func(h http.HandlerFunc) http.Handler {
		return chain(h, auth, middleware.RequireSuperadmin(isSuper))
	}

	api := router.PathPrefix("/api").Subrouter()

	// Auth
	api.Handle("/auth/nonce", chain(h.Auth.NonceHandler, limited)).Methods("GET")
	api.Handle("/auth/wallet", chain(h.Auth.WalletLoginHandler, limited)).Methods("POST")
	api.Handle("/auth/verify-admin-password", chain(h.Auth.VerifyAdminPasswordHandler, limited)).Methods("POST")
	api.Handle("/auth/google/login", public(h.Auth.GoogleLoginHandler)).Methods("GET")
	api.Handle("/auth/google/callback", public(h.Auth.GoogleCallbackHandler)).Methods("GET")
	api.Handle("/auth/me", user(h.Auth.MeHandler)).Methods("GET")
	api.Handle("/admin/pending-admins", super(h.Auth.PendingAdminsHandler)).Methods("GET")
	api.Handle("/admin/users/{id}/approve", super(h.Auth.ApproveAdminHandler)).Methods("PUT")

	// Food items
	api.Handle("/food-items", public(h.FoodItems.ListActiveHandler)).Methods("GET")
	api.Handle("/food-items/my", admin(h.FoodItems.ListMineHandler)).Methods("GET")
	api.Handle("/food-items/{id}", public(h.FoodItems.GetHandler)).Methods("GET")
	api.Handle("/food-items", admin(h.FoodItems.CreateHandler)).Methods("POST")
	api.Handle("/food-items/{id}", admin(h.FoodItems.UpdateHandler)).Methods("PUT")
	api.Handle("/food-items/{id}", admin(h.FoodItems.DeleteHandler)).Methods("DELETE")

	// Claims
	claimant := middleware.RequireRole(string(models.RoleStudent), string(models.RoleAdmin))
	api.Handle("/food-claims", chain(h.Claims.CreateHandler, auth, claimant, limited, touch)).Methods("POST")
	api.Handle("/food-claims/my", user(h.Claims.ListMineHandler)).Methods("GET")
	api.Handle("/food-claims", admin(h.Claims.ListAllHandler)).Methods("GET")
	api.Handle("/food-claims/pending", admin(h.Claims.ListPendingHandler)).Methods("GET")
	api.Handle("/food-claims/verify", user(h.Claims.VerifyHandler)).Methods("POST")
	api.Handle("/food-claims/redeem", admin(h.Claims.RedeemHandler)).Methods("POST")
	api.Handle("/food-claims/{id}/approve", admin(h.Claims.ApproveHandler)).Methods("PUT")
	api.Handle("/food-claims/{id}/reject", admin(h.Claims.RejectHandler)).Methods("PUT")
	api.Handle("/food-claims/{id}/complete", user(h.Claims.CompleteHandler)).Methods("POST")

	// Donations
	api.Handle("/donations", admin(h.Donations.ListHandler)).Methods("GET")
	api.Handle("/donations/transfer-expired", admin(h.Donations.TransferExpiredHandler)).Methods("POST")
	api.Handle("/donations/{id}/reserve", admin(h.Donations.ReserveHandler)).Methods("PUT")
	api.Handle("/donations/{id}/collect", admin(h.Donations.CollectHandler)).Methods("PUT")

	// Stats & events
	api.Handle("/stats", public(h.Stats.GetStatsHandler)).Methods("GET")
	api.Handle("/events", public(h.Events.ListUpcomingHandler)).Methods("GET")
	api.Handle("/events", admin(h.Events.CreateHandler)).Methods("POST")
	api.Handle("/events/{id}", admin(h.Events.UpdateHandler)).Methods("PUT")
	api.Handle("/events/{id}", admin(h.Events.DeleteHandler)).Methods("DELETE")

	// Notifications
	api.Handle("/notifications", user(h.Notifications.GetUserNotificationsHandler)).Methods("GET")
	api.Handle("/notifications/{id}/read", user(h.Notifications.MarkAsReadHandler)).Methods("PUT")
	api.Handle("/notifications/{id}", user(h.Notifications.DeleteNotificationHandler)).Methods("DELETE")

	return router
}
