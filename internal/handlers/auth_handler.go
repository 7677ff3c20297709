package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/services"
	jwtutil "github.com/Dias221467/FoodRescue/pkg/jwt"
	"github.com/Dias221467/FoodRescue/pkg/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	oauthStateCookie = "oauth_state"
	googleUserInfo   = "https://www.googleapis.com/oauth2/v3/userinfo"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// AuthHandler serves wallet and Google sign-in plus superadmin approvals.
type AuthHandler struct {
	Service *services.IdentityService
	Config  *config.Config
	OAuth   *oauth2.Config

	// UserInfoURL is where the Google profile is fetched after the code exchange.
	UserInfoURL string
}

func NewAuthHandler(service *services.IdentityService, cfg *config.Config) *AuthHandler {
	h := &AuthHandler{Service: service, Config: cfg, UserInfoURL: googleUserInfo}
	if cfg.GoogleEnabled() {
		h.OAuth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     googleEndpoint,
		}
	}
	return h
}

type walletLoginRequest struct {
	Address       string `json:"address" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
	Role          string `json:"role" validate:"omitempty,oneof=student admin"`
	AdminPassword string `json:"adminPassword"`
	Name          string `json:"name" validate:"max=100"`
	Email         string `json:"email" validate:"omitempty,email"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) issueToken(user *models.User) (string, error) {
	return jwtutil.GenerateToken(user.ID.Hex(), user.Email, user.WalletAddress, string(user.Role), h.Config.JWTSecret, h.Config.TokenExpiry)
}

// GET /api/auth/nonce?address=
func (h *AuthHandler) NonceHandler(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	message, err := h.Service.IssueNonce(r.Context(), address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// POST /api/auth/wallet
func (h *AuthHandler) WalletLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req walletLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.Service.ResolveWallet(r.Context(), services.WalletLogin{
		Address:       req.Address,
		Signature:     req.Signature,
		RequestAdmin:  req.Role == string(models.RoleAdmin),
		AdminPassword: req.AdminPassword,
		Profile:       models.UserProfile{Name: req.Name, Email: req.Email},
	})
	if err != nil {
		log.WithError(err).WithField("wallet", req.Address).Warn("Wallet login failed")
		writeError(w, r, err)
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.WithFields(log.Fields{"userID": user.ID.Hex(), "role": user.Role}).Info("Wallet login succeeded")
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// POST /api/auth/verify-admin-password
func (h *AuthHandler) VerifyAdminPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": h.Service.VerifyAdminPassword(req.Password)})
}

// GET /api/auth/google/login
func (h *AuthHandler) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		writeMessage(w, http.StatusNotFound, "Google login is not configured")
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.OAuth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GET /api/auth/google/callback
func (h *AuthHandler) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		writeMessage(w, http.StatusNotFound, "Google login is not configured")
		return
	}
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeMessage(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeMessage(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	profile, err := h.fetchGoogleProfile(r.Context(), code)
	if err != nil {
		log.WithError(err).Warn("Google code exchange failed")
		writeMessage(w, http.StatusUnauthorized, "Google login failed")
		return
	}
	user, err := h.Service.ResolveOAuth(r.Context(), *profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.issueToken(user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.WithField("userID", user.ID.Hex()).Info("Google login succeeded")
	target := strings.TrimRight(h.Config.FrontendURL, "/") + "/auth/callback#token=" + url.QueryEscape(token)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *AuthHandler) fetchGoogleProfile(ctx context.Context, code string) (*services.OAuthProfile, error) {
	tok, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	resp, err := h.OAuth.Client(ctx, tok).Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %s", resp.Status)
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if !info.EmailVerified {
		return nil, fmt.Errorf("email %q is not verified", info.Email)
	}
	return &services.OAuthProfile{Email: info.Email, Name: info.Name, Subject: info.Sub}, nil
}

// GET /api/auth/me
func (h *AuthHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.Service.GetUser(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GET /api/admin/pending-admins
func (h *AuthHandler) PendingAdminsHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListPendingAdmins(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// PUT /api/admin/users/{id}/approve
func (h *AuthHandler) ApproveAdminHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user")
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.Service.ApproveAdmin(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fields := log.Fields{"userID": user.ID.Hex()}
	if claims := middleware.GetUserFromContext(r.Context()); claims != nil {
		fields["approvedBy"] = claims.Wallet
	}
	log.WithFields(fields).Info("Admin approved via API")
	writeJSON(w, http.StatusOK, user)
}
