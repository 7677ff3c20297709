package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository"
	"github.com/Dias221467/FoodRescue/pkg/wallet"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// NonceStore hands out one-time login challenges per wallet address.
type NonceStore interface {
	Issue(ctx context.Context, address string) (string, error)
	Consume(ctx context.Context, address string) (string, error)
}

// WalletLogin is a signed wallet sign-in attempt.
type WalletLogin struct {
	Address       string
	Signature     string
	RequestAdmin  bool
	AdminPassword string
	Profile       models.UserProfile
}

// OAuthProfile is the identity returned by an OAuth provider.
type OAuthProfile struct {
	Email   string
	Name    string
	Subject string
}

// ChallengeMessage is the text a wallet signs to log in.
func ChallengeMessage(nonce string) string {
	return "Sign in to Campus Food Rescue\nNonce: " + nonce
}

// IdentityService resolves wallet and OAuth logins to users.
type IdentityService struct {
	users             UserStore
	nonces            NonceStore
	adminPasswordHash []byte
	superadmins       map[string]bool

	Now func() time.Time
}

func NewIdentityService(users UserStore, nonces NonceStore, adminPasswordHash string, superadminWallets []string) *IdentityService {
	supers := make(map[string]bool, len(superadminWallets))
	for _, w := range superadminWallets {
		if w = wallet.NormalizeAddress(w); w != "" {
			supers[w] = true
		}
	}
	return &IdentityService{
		users:             users,
		nonces:            nonces,
		adminPasswordHash: []byte(adminPasswordHash),
		superadmins:       supers,
		Now:               time.Now,
	}
}

// IsSuperadmin reports whether address may approve admin signups.
func (s *IdentityService) IsSuperadmin(address string) bool {
	return s.superadmins[wallet.NormalizeAddress(address)]
}

// VerifyAdminPassword checks the shared admin signup password.
func (s *IdentityService) VerifyAdminPassword(password string) bool {
	if len(s.adminPasswordHash) == 0 || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(s.adminPasswordHash, []byte(password)) == nil
}

// IssueNonce stores a fresh challenge for address and returns the message to sign.
func (s *IdentityService) IssueNonce(ctx context.Context, address string) (string, error) {
	address = wallet.NormalizeAddress(address)
	if address == "" {
		return "", invalid("address", "is required")
	}
	if !wallet.IsAddress(address) {
		return "", invalid("address", "is not a wallet address")
	}
	nonce, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return "", err
	}
	return ChallengeMessage(nonce), nil
}

// ResolveWallet verifies the signed challenge and finds or creates the user.
func (s *IdentityService) ResolveWallet(ctx context.Context, login WalletLogin) (*models.User, error) {
	address := wallet.NormalizeAddress(login.Address)
	if address == "" {
		return nil, invalid("address", "is required")
	}
	profile, err := normalizeProfile(login.Profile)
	if err != nil {
		return nil, err
	}

	nonce, err := s.nonces.Consume(ctx, address)
	if err != nil {
		logrus.WithError(err).WithField("wallet", address).Warn("Wallet login without a live nonce")
		return nil, ErrUnauthorized
	}
	recovered, err := wallet.RecoverAddress(ChallengeMessage(nonce), login.Signature)
	if err != nil || recovered != address {
		logrus.WithField("wallet", address).Warn("Wallet signature does not match address")
		return nil, ErrUnauthorized
	}

	superadmin := s.IsSuperadmin(address)
	if login.RequestAdmin && !superadmin && !s.VerifyAdminPassword(login.AdminPassword) {
		return nil, ErrForbidden
	}

	now := s.Now()
	user, err := s.users.GetUserByWallet(ctx, address)
	if errors.Is(err, repository.ErrNotFound) {
		role := models.RoleStudent
		switch {
		case superadmin:
			role = models.RoleAdmin
		case login.RequestAdmin:
			role = models.RolePendingAdmin
		}
		user, err = s.users.CreateUser(ctx, &models.User{
			WalletAddress: address,
			Email:         profile.Email,
			Name:          profile.Name,
			AuthMethod:    models.AuthMethodWallet,
			Role:          role,
			LastActiveAt:  now,
			CreatedAt:     now,
		})
		if err == nil {
			logrus.WithFields(logrus.Fields{"userID": user.ID.Hex(), "role": role}).Info("Wallet user created")
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		// A concurrent login created the record; fall through to merge.
		user, err = s.users.GetUserByWallet(ctx, address)
	}
	if err != nil {
		return nil, err
	}

	user, err = s.users.MergeProfile(ctx, user.ID, profile, now)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("email", "is already used by another account")
		}
		return nil, err
	}

	switch {
	case superadmin && user.Role != models.RoleAdmin:
		return s.promote(ctx, user, models.RoleAdmin)
	case login.RequestAdmin && user.Role == models.RoleStudent:
		return s.promote(ctx, user, models.RolePendingAdmin)
	}
	return user, nil
}

func (s *IdentityService) promote(ctx context.Context, user *models.User, to models.Role) (*models.User, error) {
	updated, err := s.users.SetRole(ctx, user.ID, user.Role, to)
	if errors.Is(err, repository.ErrConflict) {
		return s.users.GetUserByID(ctx, user.ID)
	}
	return updated, err
}

// ResolveOAuth finds or creates the student behind an OAuth login.
func (s *IdentityService) ResolveOAuth(ctx context.Context, p OAuthProfile) (*models.User, error) {
	profile, err := normalizeProfile(models.UserProfile{Name: p.Name, Email: p.Email})
	if err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, invalid("email", "is required")
	}

	now := s.Now()
	user, err := s.users.GetUserByEmail(ctx, profile.Email)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.users.CreateUser(ctx, &models.User{
			Email:        profile.Email,
			Name:         profile.Name,
			AuthMethod:   models.AuthMethodGoogle,
			Role:         models.RoleStudent,
			LastActiveAt: now,
			CreatedAt:    now,
		})
		if !errors.Is(err, repository.ErrDuplicate) {
			return user, err
		}
		user, err = s.users.GetUserByEmail(ctx, profile.Email)
	}
	if err != nil {
		return nil, err
	}
	return s.users.MergeProfile(ctx, user.ID, models.UserProfile{Name: profile.Name}, now)
}

func normalizeProfile(p models.UserProfile) (models.UserProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Email != "" && !emailRegex.MatchString(p.Email) {
		return p, invalid("email", "invalid email format")
	}
	return p, nil
}

// GetUser fetches a user by id.
func (s *IdentityService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return user, nil
}

// UpdateLastActive stamps the user's last request time.
func (s *IdentityService) UpdateLastActive(ctx context.Context, id primitive.ObjectID) error {
	return s.users.UpdateLastActive(ctx, id, s.Now())
}

func (s *IdentityService) ListPendingAdmins(ctx context.Context) ([]models.User, error) {
	return s.users.GetUsersByRole(ctx, models.RolePendingAdmin)
}

// ApproveAdmin promotes a pending admin. Any other role is refused.
func (s *IdentityService) ApproveAdmin(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.SetRole(ctx, userID, models.RolePendingAdmin, models.RoleAdmin)
	if err == nil {
		logrus.WithField("userID", userID.Hex()).Info("Admin signup approved")
		return user, nil
	}
	if errors.Is(err, repository.ErrConflict) {
		current, getErr := s.users.GetUserByID(ctx, userID)
		if getErr != nil {
			return nil, mapNotFound(getErr, ErrUserNotFound)
		}
		return nil, invalidState("user is %s", current.Role)
	}
	return nil, mapNotFound(err, ErrUserNotFound)
}

// ApproveAdminByWallet is ApproveAdmin keyed by wallet address.
func (s *IdentityService) ApproveAdminByWallet(ctx context.Context, address string) (*models.User, error) {
	user, err := s.users.GetUserByWallet(ctx, wallet.NormalizeAddress(address))
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return s.ApproveAdmin(ctx, user.ID)
}
