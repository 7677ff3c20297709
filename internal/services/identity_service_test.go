package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/noncestore"
	"github.com/Dias221467/FoodRescue/internal/repository/memory"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/Dias221467/FoodRescue/pkg/wallet"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type signer struct {
	key     *secp256k1.PrivateKey
	address string
}

func newSigner(t *testing.T) signer {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return signer{key: key, address: wallet.PubkeyToAddress(key.PubKey())}
}

func newIdentity(t *testing.T, superadmins ...string) (*services.IdentityService, *memory.Store) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("canteen-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	store := memory.New()
	return services.NewIdentityService(store.Users, noncestore.NewMemoryStore(5*time.Minute), string(hash), superadmins), store
}

func login(t *testing.T, svc *services.IdentityService, s signer, l services.WalletLogin) (*models.User, error) {
	t.Helper()
	msg, err := svc.IssueNonce(context.Background(), s.address)
	require.NoError(t, err)
	l.Address = s.address
	l.Signature = wallet.Sign(s.key, msg)
	return svc.ResolveWallet(context.Background(), l)
}

func TestResolveWalletCreatesStudent(t *testing.T) {
	svc, _ := newIdentity(t)
	s := newSigner(t)

	user, err := login(t, svc, s, services.WalletLogin{Profile: models.UserProfile{Name: "Ana", Email: "Ana@Uni.edu"}})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, s.address, user.WalletAddress)
	assert.Equal(t, "ana@uni.edu", user.Email)
	assert.Equal(t, models.AuthMethodWallet, user.AuthMethod)
}

func TestResolveWalletMergesProfile(t *testing.T) {
	svc, _ := newIdentity(t)
	s := newSigner(t)

	first, err := login(t, svc, s, services.WalletLogin{Profile: models.UserProfile{Name: "Ana", Email: "ana@uni.edu"}})
	require.NoError(t, err)

	second, err := login(t, svc, s, services.WalletLogin{Profile: models.UserProfile{Name: "Ana Maria"}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana Maria", second.Name)
	assert.Equal(t, "ana@uni.edu", second.Email)
}

func TestResolveWalletRejectsBadSignature(t *testing.T) {
	svc, store := newIdentity(t)
	s, other := newSigner(t), newSigner(t)
	ctx := context.Background()

	msg, err := svc.IssueNonce(ctx, s.address)
	require.NoError(t, err)
	_, err = svc.ResolveWallet(ctx, services.WalletLogin{Address: s.address, Signature: wallet.Sign(other.key, msg)})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// The nonce was spent by the failed attempt.
	_, err = svc.ResolveWallet(ctx, services.WalletLogin{Address: s.address, Signature: wallet.Sign(s.key, msg)})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = store.Users.GetUserByWallet(ctx, s.address)
	assert.Error(t, err)
}

func TestResolveWalletMissingAddress(t *testing.T) {
	svc, _ := newIdentity(t)
	_, err := svc.ResolveWallet(context.Background(), services.WalletLogin{})
	var verr *services.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.IssueNonce(context.Background(), "not-an-address")
	assert.ErrorAs(t, err, &verr)
}

func TestResolveWalletAdminSignup(t *testing.T) {
	svc, store := newIdentity(t)
	ctx := context.Background()

	wrong := newSigner(t)
	_, err := login(t, svc, wrong, services.WalletLogin{RequestAdmin: true, AdminPassword: "guess"})
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = store.Users.GetUserByWallet(ctx, wrong.address)
	assert.Error(t, err)

	s := newSigner(t)
	user, err := login(t, svc, s, services.WalletLogin{RequestAdmin: true, AdminPassword: "canteen-secret"})
	require.NoError(t, err)
	assert.Equal(t, models.RolePendingAdmin, user.Role)

	pending, err := svc.ListPendingAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := svc.ApproveAdmin(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, approved.Role)

	_, err = svc.ApproveAdmin(ctx, user.ID)
	assert.ErrorIs(t, err, services.ErrInvalidState)
}

func TestResolveWalletExistingStudentRequestsAdmin(t *testing.T) {
	svc, _ := newIdentity(t)
	s := newSigner(t)

	_, err := login(t, svc, s, services.WalletLogin{})
	require.NoError(t, err)
	user, err := login(t, svc, s, services.WalletLogin{RequestAdmin: true, AdminPassword: "canteen-secret"})
	require.NoError(t, err)
	assert.Equal(t, models.RolePendingAdmin, user.Role)
}

func TestResolveWalletSuperadmin(t *testing.T) {
	s := newSigner(t)
	svc, _ := newIdentity(t, s.address)

	user, err := login(t, svc, s, services.WalletLogin{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, svc.IsSuperadmin(s.address))
}

func TestVerifyAdminPassword(t *testing.T) {
	svc, _ := newIdentity(t)
	assert.True(t, svc.VerifyAdminPassword("canteen-secret"))
	assert.False(t, svc.VerifyAdminPassword("nope"))
	assert.False(t, svc.VerifyAdminPassword(""))

	empty := services.NewIdentityService(memory.New().Users, noncestore.NewMemoryStore(time.Minute), "", nil)
	assert.False(t, empty.VerifyAdminPassword("canteen-secret"))
}

func TestResolveOAuth(t *testing.T) {
	svc, _ := newIdentity(t)
	ctx := context.Background()

	user, err := svc.ResolveOAuth(ctx, services.OAuthProfile{Email: "Ben@Uni.edu", Name: "Ben"})
	require.NoError(t, err)
	assert.Equal(t, "ben@uni.edu", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, models.AuthMethodGoogle, user.AuthMethod)

	again, err := svc.ResolveOAuth(ctx, services.OAuthProfile{Email: "ben@uni.edu", Name: "Benjamin"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Benjamin", again.Name)

	_, err = svc.ResolveOAuth(ctx, services.OAuthProfile{Name: "No Mail"})
	var verr *services.ValidationError
	assert.ErrorAs(t, err, &verr)
}
