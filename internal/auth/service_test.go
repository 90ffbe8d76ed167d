package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msggate/control-plane/internal/audit"
	"github.com/msggate/control-plane/internal/config"
	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
)

// fakeNotifier records notification calls
type fakeNotifier struct {
	verifications map[string]string
	resets        map[string]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		verifications: make(map[string]string),
		resets:        make(map[string]string),
	}
}

func (f *fakeNotifier) SendVerification(ctx context.Context, email, username, token string) error {
	f.verifications[email] = token
	return nil
}

func (f *fakeNotifier) SendPasswordReset(ctx context.Context, email, username, token string) error {
	f.resets[email] = token
	return nil
}

func newTestService(t *testing.T) (*Service, *storage.MemoryStore, *fakeNotifier) {
	t.Helper()

	store := storage.NewMemoryStore()
	notifier := newFakeNotifier()

	svc := NewService(
		store,
		NewJWTManager(&config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour}),
		notifier,
		audit.NewRecorder(store),
		&config.AuthConfig{MasterKey: "master-key", APIKeyPrefix: "mgk_"},
		&config.SubscriptionConfig{
			TrialDays:        4,
			VerificationTTL:  24 * time.Hour,
			PasswordResetTTL: time.Hour,
		},
	)

	return svc, store, notifier
}

func registerVerified(t *testing.T, svc *Service, notifier *fakeNotifier, email, username, password string) *models.Account {
	t.Helper()
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	})
	require.NoError(t, err)

	account, err := svc.VerifyEmail(ctx, notifier.verifications[strings.ToLower(email)])
	require.NoError(t, err)
	return account
}

func TestRegister(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, &RegisterRequest{
		Email:    "Alice@Example.com",
		Username: "alice",
		Password: "password123",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, models.RoleUser, account.Role)
	assert.False(t, account.EmailVerified)
	assert.True(t, strings.HasPrefix(account.APIKey, "mgk_"))
	assert.NotEqual(t, "password123", account.PasswordHash)

	token, ok := notifier.verifications["alice@example.com"]
	require.True(t, ok)
	assert.NotEmpty(t, token)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterRequest{
		Email: "alice@example.com", Username: "alice2", Password: "password123",
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterRequest{
		Email: "other@example.com", Username: "alice", Password: "password123",
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestVerifyEmail_ActivatesTrial(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	account := registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")
	assert.True(t, account.EmailVerified)

	sub, err := store.GetSubscriptionByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionTrial, sub.Status)
	assert.Equal(t, models.PlanFree, sub.Plan)
	assert.Equal(t, 1, sub.MaxInstances)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 4), sub.PeriodEnd, time.Minute)
}

func TestVerifyEmail_TokenConsumed(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	account := registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")

	// The first verification consumes the token, so replaying it fails
	_, err := svc.VerifyEmail(ctx, notifier.verifications["alice@example.com"])
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The account stays verified and the trial was activated once
	got, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	assert.Nil(t, got.VerificationToken)

	sub, err := store.GetSubscriptionByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionTrial, sub.Status)
	assert.Equal(t, models.PlanFree, sub.Plan)
}

func TestVerifyEmail_InvalidToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.VerifyEmail(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "password123",
	})
	require.NoError(t, err)

	account, err := store.GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	account.VerificationTokenExpiry = &past
	require.NoError(t, store.UpdateAccount(ctx, account))

	_, err = svc.VerifyEmail(ctx, notifier.verifications["alice@example.com"])
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestLogin(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")

	resp, err := svc.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.Subscription)
	assert.Equal(t, models.SubscriptionTrial, resp.Subscription.Status)
	require.NotNil(t, resp.Account.LastLoginAt)

	// Username works as login too
	resp, err = svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestLogin_OpaqueCredentialErrors(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")

	_, badPassword := svc.Login(ctx, "alice@example.com", "wrong")
	_, badUser := svc.Login(ctx, "nobody@example.com", "password123")

	// Wrong password and unknown account are indistinguishable
	assert.ErrorIs(t, badPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, badUser, ErrInvalidCredentials)
	assert.Equal(t, badPassword, badUser)
}

func TestLogin_Unverified(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice@example.com", "password123")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestLogin_FlipsLapsedSubscription(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	account := registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")

	sub, err := store.GetSubscriptionByAccount(ctx, account.ID)
	require.NoError(t, err)
	sub.PeriodEnd = time.Now().Add(-time.Hour)
	require.NoError(t, store.UpdateSubscription(ctx, sub))

	_, err = svc.Login(ctx, "alice@example.com", "password123")
	assert.ErrorIs(t, err, ErrSubscriptionExpired)

	// The lapse is now persisted
	sub, err = store.GetSubscriptionByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)
}

func TestLogin_LapsedCancelledSubscription(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	account := registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")

	// A cancelled subscription whose period has run out denies login
	// just like any other lapse
	sub, err := store.GetSubscriptionByAccount(ctx, account.ID)
	require.NoError(t, err)
	sub.Status = models.SubscriptionCancelled
	sub.PeriodEnd = time.Now().Add(-time.Hour)
	require.NoError(t, store.UpdateSubscription(ctx, sub))

	_, err = svc.Login(ctx, "alice@example.com", "password123")
	assert.ErrorIs(t, err, ErrSubscriptionExpired)

	sub, err = store.GetSubscriptionByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)
}

func TestLogin_CancelledWithTimeRemaining(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	account := registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")

	sub, err := store.GetSubscriptionByAccount(ctx, account.ID)
	require.NoError(t, err)
	sub.Status = models.SubscriptionCancelled
	require.NoError(t, store.UpdateSubscription(ctx, sub))

	// Cancelled but inside the paid window still logs in, so the
	// tenant can renew
	resp, err := svc.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, resp.Subscription.Status)
}

func TestVerifySession(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	account := registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")

	resp, err := svc.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	got, err := svc.VerifySession(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	// A valid token for a deleted account no longer resolves
	require.NoError(t, store.DeleteAccount(ctx, account.ID))
	_, err = svc.VerifySession(ctx, resp.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = svc.VerifySession(ctx, "garbage")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestPasswordReset(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")

	// Unknown address does not error and sends nothing
	require.NoError(t, svc.ForgotPassword(ctx, "nobody@example.com"))
	assert.Empty(t, notifier.resets["nobody@example.com"])

	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	token := notifier.resets["alice@example.com"]
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(ctx, token, "newpassword456"))

	_, err := svc.Login(ctx, "alice@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "alice@example.com", "newpassword456")
	assert.NoError(t, err)

	// The token is consumed
	err = svc.ResetPassword(ctx, token, "another789")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")
	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))

	account, err := store.GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	account.ResetPasswordExpiry = &past
	require.NoError(t, store.UpdateAccount(ctx, account))

	err = svc.ResetPassword(ctx, notifier.resets["alice@example.com"], "newpassword456")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRegenerateAPIKey(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	account := registerVerified(t, svc, notifier, "alice@example.com", "alice", "password123")
	oldKey := account.APIKey

	newKey, err := svc.RegenerateAPIKey(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(newKey, "mgk_"))
	assert.NotEqual(t, oldKey, newKey)

	// Old secret stops resolving
	_, err = store.GetAccountByAPIKey(ctx, oldKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.GetAccountByAPIKey(ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
}
