package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msggate/control-plane/internal/config"
	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		MasterKey:           "master-key",
		APIKeyPrefix:        "mgk_",
		PersistInstanceData: true,
	}
}

func seedAccount(t *testing.T, store storage.Store, apiKey string) *models.Account {
	t.Helper()
	account := &models.Account{
		Email:    uuid.NewString() + "@example.com",
		Username: uuid.NewString(),
		Role:     models.RoleUser,
		APIKey:   apiKey,
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func seedInstance(t *testing.T, store storage.Store, name, token string, accountID *uuid.UUID) *models.Instance {
	t.Helper()
	instance := &models.Instance{
		Name:      name,
		Token:     token,
		AccountID: accountID,
	}
	require.NoError(t, store.CreateInstance(context.Background(), instance))
	return instance
}

func TestResolve_MissingMasterKeyConfig(t *testing.T) {
	cfg := testAuthConfig()
	cfg.MasterKey = ""
	resolver := NewResolver(cfg, storage.NewMemoryStore())

	_, err := resolver.Resolve(context.Background(), Request{APIKey: "anything"})
	assert.ErrorIs(t, err, ErrMissingGlobalKey)
}

func TestResolve_NoCredential(t *testing.T) {
	resolver := NewResolver(testAuthConfig(), storage.NewMemoryStore())

	_, err := resolver.Resolve(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestResolve_MasterKey(t *testing.T) {
	resolver := NewResolver(testAuthConfig(), storage.NewMemoryStore())

	principal, err := resolver.Resolve(context.Background(), Request{APIKey: "master-key"})
	require.NoError(t, err)
	assert.Equal(t, models.PrincipalGlobalAdmin, principal.Kind)
	assert.True(t, principal.IsGlobalAdmin)
}

func TestResolve_TenantSecret(t *testing.T) {
	store := storage.NewMemoryStore()
	account := seedAccount(t, store, "mgk_tenant-secret")
	resolver := NewResolver(testAuthConfig(), store)

	principal, err := resolver.Resolve(context.Background(), Request{APIKey: "mgk_tenant-secret"})
	require.NoError(t, err)
	assert.Equal(t, models.PrincipalTenantUser, principal.Kind)
	require.NotNil(t, principal.AccountID)
	assert.Equal(t, account.ID, *principal.AccountID)
	assert.False(t, principal.IsGlobalAdmin)
}

func TestResolve_TenantSecretSuperAdmin(t *testing.T) {
	store := storage.NewMemoryStore()
	admin := &models.Account{
		Email:    "root@example.com",
		Username: "root",
		Role:     models.RoleSuperAdmin,
		APIKey:   "mgk_super-secret",
	}
	require.NoError(t, store.CreateAccount(context.Background(), admin))
	resolver := NewResolver(testAuthConfig(), store)

	principal, err := resolver.Resolve(context.Background(), Request{APIKey: "mgk_super-secret"})
	require.NoError(t, err)
	assert.Equal(t, models.PrincipalTenantUser, principal.Kind)
	require.NotNil(t, principal.AccountID)
	assert.Equal(t, admin.ID, *principal.AccountID)
	assert.True(t, principal.IsGlobalAdmin)
}

// faultyStore fails account-by-key lookups to exercise the degraded
// path of the resolution chain.
type faultyStore struct {
	storage.Store
}

func (s *faultyStore) GetAccountByAPIKey(ctx context.Context, apiKey string) (*models.Account, error) {
	return nil, errors.New("connection reset")
}

func TestResolve_AccountLookupFailureFallsThrough(t *testing.T) {
	store := storage.NewMemoryStore()
	// Token happens to carry the tenant prefix, so the failing account
	// lookup runs first; the failure must not abort the chain
	instance := seedInstance(t, store, "gw-1", "mgk_looks-like-a-secret", nil)
	resolver := NewResolver(testAuthConfig(), &faultyStore{Store: store})

	principal, err := resolver.Resolve(context.Background(), Request{APIKey: "mgk_looks-like-a-secret"})
	require.NoError(t, err)
	assert.Equal(t, models.PrincipalInstanceToken, principal.Kind)
	require.NotNil(t, principal.InstanceID)
	assert.Equal(t, instance.ID, *principal.InstanceID)
}

func TestResolve_UnknownKey(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAccount(t, store, "mgk_tenant-secret")
	resolver := NewResolver(testAuthConfig(), store)

	_, err := resolver.Resolve(context.Background(), Request{APIKey: "mgk_wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = resolver.Resolve(context.Background(), Request{APIKey: "totally-unknown"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolve_InstanceToken(t *testing.T) {
	store := storage.NewMemoryStore()
	owner := seedAccount(t, store, "mgk_owner")
	instance := seedInstance(t, store, "gw-1", "instance-token", &owner.ID)
	resolver := NewResolver(testAuthConfig(), store)

	principal, err := resolver.Resolve(context.Background(), Request{
		APIKey:       "instance-token",
		InstanceName: "gw-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PrincipalInstanceToken, principal.Kind)
	require.NotNil(t, principal.InstanceID)
	assert.Equal(t, instance.ID, *principal.InstanceID)
	require.NotNil(t, principal.AccountID)
	assert.Equal(t, owner.ID, *principal.AccountID)
}

func TestResolve_OwnerSecretOnInstanceRoute(t *testing.T) {
	store := storage.NewMemoryStore()
	// Owner secret without the tenant prefix still opens owned
	// instances via the ownership step
	owner := seedAccount(t, store, "legacy-owner-secret")
	instance := seedInstance(t, store, "gw-1", "instance-token", &owner.ID)
	resolver := NewResolver(testAuthConfig(), store)

	principal, err := resolver.Resolve(context.Background(), Request{
		APIKey:       "legacy-owner-secret",
		InstanceName: "gw-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PrincipalTenantUser, principal.Kind)
	require.NotNil(t, principal.AccountID)
	assert.Equal(t, owner.ID, *principal.AccountID)
	require.NotNil(t, principal.InstanceID)
	assert.Equal(t, instance.ID, *principal.InstanceID)
}

func TestResolve_ReverseTokenLookup(t *testing.T) {
	store := storage.NewMemoryStore()
	instance := seedInstance(t, store, "gw-1", "instance-token", nil)
	resolver := NewResolver(testAuthConfig(), store)

	principal, err := resolver.Resolve(context.Background(), Request{APIKey: "instance-token"})
	require.NoError(t, err)
	assert.Equal(t, models.PrincipalInstanceToken, principal.Kind)
	require.NotNil(t, principal.InstanceID)
	assert.Equal(t, instance.ID, *principal.InstanceID)
}

func TestResolve_ReverseTokenLookupDisabled(t *testing.T) {
	store := storage.NewMemoryStore()
	seedInstance(t, store, "gw-1", "instance-token", nil)

	cfg := testAuthConfig()
	cfg.PersistInstanceData = false
	resolver := NewResolver(cfg, store)

	_, err := resolver.Resolve(context.Background(), Request{APIKey: "instance-token"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolve_TokenScopedToOtherInstance(t *testing.T) {
	store := storage.NewMemoryStore()
	seedInstance(t, store, "gw-1", "token-1", nil)
	seedInstance(t, store, "gw-2", "token-2", nil)
	resolver := NewResolver(testAuthConfig(), store)

	_, err := resolver.Resolve(context.Background(), Request{
		APIKey:       "token-1",
		InstanceName: "gw-2",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolve_GlobalScopeRequiresMasterKey(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAccount(t, store, "mgk_tenant-secret")
	resolver := NewResolver(testAuthConfig(), store)

	_, err := resolver.Resolve(context.Background(), Request{
		APIKey:      "mgk_tenant-secret",
		GlobalScope: true,
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	principal, err := resolver.Resolve(context.Background(), Request{
		APIKey:      "master-key",
		GlobalScope: true,
	})
	require.NoError(t, err)
	assert.True(t, principal.IsGlobalAdmin)
}
