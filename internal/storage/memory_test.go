package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msggate/control-plane/internal/models"
)

func TestMemoryStore_AccountUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := &models.Account{
		Email:    "alice@example.com",
		Username: "alice",
		APIKey:   "mgk_abc",
	}
	require.NoError(t, store.CreateAccount(ctx, account))

	err := store.CreateAccount(ctx, &models.Account{
		Email:    "alice@example.com",
		Username: "other",
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = store.CreateAccount(ctx, &models.Account{
		Email:    "other@example.com",
		Username: "alice",
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := &models.Account{Email: "alice@example.com", Username: "alice"}
	require.NoError(t, store.CreateAccount(ctx, account))

	got, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)

	// Mutating the returned value must not leak into the store
	got.Email = "hacked@example.com"

	again, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", again.Email)
}

func TestMemoryStore_DeleteAccountDetachesInstances(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := &models.Account{Email: "alice@example.com", Username: "alice"}
	require.NoError(t, store.CreateAccount(ctx, account))

	instance := &models.Instance{Name: "gw-1", Token: "tok", AccountID: &account.ID}
	require.NoError(t, store.CreateInstance(ctx, instance))

	require.NoError(t, store.CreateSubscription(ctx, &models.Subscription{
		AccountID:   account.ID,
		Status:      models.SubscriptionTrial,
		Plan:        models.PlanFree,
		PeriodStart: time.Now(),
		PeriodEnd:   time.Now().AddDate(0, 0, 4),
	}))

	require.NoError(t, store.DeleteAccount(ctx, account.ID))

	// The instance survives, unowned
	got, err := store.GetInstanceByName(ctx, "gw-1")
	require.NoError(t, err)
	assert.Nil(t, got.AccountID)

	// The subscription is gone
	_, err = store.GetSubscriptionByAccount(ctx, account.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SubscriptionPerAccount(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	account := &models.Account{Email: "alice@example.com", Username: "alice"}
	require.NoError(t, store.CreateAccount(ctx, account))

	sub := &models.Subscription{
		AccountID:   account.ID,
		Status:      models.SubscriptionTrial,
		Plan:        models.PlanFree,
		PeriodStart: time.Now(),
		PeriodEnd:   time.Now().AddDate(0, 0, 4),
	}
	require.NoError(t, store.CreateSubscription(ctx, sub))

	err := store.CreateSubscription(ctx, &models.Subscription{AccountID: account.ID})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryStore_AuditLogFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	actor := &models.Account{Email: "a@example.com", Username: "a"}
	require.NoError(t, store.CreateAccount(ctx, actor))

	require.NoError(t, store.CreateAuditLog(ctx, &models.AuditLog{
		Action:   models.AuditLogin,
		Severity: models.AuditInfo,
		ActorID:  &actor.ID,
	}))
	require.NoError(t, store.CreateAuditLog(ctx, &models.AuditLog{
		Action:   models.AuditSystemError,
		Severity: models.AuditError,
	}))

	logs, total, err := store.ListAuditLogs(ctx, AuditLogFilters{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)

	action := models.AuditLogin
	logs, total, err = store.ListAuditLogs(ctx, AuditLogFilters{Action: &action}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditLogin, logs[0].Action)
}
