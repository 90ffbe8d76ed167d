package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msggate/control-plane/internal/audit"
	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return NewManager(store, audit.NewRecorder(store)), store
}

func seedAccount(t *testing.T, store storage.Store) *models.Account {
	t.Helper()
	account := &models.Account{
		Email:    uuid.NewString() + "@example.com",
		Username: uuid.NewString(),
		Role:     models.RoleUser,
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func seedSubscription(t *testing.T, store storage.Store, accountID uuid.UUID, status models.SubscriptionStatus, plan models.SubscriptionPlan, periodEnd time.Time) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		AccountID:    accountID,
		Status:       status,
		Plan:         plan,
		MaxInstances: plan.MaxInstances(),
		PeriodStart:  time.Now().AddDate(0, 0, -30),
		PeriodEnd:    periodEnd,
	}
	require.NoError(t, store.CreateSubscription(context.Background(), sub))
	return sub
}

func TestDurationDays(t *testing.T) {
	tests := []struct {
		duration Duration
		want     int
	}{
		{OneMonth, 30},
		{TwoMonths, 60},
		{OneYear, 365},
		{ThreeYears, 1095},
		{Duration("4_years"), 0},
		{Duration(""), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.duration.Days(), "duration %q", tt.duration)
	}
}

func TestRenew_CreatesWhenAbsent(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	account := seedAccount(t, store)
	actor := uuid.New()

	sub, err := manager.Renew(ctx, actor, account.ID, models.PlanPro, OneYear)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, models.PlanPro, sub.Plan)
	assert.Equal(t, 20, sub.MaxInstances)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), sub.PeriodEnd, time.Minute)
}

func TestRenew_ReactivatesCancelled(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	account := seedAccount(t, store)
	seedSubscription(t, store, account.ID, models.SubscriptionCancelled, models.PlanFree, time.Now().Add(-time.Hour))

	sub, err := manager.Renew(ctx, uuid.New(), account.ID, models.PlanPro, OneYear)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, models.PlanPro, sub.Plan)
	assert.Equal(t, 20, sub.MaxInstances)
	// The window restarts from now, not from the old period
	assert.WithinDuration(t, time.Now(), sub.PeriodStart, time.Minute)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), sub.PeriodEnd, time.Minute)
}

func TestRenew_DefaultsToBasic(t *testing.T) {
	manager, store := newTestManager(t)
	account := seedAccount(t, store)

	sub, err := manager.Renew(context.Background(), uuid.New(), account.ID, "", OneMonth)
	require.NoError(t, err)
	assert.Equal(t, models.PlanBasic, sub.Plan)
	assert.Equal(t, 5, sub.MaxInstances)
}

func TestRenew_Validation(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()
	account := seedAccount(t, store)

	_, err := manager.Renew(ctx, uuid.New(), account.ID, models.SubscriptionPlan("GOLD"), OneMonth)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = manager.Renew(ctx, uuid.New(), account.ID, models.PlanBasic, Duration("forever"))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = manager.Renew(ctx, uuid.New(), uuid.New(), models.PlanBasic, OneMonth)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCancel(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	account := seedAccount(t, store)
	end := time.Now().AddDate(0, 0, 10)
	seedSubscription(t, store, account.ID, models.SubscriptionActive, models.PlanBasic, end)

	sub, err := manager.Cancel(ctx, uuid.New(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, sub.Status)
	// Cancel leaves the billing window alone
	assert.WithinDuration(t, end, sub.PeriodEnd, time.Second)

	_, err = manager.Cancel(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSweepExpired(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	overdueActive := seedAccount(t, store)
	overdueTrial := seedAccount(t, store)
	current := seedAccount(t, store)
	cancelled := seedAccount(t, store)

	seedSubscription(t, store, overdueActive.ID, models.SubscriptionActive, models.PlanBasic, time.Now().Add(-time.Hour))
	seedSubscription(t, store, overdueTrial.ID, models.SubscriptionTrial, models.PlanFree, time.Now().Add(-time.Minute))
	seedSubscription(t, store, current.ID, models.SubscriptionActive, models.PlanPro, time.Now().AddDate(0, 0, 30))
	seedSubscription(t, store, cancelled.ID, models.SubscriptionCancelled, models.PlanBasic, time.Now().Add(-time.Hour))

	count, err := manager.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	sub, err := store.GetSubscriptionByAccount(ctx, overdueActive.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)

	// Cancelled subscriptions are left alone
	sub, err = store.GetSubscriptionByAccount(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, sub.Status)

	// A second sweep finds nothing
	count, err = manager.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestListExpiring(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	soon := seedAccount(t, store)
	far := seedAccount(t, store)

	seedSubscription(t, store, soon.ID, models.SubscriptionActive, models.PlanBasic, time.Now().AddDate(0, 0, 3))
	seedSubscription(t, store, far.ID, models.SubscriptionActive, models.PlanBasic, time.Now().AddDate(0, 0, 60))

	expiring, err := manager.ListExpiring(ctx, 7)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, soon.ID, expiring[0].AccountID)
	assert.Equal(t, soon.Email, expiring[0].AccountEmail)
}

func TestCheckQuota(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	account := seedAccount(t, store)

	// No subscription at all
	assert.ErrorIs(t, manager.CheckQuota(ctx, account.ID), ErrNoSubscription)

	sub := seedSubscription(t, store, account.ID, models.SubscriptionTrial, models.PlanFree, time.Now().AddDate(0, 0, 4))

	// Free plan allows one instance
	require.NoError(t, manager.CheckQuota(ctx, account.ID))

	require.NoError(t, store.CreateInstance(ctx, &models.Instance{
		Name:      "gw-1",
		Token:     uuid.NewString(),
		AccountID: &account.ID,
	}))
	assert.ErrorIs(t, manager.CheckQuota(ctx, account.ID), ErrQuotaExceeded)

	// Inactive subscriptions never pass, regardless of headroom
	sub.Status = models.SubscriptionExpired
	require.NoError(t, store.UpdateSubscription(ctx, sub))
	assert.ErrorIs(t, manager.CheckQuota(ctx, account.ID), ErrSubscriptionInactive)
}

func TestStats(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	a := seedAccount(t, store)
	b := seedAccount(t, store)
	c := seedAccount(t, store)

	seedSubscription(t, store, a.ID, models.SubscriptionTrial, models.PlanFree, time.Now().AddDate(0, 0, 4))
	seedSubscription(t, store, b.ID, models.SubscriptionActive, models.PlanPro, time.Now().AddDate(0, 0, 300))
	seedSubscription(t, store, c.ID, models.SubscriptionExpired, models.PlanPro, time.Now().Add(-time.Hour))

	stats, err := manager.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Trial)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(1), stats.Expired)
	assert.Equal(t, int64(0), stats.Cancelled)
	assert.Equal(t, int64(1), stats.ByPlan[models.PlanFree])
	assert.Equal(t, int64(2), stats.ByPlan[models.PlanPro])
}
