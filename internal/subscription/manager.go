package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/msggate/control-plane/internal/audit"
	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
)

var (
	// ErrNoSubscription indicates the account has no subscription at all
	ErrNoSubscription = errors.New("no subscription")

	// ErrSubscriptionInactive indicates the subscription is expired or
	// cancelled
	ErrSubscriptionInactive = errors.New("subscription not active")

	// ErrQuotaExceeded indicates the plan's instance quota is used up
	ErrQuotaExceeded = errors.New("instance quota exceeded")

	// ErrInvalidPlan indicates an unknown plan name
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrInvalidDuration indicates an unknown billing duration
	ErrInvalidDuration = errors.New("invalid duration")
)

// Duration represents a billing period length
type Duration string

const (
	OneMonth   Duration = "1_month"
	TwoMonths  Duration = "2_months"
	OneYear    Duration = "1_year"
	ThreeYears Duration = "3_years"
)

// Days returns the period length in days, or 0 for unknown values
func (d Duration) Days() int {
	switch d {
	case OneMonth:
		return 30
	case TwoMonths:
		return 60
	case OneYear:
		return 365
	case ThreeYears:
		return 1095
	}
	return 0
}

// Valid reports whether the duration is a known value
func (d Duration) Valid() bool {
	return d.Days() > 0
}

// Manager implements the subscription lifecycle
type Manager struct {
	store   storage.Store
	auditor *audit.Recorder
}

// NewManager creates a new subscription manager
func NewManager(store storage.Store, auditor *audit.Recorder) *Manager {
	return &Manager{
		store:   store,
		auditor: auditor,
	}
}

// Renew activates the account's subscription on the given plan for the
// given duration. The billing window always restarts from now, and the
// instance quota is rederived from the plan. An account without a
// subscription gets one created.
func (m *Manager) Renew(ctx context.Context, actorID, accountID uuid.UUID, plan models.SubscriptionPlan, duration Duration) (*models.Subscription, error) {
	if plan == "" {
		plan = models.PlanBasic
	}
	if !plan.Valid() {
		return nil, ErrInvalidPlan
	}
	if !duration.Valid() {
		return nil, ErrInvalidDuration
	}

	if _, err := m.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	now := time.Now()
	periodEnd := now.AddDate(0, 0, duration.Days())

	sub, err := m.store.GetSubscriptionByAccount(ctx, accountID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		sub = &models.Subscription{
			AccountID:    accountID,
			Status:       models.SubscriptionActive,
			Plan:         plan,
			MaxInstances: plan.MaxInstances(),
			PeriodStart:  now,
			PeriodEnd:    periodEnd,
		}
		if err := m.store.CreateSubscription(ctx, sub); err != nil {
			return nil, err
		}
	} else {
		sub.Status = models.SubscriptionActive
		sub.Plan = plan
		sub.MaxInstances = plan.MaxInstances()
		sub.PeriodStart = now
		sub.PeriodEnd = periodEnd

		if err := m.store.UpdateSubscription(ctx, sub); err != nil {
			return nil, err
		}
	}

	m.auditor.AdminAction(ctx, models.AuditSubscriptionRenew, actorID, accountID, models.Variables{
		"plan":     string(plan),
		"duration": string(duration),
	})

	return sub, nil
}

// Cancel marks the account's subscription as cancelled. The billing
// window is left untouched.
func (m *Manager) Cancel(ctx context.Context, actorID, accountID uuid.UUID) (*models.Subscription, error) {
	sub, err := m.store.GetSubscriptionByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubscriptionCancelled
	if err := m.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	m.auditor.AdminAction(ctx, models.AuditSubscriptionCancel, actorID, accountID, nil)

	return sub, nil
}

// Get returns the account's subscription
func (m *Manager) Get(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error) {
	return m.store.GetSubscriptionByAccount(ctx, accountID)
}

// List lists all subscriptions with their owning accounts
func (m *Manager) List(ctx context.Context, limit, offset int) ([]*models.SubscriptionView, int64, error) {
	return m.store.ListSubscriptions(ctx, limit, offset)
}

// ListExpiring lists trial/active subscriptions ending within the next
// given number of days
func (m *Manager) ListExpiring(ctx context.Context, withinDays int) ([]*models.SubscriptionView, error) {
	now := time.Now()
	return m.store.ListExpiringSubscriptions(ctx, now, now.AddDate(0, 0, withinDays))
}

// SweepExpired flips every overdue trial/active subscription to
// expired in one pass and returns how many were flipped. Safe to run
// repeatedly.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	count, err := m.store.ExpireOverdueSubscriptions(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		log.Info().Int64("count", count).Msg("Expired overdue subscriptions")
		m.auditor.Record(ctx, &models.AuditLog{
			Action:   models.AuditSubscriptionSweep,
			Severity: models.AuditInfo,
			Details:  models.Variables{"expired": count},
		})
	}

	return count, nil
}

// Stats aggregates subscription counts for the admin dashboard
func (m *Manager) Stats(ctx context.Context) (*models.SubscriptionStats, error) {
	stats := &models.SubscriptionStats{}

	byStatus := map[models.SubscriptionStatus]*int64{
		models.SubscriptionTrial:     &stats.Trial,
		models.SubscriptionActive:    &stats.Active,
		models.SubscriptionExpired:   &stats.Expired,
		models.SubscriptionCancelled: &stats.Cancelled,
	}
	for status, target := range byStatus {
		count, err := m.store.CountSubscriptionsByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		*target = count
		stats.Total += count
	}

	byPlan, err := m.store.CountSubscriptionsByPlan(ctx)
	if err != nil {
		return nil, err
	}
	stats.ByPlan = byPlan

	return stats, nil
}

// CheckQuota reports whether the account may create another instance.
// Requires a trial or active subscription with headroom below its
// plan quota.
func (m *Manager) CheckQuota(ctx context.Context, accountID uuid.UUID) error {
	sub, err := m.store.GetSubscriptionByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoSubscription
		}
		return err
	}

	if sub.Status != models.SubscriptionTrial && sub.Status != models.SubscriptionActive {
		return ErrSubscriptionInactive
	}

	count, err := m.store.CountInstancesByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if count >= int64(sub.MaxInstances) {
		return ErrQuotaExceeded
	}

	return nil
}
