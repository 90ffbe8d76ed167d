package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "TRIAL"
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// SubscriptionPlan represents a billing plan
type SubscriptionPlan string

const (
	PlanFree       SubscriptionPlan = "FREE"
	PlanBasic      SubscriptionPlan = "BASIC"
	PlanPro        SubscriptionPlan = "PRO"
	PlanEnterprise SubscriptionPlan = "ENTERPRISE"
)

// Valid reports whether the plan is a known value
func (p SubscriptionPlan) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// MaxInstances returns the gateway instance quota for the plan.
// Total over the enum: unknown values fall back to the free tier so no
// code path can reach an undefined quota.
func (p SubscriptionPlan) MaxInstances() int {
	switch p {
	case PlanBasic:
		return 5
	case PlanPro:
		return 20
	case PlanEnterprise:
		return 100
	default:
		return 1
	}
}

// Subscription represents an account's subscription (1:1 with Account)
type Subscription struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	AccountID uuid.UUID `json:"accountId" db:"account_id"`

	Status SubscriptionStatus `json:"status" db:"status"`
	Plan   SubscriptionPlan   `json:"plan" db:"plan"`

	// Derived from Plan on every status-changing write, never taken
	// from caller input
	MaxInstances int `json:"maxInstances" db:"max_instances"`

	PeriodStart time.Time `json:"periodStart" db:"period_start"`
	PeriodEnd   time.Time `json:"periodEnd" db:"period_end"`
}

// SubscriptionSummary is the projection attached to session responses
type SubscriptionSummary struct {
	Plan      SubscriptionPlan   `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

// Summary projects the subscription for session/login responses
func (s *Subscription) Summary() *SubscriptionSummary {
	if s == nil {
		return nil
	}
	return &SubscriptionSummary{
		Plan:      s.Plan,
		Status:    s.Status,
		ExpiresAt: s.PeriodEnd,
	}
}

// SubscriptionView pairs a subscription with its owning account identity
// for admin listings and expiry notifications
type SubscriptionView struct {
	Subscription
	AccountEmail    string `json:"accountEmail"`
	AccountUsername string `json:"accountUsername"`
}

// SubscriptionStats aggregates subscription counts for admin dashboards
type SubscriptionStats struct {
	Total     int64                      `json:"total"`
	Trial     int64                      `json:"trial"`
	Active    int64                      `json:"active"`
	Expired   int64                      `json:"expired"`
	Cancelled int64                      `json:"cancelled"`
	ByPlan    map[SubscriptionPlan]int64 `json:"byPlan"`
}
