package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/msggate/control-plane/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// Account methods
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByEmailOrUsername(ctx context.Context, emailOrUsername string) (*models.Account, error)
	GetAccountByAPIKey(ctx context.Context, apiKey string) (*models.Account, error)
	GetAccountByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	GetAccountByResetToken(ctx context.Context, token string) (*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int64, error)
	CountAccounts(ctx context.Context) (int64, error)

	// Instance methods
	CreateInstance(ctx context.Context, instance *models.Instance) error
	GetInstance(ctx context.Context, id uuid.UUID) (*models.Instance, error)
	GetInstanceByName(ctx context.Context, name string) (*models.Instance, error)
	GetInstanceByToken(ctx context.Context, token string) (*models.Instance, error)
	UpdateInstance(ctx context.Context, instance *models.Instance) error
	DeleteInstance(ctx context.Context, id uuid.UUID) error
	ListInstances(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Instance, int64, error)
	CountInstancesByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	CountInstancesByStatus(ctx context.Context, status models.ConnectionStatus) (int64, error)

	// Subscription methods
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscriptionByAccount(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	ListSubscriptions(ctx context.Context, limit, offset int) ([]*models.SubscriptionView, int64, error)
	ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]*models.SubscriptionView, error)
	ExpireOverdueSubscriptions(ctx context.Context, now time.Time) (int64, error)
	CountSubscriptionsByStatus(ctx context.Context, status models.SubscriptionStatus) (int64, error)
	CountSubscriptionsByPlan(ctx context.Context) (map[models.SubscriptionPlan]int64, error)

	// Audit log methods
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, filters AuditLogFilters, limit, offset int) ([]*models.AuditLog, int64, error)

	// Close the store
	Close() error
}

// AuditLogFilters represents filters for audit logs
type AuditLogFilters struct {
	ActorID   *uuid.UUID
	SubjectID *uuid.UUID
	Action    *models.AuditAction
	Severity  *models.AuditSeverity
	StartTime *time.Time
	EndTime   *time.Time
}
