package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/msggate/control-plane/internal/models"
)

// MemoryStore is an in-memory Store implementation used in tests and
// single-node development setups. Uniqueness constraints mirror the
// PostgreSQL schema.
type MemoryStore struct {
	mu sync.RWMutex

	accounts      map[uuid.UUID]*models.Account
	instances     map[uuid.UUID]*models.Instance
	subscriptions map[uuid.UUID]*models.Subscription
	auditLogs     []*models.AuditLog
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[uuid.UUID]*models.Account),
		instances:     make(map[uuid.UUID]*models.Instance),
		subscriptions: make(map[uuid.UUID]*models.Subscription),
	}
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

// BeginTx returns the store itself; mutations are applied immediately
// under the store lock
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) { return s, nil }

// Commit is a no-op
func (s *MemoryStore) Commit() error { return nil }

// Rollback is a no-op
func (s *MemoryStore) Rollback() error { return nil }

// ========== Account Methods ==========

// CreateAccount creates a new account
func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == account.Email || a.Username == account.Username ||
			(account.APIKey != "" && a.APIKey == account.APIKey) {
			return ErrDuplicateKey
		}
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

// GetAccount gets an account by ID
func (s *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *account
	return &cp, nil
}

// GetAccountByEmail gets an account by email
func (s *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool { return a.Email == email })
}

// GetAccountByEmailOrUsername gets an account by email or username
func (s *MemoryStore) GetAccountByEmailOrUsername(ctx context.Context, emailOrUsername string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool {
		return a.Email == emailOrUsername || a.Username == emailOrUsername
	})
}

// GetAccountByAPIKey gets an account by its API secret
func (s *MemoryStore) GetAccountByAPIKey(ctx context.Context, apiKey string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool { return a.APIKey == apiKey })
}

// GetAccountByVerificationToken gets an account by verification token
func (s *MemoryStore) GetAccountByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool {
		return a.VerificationToken != nil && *a.VerificationToken == token
	})
}

// GetAccountByResetToken gets an account by password reset token
func (s *MemoryStore) GetAccountByResetToken(ctx context.Context, token string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool {
		return a.ResetPasswordToken != nil && *a.ResetPasswordToken == token
	})
}

func (s *MemoryStore) findAccount(match func(*models.Account) bool) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateAccount updates an account
func (s *MemoryStore) UpdateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return ErrNotFound
	}

	for id, a := range s.accounts {
		if id == account.ID {
			continue
		}
		if a.Email == account.Email || a.Username == account.Username ||
			(account.APIKey != "" && a.APIKey == account.APIKey) {
			return ErrDuplicateKey
		}
	}

	account.UpdatedAt = time.Now()
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

// DeleteAccount deletes an account, detaching its instances
func (s *MemoryStore) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)

	for _, inst := range s.instances {
		if inst.AccountID != nil && *inst.AccountID == id {
			inst.AccountID = nil
		}
	}
	for sid, sub := range s.subscriptions {
		if sub.AccountID == id {
			delete(s.subscriptions, sid)
		}
	}
	return nil
}

// ListAccounts lists accounts
func (s *MemoryStore) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*models.Account
	for _, a := range s.accounts {
		cp := *a
		accounts = append(accounts, &cp)
	}
	return paginate(accounts, limit, offset), int64(len(s.accounts)), nil
}

// CountAccounts counts all accounts
func (s *MemoryStore) CountAccounts(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.accounts)), nil
}

// ========== Instance Methods ==========

// CreateInstance creates a new instance
func (s *MemoryStore) CreateInstance(ctx context.Context, instance *models.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.instances {
		if i.Name == instance.Name || i.Token == instance.Token {
			return ErrDuplicateKey
		}
	}

	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	now := time.Now()
	instance.CreatedAt = now
	instance.UpdatedAt = now
	if instance.ConnectionStatus == "" {
		instance.ConnectionStatus = models.ConnectionClosed
	}

	cp := *instance
	s.instances[instance.ID] = &cp
	return nil
}

// GetInstance gets an instance by ID
func (s *MemoryStore) GetInstance(ctx context.Context, id uuid.UUID) (*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instance, ok := s.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *instance
	return &cp, nil
}

// GetInstanceByName gets an instance by name
func (s *MemoryStore) GetInstanceByName(ctx context.Context, name string) (*models.Instance, error) {
	return s.findInstance(func(i *models.Instance) bool { return i.Name == name })
}

// GetInstanceByToken gets an instance by access token
func (s *MemoryStore) GetInstanceByToken(ctx context.Context, token string) (*models.Instance, error) {
	return s.findInstance(func(i *models.Instance) bool { return i.Token == token })
}

func (s *MemoryStore) findInstance(match func(*models.Instance) bool) (*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, i := range s.instances {
		if match(i) {
			cp := *i
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateInstance updates an instance
func (s *MemoryStore) UpdateInstance(ctx context.Context, instance *models.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[instance.ID]; !ok {
		return ErrNotFound
	}

	instance.UpdatedAt = time.Now()
	cp := *instance
	s.instances[instance.ID] = &cp
	return nil
}

// DeleteInstance deletes an instance
func (s *MemoryStore) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[id]; !ok {
		return ErrNotFound
	}
	delete(s.instances, id)
	return nil
}

// ListInstances lists instances, optionally scoped to an account
func (s *MemoryStore) ListInstances(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Instance, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var instances []*models.Instance
	for _, i := range s.instances {
		if accountID != nil && (i.AccountID == nil || *i.AccountID != *accountID) {
			continue
		}
		cp := *i
		instances = append(instances, &cp)
	}
	return paginate(instances, limit, offset), int64(len(instances)), nil
}

// CountInstancesByAccount counts instances owned by an account
func (s *MemoryStore) CountInstancesByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, i := range s.instances {
		if i.AccountID != nil && *i.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

// CountInstancesByStatus counts instances in a connection state
func (s *MemoryStore) CountInstancesByStatus(ctx context.Context, status models.ConnectionStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, i := range s.instances {
		if i.ConnectionStatus == status {
			count++
		}
	}
	return count, nil
}

// ========== Subscription Methods ==========

// CreateSubscription creates a new subscription
func (s *MemoryStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.AccountID == sub.AccountID {
			return ErrDuplicateKey
		}
	}

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

// GetSubscriptionByAccount gets the subscription owned by an account
func (s *MemoryStore) GetSubscriptionByAccount(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.AccountID == accountID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateSubscription updates a subscription
func (s *MemoryStore) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID]; !ok {
		return ErrNotFound
	}

	sub.UpdatedAt = time.Now()
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

// ListSubscriptions lists subscriptions joined with account identity
func (s *MemoryStore) ListSubscriptions(ctx context.Context, limit, offset int) ([]*models.SubscriptionView, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []*models.SubscriptionView
	for _, sub := range s.subscriptions {
		views = append(views, s.viewLocked(sub))
	}
	return paginate(views, limit, offset), int64(len(views)), nil
}

// ListExpiringSubscriptions lists trial/active subscriptions whose period
// ends inside [from, to]
func (s *MemoryStore) ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]*models.SubscriptionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []*models.SubscriptionView
	for _, sub := range s.subscriptions {
		if sub.Status != models.SubscriptionActive && sub.Status != models.SubscriptionTrial {
			continue
		}
		if sub.PeriodEnd.Before(from) || sub.PeriodEnd.After(to) {
			continue
		}
		views = append(views, s.viewLocked(sub))
	}
	return views, nil
}

// ExpireOverdueSubscriptions marks overdue trial/active subscriptions as
// expired and returns the number of rows mutated
func (s *MemoryStore) ExpireOverdueSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, sub := range s.subscriptions {
		if sub.Status != models.SubscriptionActive && sub.Status != models.SubscriptionTrial {
			continue
		}
		if sub.PeriodEnd.Before(now) {
			sub.Status = models.SubscriptionExpired
			sub.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// CountSubscriptionsByStatus counts subscriptions in a status
func (s *MemoryStore) CountSubscriptionsByStatus(ctx context.Context, status models.SubscriptionStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, sub := range s.subscriptions {
		if sub.Status == status {
			count++
		}
	}
	return count, nil
}

// CountSubscriptionsByPlan returns subscription counts grouped by plan
func (s *MemoryStore) CountSubscriptionsByPlan(ctx context.Context) (map[models.SubscriptionPlan]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.SubscriptionPlan]int64)
	for _, sub := range s.subscriptions {
		counts[sub.Plan]++
	}
	return counts, nil
}

func (s *MemoryStore) viewLocked(sub *models.Subscription) *models.SubscriptionView {
	view := &models.SubscriptionView{Subscription: *sub}
	if account, ok := s.accounts[sub.AccountID]; ok {
		view.AccountEmail = account.Email
		view.AccountUsername = account.Username
	}
	return view
}

// ========== Audit Methods ==========

// CreateAuditLog creates an audit log entry
func (s *MemoryStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	cp := *entry
	s.auditLogs = append(s.auditLogs, &cp)
	return nil
}

// ListAuditLogs lists audit logs with filters
func (s *MemoryStore) ListAuditLogs(ctx context.Context, filters AuditLogFilters, limit, offset int) ([]*models.AuditLog, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*models.AuditLog
	for _, e := range s.auditLogs {
		if filters.ActorID != nil && (e.ActorID == nil || *e.ActorID != *filters.ActorID) {
			continue
		}
		if filters.SubjectID != nil && (e.SubjectID == nil || *e.SubjectID != *filters.SubjectID) {
			continue
		}
		if filters.Action != nil && e.Action != *filters.Action {
			continue
		}
		if filters.Severity != nil && e.Severity != *filters.Severity {
			continue
		}
		if filters.StartTime != nil && e.CreatedAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && e.CreatedAt.After(*filters.EndTime) {
			continue
		}
		cp := *e
		entries = append(entries, &cp)
	}
	return paginate(entries, limit, offset), int64(len(entries)), nil
}

// paginate applies limit/offset to a slice
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
