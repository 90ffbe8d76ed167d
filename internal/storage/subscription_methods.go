package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msggate/control-plane/internal/models"
)

// CreateSubscription creates a new subscription
func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
	    INSERT INTO subscriptions (
	        id, created_at, updated_at, account_id, status, plan,
	        max_instances, period_start, period_end
	    ) VALUES (
	        $1, $2, $3, $4, $5, $6, $7, $8, $9
	    )`

	_, err := s.getDB().ExecContext(ctx, query,
		sub.ID, sub.CreatedAt, sub.UpdatedAt, sub.AccountID, sub.Status,
		sub.Plan, sub.MaxInstances, sub.PeriodStart, sub.PeriodEnd,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetSubscriptionByAccount gets the subscription owned by an account
func (s *PostgresStore) GetSubscriptionByAccount(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error) {
	query := `
	    SELECT id, created_at, updated_at, account_id, status, plan,
	           max_instances, period_start, period_end
	    FROM subscriptions
	    WHERE account_id = $1`

	sub := &models.Subscription{}
	err := s.getDB().QueryRowContext(ctx, query, accountID).Scan(
		&sub.ID, &sub.CreatedAt, &sub.UpdatedAt, &sub.AccountID, &sub.Status,
		&sub.Plan, &sub.MaxInstances, &sub.PeriodStart, &sub.PeriodEnd,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return sub, err
}

// UpdateSubscription updates a subscription
func (s *PostgresStore) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now()

	query := `
	    UPDATE subscriptions SET
	        updated_at = $2, status = $3, plan = $4, max_instances = $5,
	        period_start = $6, period_end = $7
	    WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		sub.ID, sub.UpdatedAt, sub.Status, sub.Plan, sub.MaxInstances,
		sub.PeriodStart, sub.PeriodEnd,
	)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListSubscriptions lists subscriptions joined with account identity
func (s *PostgresStore) ListSubscriptions(ctx context.Context, limit, offset int) ([]*models.SubscriptionView, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
	    SELECT s.id, s.created_at, s.updated_at, s.account_id, s.status, s.plan,
	           s.max_instances, s.period_start, s.period_end, a.email, a.username
	    FROM subscriptions s
	    JOIN accounts a ON a.id = s.account_id
	    ORDER BY s.created_at DESC
	    LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subs, err := scanSubscriptionViews(rows)
	if err != nil {
		return nil, 0, err
	}

	return subs, count, nil
}

// ListExpiringSubscriptions lists trial/active subscriptions whose period
// ends inside [from, to]
func (s *PostgresStore) ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]*models.SubscriptionView, error) {
	query := `
	    SELECT s.id, s.created_at, s.updated_at, s.account_id, s.status, s.plan,
	           s.max_instances, s.period_start, s.period_end, a.email, a.username
	    FROM subscriptions s
	    JOIN accounts a ON a.id = s.account_id
	    WHERE s.status IN ($1, $2) AND s.period_end >= $3 AND s.period_end <= $4
	    ORDER BY s.period_end ASC`

	rows, err := s.getDB().QueryContext(ctx, query,
		models.SubscriptionActive, models.SubscriptionTrial, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSubscriptionViews(rows)
}

// ExpireOverdueSubscriptions marks overdue trial/active subscriptions as
// expired and returns the number of rows mutated
func (s *PostgresStore) ExpireOverdueSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	query := `
	    UPDATE subscriptions
	    SET status = $1, updated_at = $2
	    WHERE status IN ($3, $4) AND period_end < $5`

	result, err := s.getDB().ExecContext(ctx, query,
		models.SubscriptionExpired, now,
		models.SubscriptionActive, models.SubscriptionTrial, now,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// CountSubscriptionsByStatus counts subscriptions in a status
func (s *PostgresStore) CountSubscriptionsByStatus(ctx context.Context, status models.SubscriptionStatus) (int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE status = $1", status,
	).Scan(&count)
	return count, err
}

// CountSubscriptionsByPlan returns subscription counts grouped by plan
func (s *PostgresStore) CountSubscriptionsByPlan(ctx context.Context) (map[models.SubscriptionPlan]int64, error) {
	rows, err := s.getDB().QueryContext(ctx,
		"SELECT plan, COUNT(*) FROM subscriptions GROUP BY plan",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.SubscriptionPlan]int64)
	for rows.Next() {
		var plan models.SubscriptionPlan
		var count int64
		if err := rows.Scan(&plan, &count); err != nil {
			return nil, err
		}
		counts[plan] = count
	}

	return counts, rows.Err()
}

// scanSubscriptionViews scans joined subscription rows
func scanSubscriptionViews(rows *sql.Rows) ([]*models.SubscriptionView, error) {
	var subs []*models.SubscriptionView
	for rows.Next() {
		view := &models.SubscriptionView{}
		err := rows.Scan(
			&view.ID, &view.CreatedAt, &view.UpdatedAt, &view.AccountID,
			&view.Status, &view.Plan, &view.MaxInstances, &view.PeriodStart,
			&view.PeriodEnd, &view.AccountEmail, &view.AccountUsername,
		)
		if err != nil {
			return nil, err
		}
		subs = append(subs, view)
	}

	return subs, rows.Err()
}
