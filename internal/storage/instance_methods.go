package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msggate/control-plane/internal/models"
)

const instanceColumns = `id, created_at, updated_at, name, token, account_id, connection_status`

// scanInstance scans a single instance row
func scanInstance(row *sql.Row) (*models.Instance, error) {
	instance := &models.Instance{}
	err := row.Scan(
		&instance.ID, &instance.CreatedAt, &instance.UpdatedAt, &instance.Name,
		&instance.Token, &instance.AccountID, &instance.ConnectionStatus,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return instance, err
}

// CreateInstance creates a new gateway instance
func (s *PostgresStore) CreateInstance(ctx context.Context, instance *models.Instance) error {
	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}

	now := time.Now()
	instance.CreatedAt = now
	instance.UpdatedAt = now

	if instance.ConnectionStatus == "" {
		instance.ConnectionStatus = models.ConnectionClosed
	}

	query := `
	    INSERT INTO instances (
	        id, created_at, updated_at, name, token, account_id, connection_status
	    ) VALUES (
	        $1, $2, $3, $4, $5, $6, $7
	    )`

	_, err := s.getDB().ExecContext(ctx, query,
		instance.ID, instance.CreatedAt, instance.UpdatedAt, instance.Name,
		instance.Token, instance.AccountID, instance.ConnectionStatus,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetInstance gets an instance by ID
func (s *PostgresStore) GetInstance(ctx context.Context, id uuid.UUID) (*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE id = $1`
	return scanInstance(s.getDB().QueryRowContext(ctx, query, id))
}

// GetInstanceByName gets an instance by its unique name
func (s *PostgresStore) GetInstanceByName(ctx context.Context, name string) (*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE name = $1`
	return scanInstance(s.getDB().QueryRowContext(ctx, query, name))
}

// GetInstanceByToken gets an instance by its access token
func (s *PostgresStore) GetInstanceByToken(ctx context.Context, token string) (*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE token = $1`
	return scanInstance(s.getDB().QueryRowContext(ctx, query, token))
}

// UpdateInstance updates an instance
func (s *PostgresStore) UpdateInstance(ctx context.Context, instance *models.Instance) error {
	instance.UpdatedAt = time.Now()

	query := `
	    UPDATE instances SET
	        updated_at = $2, name = $3, token = $4, account_id = $5,
	        connection_status = $6
	    WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		instance.ID, instance.UpdatedAt, instance.Name, instance.Token,
		instance.AccountID, instance.ConnectionStatus,
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

// DeleteInstance deletes an instance
func (s *PostgresStore) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM instances WHERE id = $1", id)
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

// ListInstances lists instances, optionally scoped to an owning account
func (s *PostgresStore) ListInstances(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Instance, int64, error) {
	var args []interface{}
	query := `SELECT ` + instanceColumns + ` FROM instances`
	countQuery := `SELECT COUNT(*) FROM instances`

	if accountID != nil {
		query += ` WHERE account_id = $1`
		countQuery += ` WHERE account_id = $1`
		args = append(args, *accountID)
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, countQuery, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC`
	if accountID != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var instances []*models.Instance
	for rows.Next() {
		instance := &models.Instance{}
		err := rows.Scan(
			&instance.ID, &instance.CreatedAt, &instance.UpdatedAt, &instance.Name,
			&instance.Token, &instance.AccountID, &instance.ConnectionStatus,
		)
		if err != nil {
			return nil, 0, err
		}
		instances = append(instances, instance)
	}

	return instances, count, nil
}

// CountInstancesByAccount counts instances owned by an account
func (s *PostgresStore) CountInstancesByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM instances WHERE account_id = $1", accountID,
	).Scan(&count)
	return count, err
}

// CountInstancesByStatus counts instances in a connection state
func (s *PostgresStore) CountInstancesByStatus(ctx context.Context, status models.ConnectionStatus) (int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM instances WHERE connection_status = $1", status,
	).Scan(&count)
	return count, err
}
