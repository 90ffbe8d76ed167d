package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msggate/control-plane/internal/models"
)

const accountColumns = `id, created_at, updated_at, email, username, first_name, last_name,
	       password_hash, role, api_key, email_verified, verification_token,
	       verification_token_expiry, reset_password_token, reset_password_expiry,
	       last_login_at`

// scanAccount scans a single account row
func scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID, &account.CreatedAt, &account.UpdatedAt, &account.Email,
		&account.Username, &account.FirstName, &account.LastName,
		&account.PasswordHash, &account.Role, &account.APIKey,
		&account.EmailVerified, &account.VerificationToken,
		&account.VerificationTokenExpiry, &account.ResetPasswordToken,
		&account.ResetPasswordExpiry, &account.LastLoginAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return account, err
}

// CreateAccount creates a new account
func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `
	    INSERT INTO accounts (
	        id, created_at, updated_at, email, username, first_name, last_name,
	        password_hash, role, api_key, email_verified, verification_token,
	        verification_token_expiry
	    ) VALUES (
	        $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
	    )`

	_, err := s.getDB().ExecContext(ctx, query,
		account.ID, account.CreatedAt, account.UpdatedAt, account.Email,
		account.Username, account.FirstName, account.LastName,
		account.PasswordHash, account.Role, account.APIKey,
		account.EmailVerified, account.VerificationToken,
		account.VerificationTokenExpiry,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetAccount gets an account by ID
func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.getDB().QueryRowContext(ctx, query, id))
}

// GetAccountByEmail gets an account by email
func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(s.getDB().QueryRowContext(ctx, query, email))
}

// GetAccountByEmailOrUsername gets an account by email or username
func (s *PostgresStore) GetAccountByEmailOrUsername(ctx context.Context, emailOrUsername string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 OR username = $1`
	return scanAccount(s.getDB().QueryRowContext(ctx, query, emailOrUsername))
}

// GetAccountByAPIKey gets an account by its API secret
func (s *PostgresStore) GetAccountByAPIKey(ctx context.Context, apiKey string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE api_key = $1`
	return scanAccount(s.getDB().QueryRowContext(ctx, query, apiKey))
}

// GetAccountByVerificationToken gets an account by verification token
func (s *PostgresStore) GetAccountByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE verification_token = $1`
	return scanAccount(s.getDB().QueryRowContext(ctx, query, token))
}

// GetAccountByResetToken gets an account by password reset token
func (s *PostgresStore) GetAccountByResetToken(ctx context.Context, token string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE reset_password_token = $1`
	return scanAccount(s.getDB().QueryRowContext(ctx, query, token))
}

// UpdateAccount updates an account
func (s *PostgresStore) UpdateAccount(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now()

	query := `
	    UPDATE accounts SET
	        updated_at = $2, email = $3, username = $4, first_name = $5,
	        last_name = $6, password_hash = $7, role = $8, api_key = $9,
	        email_verified = $10, verification_token = $11,
	        verification_token_expiry = $12, reset_password_token = $13,
	        reset_password_expiry = $14, last_login_at = $15
	    WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		account.ID, account.UpdatedAt, account.Email, account.Username,
		account.FirstName, account.LastName, account.PasswordHash,
		account.Role, account.APIKey, account.EmailVerified,
		account.VerificationToken, account.VerificationTokenExpiry,
		account.ResetPasswordToken, account.ResetPasswordExpiry,
		account.LastLoginAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
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

// DeleteAccount deletes an account
func (s *PostgresStore) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM accounts WHERE id = $1", id)
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

// ListAccounts lists accounts
func (s *PostgresStore) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
	    SELECT id, created_at, updated_at, email, username, first_name, last_name,
	           role, email_verified, last_login_at
	    FROM accounts
	    ORDER BY created_at DESC
	    LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account := &models.Account{}
		err := rows.Scan(
			&account.ID, &account.CreatedAt, &account.UpdatedAt, &account.Email,
			&account.Username, &account.FirstName, &account.LastName,
			&account.Role, &account.EmailVerified, &account.LastLoginAt,
		)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}

	return accounts, count, nil
}

// CountAccounts counts all accounts
func (s *PostgresStore) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	return count, err
}
