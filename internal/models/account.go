package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents an account privilege tier
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Valid reports whether the role is a known value
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role carries administrative privileges
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Account represents a registered tenant operator
type Account struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Email     string `json:"email" db:"email"`
	Username  string `json:"username" db:"username"`
	FirstName string `json:"firstName,omitempty" db:"first_name"`
	LastName  string `json:"lastName,omitempty" db:"last_name"`

	PasswordHash string `json:"-" db:"password_hash"`

	Role Role `json:"role" db:"role"`

	// Long-lived opaque API secret, prefixed for cheap format checks
	APIKey string `json:"apiKey,omitempty" db:"api_key"`

	EmailVerified           bool       `json:"emailVerified" db:"email_verified"`
	VerificationToken       *string    `json:"-" db:"verification_token"`
	VerificationTokenExpiry *time.Time `json:"-" db:"verification_token_expiry"`

	ResetPasswordToken  *string    `json:"-" db:"reset_password_token"`
	ResetPasswordExpiry *time.Time `json:"-" db:"reset_password_expiry"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
}
