package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus represents a gateway instance's connection state
type ConnectionStatus string

const (
	ConnectionOpen       ConnectionStatus = "open"
	ConnectionConnecting ConnectionStatus = "connecting"
	ConnectionClosed     ConnectionStatus = "close"
)

// Instance represents a tenant-owned gateway instance
type Instance struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Globally unique instance name
	Name string `json:"name" db:"name"`

	// Per-instance bearer token
	Token string `json:"token,omitempty" db:"token"`

	// Owning account; nil for unowned/global instances
	AccountID *uuid.UUID `json:"accountId,omitempty" db:"account_id"`

	ConnectionStatus ConnectionStatus `json:"connectionStatus" db:"connection_status"`
}
