package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action kind
type AuditAction string

const (
	AuditLogin              AuditAction = "LOGIN"
	AuditLogout             AuditAction = "LOGOUT"
	AuditRegister           AuditAction = "REGISTER"
	AuditVerifyEmail        AuditAction = "VERIFY_EMAIL"
	AuditPasswordReset      AuditAction = "PASSWORD_RESET"
	AuditRegenerateAPIKey   AuditAction = "REGENERATE_API_KEY"
	AuditUpdateRole         AuditAction = "UPDATE_ROLE"
	AuditDeleteUser         AuditAction = "DELETE_USER"
	AuditCreateInstance     AuditAction = "CREATE_INSTANCE"
	AuditDeleteInstance     AuditAction = "DELETE_INSTANCE"
	AuditSubscriptionRenew  AuditAction = "SUBSCRIPTION_RENEW"
	AuditSubscriptionCancel AuditAction = "SUBSCRIPTION_CANCEL"
	AuditSubscriptionSweep  AuditAction = "SUBSCRIPTION_SWEEP"
	AuditSystemError        AuditAction = "SYSTEM_ERROR"
)

// AuditSeverity represents audit entry severity
type AuditSeverity string

const (
	AuditInfo     AuditSeverity = "INFO"
	AuditWarning  AuditSeverity = "WARNING"
	AuditError    AuditSeverity = "ERROR"
	AuditCritical AuditSeverity = "CRITICAL"
)

// AuditLog represents a security-relevant event record
type AuditLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	Action   AuditAction   `json:"action" db:"action"`
	Severity AuditSeverity `json:"severity" db:"severity"`

	ActorID   *uuid.UUID `json:"actorId,omitempty" db:"actor_id"`
	SubjectID *uuid.UUID `json:"subjectId,omitempty" db:"subject_id"`

	Details Variables `json:"details,omitempty" db:"details"`
}
