package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
)

// Recorder persists audit log entries. Recording is best-effort: a
// failed write is logged but never propagated, so audit problems
// cannot fail the operation being audited.
type Recorder struct {
	store storage.Store
}

// NewRecorder creates a new audit recorder
func NewRecorder(store storage.Store) *Recorder {
	return &Recorder{store: store}
}

// Record persists an audit entry
func (r *Recorder) Record(ctx context.Context, entry *models.AuditLog) {
	if entry.Severity == "" {
		entry.Severity = models.AuditInfo
	}

	if err := r.store.CreateAuditLog(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("action", string(entry.Action)).
			Msg("Failed to write audit log")
	}
}

// Info records an INFO entry for an actor-initiated action
func (r *Recorder) Info(ctx context.Context, action models.AuditAction, actorID *uuid.UUID, details models.Variables) {
	r.Record(ctx, &models.AuditLog{
		Action:   action,
		Severity: models.AuditInfo,
		ActorID:  actorID,
		Details:  details,
	})
}

// Warning records a WARNING entry
func (r *Recorder) Warning(ctx context.Context, action models.AuditAction, actorID *uuid.UUID, details models.Variables) {
	r.Record(ctx, &models.AuditLog{
		Action:   action,
		Severity: models.AuditWarning,
		ActorID:  actorID,
		Details:  details,
	})
}

// AdminAction records an INFO entry where an actor operates on another
// account
func (r *Recorder) AdminAction(ctx context.Context, action models.AuditAction, actorID, subjectID uuid.UUID, details models.Variables) {
	r.Record(ctx, &models.AuditLog{
		Action:    action,
		Severity:  models.AuditInfo,
		ActorID:   &actorID,
		SubjectID: &subjectID,
		Details:   details,
	})
}
