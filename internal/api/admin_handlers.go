package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
)

// HandleListAccounts lists accounts
func (s *RESTServer) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	accounts, total, err := s.store.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"total":    total,
	})
}

// HandleGetAccount gets an account
func (s *RESTServer) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "account not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, account)
}

// HandleUpdateAccountRole changes an account's role. Only a super admin
// may do this, and never on their own account.
func (s *RESTServer) HandleUpdateAccountRole(w http.ResponseWriter, r *http.Request) {
	actor := s.currentAccount(r)
	if actor.Role != models.RoleSuperAdmin {
		s.respondError(w, http.StatusForbidden, "super admin privileges required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if id == actor.ID {
		s.respondError(w, http.StatusForbidden, "cannot change own role")
		return
	}

	var req struct {
		Role models.Role `json:"role"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Role.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	account, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "account not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	previous := account.Role
	account.Role = req.Role
	if err := s.store.UpdateAccount(r.Context(), account); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.auditor.AdminAction(r.Context(), models.AuditUpdateRole, actor.ID, account.ID, models.Variables{
		"from": string(previous),
		"to":   string(req.Role),
	})

	s.respondJSON(w, http.StatusOK, account)
}

// HandleDeleteAccount deletes an account. Only a super admin may do
// this, and never on their own account.
func (s *RESTServer) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor := s.currentAccount(r)
	if actor.Role != models.RoleSuperAdmin {
		s.respondError(w, http.StatusForbidden, "super admin privileges required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if id == actor.ID {
		s.respondError(w, http.StatusForbidden, "cannot delete own account")
		return
	}

	if err := s.store.DeleteAccount(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "account not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.auditor.AdminAction(r.Context(), models.AuditDeleteUser, actor.ID, id, nil)

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "account deleted",
	})
}

// HandleListAuditLogs lists audit logs with optional filters
func (s *RESTServer) HandleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	query := r.URL.Query()

	var filters storage.AuditLogFilters

	if v := query.Get("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid actor_id")
			return
		}
		filters.ActorID = &id
	}

	if v := query.Get("subject_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid subject_id")
			return
		}
		filters.SubjectID = &id
	}

	if v := query.Get("action"); v != "" {
		action := models.AuditAction(v)
		filters.Action = &action
	}

	if v := query.Get("severity"); v != "" {
		severity := models.AuditSeverity(v)
		filters.Severity = &severity
	}

	if v := query.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid start_time")
			return
		}
		filters.StartTime = &t
	}

	if v := query.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid end_time")
			return
		}
		filters.EndTime = &t
	}

	entries, total, err := s.store.ListAuditLogs(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"total": total,
	})
}
