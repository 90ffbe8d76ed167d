package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
	"github.com/msggate/control-plane/internal/subscription"
	"github.com/msggate/control-plane/pkg/crypto"
)

// canAccessInstance reports whether the principal may operate on the
// instance
func canAccessInstance(principal models.Principal, instance *models.Instance) bool {
	switch {
	case principal.IsGlobalAdmin:
		return true
	case principal.Kind == models.PrincipalInstanceToken:
		return principal.InstanceID != nil && *principal.InstanceID == instance.ID
	case principal.Kind == models.PrincipalTenantUser:
		return principal.AccountID != nil && instance.AccountID != nil &&
			*instance.AccountID == *principal.AccountID
	}
	return false
}

// HandleCreateInstance creates a gateway instance. Reserved for the
// global admin; owned instances are checked against the owner's plan
// quota.
func (s *RESTServer) HandleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string     `json:"name" validate:"required,min=3,max=100"`
		Token     string     `json:"token"`
		AccountID *uuid.UUID `json:"accountId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.AccountID != nil {
		if err := s.subs.CheckQuota(r.Context(), *req.AccountID); err != nil {
			switch {
			case errors.Is(err, subscription.ErrQuotaExceeded):
				s.respondError(w, http.StatusForbidden, "instance quota exceeded")
			case errors.Is(err, subscription.ErrNoSubscription),
				errors.Is(err, subscription.ErrSubscriptionInactive):
				s.respondError(w, http.StatusForbidden, "subscription not active")
			default:
				s.respondError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
	}

	if req.Token == "" {
		token, err := crypto.GenerateRandomString(24)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to generate instance token")
			return
		}
		req.Token = token
	}

	instance := &models.Instance{
		Name:      req.Name,
		Token:     req.Token,
		AccountID: req.AccountID,
	}

	if err := s.store.CreateInstance(r.Context(), instance); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "instance already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.auditor.Record(r.Context(), &models.AuditLog{
		Action:    models.AuditCreateInstance,
		Severity:  models.AuditInfo,
		SubjectID: req.AccountID,
		Details:   models.Variables{"name": instance.Name},
	})

	s.respondJSON(w, http.StatusCreated, instance)
}

// HandleListInstances lists instances visible to the principal
func (s *RESTServer) HandleListInstances(w http.ResponseWriter, r *http.Request) {
	principal := s.currentPrincipal(r)
	limit, offset := parsePagination(r)

	var accountID *uuid.UUID
	switch {
	case principal.IsGlobalAdmin:
		// Unscoped
	case principal.Kind == models.PrincipalTenantUser && principal.AccountID != nil:
		accountID = principal.AccountID
	case principal.Kind == models.PrincipalInstanceToken && principal.InstanceID != nil:
		instance, err := s.store.GetInstance(r.Context(), *principal.InstanceID)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"instances": []*models.Instance{instance},
			"total":     1,
		})
		return
	default:
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return
	}

	instances, total, err := s.store.ListInstances(r.Context(), accountID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"instances": instances,
		"total":     total,
	})
}

// HandleGetInstance gets an instance by name
func (s *RESTServer) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	instance, ok := s.fetchScopedInstance(w, r)
	if !ok {
		return
	}

	s.respondJSON(w, http.StatusOK, instance)
}

// HandleDeleteInstance deletes an instance
func (s *RESTServer) HandleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	instance, ok := s.fetchScopedInstance(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteInstance(r.Context(), instance.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "instance not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.auditor.Record(r.Context(), &models.AuditLog{
		Action:    models.AuditDeleteInstance,
		Severity:  models.AuditInfo,
		SubjectID: instance.AccountID,
		Details:   models.Variables{"name": instance.Name},
	})

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "instance deleted",
	})
}

// HandleUpdateConnectionState updates an instance's connection state
func (s *RESTServer) HandleUpdateConnectionState(w http.ResponseWriter, r *http.Request) {
	instance, ok := s.fetchScopedInstance(w, r)
	if !ok {
		return
	}

	var req struct {
		State models.ConnectionStatus `json:"state"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.State {
	case models.ConnectionOpen, models.ConnectionConnecting, models.ConnectionClosed:
	default:
		s.respondError(w, http.StatusBadRequest, "invalid connection state")
		return
	}

	instance.ConnectionStatus = req.State
	if err := s.store.UpdateInstance(r.Context(), instance); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, instance)
}

// fetchScopedInstance loads the addressed instance and enforces the
// principal's access to it. On failure the response is already written.
func (s *RESTServer) fetchScopedInstance(w http.ResponseWriter, r *http.Request) (*models.Instance, bool) {
	instance, err := s.store.GetInstanceByName(r.Context(), chi.URLParam(r, "instanceName"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "instance not found")
			return nil, false
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}

	if !canAccessInstance(s.currentPrincipal(r), instance) {
		s.respondError(w, http.StatusForbidden, "insufficient privileges")
		return nil, false
	}

	return instance, true
}
