package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
	"github.com/msggate/control-plane/internal/subscription"
)

// HandleGetSubscription gets an account's subscription
func (s *RESTServer) HandleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	sub, err := s.subs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "subscription not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, sub)
}

// HandleRenewSubscription renews an account's subscription
func (s *RESTServer) HandleRenewSubscription(w http.ResponseWriter, r *http.Request) {
	actor := s.currentAccount(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req struct {
		Plan     models.SubscriptionPlan `json:"plan"`
		Duration subscription.Duration   `json:"duration" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := s.subs.Renew(r.Context(), actor.ID, id, req.Plan, req.Duration)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrInvalidPlan):
			s.respondError(w, http.StatusBadRequest, "invalid plan")
		case errors.Is(err, subscription.ErrInvalidDuration):
			s.respondError(w, http.StatusBadRequest, "invalid duration")
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "account not found")
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, sub)
}

// HandleCancelSubscription cancels an account's subscription
func (s *RESTServer) HandleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	actor := s.currentAccount(r)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	sub, err := s.subs.Cancel(r.Context(), actor.ID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "subscription not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, sub)
}

// HandleListSubscriptions lists subscriptions with account identity
func (s *RESTServer) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	subs, total, err := s.subs.List(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"total":         total,
	})
}

// HandleSubscriptionStats aggregates subscription counts
func (s *RESTServer) HandleSubscriptionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.subs.Stats(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, stats)
}

// HandleSweepSubscriptions runs the expiry sweep on demand
func (s *RESTServer) HandleSweepSubscriptions(w http.ResponseWriter, r *http.Request) {
	count, err := s.subs.SweepExpired(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"expired": count,
	})
}

// HandleListExpiringSubscriptions lists subscriptions ending soon
func (s *RESTServer) HandleListExpiringSubscriptions(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = s.config.Subscription.ExpiryWarningDays
	}

	subs, err := s.subs.ListExpiring(r.Context(), days)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"days":          days,
	})
}
