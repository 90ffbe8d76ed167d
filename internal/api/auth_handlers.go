package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/msggate/control-plane/internal/auth"
	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
)

// HandleRegister handles account registration
func (s *RESTServer) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := s.authSvc.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"account": account,
		"message": "verification email sent",
	})
}

// HandleLogin handles account login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.authSvc.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrEmailNotVerified):
			s.respondError(w, http.StatusForbidden, "email address not verified")
		case errors.Is(err, auth.ErrSubscriptionExpired):
			s.respondError(w, http.StatusForbidden, "subscription expired")
		default:
			s.respondError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// HandleVerifyEmail handles email verification
func (s *RESTServer) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.authSvc.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.respondError(w, http.StatusBadRequest, "invalid verification token")
		case errors.Is(err, auth.ErrTokenExpired):
			s.respondError(w, http.StatusBadRequest, "verification token expired")
		default:
			s.respondError(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"message": "email verified",
	})
}

// HandleResendVerification re-sends the verification email
func (s *RESTServer) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.authSvc.ResendVerification(r.Context(), req.Email); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to send verification email")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "verification email sent if the address is registered",
	})
}

// HandleForgotPassword issues a password reset token
func (s *RESTServer) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.authSvc.ForgotPassword(r.Context(), req.Email); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	// Same response whether or not the address exists
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "reset email sent if the address is registered",
	})
}

// HandleResetPassword sets a new password from a reset token
func (s *RESTServer) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.authSvc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			s.respondError(w, http.StatusBadRequest, "invalid reset token")
		case errors.Is(err, auth.ErrTokenExpired):
			s.respondError(w, http.StatusBadRequest, "reset token expired")
		default:
			s.respondError(w, http.StatusInternalServerError, "password reset failed")
		}
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "password updated",
	})
}

// HandleGetCurrentAccount returns the session account with its
// subscription
func (s *RESTServer) HandleGetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	account := s.currentAccount(r)

	sub, err := s.subs.Get(r.Context(), account.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"account":      account,
		"subscription": sub.Summary(),
	})
}

// HandleLogout ends a session. Tokens are stateless, so this only
// records the event; the client discards the token.
func (s *RESTServer) HandleLogout(w http.ResponseWriter, r *http.Request) {
	account := s.currentAccount(r)

	s.auditor.Record(r.Context(), &models.AuditLog{
		Action:   models.AuditLogout,
		Severity: models.AuditInfo,
		ActorID:  &account.ID,
	})

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// HandleRegenerateAPIKey replaces the session account's API secret
func (s *RESTServer) HandleRegenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	account := s.currentAccount(r)

	apiKey, err := s.authSvc.RegenerateAPIKey(r.Context(), account.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to regenerate api key")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"apiKey": apiKey,
	})
}
