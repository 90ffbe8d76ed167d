package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/msggate/control-plane/internal/audit"
	"github.com/msggate/control-plane/internal/config"
	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
	"github.com/msggate/control-plane/pkg/crypto"
)

// Notifier delivers account lifecycle notifications
type Notifier interface {
	SendVerification(ctx context.Context, email, username, token string) error
	SendPasswordReset(ctx context.Context, email, username, token string) error
}

// Service implements account registration, verification and sessions
type Service struct {
	store    storage.Store
	jwt      *JWTManager
	notifier Notifier
	auditor  *audit.Recorder
	authCfg  *config.AuthConfig
	subCfg   *config.SubscriptionConfig
}

// NewService creates a new auth service
func NewService(store storage.Store, jwt *JWTManager, notifier Notifier, auditor *audit.Recorder, authCfg *config.AuthConfig, subCfg *config.SubscriptionConfig) *Service {
	return &Service{
		store:    store,
		jwt:      jwt,
		notifier: notifier,
		auditor:  auditor,
		authCfg:  authCfg,
		subCfg:   subCfg,
	}
}

// RegisterRequest carries a registration submission
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginResponse carries a successful login result
type LoginResponse struct {
	Token        string                      `json:"token"`
	Account      *models.Account             `json:"account"`
	Subscription *models.SubscriptionSummary `json:"subscription,omitempty"`
}

// Register creates an unverified account and sends the verification
// email. Email and username must both be unused.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*models.Account, error) {
	if _, err := s.store.GetAccountByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", storage.ErrDuplicateKey)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if _, err := s.store.GetAccountByEmailOrUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", storage.ErrDuplicateKey)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	apiKey, err := s.newAPIKey()
	if err != nil {
		return nil, err
	}

	verificationToken, err := crypto.GenerateRandomHex(32)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}
	tokenExpiry := time.Now().Add(s.subCfg.VerificationTTL)

	account := &models.Account{
		Email:                   strings.ToLower(req.Email),
		Username:                req.Username,
		FirstName:               req.FirstName,
		LastName:                req.LastName,
		PasswordHash:            passwordHash,
		Role:                    models.RoleUser,
		APIKey:                  apiKey,
		EmailVerified:           false,
		VerificationToken:       &verificationToken,
		VerificationTokenExpiry: &tokenExpiry,
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	if err := s.notifier.SendVerification(ctx, account.Email, account.Username, verificationToken); err != nil {
		// The account exists; the token can be re-sent
		log.Error().Err(err).Str("email", account.Email).
			Msg("Failed to send verification email")
	}

	s.auditor.Info(ctx, models.AuditRegister, &account.ID, models.Variables{
		"email":    account.Email,
		"username": account.Username,
	})

	return account, nil
}

// VerifyEmail marks the account behind a verification token as verified
// and activates its trial subscription. Verifying an already-verified
// account is a no-op.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.Account, error) {
	account, err := s.store.GetAccountByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if account.EmailVerified {
		return account, nil
	}

	if account.VerificationTokenExpiry != nil && account.VerificationTokenExpiry.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account.EmailVerified = true
	account.VerificationToken = nil
	account.VerificationTokenExpiry = nil

	if err := tx.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	if _, err := tx.GetSubscriptionByAccount(ctx, account.ID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		now := time.Now()
		sub := &models.Subscription{
			AccountID:    account.ID,
			Status:       models.SubscriptionTrial,
			Plan:         models.PlanFree,
			MaxInstances: models.PlanFree.MaxInstances(),
			PeriodStart:  now,
			PeriodEnd:    now.AddDate(0, 0, s.subCfg.TrialDays),
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.auditor.Info(ctx, models.AuditVerifyEmail, &account.ID, models.Variables{
		"email": account.Email,
	})

	return account, nil
}

// ResendVerification issues a fresh verification token for an
// unverified account
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	account, err := s.store.GetAccountByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Do not reveal whether the address is registered
			return nil
		}
		return err
	}

	if account.EmailVerified {
		return nil
	}

	token, err := crypto.GenerateRandomHex(32)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}
	expiry := time.Now().Add(s.subCfg.VerificationTTL)

	account.VerificationToken = &token
	account.VerificationTokenExpiry = &expiry

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return err
	}

	return s.notifier.SendVerification(ctx, account.Email, account.Username, token)
}

// Login authenticates an account by email or username. Credential
// failures are indistinguishable to the caller. A subscription whose
// period lapsed is flipped to expired here before the login is denied.
func (s *Service) Login(ctx context.Context, emailOrUsername, password string) (*LoginResponse, error) {
	account, err := s.store.GetAccountByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !crypto.VerifyPassword(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !account.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	sub, err := s.store.GetSubscriptionByAccount(ctx, account.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if sub != nil {
		if sub.Status != models.SubscriptionExpired && sub.PeriodEnd.Before(time.Now()) {
			sub.Status = models.SubscriptionExpired
			if err := s.store.UpdateSubscription(ctx, sub); err != nil {
				return nil, err
			}
		}
		if sub.Status == models.SubscriptionExpired {
			return nil, ErrSubscriptionExpired
		}
	}

	token, err := s.jwt.GenerateToken(account)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	account.LastLoginAt = &now
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		log.Error().Err(err).Str("email", account.Email).
			Msg("Failed to record login time")
	}

	s.auditor.Info(ctx, models.AuditLogin, &account.ID, models.Variables{
		"email": account.Email,
	})

	return &LoginResponse{
		Token:        token,
		Account:      account,
		Subscription: sub.Summary(),
	}, nil
}

// VerifySession validates a session token against the live account
// behind it. Any failure is reported as the same generic error.
func (s *Service) VerifySession(ctx context.Context, tokenString string) (*models.Account, error) {
	claims, err := s.jwt.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	account, err := s.store.GetAccount(ctx, claims.UserID)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	return account, nil
}

// ForgotPassword issues a password reset token. The response never
// reveals whether the address is registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.store.GetAccountByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := crypto.GenerateRandomHex(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expiry := time.Now().Add(s.subCfg.PasswordResetTTL)

	account.ResetPasswordToken = &token
	account.ResetPasswordExpiry = &expiry

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return err
	}

	return s.notifier.SendPasswordReset(ctx, account.Email, account.Username, token)
}

// ResetPassword sets a new password from a reset token and consumes
// the token
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	account, err := s.store.GetAccountByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if account.ResetPasswordExpiry == nil || account.ResetPasswordExpiry.Before(time.Now()) {
		return ErrTokenExpired
	}

	passwordHash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	account.PasswordHash = passwordHash
	account.ResetPasswordToken = nil
	account.ResetPasswordExpiry = nil

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return err
	}

	s.auditor.Info(ctx, models.AuditPasswordReset, &account.ID, models.Variables{
		"email": account.Email,
	})

	return nil
}

// RegenerateAPIKey replaces the account's API secret. The old secret
// stops resolving immediately.
func (s *Service) RegenerateAPIKey(ctx context.Context, accountID uuid.UUID) (string, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	apiKey, err := s.newAPIKey()
	if err != nil {
		return "", err
	}

	account.APIKey = apiKey
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return "", err
	}

	s.auditor.Info(ctx, models.AuditRegenerateAPIKey, &account.ID, models.Variables{
		"email": account.Email,
	})

	return apiKey, nil
}

// newAPIKey generates a prefixed tenant API secret
func (s *Service) newAPIKey() (string, error) {
	suffix, err := crypto.GenerateRandomHex(24)
	if err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return s.authCfg.APIKeyPrefix + suffix, nil
}
