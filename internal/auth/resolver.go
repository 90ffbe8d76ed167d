package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/msggate/control-plane/internal/config"
	"github.com/msggate/control-plane/internal/models"
	"github.com/msggate/control-plane/internal/storage"
)

// Request carries the credential and scope of a single API-key
// authentication attempt.
type Request struct {
	// APIKey is the raw value of the apikey header, empty when absent
	APIKey string

	// InstanceName is the instance the route addresses, empty on
	// global routes
	InstanceName string

	// GlobalScope marks operations reserved for the global admin:
	// creating instances and listing across tenants
	GlobalScope bool
}

// Resolver resolves API-key credentials to a Principal. Resolution
// walks a fixed chain of sources; each step either matches, yielding
// the final principal, or passes to the next. Store failures inside a
// step are logged and treated as no-match so a flaky lookup can never
// grant or escalate access.
type Resolver struct {
	cfg   *config.AuthConfig
	store storage.Store
}

// NewResolver creates a new credential resolver
func NewResolver(cfg *config.AuthConfig, store storage.Store) *Resolver {
	return &Resolver{
		cfg:   cfg,
		store: store,
	}
}

// Resolve resolves a request credential to a Principal.
//
// The chain, in order: master key, tenant API secret, instance token
// on the addressed instance, the addressed instance's owner secret,
// reverse token lookup, then denial. GlobalScope operations only ever
// resolve through the master key.
func (r *Resolver) Resolve(ctx context.Context, req Request) (models.Principal, error) {
	if r.cfg.MasterKey == "" {
		return models.Anonymous(), ErrMissingGlobalKey
	}

	if req.APIKey == "" {
		return models.Anonymous(), ErrMissingCredentials
	}

	if req.APIKey == r.cfg.MasterKey {
		return models.Principal{
			Kind:          models.PrincipalGlobalAdmin,
			IsGlobalAdmin: true,
		}, nil
	}

	if req.GlobalScope {
		// Only the master key may create instances or list across
		// tenants
		return models.Anonymous(), ErrUnauthorized
	}

	if principal, ok := r.resolveTenantSecret(ctx, req); ok {
		return principal, nil
	}

	if principal, ok := r.resolveInstance(ctx, req); ok {
		return principal, nil
	}

	if principal, ok := r.resolveReverseToken(ctx, req); ok {
		return principal, nil
	}

	return models.Anonymous(), ErrInvalidCredentials
}

// resolveTenantSecret matches the credential against account API
// secrets. The prefix check keeps arbitrary tokens from hitting the
// accounts table.
func (r *Resolver) resolveTenantSecret(ctx context.Context, req Request) (models.Principal, bool) {
	if !strings.HasPrefix(req.APIKey, r.cfg.APIKeyPrefix) {
		return models.Anonymous(), false
	}

	account, err := r.store.GetAccountByAPIKey(ctx, req.APIKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("Account lookup failed during authentication")
		}
		return models.Anonymous(), false
	}

	return models.Principal{
		Kind:          models.PrincipalTenantUser,
		AccountID:     &account.ID,
		IsGlobalAdmin: account.Role == models.RoleSuperAdmin,
	}, true
}

// resolveInstance matches the credential against the addressed
// instance: either its own token, or the API secret of the account
// that owns it.
func (r *Resolver) resolveInstance(ctx context.Context, req Request) (models.Principal, bool) {
	if req.InstanceName == "" {
		return models.Anonymous(), false
	}

	instance, err := r.store.GetInstanceByName(ctx, req.InstanceName)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("instance", req.InstanceName).
				Msg("Instance lookup failed during authentication")
		}
		return models.Anonymous(), false
	}

	if instance.Token != "" && instance.Token == req.APIKey {
		return models.Principal{
			Kind:       models.PrincipalInstanceToken,
			InstanceID: &instance.ID,
			AccountID:  instance.AccountID,
		}, true
	}

	if instance.AccountID != nil {
		owner, err := r.store.GetAccount(ctx, *instance.AccountID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				log.Warn().Err(err).Str("instance", req.InstanceName).
					Msg("Owner lookup failed during authentication")
			}
			return models.Anonymous(), false
		}
		if owner.APIKey != "" && owner.APIKey == req.APIKey {
			return models.Principal{
				Kind:          models.PrincipalTenantUser,
				AccountID:     &owner.ID,
				InstanceID:    &instance.ID,
				IsGlobalAdmin: owner.Role == models.RoleSuperAdmin,
			}, true
		}
	}

	return models.Anonymous(), false
}

// resolveReverseToken matches the credential against all instance
// tokens. Only available when instance data is persisted.
func (r *Resolver) resolveReverseToken(ctx context.Context, req Request) (models.Principal, bool) {
	if !r.cfg.PersistInstanceData {
		return models.Anonymous(), false
	}

	instance, err := r.store.GetInstanceByToken(ctx, req.APIKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("Token lookup failed during authentication")
		}
		return models.Anonymous(), false
	}

	// A token scoped to one instance must not open another
	if req.InstanceName != "" && instance.Name != req.InstanceName {
		return models.Anonymous(), false
	}

	return models.Principal{
		Kind:       models.PrincipalInstanceToken,
		InstanceID: &instance.ID,
		AccountID:  instance.AccountID,
	}, true
}
