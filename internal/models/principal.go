package models

import "github.com/google/uuid"

// PrincipalKind identifies which trust domain a request resolved under
type PrincipalKind string

const (
	PrincipalGlobalAdmin   PrincipalKind = "global_admin"
	PrincipalTenantUser    PrincipalKind = "tenant_user"
	PrincipalInstanceToken PrincipalKind = "instance_token"
	PrincipalAnonymous     PrincipalKind = "anonymous"
)

// Principal is the resolved identity of a single request. It is built
// once by the authentication resolver and threaded through the call as
// an immutable value; it is never persisted.
type Principal struct {
	Kind          PrincipalKind
	AccountID     *uuid.UUID
	InstanceID    *uuid.UUID
	IsGlobalAdmin bool
}

// Anonymous returns the zero-privilege principal
func Anonymous() Principal {
	return Principal{Kind: PrincipalAnonymous}
}
