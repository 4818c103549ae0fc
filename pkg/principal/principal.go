// Package principal defines the unified authenticated-principal contract.
//
// The gateway has two credential issuers: the product identity provider
// (OIDC, used by dashboard users) and the operator credential (the hidden
// admin surface). Both produce the same Principal shape, so guards and
// handlers consume one contract regardless of where the identity came from.
package principal

import (
	"context"
	"time"

	"github.com/frameio/frameio-gateway/pkg/contextkeys"
)

// Issuer identifies which credential system produced a principal
type Issuer string

const (
	// IssuerProduct is the product identity provider (OIDC)
	IssuerProduct Issuer = "product"
	// IssuerOperator is the static operator credential behind /admin
	IssuerOperator Issuer = "operator"
)

// Role is an organization-level role
type Role string

const (
	RoleAdmin    Role = "Admin"    // Full access to organization
	RoleManager  Role = "Manager"  // Can manage members and billing
	RoleDesigner Role = "Designer" // Can generate and edit posters
)

// ValidRole reports whether r is a member of the closed role enumeration.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleDesigner:
		return true
	}
	return false
}

// Permission is a named capability granted by a role
type Permission string

const (
	PermManageUsers        Permission = "manage_users"
	PermManageOrganization Permission = "manage_organization"
	PermViewBilling        Permission = "view_billing"
	PermManageBilling      Permission = "manage_billing"
	PermGeneratePosters    Permission = "generate_posters"
	PermViewAnalytics      Permission = "view_analytics"
	PermManageSettings     Permission = "manage_settings"
	// PermPlatformAdmin marks the operator issuer; the platform admin is
	// just another permission on the shared contract, not a parallel
	// identity model.
	PermPlatformAdmin Permission = "platform_admin"
)

// Principal is the authenticated entity a guard evaluates.
type Principal struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	OrgID       string       `json:"org_id,omitempty"`
	Roles       []Role       `json:"roles"`
	Permissions []Permission `json:"permissions"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Issuer      Issuer       `json:"issuer"`
}

// HasRole checks whether the principal holds the given role
func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks whether the principal holds any of the given roles
func (p *Principal) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// HasPermission checks whether the principal holds the given permission
func (p *Principal) HasPermission(perm Permission) bool {
	for _, pp := range p.Permissions {
		if pp == perm {
			return true
		}
	}
	return false
}

// Expired reports whether the principal's credential has expired at now.
// A zero ExpiresAt means the issuer did not bound the credential.
func (p *Principal) Expired(now time.Time) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(p.ExpiresAt)
}

// FromContext extracts the principal placed by the identity middleware or
// the admin guard. Returns nil when the request is unauthenticated.
func FromContext(ctx context.Context) *Principal {
	v := ctx.Value(contextkeys.PrincipalKey)
	if v == nil {
		return nil
	}
	p, ok := v.(*Principal)
	if !ok {
		return nil
	}
	return p
}
