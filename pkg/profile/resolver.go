package profile

import (
	"context"
	"time"

	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
	"github.com/frameio/frameio-gateway/pkg/upstream"
)

// Profile is the resolved organization membership of a product user:
// who they are, which org they belong to, and what their role there
// allows. It is what route guards consult for authorization decisions.
type Profile struct {
	UserID      string                 `json:"user_id"`
	DisplayName string                 `json:"display_name"`
	Email       string                 `json:"email,omitempty"`
	OrgID       string                 `json:"organization_id,omitempty"`
	Role        principal.Role         `json:"role"`
	Permissions []principal.Permission `json:"permissions"`
	FetchedAt   time.Time              `json:"fetched_at"`
}

// HasRole reports whether the profile's role is one of the given roles
func (p *Profile) HasRole(roles ...principal.Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// HasPermission reports whether the profile grants the permission
func (p *Profile) HasPermission(perm principal.Permission) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// Resolver turns an authenticated principal into an organization
// profile, backed by the user endpoint of the backend API and a
// two-tier cache.
type Resolver struct {
	users   *upstream.UsersService
	cache   *Cache
	roleMap *RoleMap
	logger  *observability.Logger
	now     func() time.Time
}

// NewResolver builds a resolver. cache may be nil, in which case every
// call hits the backend.
func NewResolver(users *upstream.UsersService, cache *Cache, roleMap *RoleMap, logger *observability.Logger) *Resolver {
	if roleMap == nil {
		roleMap = DefaultRoleMap()
	}
	return &Resolver{
		users:   users,
		cache:   cache,
		roleMap: roleMap,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolve returns the profile for the principal, serving from cache
// when a fresh entry exists. The backend call carries whatever bearer
// token rides on ctx.
func (r *Resolver) Resolve(ctx context.Context, pr *principal.Principal) (*Profile, error) {
	if r.cache != nil {
		if cached := r.cache.Get(ctx, pr.ID); cached != nil {
			return cached, nil
		}
	}
	return r.Refresh(ctx, pr)
}

// Refresh fetches the profile from the backend unconditionally. On
// failure an already-cached profile, even an expired one, is returned
// alongside the error so callers can keep rendering with slightly
// stale membership data instead of failing hard. Concurrent refreshes
// for the same principal each hit the backend; the fetch is cheap and
// idempotent, so there is no request coalescing.
func (r *Resolver) Refresh(ctx context.Context, pr *principal.Principal) (*Profile, error) {
	user, err := r.users.Current(ctx)
	if err != nil {
		if r.cache != nil {
			if stale := r.cache.Stale(pr.ID); stale != nil {
				r.logger.WithError(err).WithField("principal_id", pr.ID).
					Warn("profile refresh failed, serving stale profile")
				return stale, err
			}
		}
		return nil, err
	}

	profile := r.fromUser(user)
	if r.cache != nil {
		r.cache.Put(ctx, pr.ID, *profile)
	}
	return profile, nil
}

// Invalidate drops the cached profile, forcing the next Resolve to hit
// the backend. Called after role or membership mutations.
func (r *Resolver) Invalidate(ctx context.Context, principalID string) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, principalID)
	}
}

func (r *Resolver) fromUser(u *upstream.User) *Profile {
	role := principal.Role(u.Role)
	var perms []principal.Permission
	if len(u.Perms) > 0 {
		perms = make([]principal.Permission, 0, len(u.Perms))
		for _, p := range u.Perms {
			perms = append(perms, principal.Permission(p))
		}
	} else {
		// Backend omitted explicit permissions, derive them from the role.
		perms = r.roleMap.PermissionsFor(role)
	}

	return &Profile{
		UserID:      u.ID,
		DisplayName: u.DisplayName(),
		Email:       u.Email,
		OrgID:       u.OrgID,
		Role:        role,
		Permissions: perms,
		FetchedAt:   r.now(),
	}
}
