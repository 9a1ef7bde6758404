package roles

import (
	"errors"
	"time"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("roles: not found")

// Role groups permission strings within a tenant. Roles are mutated
// only through administrative flows outside this core.
type Role struct {
	ID          string
	TenantID    string
	Name        string
	Permissions []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnerTenant implements shared.TenantOwned.
func (r Role) OwnerTenant() string { return r.TenantID }

// Assignment links a user to a role within a tenant. At most one active
// assignment exists per (user, role, tenant, scope) tuple.
type Assignment struct {
	UserID     string
	RoleID     string
	TenantID   string
	Scope      string
	AssignedBy string
	AssignedAt time.Time
	ExpiresAt  *time.Time
	Active     bool
}

// OwnerTenant implements shared.TenantOwned.
func (a Assignment) OwnerTenant() string { return a.TenantID }
