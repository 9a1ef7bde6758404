package grants

import (
	"errors"
	"time"

	"github.com/praetor-io/praetor/internal/authz"
)

// ErrNotFound indicates the grant does not exist or is already inactive.
var ErrNotFound = errors.New("grants: not found")

// TargetKind distinguishes who a grant was issued to.
type TargetKind string

// Grant targets.
const (
	TargetUser TargetKind = "user"
	TargetRole TargetKind = "role"
)

// Grant is a permission issued directly to a user or role, optionally
// scoped to a resource and guarded by conditions. Grants are immutable
// once issued; revocation deactivates them.
type Grant struct {
	ID           string
	TenantID     string
	TargetKind   TargetKind
	TargetID     string
	Permission   string
	ResourceType string
	ResourceID   string
	Conditions   []authz.Condition
	ExpiresAt    *time.Time
	Active       bool
	CreatedBy    string
	CreatedAt    time.Time
}

// OwnerTenant implements shared.TenantOwned.
func (g Grant) OwnerTenant() string { return g.TenantID }

// Scope renders the grant's resource binding, nil when unscoped.
func (g Grant) Scope() *authz.ResourceScope {
	if g.ResourceType == "" {
		return nil
	}
	return &authz.ResourceScope{Type: g.ResourceType, ID: g.ResourceID}
}
