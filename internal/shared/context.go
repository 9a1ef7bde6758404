package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SystemUserID is the reserved bypass identity used by bootstrap and
// maintenance tooling. It is the only actor allowed to operate without
// a tenant.
const SystemUserID = "system"

// SecurityContext is the immutable per-call identity injected into a
// tenant scope. It lives for exactly one unit of work and is never
// persisted or shared across calls.
type SecurityContext struct {
	TenantID      string
	UserID        string
	Roles         []string
	CorrelationID string
	IssuedAt      time.Time
	Claims        map[string]string
}

// NewSecurityContext builds a context for one unit of work, minting a
// correlation id when the caller did not supply one.
func NewSecurityContext(tenantID, userID string, roles []string, correlationID string) SecurityContext {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return SecurityContext{
		TenantID:      tenantID,
		UserID:        userID,
		Roles:         append([]string(nil), roles...),
		CorrelationID: correlationID,
		IssuedAt:      time.Now().UTC(),
	}
}

// System reports whether the context carries the reserved bypass identity.
func (s SecurityContext) System() bool { return s.UserID == SystemUserID }

type securityContextKey struct{}

// WithSecurityContext mirrors the security context into ctx. Core
// components receive the context as an explicit parameter; this mirror
// exists for transport middleware only.
func WithSecurityContext(ctx context.Context, sec SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sec)
}

// SecurityContextFromContext extracts the mirrored security context.
func SecurityContextFromContext(ctx context.Context) (SecurityContext, bool) {
	sec, ok := ctx.Value(securityContextKey{}).(SecurityContext)
	return sec, ok
}
