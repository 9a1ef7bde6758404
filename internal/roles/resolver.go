package roles

import (
	"context"
	"log/slog"
	"sort"

	"github.com/praetor-io/praetor/internal/platform/db"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	UserRoles(ctx context.Context, q db.Querier, userID, tenantID string) ([]Role, error)
}

// Resolver loads the roles assigned to an actor within a tenant.
//
// Role absence must never throw: downstream decisioning treats "no
// roles" as a legitimate empty-permission state, so store errors yield
// an empty set and a log line instead of a fault.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// UserRoles returns the actor's active, non-expired roles in the tenant.
func (r *Resolver) UserRoles(ctx context.Context, q db.Querier, userID, tenantID string) []Role {
	result, err := r.store.UserRoles(ctx, q, userID, tenantID)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("resolve user roles",
				slog.String("user_id", userID),
				slog.String("tenant_id", tenantID),
				slog.Any("error", err))
		}
		return nil
	}
	return result
}

// UserPermissions flattens all roles' permission strings into a
// deduplicated, sorted set.
func (r *Resolver) UserPermissions(ctx context.Context, q db.Querier, userID, tenantID string) []string {
	unique := make(map[string]struct{})
	for _, role := range r.UserRoles(ctx, q, userID, tenantID) {
		for _, perm := range role.Permissions {
			unique[perm] = struct{}{}
		}
	}
	perms := make([]string, 0, len(unique))
	for perm := range unique {
		perms = append(perms, perm)
	}
	sort.Strings(perms)
	return perms
}
