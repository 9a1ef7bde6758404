package grants

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/platform/db"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	ActiveUserGrants(ctx context.Context, q db.Querier, userID, tenantID string, scope *authz.ResourceScope) ([]Grant, error)
}

// Resolver loads direct permission grants for an actor. Store errors
// yield an empty set (fail-closed at the data layer).
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// DirectPermissions maps each active grant 1:1 to an effective
// permission tagged DIRECT.
func (r *Resolver) DirectPermissions(ctx context.Context, q db.Querier, userID, tenantID string, scope *authz.ResourceScope) []authz.EffectivePermission {
	result, err := r.store.ActiveUserGrants(ctx, q, userID, tenantID, scope)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("resolve direct grants",
				slog.String("user_id", userID),
				slog.String("tenant_id", tenantID),
				slog.Any("error", err))
		}
		return nil
	}
	perms := make([]authz.EffectivePermission, 0, len(result))
	for _, g := range result {
		perms = append(perms, authz.EffectivePermission{
			Permission:    g.Permission,
			Granted:       true,
			Source:        authz.SourceDirect,
			SourceDetails: fmt.Sprintf("grant %s", g.ID),
			Scope:         g.Scope(),
			Conditions:    g.Conditions,
			ExpiresAt:     g.ExpiresAt,
		})
	}
	return perms
}
