package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/praetor-io/praetor/internal/platform/db"
	"github.com/praetor-io/praetor/internal/roles"
)

// RoleSource yields the actor's roles within a tenant.
type RoleSource interface {
	UserRoles(ctx context.Context, q db.Querier, userID, tenantID string) []roles.Role
}

// DirectSource yields effective permissions from direct grants.
type DirectSource interface {
	DirectPermissions(ctx context.Context, q db.Querier, userID, tenantID string, scope *ResourceScope) []EffectivePermission
}

// InheritanceResolver computes permissions inherited through a
// role/permission hierarchy. There is no default implementation; the
// hierarchy is an extension point and absent resolvers contribute
// nothing.
type InheritanceResolver interface {
	InheritedPermissions(ctx context.Context, q db.Querier, userID, tenantID string, scope *ResourceScope) []EffectivePermission
}

// Aggregator merges role-derived, direct and inherited permissions into
// one deduplicated, scope-filtered set.
type Aggregator struct {
	roleSource  RoleSource
	grantSource DirectSource
	inheritance InheritanceResolver
	logger      *slog.Logger
}

// NewAggregator constructs an Aggregator. inheritance may be nil.
func NewAggregator(roleSource RoleSource, grantSource DirectSource, inheritance InheritanceResolver, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		roleSource:  roleSource,
		grantSource: grantSource,
		inheritance: inheritance,
		logger:      logger,
	}
}

// EffectivePermissions computes the actor's current permission set.
// It never fails: internal faults yield an empty set so the decision
// layer stays fail-closed.
func (a *Aggregator) EffectivePermissions(ctx context.Context, q db.Querier, userID, tenantID string, scope *ResourceScope) (result []EffectivePermission) {
	defer func() {
		if r := recover(); r != nil {
			if a.logger != nil {
				a.logger.Error("aggregate effective permissions",
					slog.String("user_id", userID),
					slog.String("tenant_id", tenantID),
					slog.Any("panic", r))
			}
			result = nil
		}
	}()

	var collected []EffectivePermission

	for _, role := range a.roleSource.UserRoles(ctx, q, userID, tenantID) {
		for _, perm := range role.Permissions {
			collected = append(collected, EffectivePermission{
				Permission:    perm,
				Granted:       true,
				Source:        SourceRole,
				SourceDetails: fmt.Sprintf("role %s", role.Name),
			})
		}
	}

	collected = append(collected, a.grantSource.DirectPermissions(ctx, q, userID, tenantID, scope)...)

	if a.inheritance != nil {
		collected = append(collected, a.inheritance.InheritedPermissions(ctx, q, userID, tenantID, scope)...)
	}

	return dedupe(filterScope(collected, scope))
}

// filterScope keeps entries compatible with the requested resource
// type. Unscoped entries always pass.
func filterScope(perms []EffectivePermission, scope *ResourceScope) []EffectivePermission {
	if scope == nil {
		return perms
	}
	filtered := perms[:0]
	for _, p := range perms {
		if p.Scope == nil || p.Scope.Type == scope.Type {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

var sourceRank = map[Source]int{
	SourceInherited: 1,
	SourceRole:      2,
	SourceDirect:    3,
}

// dedupe reduces entries by (permission, resource type, resource id).
// On collision a DIRECT entry outranks ROLE, ROLE outranks INHERITED,
// and an entry carrying a specific resource id outranks one without.
func dedupe(perms []EffectivePermission) []EffectivePermission {
	index := make(map[string]int, len(perms))
	var reduced []EffectivePermission
	for _, p := range perms {
		key := dedupeKey(p)
		at, seen := index[key]
		if !seen {
			index[key] = len(reduced)
			reduced = append(reduced, p)
			continue
		}
		if outranks(p, reduced[at]) {
			reduced[at] = p
		}
	}
	return reduced
}

func dedupeKey(p EffectivePermission) string {
	var resourceType, resourceID string
	if p.Scope != nil {
		resourceType = p.Scope.Type
		resourceID = p.Scope.ID
	}
	return p.Permission + "|" + resourceType + "|" + resourceID
}

func outranks(a, b EffectivePermission) bool {
	if sourceRank[a.Source] != sourceRank[b.Source] {
		return sourceRank[a.Source] > sourceRank[b.Source]
	}
	return specificity(a) > specificity(b)
}

func specificity(p EffectivePermission) int {
	if p.Scope != nil && p.Scope.ID != "" {
		return 1
	}
	return 0
}
