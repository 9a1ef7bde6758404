package grants

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for permission grants.
type Repository struct{}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{}
}

// ActiveUserGrants loads active, unexpired grants issued directly to the
// user. When scope is non-nil only grants compatible with the requested
// resource type are returned; unscoped grants always pass.
func (r *Repository) ActiveUserGrants(ctx context.Context, q db.Querier, userID, tenantID string, scope *authz.ResourceScope) ([]Grant, error) {
	query := `
		SELECT id, tenant_id, target_kind, target_id, permission,
		       COALESCE(resource_type, ''), COALESCE(resource_id, ''),
		       conditions, expires_at, active, created_by, created_at
		FROM permission_grants
		WHERE target_kind = 'user'
		  AND target_id = $1
		  AND tenant_id = $2
		  AND active
		  AND (expires_at IS NULL OR expires_at > NOW())`
	args := []any{userID, tenantID}
	if scope != nil {
		query += ` AND (resource_type IS NULL OR resource_type = $3)`
		args = append(args, scope.Type)
	}
	query += ` ORDER BY created_at`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Grant
	for rows.Next() {
		var (
			g              Grant
			conditionsJSON []byte
		)
		if err := rows.Scan(&g.ID, &g.TenantID, &g.TargetKind, &g.TargetID, &g.Permission,
			&g.ResourceType, &g.ResourceID, &conditionsJSON, &g.ExpiresAt, &g.Active,
			&g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		if len(conditionsJSON) > 0 {
			if err := json.Unmarshal(conditionsJSON, &g.Conditions); err != nil {
				return nil, fmt.Errorf("grants: decode conditions for %s: %w", g.ID, err)
			}
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Deactivate soft-deletes a grant. Grants are immutable otherwise.
// Returns ErrNotFound when no active grant matched.
func (r *Repository) Deactivate(ctx context.Context, q db.Querier, grantID, tenantID string) error {
	tag, err := q.Exec(ctx, `
		UPDATE permission_grants
		SET active = FALSE, revoked_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND active`,
		grantID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SweepExpired deactivates grants past their expiry and returns the
// tenants touched, so callers can invalidate per-tenant caches.
func (r *Repository) SweepExpired(ctx context.Context, q db.Querier) ([]string, error) {
	rows, err := q.Query(ctx, `
		UPDATE permission_grants
		SET active = FALSE, revoked_at = NOW()
		WHERE active AND expires_at IS NOT NULL AND expires_at <= NOW()
		RETURNING tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var tenants []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, err
		}
		if _, ok := seen[tenantID]; !ok {
			seen[tenantID] = struct{}{}
			tenants = append(tenants, tenantID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tenants, nil
}
