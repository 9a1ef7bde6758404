package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/praetor-io/praetor/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence. Every method takes
// a Querier so calls compose with tenant-scoped transactions.
type Repository struct{}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{}
}

// UserRoles returns the roles conferred by active, non-expired
// assignments of the user within the tenant, each with its aggregated
// permission strings.
func (r *Repository) UserRoles(ctx context.Context, q db.Querier, userID, tenantID string) ([]Role, error) {
	rows, err := q.Query(ctx, `
		SELECT ro.id, ro.tenant_id, ro.name,
		       COALESCE(array_agg(rp.permission) FILTER (WHERE rp.permission IS NOT NULL), '{}'),
		       ro.created_at, ro.updated_at
		FROM role_assignments ra
		JOIN roles ro ON ro.id = ra.role_id AND ro.tenant_id = ra.tenant_id
		LEFT JOIN role_permissions rp ON rp.role_id = ro.id
		WHERE ra.user_id = $1
		  AND ra.tenant_id = $2
		  AND ra.active
		  AND (ra.expires_at IS NULL OR ra.expires_at > NOW())
		GROUP BY ro.id, ro.tenant_id, ro.name, ro.created_at, ro.updated_at
		ORDER BY ro.name`,
		userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.TenantID, &role.Name, &role.Permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RoleByID fetches a role within a tenant. Returns ErrNotFound when absent.
func (r *Repository) RoleByID(ctx context.Context, q db.Querier, roleID, tenantID string) (Role, error) {
	var role Role
	err := q.QueryRow(ctx, `
		SELECT ro.id, ro.tenant_id, ro.name,
		       COALESCE(array_agg(rp.permission) FILTER (WHERE rp.permission IS NOT NULL), '{}'),
		       ro.created_at, ro.updated_at
		FROM roles ro
		LEFT JOIN role_permissions rp ON rp.role_id = ro.id
		WHERE ro.id = $1 AND ro.tenant_id = $2
		GROUP BY ro.id, ro.tenant_id, ro.name, ro.created_at, ro.updated_at`,
		roleID, tenantID).
		Scan(&role.ID, &role.TenantID, &role.Name, &role.Permissions, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// UserExists reports whether the user belongs to the tenant.
func (r *Repository) UserExists(ctx context.Context, q db.Querier, userID, tenantID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND tenant_id = $2 AND active)`,
		userID, tenantID).Scan(&exists)
	return exists, err
}

// AssignmentExists reports whether an active assignment already exists
// for the exact (user, role, tenant, scope) tuple.
func (r *Repository) AssignmentExists(ctx context.Context, q db.Querier, userID, roleID, tenantID, scope string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_assignments
			WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3 AND scope = $4 AND active
		)`,
		userID, roleID, tenantID, scope).Scan(&exists)
	return exists, err
}

// InsertAssignment persists a new active assignment. The partial unique
// index on active tuples makes concurrent duplicates fail with a
// unique_violation, which the caller treats as authoritative.
func (r *Repository) InsertAssignment(ctx context.Context, q db.Querier, a Assignment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO role_assignments (user_id, role_id, tenant_id, scope, assigned_by, assigned_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)`,
		a.UserID, a.RoleID, a.TenantID, a.Scope, a.AssignedBy, a.AssignedAt, a.ExpiresAt)
	return err
}

// DeactivateAssignment soft-deletes the active assignment. Returns
// ErrNotFound when no active row matched.
func (r *Repository) DeactivateAssignment(ctx context.Context, q db.Querier, userID, roleID, tenantID, scope string) error {
	tag, err := q.Exec(ctx, `
		UPDATE role_assignments
		SET active = FALSE, revoked_at = NOW()
		WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3 AND scope = $4 AND active`,
		userID, roleID, tenantID, scope)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
