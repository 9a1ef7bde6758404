// Package assign mutates the role-user relationship under
// authorization, existence and idempotency gates. Every gate emits a
// distinct audit event correlated by the request's correlation id.
package assign

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/praetor-io/praetor/internal/audit"
	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/platform/db"
	"github.com/praetor-io/praetor/internal/roles"
	"github.com/praetor-io/praetor/internal/shared"
	"github.com/praetor-io/praetor/internal/tenantscope"
)

// pgUniqueViolation is the SQLSTATE raised by the partial unique index
// on active assignments. It is the authoritative duplicate signal; the
// pre-check below is only a fast path.
const pgUniqueViolation = "23505"

// Decider is the permission decision engine the manager gates on.
type Decider interface {
	Check(ctx context.Context, req authz.CheckRequest) (authz.CheckResult, error)
}

// Store is the persistence surface the manager needs.
type Store interface {
	RoleByID(ctx context.Context, q db.Querier, roleID, tenantID string) (roles.Role, error)
	UserExists(ctx context.Context, q db.Querier, userID, tenantID string) (bool, error)
	AssignmentExists(ctx context.Context, q db.Querier, userID, roleID, tenantID, scope string) (bool, error)
	InsertAssignment(ctx context.Context, q db.Querier, a roles.Assignment) error
	DeactivateAssignment(ctx context.Context, q db.Querier, userID, roleID, tenantID, scope string) error
}

// AssignRequest asks for a role to be assigned to a user.
type AssignRequest struct {
	TenantID      string `validate:"required"`
	UserID        string `validate:"required"`
	RoleID        string `validate:"required"`
	Scope         string
	CorrelationID string
}

// RevokeRequest asks for an active assignment to be revoked.
type RevokeRequest struct {
	TenantID      string `validate:"required"`
	UserID        string `validate:"required"`
	RoleID        string `validate:"required"`
	Scope         string
	CorrelationID string
}

// ManagerParams groups the manager's collaborators.
type ManagerParams struct {
	Runner  tenantscope.Runner
	Store   Store
	Decider Decider
	Audit   audit.Sink
	Cache   *authz.DecisionCache
	Logger  *slog.Logger
}

// Manager performs role assignment and revocation.
type Manager struct {
	runner   tenantscope.Runner
	store    Store
	decider  Decider
	sink     audit.Sink
	cache    *authz.DecisionCache
	logger   *slog.Logger
	validate *validator.Validate
}

// NewManager constructs a Manager.
func NewManager(p ManagerParams) *Manager {
	return &Manager{
		runner:   p.Runner,
		store:    p.Store,
		decider:  p.Decider,
		sink:     p.Audit,
		cache:    p.Cache,
		logger:   p.Logger,
		validate: validator.New(),
	}
}

// Assign executes the gated assignment pipeline. Each gate aborts with
// a typed error carrying a stable code; system errors during the
// mutation propagate to the caller, never partially applied.
func (m *Manager) Assign(ctx context.Context, req AssignRequest, actor shared.SecurityContext) error {
	if req.CorrelationID == "" {
		req.CorrelationID = actor.CorrelationID
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	m.record(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.Event{
		Type:        audit.TypeRoleAssignment,
		Severity:    audit.SeverityLow,
		Description: "role assignment attempted",
		Metadata:    map[string]any{"target_user": req.UserID, "role_id": req.RoleID},
	})

	if err := m.validate.Struct(req); err != nil {
		return m.deny(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.SeverityMedium,
			"role assignment rejected: invalid request",
			shared.NewValidationError(shared.CodeValidation, "tenantId, userId and roleId are required"))
	}

	if err := m.authorize(ctx, actor, req.TenantID, shared.PermRolesAssign, req.CorrelationID); err != nil {
		return m.deny(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.SeverityHigh,
			"role assignment denied: insufficient permissions", err)
	}

	sec := shared.NewSecurityContext(req.TenantID, actor.UserID, actor.Roles, req.CorrelationID)
	err := m.runner.Run(ctx, sec, func(ctx context.Context, q db.Querier) error {
		role, err := m.store.RoleByID(ctx, q, req.RoleID, req.TenantID)
		if err != nil {
			if errors.Is(err, roles.ErrNotFound) {
				return shared.NewNotFoundError(shared.CodeRoleNotFound, "role does not exist in tenant")
			}
			return shared.NewSystemError("assign: load role", err)
		}
		if err := shared.ValidateTenant(sec, role); err != nil {
			return err
		}

		exists, err := m.store.UserExists(ctx, q, req.UserID, req.TenantID)
		if err != nil {
			return shared.NewSystemError("assign: check user", err)
		}
		if !exists {
			return shared.NewNotFoundError(shared.CodeUserNotFound, "user does not exist in tenant")
		}

		// Fast path; the unique index remains authoritative under
		// concurrent assignment of the same tuple.
		duplicate, err := m.store.AssignmentExists(ctx, q, req.UserID, req.RoleID, req.TenantID, req.Scope)
		if err != nil {
			return shared.NewSystemError("assign: check duplicate", err)
		}
		if duplicate {
			return shared.NewConflictError(shared.CodeRoleAlreadyAssigned, "role already assigned")
		}

		err = m.store.InsertAssignment(ctx, q, roles.Assignment{
			UserID:     req.UserID,
			RoleID:     req.RoleID,
			TenantID:   req.TenantID,
			Scope:      req.Scope,
			AssignedBy: actor.UserID,
			AssignedAt: time.Now().UTC(),
			Active:     true,
		})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return shared.NewConflictError(shared.CodeRoleAlreadyAssigned, "role already assigned")
			}
			return shared.NewSystemError("assign: insert", err)
		}
		return nil
	})
	if err != nil {
		severity := audit.SeverityMedium
		if errors.Is(err, shared.ErrSystem) {
			severity = audit.SeverityHigh
		}
		return m.deny(ctx, req.TenantID, actor.UserID, req.CorrelationID, severity,
			"role assignment failed: "+shared.CodeOf(err), err)
	}

	m.invalidate(ctx, req.TenantID)
	m.record(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.Event{
		Type:        audit.TypeRoleAssignment,
		Severity:    audit.SeverityLow,
		Description: "role assigned",
		Metadata:    map[string]any{"target_user": req.UserID, "role_id": req.RoleID, "scope": req.Scope},
	})
	return nil
}

// Revoke mirrors Assign with a revoke authorization gate and a
// straightforward deactivation.
func (m *Manager) Revoke(ctx context.Context, req RevokeRequest, actor shared.SecurityContext) error {
	if req.CorrelationID == "" {
		req.CorrelationID = actor.CorrelationID
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	m.record(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.Event{
		Type:        audit.TypeRoleRevocation,
		Severity:    audit.SeverityLow,
		Description: "role revocation attempted",
		Metadata:    map[string]any{"target_user": req.UserID, "role_id": req.RoleID},
	})

	if err := m.validate.Struct(req); err != nil {
		return m.deny(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.SeverityMedium,
			"role revocation rejected: invalid request",
			shared.NewValidationError(shared.CodeValidation, "tenantId, userId and roleId are required"))
	}

	if err := m.authorize(ctx, actor, req.TenantID, shared.PermRolesRevoke, req.CorrelationID); err != nil {
		return m.deny(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.SeverityHigh,
			"role revocation denied: insufficient permissions", err)
	}

	sec := shared.NewSecurityContext(req.TenantID, actor.UserID, actor.Roles, req.CorrelationID)
	err := m.runner.Run(ctx, sec, func(ctx context.Context, q db.Querier) error {
		if err := m.store.DeactivateAssignment(ctx, q, req.UserID, req.RoleID, req.TenantID, req.Scope); err != nil {
			if errors.Is(err, roles.ErrNotFound) {
				return shared.NewNotFoundError(shared.CodeAssignmentNotFound, "no active assignment for tuple")
			}
			return shared.NewSystemError("revoke: deactivate", err)
		}
		return nil
	})
	if err != nil {
		return m.deny(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.SeverityMedium,
			"role revocation failed: "+shared.CodeOf(err), err)
	}

	m.invalidate(ctx, req.TenantID)
	m.record(ctx, req.TenantID, actor.UserID, req.CorrelationID, audit.Event{
		Type:        audit.TypeRoleRevocation,
		Severity:    audit.SeverityLow,
		Description: "role revoked",
		Metadata:    map[string]any{"target_user": req.UserID, "role_id": req.RoleID, "scope": req.Scope},
	})
	return nil
}

// authorize requires the actor to hold perm on resource type role. The
// reserved system identity bypasses the gate so bootstrap tooling can
// seed the first administrator.
func (m *Manager) authorize(ctx context.Context, actor shared.SecurityContext, tenantID, perm, correlationID string) error {
	if actor.System() {
		return nil
	}
	result, err := m.decider.Check(ctx, authz.CheckRequest{
		TenantID:      tenantID,
		UserID:        actor.UserID,
		Roles:         actor.Roles,
		Permission:    perm,
		Resource:      &authz.ResourceScope{Type: shared.ResourceTypeRole},
		CorrelationID: correlationID,
	})
	if err != nil {
		return shared.NewAuthorizationError(shared.CodeInsufficientPerms, "authorization check failed")
	}
	if !result.Granted {
		return shared.NewAuthorizationError(shared.CodeInsufficientPerms, "actor lacks "+perm)
	}
	return nil
}

func (m *Manager) invalidate(ctx context.Context, tenantID string) {
	if err := m.cache.Bump(ctx, tenantID); err != nil && m.logger != nil {
		m.logger.Warn("bump decision cache version",
			slog.String("tenant_id", tenantID),
			slog.Any("error", err))
	}
}

func (m *Manager) deny(ctx context.Context, tenantID, actorID, correlationID string, severity audit.Severity, description string, err error) error {
	m.record(ctx, tenantID, actorID, correlationID, audit.Event{
		Type:        audit.TypeSecurityViolation,
		Severity:    severity,
		Description: description,
		Metadata:    map[string]any{"code": shared.CodeOf(err)},
	})
	return err
}

func (m *Manager) record(ctx context.Context, tenantID, actorID, correlationID string, event audit.Event) {
	if m.sink == nil {
		return
	}
	event.TenantID = tenantID
	event.UserID = actorID
	event.CorrelationID = correlationID
	if err := m.sink.Record(context.WithoutCancel(ctx), event); err != nil && m.logger != nil {
		m.logger.Error("record audit event", slog.String("type", event.Type), slog.Any("error", err))
	}
}
