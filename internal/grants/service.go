package grants

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/praetor-io/praetor/internal/audit"
	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/platform/db"
	"github.com/praetor-io/praetor/internal/shared"
	"github.com/praetor-io/praetor/internal/tenantscope"
)

// Decider is the permission decision engine the service gates on.
type Decider interface {
	Check(ctx context.Context, req authz.CheckRequest) (authz.CheckResult, error)
}

// MutationStore is the persistence surface for grant lifecycle changes.
type MutationStore interface {
	Deactivate(ctx context.Context, q db.Querier, grantID, tenantID string) error
}

// RevokeRequest asks for an active grant to be deactivated.
type RevokeRequest struct {
	TenantID      string `validate:"required"`
	GrantID       string `validate:"required"`
	CorrelationID string
}

// ServiceParams groups the service's collaborators.
type ServiceParams struct {
	Runner  tenantscope.Runner
	Store   MutationStore
	Decider Decider
	Audit   audit.Sink
	Cache   *authz.DecisionCache
	Logger  *slog.Logger
}

// Service mutates the grant lifecycle. Grants are immutable once issued;
// the only mutation is deactivation.
type Service struct {
	runner   tenantscope.Runner
	store    MutationStore
	decider  Decider
	sink     audit.Sink
	cache    *authz.DecisionCache
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	return &Service{
		runner:   p.Runner,
		store:    p.Store,
		decider:  p.Decider,
		sink:     p.Audit,
		cache:    p.Cache,
		logger:   p.Logger,
		validate: validator.New(),
	}
}

// Revoke deactivates an active grant after an authorization gate on the
// actor. The reserved system identity bypasses the gate.
func (s *Service) Revoke(ctx context.Context, req RevokeRequest, actor shared.SecurityContext) error {
	if req.CorrelationID == "" {
		req.CorrelationID = actor.CorrelationID
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	if err := s.validate.Struct(req); err != nil {
		return s.deny(ctx, req, actor, audit.SeverityMedium,
			"grant revocation rejected: invalid request",
			shared.NewValidationError(shared.CodeValidation, "tenantId and grantId are required"))
	}

	if !actor.System() {
		result, err := s.decider.Check(ctx, authz.CheckRequest{
			TenantID:      req.TenantID,
			UserID:        actor.UserID,
			Roles:         actor.Roles,
			Permission:    shared.PermGrantsRevoke,
			Resource:      &authz.ResourceScope{Type: shared.ResourceTypeGrant},
			CorrelationID: req.CorrelationID,
		})
		if err != nil || !result.Granted {
			return s.deny(ctx, req, actor, audit.SeverityHigh,
				"grant revocation denied: insufficient permissions",
				shared.NewAuthorizationError(shared.CodeInsufficientPerms, "actor lacks "+shared.PermGrantsRevoke))
		}
	}

	sec := shared.NewSecurityContext(req.TenantID, actor.UserID, actor.Roles, req.CorrelationID)
	err := s.runner.Run(ctx, sec, func(ctx context.Context, q db.Querier) error {
		if err := s.store.Deactivate(ctx, q, req.GrantID, req.TenantID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return shared.NewNotFoundError(shared.CodeGrantNotFound, "no active grant with that id")
			}
			return shared.NewSystemError("grants: deactivate", err)
		}
		return nil
	})
	if err != nil {
		severity := audit.SeverityMedium
		if errors.Is(err, shared.ErrSystem) {
			severity = audit.SeverityHigh
		}
		return s.deny(ctx, req, actor, severity, "grant revocation failed: "+shared.CodeOf(err), err)
	}

	if err := s.cache.Bump(ctx, req.TenantID); err != nil && s.logger != nil {
		s.logger.Warn("bump decision cache version",
			slog.String("tenant_id", req.TenantID),
			slog.Any("error", err))
	}
	s.record(ctx, audit.Event{
		Type:          audit.TypeGrantRevocation,
		Severity:      audit.SeverityLow,
		Description:   "grant revoked",
		UserID:        actor.UserID,
		TenantID:      req.TenantID,
		CorrelationID: req.CorrelationID,
		Metadata:      map[string]any{"grant_id": req.GrantID},
	})
	return nil
}

func (s *Service) deny(ctx context.Context, req RevokeRequest, actor shared.SecurityContext, severity audit.Severity, description string, err error) error {
	s.record(ctx, audit.Event{
		Type:          audit.TypeSecurityViolation,
		Severity:      severity,
		Description:   description,
		UserID:        actor.UserID,
		TenantID:      req.TenantID,
		CorrelationID: req.CorrelationID,
		Metadata:      map[string]any{"grant_id": req.GrantID, "code": shared.CodeOf(err)},
	})
	return err
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Record(context.WithoutCancel(ctx), event); err != nil && s.logger != nil {
		s.logger.Error("record audit event", slog.String("type", event.Type), slog.Any("error", err))
	}
}
