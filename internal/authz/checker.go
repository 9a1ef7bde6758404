package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/praetor-io/praetor/internal/audit"
	"github.com/praetor-io/praetor/internal/observability"
	"github.com/praetor-io/praetor/internal/platform/db"
	"github.com/praetor-io/praetor/internal/shared"
	"github.com/praetor-io/praetor/internal/tenantscope"
)

// Decision reasons crossing the boundary.
const (
	ReasonGranted             = "Permission granted"
	ReasonNotFound            = "Permission not found"
	ReasonConditionsNotMet    = "Conditions not met"
	ReasonScopeMismatch       = "Resource scope mismatch"
	ReasonResourceUnsupported = "Resource-level permission checks are not supported"
	ReasonSystemError         = "Permission check failed"
)

// PermissionSource computes the actor's effective permission set.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, q db.Querier, userID, tenantID string, scope *ResourceScope) []EffectivePermission
}

// CheckerParams groups the checker's collaborators.
type CheckerParams struct {
	Runner   tenantscope.Runner
	Source   PermissionSource
	Registry *EvaluatorRegistry
	Audit    audit.Sink
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Cache    *DecisionCache
}

// Checker renders granted/denied decisions for permission check
// requests. Every internal fault at any step yields a denial, never a
// grant and never an exception on the read path.
type Checker struct {
	runner   tenantscope.Runner
	source   PermissionSource
	registry *EvaluatorRegistry
	sink     audit.Sink
	logger   *slog.Logger
	metrics  *observability.Metrics
	cache    *DecisionCache
	validate *validator.Validate
}

// NewChecker constructs a Checker. Metrics and Cache may be nil; a nil
// Registry keeps CUSTOM conditions fail-closed.
func NewChecker(p CheckerParams) *Checker {
	registry := p.Registry
	if registry == nil {
		registry = NewEvaluatorRegistry()
	}
	return &Checker{
		runner:   p.Runner,
		source:   p.Source,
		registry: registry,
		sink:     p.Audit,
		logger:   p.Logger,
		metrics:  p.Metrics,
		cache:    p.Cache,
		validate: validator.New(),
	}
}

// Check evaluates one permission check request. Malformed requests
// return a ValidationError; every other failure mode is converted into
// a granted=false result.
func (c *Checker) Check(ctx context.Context, req CheckRequest) (result CheckResult, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Error("permission check panicked", slog.Any("panic", r))
			}
			result = c.systemDenial(ctx, req)
			err = nil
		}
		c.metrics.ObserveDecision(result.Granted, result.Code, time.Since(started))
	}()

	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	if verr := c.validate.Struct(req); verr != nil {
		c.record(ctx, audit.Event{
			Type:          audit.TypeSecurityViolation,
			Severity:      audit.SeverityHigh,
			Description:   "malformed permission check request",
			UserID:        req.UserID,
			TenantID:      req.TenantID,
			CorrelationID: req.CorrelationID,
			Metadata:      map[string]any{"permission": req.Permission},
		})
		result = CheckResult{Granted: false, Reason: "invalid request", Code: shared.CodeValidation}
		return result, shared.NewValidationError(shared.CodeValidation, "userId, tenantId and permission are required")
	}

	if cached, ok := c.cache.Get(ctx, req); ok {
		result = cached
		c.auditDecision(ctx, req, result)
		return result, nil
	}

	result = c.decide(ctx, req)

	c.cache.Set(ctx, req, result)
	c.auditDecision(ctx, req, result)
	return result, nil
}

func (c *Checker) decide(ctx context.Context, req CheckRequest) CheckResult {
	compute := func() CheckResult {
		var effective []EffectivePermission
		sec := shared.NewSecurityContext(req.TenantID, req.UserID, req.Roles, req.CorrelationID)
		err := c.runner.Run(ctx, sec, func(ctx context.Context, q db.Querier) error {
			effective = c.source.EffectivePermissions(ctx, q, req.UserID, req.TenantID, req.Resource)
			return nil
		})
		if err != nil {
			if c.logger != nil {
				c.logger.Error("permission check scope failed",
					slog.String("correlation_id", req.CorrelationID),
					slog.Any("error", err))
			}
			return CheckResult{Granted: false, Reason: ReasonSystemError, Code: shared.CodeSystemError}
		}
		return c.evaluate(req, effective)
	}
	if c.cache.Enabled() {
		return c.cache.Collapse(ctx, req, compute)
	}
	return compute()
}

// evaluate runs the matching, condition and scope pipeline over the
// effective permission set.
func (c *Checker) evaluate(req CheckRequest, effective []EffectivePermission) CheckResult {
	evalCtx := req.Evaluation
	if evalCtx.Time.IsZero() {
		evalCtx.Time = time.Now().UTC()
	}

	var matched []EffectivePermission
	for _, p := range effective {
		if Match(p.Permission, req.Permission) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return CheckResult{Granted: false, Reason: ReasonNotFound, Code: shared.CodePermissionNotFound}
	}

	var (
		usable             []EffectivePermission
		sawScopeMismatch   bool
		sawResourceRefusal bool
	)
	for _, p := range matched {
		if len(p.Conditions) > 0 && !c.registry.EvaluateAll(p.Conditions, evalCtx) {
			continue
		}
		ok, denyCode := validateResource(req.Resource, p.Scope)
		if !ok {
			switch denyCode {
			case shared.CodeScopeMismatch:
				sawScopeMismatch = true
			case shared.CodeResourceCheckDenied:
				sawResourceRefusal = true
			}
			continue
		}
		usable = append(usable, p)
	}

	if len(usable) > 0 {
		return CheckResult{Granted: true, Reason: ReasonGranted, Matched: usable}
	}
	switch {
	case sawResourceRefusal:
		return CheckResult{Granted: false, Reason: ReasonResourceUnsupported, Code: shared.CodeResourceCheckDenied, Matched: matched}
	case sawScopeMismatch:
		return CheckResult{Granted: false, Reason: ReasonScopeMismatch, Code: shared.CodeScopeMismatch, Matched: matched}
	default:
		return CheckResult{Granted: false, Reason: ReasonConditionsNotMet, Code: shared.CodeConditionNotMet, Matched: matched}
	}
}

// validateResource checks the requested resource against a permission's
// scope. A permission scoped to a different resource instance requires
// an explicit resource-level check, which is an extension point that
// currently always denies.
func validateResource(requested, scope *ResourceScope) (bool, string) {
	if requested == nil || scope == nil {
		return true, ""
	}
	if scope.Type != requested.Type {
		return false, shared.CodeScopeMismatch
	}
	if scope.ID != "" && requested.ID != "" && scope.ID != requested.ID {
		return false, shared.CodeResourceCheckDenied
	}
	return true, ""
}

func (c *Checker) systemDenial(ctx context.Context, req CheckRequest) CheckResult {
	result := CheckResult{Granted: false, Reason: ReasonSystemError, Code: shared.CodeSystemError}
	c.auditDecision(ctx, req, result)
	return result
}

// auditDecision records the outcome. Sensitive permission patterns are
// always audited regardless of outcome; the emission completes before
// the decision is returned.
func (c *Checker) auditDecision(ctx context.Context, req CheckRequest, result CheckResult) {
	severity := audit.SeverityLow
	if !result.Granted {
		severity = audit.SeverityMedium
	}
	if shared.IsSensitivePermission(req.Permission) {
		severity = audit.SeverityHigh
	}
	var resource string
	if req.Resource != nil {
		resource = req.Resource.Type
		if req.Resource.ID != "" {
			resource += "/" + req.Resource.ID
		}
	}
	c.record(ctx, audit.Event{
		Type:          audit.TypePermissionCheck,
		Severity:      severity,
		Description:   result.Reason,
		UserID:        req.UserID,
		TenantID:      req.TenantID,
		Resource:      resource,
		CorrelationID: req.CorrelationID,
		Metadata: map[string]any{
			"permission": req.Permission,
			"granted":    result.Granted,
			"code":       result.Code,
			"matched":    len(result.Matched),
		},
	})
}

func (c *Checker) record(ctx context.Context, event audit.Event) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Record(context.WithoutCancel(ctx), event); err != nil {
		c.metrics.IncAuditFailure()
		if c.logger != nil {
			c.logger.Error("record audit event",
				slog.String("type", event.Type),
				slog.Any("error", err))
		}
	}
}
