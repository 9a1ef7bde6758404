// Package tenantscope opens transactional units of work bound to one
// tenant. Session claims are injected with bound parameters as
// transaction-local settings, so the store's row-level security policies
// filter every statement in the scope and the claims can never outlive
// an aborted transaction.
package tenantscope

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praetor-io/praetor/internal/audit"
	"github.com/praetor-io/praetor/internal/platform/db"
	"github.com/praetor-io/praetor/internal/shared"
)

// DefaultTimeout is the budget applied when the caller supplies none.
const DefaultTimeout = 30 * time.Second

// Runner executes a function inside a tenant-scoped transaction.
type Runner interface {
	Run(ctx context.Context, sec shared.SecurityContext, fn func(context.Context, db.Querier) error) error
}

// Scope runs units of work inside tenant-bound transactions.
type Scope struct {
	pool    *pgxpool.Pool
	sink    audit.Sink
	logger  *slog.Logger
	timeout time.Duration
}

// New constructs a Scope. A non-positive timeout falls back to DefaultTimeout.
func New(pool *pgxpool.Pool, sink audit.Sink, logger *slog.Logger, timeout time.Duration) *Scope {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scope{pool: pool, sink: sink, logger: logger, timeout: timeout}
}

// Run opens a transaction, injects the security context as session
// claims, executes fn with the transaction-bound handle and commits.
// The scope is torn down on every exit path; failures are audited at
// HIGH severity and re-propagated, never swallowed.
func (s *Scope) Run(ctx context.Context, sec shared.SecurityContext, fn func(context.Context, db.Querier) error) error {
	if sec.TenantID == "" && !sec.System() {
		return shared.NewAuthorizationError(shared.CodeMissingTenant, "tenant id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return s.fail(ctx, sec, shared.NewSystemError("tenantscope: begin", err))
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := injectClaims(ctx, tx, sec); err != nil {
		return s.fail(ctx, sec, shared.NewSystemError("tenantscope: inject claims", err))
	}

	if err := fn(ctx, tx); err != nil {
		return s.fail(ctx, sec, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return s.fail(ctx, sec, shared.NewSystemError("tenantscope: commit", err))
	}
	return nil
}

func (s *Scope) fail(ctx context.Context, sec shared.SecurityContext, err error) error {
	if s.logger != nil {
		s.logger.Error("tenant scope failed",
			slog.String("tenant_id", sec.TenantID),
			slog.String("correlation_id", sec.CorrelationID),
			slog.Any("error", err))
	}
	if s.sink != nil {
		auditErr := s.sink.Record(context.WithoutCancel(ctx), audit.Event{
			Type:          audit.TypeScopeFailure,
			Severity:      audit.SeverityHigh,
			Description:   "tenant scope aborted",
			UserID:        sec.UserID,
			TenantID:      sec.TenantID,
			CorrelationID: sec.CorrelationID,
			Metadata:      map[string]any{"error": err.Error()},
		})
		if auditErr != nil && s.logger != nil {
			s.logger.Error("audit scope failure", slog.Any("error", auditErr))
		}
	}
	return err
}

type claim struct {
	key   string
	value string
}

// buildClaims renders the security context as session settings. Roles
// are carried as a JSON array so RLS policies can parse them.
func buildClaims(sec shared.SecurityContext) ([]claim, error) {
	rolesJSON, err := json.Marshal(sec.Roles)
	if err != nil {
		return nil, fmt.Errorf("tenantscope: marshal roles: %w", err)
	}
	claims := []claim{
		{key: "app.tenant_id", value: sec.TenantID},
		{key: "app.user_id", value: sec.UserID},
		{key: "app.roles", value: string(rolesJSON)},
		{key: "app.correlation_id", value: sec.CorrelationID},
		{key: "app.issued_at", value: sec.IssuedAt.UTC().Format(time.RFC3339Nano)},
	}
	for k, v := range sec.Claims {
		claims = append(claims, claim{key: "app.claim." + k, value: v})
	}
	return claims, nil
}

// injectClaims sets each claim as a transaction-local setting via bound
// parameters. set_config with is_local=true is reset automatically at
// commit or rollback.
func injectClaims(ctx context.Context, q db.Querier, sec shared.SecurityContext) error {
	claims, err := buildClaims(sec)
	if err != nil {
		return err
	}
	for _, c := range claims {
		if _, err := q.Exec(ctx, `SELECT set_config($1, $2, true)`, c.key, c.value); err != nil {
			return fmt.Errorf("tenantscope: set %s: %w", c.key, err)
		}
	}
	return nil
}
