package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/praetor-io/praetor/internal/platform/db"
)

// Severity grades an audit event.
type Severity string

// Severity levels, ascending.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Event types emitted by the core.
const (
	TypePermissionCheck   = "PERMISSION_CHECK"
	TypeSecurityViolation = "SECURITY_VIOLATION"
	TypeRoleAssignment    = "ROLE_ASSIGNMENT"
	TypeRoleRevocation    = "ROLE_REVOCATION"
	TypeGrantRevocation   = "GRANT_REVOCATION"
	TypeScopeFailure      = "SCOPE_FAILURE"
	TypeGrantSweep        = "GRANT_SWEEP"
)

// Event is one append-only record keyed by correlation id.
type Event struct {
	Type          string
	Severity      Severity
	Description   string
	UserID        string
	TenantID      string
	Resource      string
	CorrelationID string
	Metadata      map[string]any
	At            time.Time
}

// Sink receives audit events. Implementations must be append-only.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Emitter writes events into security_audit_log.
type Emitter struct {
	q db.Querier
}

// NewEmitter returns an Emitter backed by the given querier (normally
// the pool, so records survive rolled-back business transactions).
func NewEmitter(q db.Querier) *Emitter {
	return &Emitter{q: q}
}

// Record persists the event. Type, severity and description are mandatory.
func (e *Emitter) Record(ctx context.Context, event Event) error {
	if e == nil || e.q == nil {
		return errors.New("audit: emitter not initialised")
	}
	if event.Type == "" || event.Severity == "" || event.Description == "" {
		return errors.New("audit: event requires type/severity/description")
	}
	metaJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}
	occurredAt := event.At
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	_, err = e.q.Exec(ctx, `
		INSERT INTO security_audit_log
			(event_type, severity, description, user_id, tenant_id, resource, correlation_id, metadata, occurred_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)`,
		event.Type, string(event.Severity), event.Description,
		event.UserID, event.TenantID, event.Resource, event.CorrelationID,
		metaJSON, occurredAt)
	return err
}
