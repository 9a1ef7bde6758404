// Package authz implements the permission decision engine: effective
// permission aggregation, wildcard matching, condition evaluation and
// fail-closed decisioning.
package authz

import "time"

// Source identifies where an effective permission came from.
type Source string

// Permission sources, in descending dedup precedence.
const (
	SourceDirect    Source = "DIRECT"
	SourceRole      Source = "ROLE"
	SourceInherited Source = "INHERITED"
)

// ConditionType classifies a condition predicate.
type ConditionType string

// Condition types.
const (
	ConditionTime      ConditionType = "TIME_BASED"
	ConditionLocation  ConditionType = "LOCATION_BASED"
	ConditionAttribute ConditionType = "ATTRIBUTE_BASED"
	ConditionCustom    ConditionType = "CUSTOM"
)

// Condition operators.
const (
	OpEquals      = "EQUALS"
	OpNotEquals   = "NOT_EQUALS"
	OpContains    = "CONTAINS"
	OpIn          = "IN"
	OpNotIn       = "NOT_IN"
	OpGreaterThan = "GREATER_THAN"
	OpLessThan    = "LESS_THAN"
)

// Condition is a pure value predicate guarding a permission. It is
// evaluated against a caller-supplied evaluation context and never
// mutated.
type Condition struct {
	Type     ConditionType `json:"type"`
	Key      string        `json:"key,omitempty"`
	Operator string        `json:"operator"`
	Value    any           `json:"value"`
}

// ResourceScope binds a permission to a resource type and optionally a
// specific instance.
type ResourceScope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// EffectivePermission is a derived, never-persisted view of one
// permission currently available to an actor. It is recomputed on every
// decision request.
type EffectivePermission struct {
	Permission    string
	Granted       bool
	Source        Source
	SourceDetails string
	Scope         *ResourceScope
	Conditions    []Condition
	ExpiresAt     *time.Time
}

// EvalContext carries the caller-supplied facts conditions are
// evaluated against.
type EvalContext struct {
	Time       time.Time
	Location   string
	Attributes map[string]any
}

// CheckRequest asks whether an actor may exercise a permission,
// optionally against a concrete resource.
type CheckRequest struct {
	TenantID      string `validate:"required"`
	UserID        string `validate:"required"`
	Permission    string `validate:"required"`
	Roles         []string
	Resource      *ResourceScope
	Evaluation    EvalContext
	CorrelationID string
}

// CheckResult is the structured decision returned to the caller.
type CheckResult struct {
	Granted bool
	Reason  string
	Code    string
	Matched []EffectivePermission
}
