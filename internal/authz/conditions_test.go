package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluateTimeCondition(t *testing.T) {
	registry := NewEvaluatorRegistry()
	threshold := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	cond := Condition{Type: ConditionTime, Operator: OpGreaterThan, Value: threshold.Format(time.RFC3339)}
	require.True(t, registry.Evaluate(cond, EvalContext{Time: threshold.Add(time.Hour)}))
	require.False(t, registry.Evaluate(cond, EvalContext{Time: threshold.Add(-time.Hour)}))

	cond.Operator = OpLessThan
	require.True(t, registry.Evaluate(cond, EvalContext{Time: threshold.Add(-time.Hour)}))
	require.False(t, registry.Evaluate(cond, EvalContext{Time: threshold.Add(time.Hour)}))

	cond.Operator = OpEquals
	require.False(t, registry.Evaluate(cond, EvalContext{Time: threshold}), "unknown operator fails closed")
}

func TestEvaluateLocationCondition(t *testing.T) {
	registry := NewEvaluatorRegistry()

	equals := Condition{Type: ConditionLocation, Operator: OpEquals, Value: "berlin"}
	require.True(t, registry.Evaluate(equals, EvalContext{Location: "berlin"}))
	require.False(t, registry.Evaluate(equals, EvalContext{Location: "munich"}))

	contains := Condition{Type: ConditionLocation, Operator: OpContains, Value: "office"}
	require.True(t, registry.Evaluate(contains, EvalContext{Location: "berlin-office-3"}))
	require.False(t, registry.Evaluate(contains, EvalContext{Location: "home"}))
}

func TestEvaluateAttributeCondition(t *testing.T) {
	registry := NewEvaluatorRegistry()
	ec := EvalContext{Attributes: map[string]any{
		"department": "finance",
		"clearance":  3,
	}}

	require.True(t, registry.Evaluate(Condition{Type: ConditionAttribute, Key: "department", Operator: OpEquals, Value: "finance"}, ec))
	require.False(t, registry.Evaluate(Condition{Type: ConditionAttribute, Key: "department", Operator: OpEquals, Value: "sales"}, ec))
	require.True(t, registry.Evaluate(Condition{Type: ConditionAttribute, Key: "department", Operator: OpNotEquals, Value: "sales"}, ec))
	require.True(t, registry.Evaluate(Condition{Type: ConditionAttribute, Key: "department", Operator: OpIn, Value: []string{"finance", "legal"}}, ec))
	require.False(t, registry.Evaluate(Condition{Type: ConditionAttribute, Key: "department", Operator: OpNotIn, Value: []string{"finance"}}, ec))
	require.True(t, registry.Evaluate(Condition{Type: ConditionAttribute, Key: "clearance", Operator: OpIn, Value: []any{1, 2, 3}}, ec))

	// Absent attributes never satisfy a condition.
	require.False(t, registry.Evaluate(Condition{Type: ConditionAttribute, Key: "missing", Operator: OpEquals, Value: "x"}, ec))
	require.False(t, registry.Evaluate(Condition{Type: ConditionAttribute, Key: "missing", Operator: OpNotEquals, Value: "x"}, ec))
}

func TestCustomConditionFailsClosedWithoutEvaluator(t *testing.T) {
	registry := NewEvaluatorRegistry()
	cond := Condition{Type: ConditionCustom, Key: "ip_allowlist"}
	require.False(t, registry.Evaluate(cond, EvalContext{}))

	registry.Register("ip_allowlist", func(cond Condition, ec EvalContext) bool {
		return ec.Attributes["ip"] == "10.0.0.1"
	})
	require.True(t, registry.Evaluate(cond, EvalContext{Attributes: map[string]any{"ip": "10.0.0.1"}}))
	require.False(t, registry.Evaluate(cond, EvalContext{Attributes: map[string]any{"ip": "10.0.0.2"}}))
}

func TestEvaluateAllIsLogicalAnd(t *testing.T) {
	registry := NewEvaluatorRegistry()
	pass := Condition{Type: ConditionLocation, Operator: OpEquals, Value: "berlin"}
	fail := Condition{Type: ConditionLocation, Operator: OpEquals, Value: "munich"}
	ec := EvalContext{Location: "berlin"}

	require.True(t, registry.EvaluateAll([]Condition{pass, pass}, ec))
	require.False(t, registry.EvaluateAll([]Condition{pass, fail}, ec))
	require.False(t, registry.EvaluateAll([]Condition{fail, pass}, ec))
	require.True(t, registry.EvaluateAll(nil, ec))
}

func TestUnknownConditionTypeFailsClosed(t *testing.T) {
	registry := NewEvaluatorRegistry()
	require.False(t, registry.Evaluate(Condition{Type: "GEO_FENCE", Operator: OpEquals, Value: "x"}, EvalContext{}))
}
