package authz

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// CustomEvaluator decides a CUSTOM condition. Evaluators must be pure:
// no side effects, no store access.
type CustomEvaluator func(cond Condition, ec EvalContext) bool

// EvaluatorRegistry holds named CUSTOM condition evaluators. A CUSTOM
// condition whose key has no registered evaluator evaluates to false,
// so the default remains fail-closed.
type EvaluatorRegistry struct {
	mu         sync.RWMutex
	evaluators map[string]CustomEvaluator
}

// NewEvaluatorRegistry returns an empty registry.
func NewEvaluatorRegistry() *EvaluatorRegistry {
	return &EvaluatorRegistry{evaluators: make(map[string]CustomEvaluator)}
}

// Register installs an evaluator under the given name. Conditions of
// type CUSTOM select their evaluator by Condition.Key.
func (r *EvaluatorRegistry) Register(name string, fn CustomEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[name] = fn
}

func (r *EvaluatorRegistry) custom(cond Condition, ec EvalContext) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	fn := r.evaluators[cond.Key]
	r.mu.RUnlock()
	if fn == nil {
		return false
	}
	return fn(cond, ec)
}

// Evaluate decides one condition against the evaluation context.
// Unknown types and operators evaluate to false.
func (r *EvaluatorRegistry) Evaluate(cond Condition, ec EvalContext) bool {
	switch cond.Type {
	case ConditionTime:
		return evaluateTime(cond, ec)
	case ConditionLocation:
		return evaluateLocation(cond, ec)
	case ConditionAttribute:
		return evaluateAttribute(cond, ec)
	case ConditionCustom:
		return r.custom(cond, ec)
	default:
		return false
	}
}

// EvaluateAll applies the logical AND over every condition. All
// conditions are evaluated even after the first failure.
func (r *EvaluatorRegistry) EvaluateAll(conds []Condition, ec EvalContext) bool {
	ok := true
	for _, cond := range conds {
		if !r.Evaluate(cond, ec) {
			ok = false
		}
	}
	return ok
}

func evaluateTime(cond Condition, ec EvalContext) bool {
	at := ec.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}
	threshold, ok := asTime(cond.Value)
	if !ok {
		return false
	}
	switch cond.Operator {
	case OpGreaterThan:
		return at.After(threshold)
	case OpLessThan:
		return at.Before(threshold)
	default:
		return false
	}
}

func evaluateLocation(cond Condition, ec EvalContext) bool {
	want, ok := asString(cond.Value)
	if !ok {
		return false
	}
	switch cond.Operator {
	case OpEquals:
		return ec.Location == want
	case OpContains:
		return strings.Contains(ec.Location, want)
	default:
		return false
	}
}

func evaluateAttribute(cond Condition, ec EvalContext) bool {
	attr, present := ec.Attributes[cond.Key]
	switch cond.Operator {
	case OpEquals:
		return present && stringify(attr) == stringify(cond.Value)
	case OpNotEquals:
		return present && stringify(attr) != stringify(cond.Value)
	case OpIn:
		return present && contains(cond.Value, attr)
	case OpNotIn:
		return present && !contains(cond.Value, attr)
	default:
		return false
	}
}

func contains(list any, item any) bool {
	want := stringify(item)
	switch values := list.(type) {
	case []string:
		for _, v := range values {
			if v == want {
				return true
			}
		}
	case []any:
		for _, v := range values {
			if stringify(v) == want {
				return true
			}
		}
	}
	return false
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asTime(v any) (time.Time, bool) {
	switch value := v.(type) {
	case time.Time:
		return value, true
	case string:
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
