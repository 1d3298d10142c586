package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/store"
	"github.com/roach88/uipulse/internal/value"
)

// ErrUnresolvableValue marks a store read of an absent path with no
// default.
var ErrUnresolvableValue = errors.New("unresolvable value")

// env is the per-invocation resolution context: the store arena plus the
// transient event payload. Resolution has no side effects.
type env struct {
	ex        *Executor
	event     value.Value
	sessionID string
}

// withEvent derives an env carrying a different event payload, used for
// response envelopes of request follow-ups.
func (v *env) withEvent(event value.Value) *env {
	return &env{ex: v.ex, event: event, sessionID: v.sessionID}
}

func (v *env) store(ref ir.StoreRef) (*store.Store, error) {
	scope, err := scopeFor(ref, v.sessionID)
	if err != nil {
		return nil, err
	}
	return v.ex.stores.Get(scope)
}

// resolve evaluates a value descriptor. Arithmetic stays total: operands
// that cannot coerce, and division or modulo by zero, yield Null rather
// than an error. The only failure modes are absent store reads without a
// default and store access errors.
func (v *env) resolve(desc ir.ValueDesc) (value.Value, error) {
	switch d := desc.(type) {
	case ir.Literal:
		if d.Value == nil {
			return value.Null{}, nil
		}
		return d.Value, nil

	case ir.StoreValue:
		s, err := v.store(d.Ref)
		if err != nil {
			return nil, err
		}
		val, ok, err := s.Get(d.KeyPath)
		if err != nil {
			return nil, err
		}
		if !ok {
			if d.Default != nil {
				return d.Default, nil
			}
			return nil, fmt.Errorf("%w: %s at %q", ErrUnresolvableValue, d.Ref.Store, d.KeyPath)
		}
		return val, nil

	case ir.EventData:
		return v.resolveEvent(d.Path), nil

	case ir.Computed:
		return v.resolveComputed(d)

	default:
		return nil, fmt.Errorf("unknown value descriptor %T", desc)
	}
}

// resolveEvent reads the event payload; a missing key is logical null.
func (v *env) resolveEvent(path string) value.Value {
	if v.event == nil {
		return value.Null{}
	}
	if path == "" {
		return v.event
	}
	p, err := keypath.Parse(path)
	if err != nil {
		return value.Null{}
	}
	val, ok := keypath.Get(v.event, p)
	if !ok {
		return value.Null{}
	}
	return val
}

// resolveLenient is resolve for condition operands: an unresolvable value
// becomes Null so condition evaluation stays total.
func (v *env) resolveLenient(desc ir.ValueDesc) value.Value {
	val, err := v.resolve(desc)
	if err != nil {
		return value.Null{}
	}
	return val
}

func (v *env) resolveComputed(d ir.Computed) (value.Value, error) {
	operands := make([]value.Value, len(d.Operands))
	for i, op := range d.Operands {
		resolved, err := v.resolve(op)
		if err != nil {
			return nil, err
		}
		operands[i] = resolved
	}

	switch d.Op {
	case ir.OpAdd:
		return foldBinary(operands, addValues), nil
	case ir.OpSubtract:
		return foldNumeric(operands, func(a, b float64) (float64, bool) { return a - b, true }), nil
	case ir.OpMultiply:
		return foldNumeric(operands, func(a, b float64) (float64, bool) { return a * b, true }), nil
	case ir.OpDivide:
		return foldNumeric(operands, func(a, b float64) (float64, bool) {
			if b == 0 {
				return 0, false
			}
			return a / b, true
		}), nil
	case ir.OpModulo:
		return foldNumeric(operands, func(a, b float64) (float64, bool) {
			if b == 0 {
				return 0, false
			}
			return float64(int64(a) % int64(b)), true
		}), nil

	case ir.OpConcat:
		var sb strings.Builder
		for _, op := range operands {
			sb.WriteString(value.AsString(op))
		}
		return value.String(sb.String()), nil

	case ir.OpTemplate:
		out := d.Template
		for i, op := range operands {
			out = strings.ReplaceAll(out, fmt.Sprintf("{%d}", i), value.AsString(op))
		}
		return value.String(out), nil

	case ir.OpNegate:
		if len(operands) != 1 {
			return value.Null{}, nil
		}
		n, ok := value.AsNumber(operands[0])
		if !ok {
			return value.Null{}, nil
		}
		return numberResult(-n), nil

	case ir.OpNot:
		if len(operands) != 1 {
			return value.Null{}, nil
		}
		return value.Bool(!value.Truthy(operands[0])), nil

	default:
		return nil, fmt.Errorf("unknown computed operation %q", d.Op)
	}
}

// addValues adds numerically when both sides coerce, concatenates
// otherwise.
func addValues(a, b value.Value) value.Value {
	na, aok := value.AsNumber(a)
	nb, bok := value.AsNumber(b)
	if aok && bok {
		return numberResult(na + nb)
	}
	return value.String(value.AsString(a) + value.AsString(b))
}

// foldBinary folds operands left to right.
func foldBinary(operands []value.Value, fn func(a, b value.Value) value.Value) value.Value {
	if len(operands) == 0 {
		return value.Null{}
	}
	acc := operands[0]
	for _, op := range operands[1:] {
		acc = fn(acc, op)
	}
	return acc
}

// foldNumeric folds numerically; any non-coercing operand or rejected step
// (division by zero) yields Null.
func foldNumeric(operands []value.Value, fn func(a, b float64) (float64, bool)) value.Value {
	if len(operands) == 0 {
		return value.Null{}
	}
	acc, ok := value.AsNumber(operands[0])
	if !ok {
		return value.Null{}
	}
	for _, op := range operands[1:] {
		n, nok := value.AsNumber(op)
		if !nok {
			return value.Null{}
		}
		acc, ok = fn(acc, n)
		if !ok {
			return value.Null{}
		}
	}
	return numberResult(acc)
}

// numberResult keeps integral results as Int, matching store round-trips.
func numberResult(f float64) value.Value {
	if f == float64(int64(f)) {
		return value.Int(int64(f))
	}
	return value.Number(f)
}

// evalCond evaluates a condition descriptor. Total: every outcome is a
// boolean, type mismatches are false.
func (v *env) evalCond(cond ir.CondDesc) bool {
	switch c := cond.(type) {
	case ir.Compare:
		left := v.resolveLenient(c.Left)
		right := v.resolveLenient(c.Right)
		switch c.Op {
		case ir.CmpEq:
			return value.Equal(left, right)
		case ir.CmpNeq:
			return !value.Equal(left, right)
		}
		ln, lok := value.AsNumber(left)
		rn, rok := value.AsNumber(right)
		if !lok || !rok {
			return false
		}
		switch c.Op {
		case ir.CmpLt:
			return ln < rn
		case ir.CmpLte:
			return ln <= rn
		case ir.CmpGt:
			return ln > rn
		case ir.CmpGte:
			return ln >= rn
		}
		return false

	case ir.StringTest:
		left := value.AsString(v.resolveLenient(c.Left))
		right := value.AsString(v.resolveLenient(c.Right))
		switch c.Op {
		case ir.StrContains:
			return strings.Contains(left, right)
		case ir.StrStartsWith:
			return strings.HasPrefix(left, right)
		case ir.StrEndsWith:
			return strings.HasSuffix(left, right)
		}
		return false

	case ir.Nullness:
		operand := v.resolveLenient(c.Operand)
		switch c.Op {
		case ir.IsNull:
			return value.IsNull(operand)
		case ir.IsNotNull:
			return !value.IsNull(operand)
		case ir.IsEmpty:
			return value.IsEmpty(operand)
		}
		return false

	case ir.Logic:
		switch c.Op {
		case ir.LogicAnd:
			for _, sub := range c.Conds {
				if !v.evalCond(sub) {
					return false
				}
			}
			return true
		case ir.LogicOr:
			for _, sub := range c.Conds {
				if v.evalCond(sub) {
					return true
				}
			}
			return false
		case ir.LogicNot:
			if len(c.Conds) != 1 {
				return false
			}
			return !v.evalCond(c.Conds[0])
		}
		return false

	default:
		return false
	}
}
