package compiler

import (
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"

	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/value"
)

// lowerValue lowers an expression in value position. Returns nil after
// reporting a diagnostic.
func (c *compiler) lowerValue(expr ast.Expression) ir.ValueDesc {
	switch e := expr.(type) {
	case *ast.StringLiteral:
		return ir.Lit(value.String(e.Value))
	case *ast.NumberLiteral:
		return ir.Lit(numberValue(e))
	case *ast.BooleanLiteral:
		return ir.Lit(value.Bool(e.Value))
	case *ast.NullLiteral:
		return ir.Lit(value.Null{})

	case *ast.TemplateLiteral:
		return c.lowerTemplate(e)

	case *ast.ObjectLiteral:
		v := c.constObject(e)
		if v == nil {
			return nil
		}
		return ir.Lit(v)

	case *ast.ArrayLiteral:
		v := c.constArray(e)
		if v == nil {
			return nil
		}
		return ir.Lit(v)

	case *ast.Identifier:
		name := string(e.Name)
		if c.eventParam != "" && name == c.eventParam {
			return ir.EventData{}
		}
		c.reportf(CodeExternalReference, e.Idx,
			"only the event parameter and registered stores are in scope",
			"reference to %q from an enclosing scope", name)
		return nil

	case *ast.DotExpression:
		return c.lowerMemberChain(e)
	case *ast.BracketExpression:
		return c.lowerMemberChain(e)

	case *ast.CallExpression:
		return c.lowerValueCall(e)

	case *ast.BinaryExpression:
		return c.lowerBinaryValue(e)

	case *ast.UnaryExpression:
		switch e.Operator {
		case token.MINUS:
			operand := c.lowerValue(e.Operand)
			if operand == nil {
				return nil
			}
			return ir.Computed{Op: ir.OpNegate, Operands: []ir.ValueDesc{operand}}
		case token.NOT:
			operand := c.lowerValue(e.Operand)
			if operand == nil {
				return nil
			}
			return ir.Computed{Op: ir.OpNot, Operands: []ir.ValueDesc{operand}}
		}
		c.reportf(CodeUnsupportedConstruct, e.Idx0(), "",
			"unsupported unary operator %s", e.Operator)
		return nil

	case *ast.AwaitExpression:
		c.report(CodeAsyncNotSupported, e.Await, "await is not supported", "")
		return nil

	default:
		c.reportf(CodeUnsupportedConstruct, expr.Idx0(), "",
			"unsupported expression %T in value position", expr)
		return nil
	}
}

func numberValue(e *ast.NumberLiteral) value.Value {
	switch n := e.Value.(type) {
	case int64:
		return value.Int(n)
	case float64:
		return value.Number(n)
	default:
		return value.Null{}
	}
}

func (c *compiler) lowerBinaryValue(e *ast.BinaryExpression) ir.ValueDesc {
	var op ir.ComputedOp
	switch e.Operator {
	case token.PLUS:
		// add concatenates when either operand resolves to a non-number.
		op = ir.OpAdd
	case token.MINUS:
		op = ir.OpSubtract
	case token.MULTIPLY:
		op = ir.OpMultiply
	case token.SLASH:
		op = ir.OpDivide
	case token.REMAINDER:
		op = ir.OpModulo
	default:
		c.reportf(CodeUnsupportedConstruct, e.Idx0(),
			"comparisons belong in a condition position, e.g. an if test",
			"operator %s is not supported in value position", e.Operator)
		return nil
	}
	left := c.lowerValue(e.Left)
	right := c.lowerValue(e.Right)
	if left == nil || right == nil {
		return nil
	}
	return ir.Computed{Op: op, Operands: []ir.ValueDesc{left, right}}
}

// lowerTemplate turns `Hello, ${name}!` into a computed template with
// positional placeholders.
func (c *compiler) lowerTemplate(e *ast.TemplateLiteral) ir.ValueDesc {
	var sb strings.Builder
	operands := make([]ir.ValueDesc, 0, len(e.Expressions))
	for i, elem := range e.Elements {
		sb.WriteString(string(elem.Parsed))
		if i < len(e.Expressions) {
			operand := c.lowerValue(e.Expressions[i])
			if operand == nil {
				return nil
			}
			fmt.Fprintf(&sb, "{%d}", i)
			operands = append(operands, operand)
		}
	}
	return ir.Computed{Op: ir.OpTemplate, Template: sb.String(), Operands: operands}
}

// lowerMemberChain lowers a member chain rooted at the event parameter into
// an event-data reference, e.g. event.text.value -> eventData "text.value".
func (c *compiler) lowerMemberChain(expr ast.Expression) ir.ValueDesc {
	root, segments, ok := c.memberChain(expr)
	if !ok {
		return nil
	}
	if c.eventParam == "" || root != c.eventParam {
		if _, isStore := c.surface.storeRef(root); isStore {
			c.reportf(CodeUnsupportedConstruct, expr.Idx0(),
				fmt.Sprintf("read store values with %s.get(path)", root),
				"direct property access on store %q", root)
			return nil
		}
		c.reportf(CodeExternalReference, expr.Idx0(),
			"only the event parameter and registered stores are in scope",
			"reference to %q from an enclosing scope", root)
		return nil
	}
	return ir.EventData{Path: strings.Join(segments, ".")}
}

// memberChain flattens a dot/bracket chain into its root identifier and
// path segments. Bracket members must be literal.
func (c *compiler) memberChain(expr ast.Expression) (string, []string, bool) {
	switch e := expr.(type) {
	case *ast.Identifier:
		return string(e.Name), nil, true
	case *ast.DotExpression:
		root, segs, ok := c.memberChain(e.Left)
		if !ok {
			return "", nil, false
		}
		return root, append(segs, string(e.Identifier.Name)), true
	case *ast.BracketExpression:
		root, segs, ok := c.memberChain(e.Left)
		if !ok {
			return "", nil, false
		}
		switch m := e.Member.(type) {
		case *ast.StringLiteral:
			return root, append(segs, string(m.Value)), true
		case *ast.NumberLiteral:
			if n, isInt := m.Value.(int64); isInt {
				return root, append(segs, fmt.Sprintf("[%d]", n)), true
			}
		}
		c.report(CodeUnsupportedConstruct, e.Idx0(),
			"dynamic member access is not supported", "use a literal key or index")
		return "", nil, false
	default:
		c.reportf(CodeUnsupportedConstruct, expr.Idx0(), "",
			"unsupported expression %T in member chain", expr)
		return "", nil, false
	}
}

// lowerValueCall admits only store reads in value position.
func (c *compiler) lowerValueCall(e *ast.CallExpression) ir.ValueDesc {
	ns, method, ok := c.qualifiedCallee(e.Callee)
	if !ok {
		return nil
	}
	ref, isStore := c.surface.storeRef(ns)
	if !isStore || method != "get" {
		c.reportf(CodeUnknownActionAPI, e.Idx0(),
			"only store reads may appear inside an expression",
			"%s.%s is not a value-producing call", ns, method)
		return nil
	}

	if len(e.ArgumentList) < 1 || len(e.ArgumentList) > 2 {
		c.reportf(CodeUnsupportedConstruct, e.Idx0(), "",
			"%s.get takes a key path and an optional default", ns)
		return nil
	}
	path, ok := c.stringArg(e.ArgumentList[0], "key path")
	if !ok {
		return nil
	}
	sv := ir.StoreValue{Ref: ref, KeyPath: path}
	if len(e.ArgumentList) == 2 {
		def := c.constValue(e.ArgumentList[1])
		if def == nil {
			return nil
		}
		sv.Default = def
	}
	return sv
}

// qualifiedCallee extracts the ns.method shape every API call uses.
func (c *compiler) qualifiedCallee(callee ast.Expression) (string, string, bool) {
	dot, ok := callee.(*ast.DotExpression)
	if !ok {
		if id, isID := callee.(*ast.Identifier); isID {
			c.reportf(CodeUnknownActionAPI, id.Idx,
				"calls use a namespace, e.g. store.set(...) or ui.showToast(...)",
				"%q is not a registered action API", string(id.Name))
		} else {
			c.report(CodeUnsupportedConstruct, callee.Idx0(),
				"computed callees are not supported", "")
		}
		return "", "", false
	}
	root, isID := dot.Left.(*ast.Identifier)
	if !isID {
		c.report(CodeUnsupportedConstruct, dot.Idx0(),
			"nested call targets are not supported", "")
		return "", "", false
	}
	return string(root.Name), string(dot.Identifier.Name), true
}

// stringArg requires a string-literal argument, used for key paths and
// screen names that must be known at compile time.
func (c *compiler) stringArg(expr ast.Expression, what string) (string, bool) {
	lit, ok := expr.(*ast.StringLiteral)
	if !ok {
		c.reportf(CodeUnsupportedConstruct, expr.Idx0(),
			fmt.Sprintf("the %s must be known at compile time", what),
			"%s must be a string literal", what)
		return "", false
	}
	return string(lit.Value), true
}

// constValue lowers a compile-time constant expression to a value, for
// literal positions like store.get defaults.
func (c *compiler) constValue(expr ast.Expression) value.Value {
	switch e := expr.(type) {
	case *ast.StringLiteral:
		return value.String(e.Value)
	case *ast.NumberLiteral:
		return numberValue(e)
	case *ast.BooleanLiteral:
		return value.Bool(e.Value)
	case *ast.NullLiteral:
		return value.Null{}
	case *ast.ObjectLiteral:
		return c.constObject(e)
	case *ast.ArrayLiteral:
		return c.constArray(e)
	default:
		c.reportf(CodeUnsupportedConstruct, expr.Idx0(), "",
			"%T is not a compile-time constant", expr)
		return nil
	}
}

func (c *compiler) constObject(e *ast.ObjectLiteral) value.Value {
	obj := make(value.Object, len(e.Value))
	for _, prop := range e.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			c.report(CodeUnsupportedConstruct, e.Idx0(),
				"spread and shorthand properties are not supported", "")
			return nil
		}
		key, ok := c.propertyKey(keyed)
		if !ok {
			return nil
		}
		v := c.constValue(keyed.Value)
		if v == nil {
			return nil
		}
		obj[key] = v
	}
	return obj
}

func (c *compiler) constArray(e *ast.ArrayLiteral) value.Value {
	arr := make(value.Array, 0, len(e.Value))
	for _, elem := range e.Value {
		v := c.constValue(elem)
		if v == nil {
			return nil
		}
		arr = append(arr, v)
	}
	return arr
}

// propertyKey handles both quoted and bare object keys.
func (c *compiler) propertyKey(prop *ast.PropertyKeyed) (string, bool) {
	switch k := prop.Key.(type) {
	case *ast.StringLiteral:
		return string(k.Value), true
	case *ast.Identifier:
		return string(k.Name), true
	default:
		c.report(CodeUnsupportedConstruct, prop.Key.Idx0(),
			"computed object keys are not supported", "use a literal key")
		return "", false
	}
}

// lowerCond lowers an expression in condition position. Evaluation of the
// resulting descriptor is total, so every shape here lowers to something
// that cannot fail at runtime.
func (c *compiler) lowerCond(expr ast.Expression) ir.CondDesc {
	switch e := expr.(type) {
	case *ast.BinaryExpression:
		switch e.Operator {
		case token.LOGICAL_AND:
			return c.lowerLogicPair(ir.LogicAnd, e.Left, e.Right)
		case token.LOGICAL_OR:
			return c.lowerLogicPair(ir.LogicOr, e.Left, e.Right)
		}
		if op, ok := compareOp(e.Operator); ok {
			left := c.lowerValue(e.Left)
			right := c.lowerValue(e.Right)
			if left == nil || right == nil {
				return nil
			}
			return ir.Compare{Op: op, Left: left, Right: right}
		}
		// Arithmetic in condition position: truthiness of the result.
		return c.truthyCond(expr)

	case *ast.UnaryExpression:
		if e.Operator == token.NOT {
			inner := c.lowerCond(e.Operand)
			if inner == nil {
				return nil
			}
			return ir.Logic{Op: ir.LogicNot, Conds: []ir.CondDesc{inner}}
		}
		return c.truthyCond(expr)

	case *ast.CallExpression:
		if cond := c.lowerCondCall(e); cond != nil {
			return cond
		}
		return nil

	default:
		return c.truthyCond(expr)
	}
}

func (c *compiler) lowerLogicPair(op ir.LogicOp, left, right ast.Expression) ir.CondDesc {
	l := c.lowerCond(left)
	r := c.lowerCond(right)
	if l == nil || r == nil {
		return nil
	}
	return ir.Logic{Op: op, Conds: []ir.CondDesc{l, r}}
}

// truthyCond tests a bare value expression against true.
func (c *compiler) truthyCond(expr ast.Expression) ir.CondDesc {
	v := c.lowerValue(expr)
	if v == nil {
		return nil
	}
	return ir.Compare{Op: ir.CmpEq, Left: v, Right: ir.Lit(value.Bool(true))}
}

// lowerCondCall recognizes the string and nullness predicate methods:
// x.contains(y), x.startsWith(y), x.endsWith(y), x.isEmpty().
func (c *compiler) lowerCondCall(e *ast.CallExpression) ir.CondDesc {
	dot, ok := e.Callee.(*ast.DotExpression)
	if !ok {
		return c.truthyCond(e)
	}
	method := string(dot.Identifier.Name)

	var strOp ir.StringOp
	switch method {
	case "contains", "includes":
		strOp = ir.StrContains
	case "startsWith":
		strOp = ir.StrStartsWith
	case "endsWith":
		strOp = ir.StrEndsWith
	case "isEmpty":
		if len(e.ArgumentList) != 0 {
			c.report(CodeUnsupportedConstruct, e.Idx0(), "isEmpty takes no arguments", "")
			return nil
		}
		operand := c.lowerValue(dot.Left)
		if operand == nil {
			return nil
		}
		return ir.Nullness{Op: ir.IsEmpty, Operand: operand}
	default:
		// Not a predicate method; treat the call as a value (store.get).
		return c.truthyCond(e)
	}

	if len(e.ArgumentList) != 1 {
		c.reportf(CodeUnsupportedConstruct, e.Idx0(), "",
			"%s takes exactly one argument", method)
		return nil
	}
	left := c.lowerValue(dot.Left)
	right := c.lowerValue(e.ArgumentList[0])
	if left == nil || right == nil {
		return nil
	}
	return ir.StringTest{Op: strOp, Left: left, Right: right}
}

func compareOp(t token.Token) (ir.CompareOp, bool) {
	switch t {
	case token.EQUAL, token.STRICT_EQUAL:
		return ir.CmpEq, true
	case token.NOT_EQUAL, token.STRICT_NOT_EQUAL:
		return ir.CmpNeq, true
	case token.LESS:
		return ir.CmpLt, true
	case token.LESS_OR_EQUAL:
		return ir.CmpLte, true
	case token.GREATER:
		return ir.CmpGt, true
	case token.GREATER_OR_EQUAL:
		return ir.CmpGte, true
	}
	return "", false
}
