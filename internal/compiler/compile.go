package compiler

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"

	"github.com/roach88/uipulse/internal/ir"
)

// Compile lowers one handler's source to an action descriptor. Violations
// accumulate: the whole handler is walked even after the first rejection so
// every problem is reported at once, but any diagnostic means nil IR - a
// handler either compiles completely or produces nothing.
func Compile(filename, src string, surface *Surface) (ir.ActionDesc, []Diagnostic) {
	if surface == nil {
		surface = DefaultSurface()
	}
	c := &compiler{surface: surface, filename: filename}

	prog, err := parser.ParseFile(nil, filename, src, 0)
	if err != nil {
		c.report(CodeParseError, 0, err.Error(), "")
		return nil, c.diags
	}
	c.file = prog.File

	body, eventParam := c.hoistHandler(prog)
	c.eventParam = eventParam

	actions := c.lowerStmts(body)
	if len(c.diags) > 0 {
		return nil, c.diags
	}
	return wrapSerial(actions), nil
}

type compiler struct {
	surface    *Surface
	filename   string
	file       *file.File
	eventParam string
	diags      []Diagnostic
}

// hoistHandler unwraps the conventional shapes a handler arrives in: a bare
// statement list, a single function declaration, or a single (arrow)
// function expression. The function's first parameter, if any, binds the
// event payload.
func (c *compiler) hoistHandler(prog *ast.Program) ([]ast.Statement, string) {
	if len(prog.Body) != 1 {
		return prog.Body, ""
	}

	switch stmt := prog.Body[0].(type) {
	case *ast.FunctionDeclaration:
		return c.hoistFunction(stmt.Function)
	case *ast.ExpressionStatement:
		switch fn := stmt.Expression.(type) {
		case *ast.FunctionLiteral:
			return c.hoistFunction(fn)
		case *ast.ArrowFunctionLiteral:
			if fn.Async {
				c.report(CodeAsyncNotSupported, fn.Start,
					"handler is async", "handlers run synchronously; remove async and await")
			}
			param := c.bindEventParam(fn.ParameterList, fn.Start)
			switch body := fn.Body.(type) {
			case *ast.BlockStatement:
				return body.List, param
			case *ast.ExpressionBody:
				return []ast.Statement{&ast.ExpressionStatement{Expression: body.Expression}}, param
			}
		}
	}
	return prog.Body, ""
}

func (c *compiler) hoistFunction(fn *ast.FunctionLiteral) ([]ast.Statement, string) {
	if fn.Async {
		c.report(CodeAsyncNotSupported, fn.Function,
			"handler is async", "handlers run synchronously; remove async and await")
	}
	return fn.Body.List, c.bindEventParam(fn.ParameterList, fn.Function)
}

// bindEventParam admits at most one parameter, the event payload.
func (c *compiler) bindEventParam(params *ast.ParameterList, at file.Idx) string {
	if params == nil || len(params.List) == 0 {
		return ""
	}
	if len(params.List) > 1 {
		c.report(CodeUnsupportedConstruct, at,
			"handlers take at most one parameter, the event payload", "")
	}
	if id, ok := params.List[0].Target.(*ast.Identifier); ok {
		return string(id.Name)
	}
	c.report(CodeUnsupportedConstruct, at,
		"destructured parameters are not supported", "bind the event payload to a plain identifier")
	return ""
}

// lowerStmts lowers a statement list, flattening nested blocks.
func (c *compiler) lowerStmts(stmts []ast.Statement) []ir.ActionDesc {
	var out []ir.ActionDesc
	for _, stmt := range stmts {
		out = append(out, c.lowerStmt(stmt)...)
	}
	return out
}

func (c *compiler) lowerStmt(stmt ast.Statement) []ir.ActionDesc {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if a := c.lowerActionExpr(s.Expression); a != nil {
			return []ir.ActionDesc{a}
		}
		return nil

	case *ast.BlockStatement:
		return c.lowerStmts(s.List)

	case *ast.IfStatement:
		cond := c.lowerCond(s.Test)
		then := c.lowerStmtAsList(s.Consequent)
		var els []ir.ActionDesc
		if s.Alternate != nil {
			els = c.lowerStmtAsList(s.Alternate)
		}
		if cond == nil {
			return nil
		}
		return []ir.ActionDesc{ir.Conditional{Cond: cond, Then: then, Else: els}}

	case *ast.SwitchStatement:
		return c.lowerSwitch(s)

	case *ast.ReturnStatement:
		if s.Argument != nil {
			c.report(CodeUnsupportedConstruct, s.Return,
				"handlers do not return values", "use a store mutation to expose a result")
		}
		return nil

	case *ast.EmptyStatement:
		return nil

	case *ast.VariableStatement:
		c.report(CodeUnsupportedConstruct, s.Var,
			"local variables are not supported", "inline the expression where it is used")
		return nil

	case *ast.LexicalDeclaration:
		c.report(CodeUnsupportedConstruct, s.Idx,
			"local variables are not supported", "inline the expression where it is used")
		return nil

	case *ast.ForStatement:
		c.report(CodeDynamicLoopNotSupported, s.For, "for loops are not supported", "")
		return nil
	case *ast.ForInStatement:
		c.report(CodeDynamicLoopNotSupported, s.For, "for-in loops are not supported", "")
		return nil
	case *ast.ForOfStatement:
		c.report(CodeDynamicLoopNotSupported, s.For, "for-of loops are not supported", "")
		return nil
	case *ast.WhileStatement:
		c.report(CodeDynamicLoopNotSupported, s.While, "while loops are not supported", "")
		return nil
	case *ast.DoWhileStatement:
		c.report(CodeDynamicLoopNotSupported, s.Do, "do-while loops are not supported", "")
		return nil

	default:
		c.reportf(CodeUnsupportedConstruct, stmt.Idx0(), "",
			"unsupported statement %T", stmt)
		return nil
	}
}

// lowerStmtAsList lowers one statement position (e.g. an if branch) that
// may be a block or a single statement.
func (c *compiler) lowerStmtAsList(stmt ast.Statement) []ir.ActionDesc {
	if block, ok := stmt.(*ast.BlockStatement); ok {
		return c.lowerStmts(block.List)
	}
	return c.lowerStmt(stmt)
}

func (c *compiler) lowerSwitch(s *ast.SwitchStatement) []ir.ActionDesc {
	discriminant := c.lowerValue(s.Discriminant)

	var cases []ir.SwitchCase
	var def []ir.ActionDesc
	for _, cs := range s.Body {
		actions := c.lowerSwitchBody(cs.Consequent)
		if cs.Test == nil {
			def = actions
			continue
		}
		match := c.lowerValue(cs.Test)
		if match == nil {
			continue
		}
		cases = append(cases, ir.SwitchCase{Match: match, Actions: actions})
	}

	if discriminant == nil {
		return nil
	}
	return []ir.ActionDesc{ir.Switch{Value: discriminant, Cases: cases, Default: def}}
}

// lowerSwitchBody lowers a case body, tolerating a trailing break.
func (c *compiler) lowerSwitchBody(stmts []ast.Statement) []ir.ActionDesc {
	var out []ir.ActionDesc
	for _, stmt := range stmts {
		if _, ok := stmt.(*ast.BranchStatement); ok {
			continue
		}
		out = append(out, c.lowerStmt(stmt)...)
	}
	return out
}

// wrapSerial returns a single action unwrapped, several as a serial
// sequence that stops at the first failure, mirroring statement semantics.
func wrapSerial(actions []ir.ActionDesc) ir.ActionDesc {
	switch len(actions) {
	case 0:
		return ir.Sequence{Strategy: ir.StrategySerial, StopOnError: true}
	case 1:
		return actions[0]
	default:
		return ir.Sequence{Actions: actions, Strategy: ir.StrategySerial, StopOnError: true}
	}
}
