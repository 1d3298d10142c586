package compiler

import (
	"github.com/dop251/goja/ast"

	"github.com/roach88/uipulse/internal/ir"
)

// lowerActionExpr lowers an expression statement. Only calls into the
// action API surface (and store mutations) are statements.
func (c *compiler) lowerActionExpr(expr ast.Expression) ir.ActionDesc {
	if await, ok := expr.(*ast.AwaitExpression); ok {
		c.report(CodeAsyncNotSupported, await.Await, "await is not supported", "")
		return nil
	}
	call, ok := expr.(*ast.CallExpression)
	if !ok {
		c.reportf(CodeUnsupportedConstruct, expr.Idx0(),
			"statements must be calls into the action API",
			"unsupported statement expression %T", expr)
		return nil
	}

	ns, method, ok := c.qualifiedCallee(call.Callee)
	if !ok {
		return nil
	}

	if ref, isStore := c.surface.storeRef(ns); isStore {
		return c.lowerStoreCall(call, ref, ns, method)
	}

	qualified := ns + "." + method
	kind, registered := c.surface.actionKind(qualified)
	if !registered {
		c.reportf(CodeUnknownActionAPI, call.Idx0(),
			"register the function in the action API surface",
			"%s is not a registered action API", qualified)
		return nil
	}

	switch kind {
	case ir.KindShowToast:
		return c.lowerShowToast(call)
	case ir.KindShowAlert:
		return c.lowerShowAlert(call)
	case ir.KindShowSheet:
		return c.lowerShowSheet(call)
	case ir.KindDismissSheet:
		return c.noArgs(call, qualified, ir.DismissSheet{})
	case ir.KindShowLoading:
		return c.lowerShowLoading(call)
	case ir.KindHideLoading:
		return c.noArgs(call, qualified, ir.HideLoading{})
	case ir.KindNavigate:
		return c.lowerNavigate(call, method)
	case ir.KindSystem:
		return c.lowerSystem(call, method)
	case ir.KindRequest:
		return c.lowerRequest(call)
	case ir.KindSequence:
		return c.lowerParallel(call)
	default:
		c.reportf(CodeUnknownActionAPI, call.Idx0(), "",
			"%s maps to unhandled action kind %q", qualified, kind)
		return nil
	}
}

// lowerStoreCall handles the store accessor namespace: set, merge, remove,
// transaction. get is a value, not a statement.
func (c *compiler) lowerStoreCall(call *ast.CallExpression, ref ir.StoreRef, ns, method string) ir.ActionDesc {
	switch method {
	case "set", "merge":
		if len(call.ArgumentList) != 2 {
			c.reportf(CodeUnsupportedConstruct, call.Idx0(), "",
				"%s.%s takes a key path and a value", ns, method)
			return nil
		}
		path, ok := c.stringArg(call.ArgumentList[0], "key path")
		if !ok {
			return nil
		}
		v := c.lowerValue(call.ArgumentList[1])
		if v == nil {
			return nil
		}
		if method == "set" {
			return ir.SetValue{Ref: ref, KeyPath: path, Value: v}
		}
		return ir.MergeValue{Ref: ref, KeyPath: path, Value: v}

	case "remove":
		if len(call.ArgumentList) != 1 {
			c.reportf(CodeUnsupportedConstruct, call.Idx0(), "",
				"%s.remove takes a key path", ns)
			return nil
		}
		path, ok := c.stringArg(call.ArgumentList[0], "key path")
		if !ok {
			return nil
		}
		return ir.RemoveValue{Ref: ref, KeyPath: path}

	case "transaction":
		return c.lowerTransaction(call, ns)

	case "get":
		c.reportf(CodeUnsupportedConstruct, call.Idx0(),
			"use the read inside an expression, e.g. store.set(\"a\", store.get(\"b\"))",
			"%s.get as a statement discards its value", ns)
		return nil

	default:
		c.reportf(CodeUnknownActionAPI, call.Idx0(),
			"store accessors are get, set, merge, remove, and transaction",
			"%s.%s is not a store accessor", ns, method)
		return nil
	}
}

// lowerTransaction lowers store.transaction(() => { ...mutations... }).
// Every statement in the callback must itself lower to a store mutation.
func (c *compiler) lowerTransaction(call *ast.CallExpression, ns string) ir.ActionDesc {
	if len(call.ArgumentList) != 1 {
		c.reportf(CodeUnsupportedConstruct, call.Idx0(), "",
			"%s.transaction takes a single callback", ns)
		return nil
	}
	body, ok := c.callbackBody(call.ArgumentList[0])
	if !ok {
		return nil
	}

	before := len(c.diags)
	actions := c.lowerStmts(body)
	for _, sub := range actions {
		if !ir.IsMutation(sub) {
			c.report(CodeUnsupportedConstruct, call.Idx0(),
				"transactions admit only set, merge, and remove", "")
			return nil
		}
	}
	if len(c.diags) > before {
		return nil
	}
	return ir.TxnAction{Actions: actions}
}

func (c *compiler) lowerShowToast(call *ast.CallExpression) ir.ActionDesc {
	if len(call.ArgumentList) < 1 || len(call.ArgumentList) > 2 {
		c.report(CodeUnsupportedConstruct, call.Idx0(),
			"ui.showToast takes a message and an optional style", "")
		return nil
	}
	msg := c.lowerValue(call.ArgumentList[0])
	if msg == nil {
		return nil
	}
	toast := ir.ShowToast{Message: msg}
	if len(call.ArgumentList) == 2 {
		style, ok := c.stringArg(call.ArgumentList[1], "toast style")
		if !ok {
			return nil
		}
		toast.Style = style
	}
	return toast
}

// lowerShowAlert lowers ui.showAlert(title, message, [{label, role?,
// action?}...]). A button's action may be a call or a callback.
func (c *compiler) lowerShowAlert(call *ast.CallExpression) ir.ActionDesc {
	if len(call.ArgumentList) != 3 {
		c.report(CodeUnsupportedConstruct, call.Idx0(),
			"ui.showAlert takes a title, a message, and a button list", "")
		return nil
	}
	title := c.lowerValue(call.ArgumentList[0])
	message := c.lowerValue(call.ArgumentList[1])
	buttons := c.lowerButtons(call.ArgumentList[2])
	if title == nil || message == nil || buttons == nil {
		return nil
	}
	return ir.ShowAlert{Title: title, Message: message, Buttons: buttons}
}

func (c *compiler) lowerButtons(expr ast.Expression) []ir.AlertButton {
	arr, ok := expr.(*ast.ArrayLiteral)
	if !ok {
		c.report(CodeUnsupportedConstruct, expr.Idx0(),
			"buttons must be an array literal", "")
		return nil
	}
	buttons := make([]ir.AlertButton, 0, len(arr.Value))
	for _, elem := range arr.Value {
		obj, isObj := elem.(*ast.ObjectLiteral)
		if !isObj {
			c.report(CodeUnsupportedConstruct, elem.Idx0(),
				"each button must be an object literal", "")
			return nil
		}
		var btn ir.AlertButton
		if !c.eachProperty(obj, func(key string, v ast.Expression) bool {
			switch key {
			case "label":
				btn.Label = c.lowerValue(v)
				return btn.Label != nil
			case "role":
				role, ok := c.stringArg(v, "button role")
				btn.Role = role
				return ok
			case "action":
				btn.Action = c.lowerCallback(v)
				return btn.Action != nil
			default:
				c.reportf(CodeUnsupportedConstruct, v.Idx0(),
					"buttons have label, role, and action", "unknown button field %q", key)
				return false
			}
		}) {
			return nil
		}
		if btn.Label == nil {
			c.report(CodeUnsupportedConstruct, elem.Idx0(), "every button needs a label", "")
			return nil
		}
		buttons = append(buttons, btn)
	}
	return buttons
}

func (c *compiler) lowerShowSheet(call *ast.CallExpression) ir.ActionDesc {
	if len(call.ArgumentList) != 2 {
		c.report(CodeUnsupportedConstruct, call.Idx0(),
			"ui.showSheet takes a title and an option list", "")
		return nil
	}
	title := c.lowerValue(call.ArgumentList[0])
	if title == nil {
		return nil
	}
	arr, ok := call.ArgumentList[1].(*ast.ArrayLiteral)
	if !ok {
		c.report(CodeUnsupportedConstruct, call.ArgumentList[1].Idx0(),
			"options must be an array literal", "")
		return nil
	}
	options := make([]ir.SheetOption, 0, len(arr.Value))
	for _, elem := range arr.Value {
		obj, isObj := elem.(*ast.ObjectLiteral)
		if !isObj {
			c.report(CodeUnsupportedConstruct, elem.Idx0(),
				"each option must be an object literal", "")
			return nil
		}
		var opt ir.SheetOption
		if !c.eachProperty(obj, func(key string, v ast.Expression) bool {
			switch key {
			case "label":
				opt.Label = c.lowerValue(v)
				return opt.Label != nil
			case "action":
				opt.Action = c.lowerCallback(v)
				return opt.Action != nil
			default:
				c.reportf(CodeUnsupportedConstruct, v.Idx0(),
					"options have label and action", "unknown option field %q", key)
				return false
			}
		}) {
			return nil
		}
		if opt.Label == nil {
			c.report(CodeUnsupportedConstruct, elem.Idx0(), "every option needs a label", "")
			return nil
		}
		options = append(options, opt)
	}
	return ir.ShowSheet{Title: title, Options: options}
}

func (c *compiler) lowerShowLoading(call *ast.CallExpression) ir.ActionDesc {
	switch len(call.ArgumentList) {
	case 0:
		return ir.ShowLoading{}
	case 1:
		msg := c.lowerValue(call.ArgumentList[0])
		if msg == nil {
			return nil
		}
		return ir.ShowLoading{Message: msg}
	default:
		c.report(CodeUnsupportedConstruct, call.Idx0(),
			"ui.showLoading takes an optional message", "")
		return nil
	}
}

func (c *compiler) noArgs(call *ast.CallExpression, qualified string, action ir.ActionDesc) ir.ActionDesc {
	if len(call.ArgumentList) != 0 {
		c.reportf(CodeUnsupportedConstruct, call.Idx0(), "", "%s takes no arguments", qualified)
		return nil
	}
	return action
}

// lowerNavigate maps the nav.* methods onto one navigate descriptor.
func (c *compiler) lowerNavigate(call *ast.CallExpression, method string) ir.ActionDesc {
	nav := ir.Navigate{Op: ir.NavOp(method)}

	wantsTarget := method != "pop" && method != "dismissModal"
	args := call.ArgumentList
	if wantsTarget {
		if len(args) < 1 || len(args) > 2 {
			c.reportf(CodeUnsupportedConstruct, call.Idx0(), "",
				"nav.%s takes a screen name and optional params", method)
			return nil
		}
		target, ok := c.stringArg(args[0], "screen name")
		if !ok {
			return nil
		}
		nav.Target = target
		if len(args) == 2 {
			params := c.lowerValueObject(args[1])
			if params == nil {
				return nil
			}
			nav.Params = params
		}
	} else if len(args) != 0 {
		c.reportf(CodeUnsupportedConstruct, call.Idx0(), "", "nav.%s takes no arguments", method)
		return nil
	}
	return nav
}

// systemArgNames maps single-argument system calls to their canonical
// argument name.
var systemArgNames = map[string]string{
	"openUrl":           "url",
	"haptic":            "type",
	"copyToClipboard":   "value",
	"requestPermission": "permission",
}

func (c *compiler) lowerSystem(call *ast.CallExpression, method string) ir.ActionDesc {
	sys := ir.SystemCall{Call: ir.SystemOp(method)}

	if method == "share" {
		if len(call.ArgumentList) != 1 {
			c.report(CodeUnsupportedConstruct, call.Idx0(),
				"system.share takes an object of share fields", "")
			return nil
		}
		args := c.lowerValueObject(call.ArgumentList[0])
		if args == nil {
			return nil
		}
		sys.Args = args
		return sys
	}

	argName := systemArgNames[method]
	if len(call.ArgumentList) != 1 {
		c.reportf(CodeUnsupportedConstruct, call.Idx0(), "",
			"system.%s takes a single %s argument", method, argName)
		return nil
	}
	v := c.lowerValue(call.ArgumentList[0])
	if v == nil {
		return nil
	}
	sys.Args = map[string]ir.ValueDesc{argName: v}
	return sys
}

// lowerRequest lowers net.request({method, url, headers?, body?, saveTo?,
// onSuccess?, onError?}).
func (c *compiler) lowerRequest(call *ast.CallExpression) ir.ActionDesc {
	if len(call.ArgumentList) != 1 {
		c.report(CodeUnsupportedConstruct, call.Idx0(),
			"net.request takes a single options object", "")
		return nil
	}
	obj, ok := call.ArgumentList[0].(*ast.ObjectLiteral)
	if !ok {
		c.report(CodeUnsupportedConstruct, call.ArgumentList[0].Idx0(),
			"request options must be an object literal", "")
		return nil
	}

	var req ir.Request
	if !c.eachProperty(obj, func(key string, v ast.Expression) bool {
		switch key {
		case "method":
			m, ok := c.stringArg(v, "request method")
			req.Method = m
			return ok
		case "url":
			req.Endpoint = c.lowerValue(v)
			return req.Endpoint != nil
		case "headers":
			req.Headers = c.lowerValueObject(v)
			return req.Headers != nil
		case "body":
			req.Body = c.lowerValue(v)
			return req.Body != nil
		case "saveTo":
			req.SaveTo = c.lowerSaveTo(v)
			return req.SaveTo != nil
		case "onSuccess":
			req.OnSuccess = c.lowerCallbackList(v)
			return req.OnSuccess != nil
		case "onError":
			req.OnError = c.lowerCallbackList(v)
			return req.OnError != nil
		default:
			c.reportf(CodeUnsupportedConstruct, v.Idx0(), "",
				"unknown request field %q", key)
			return false
		}
	}) {
		return nil
	}
	if req.Method == "" || req.Endpoint == nil {
		c.report(CodeUnsupportedConstruct, call.Idx0(),
			"a request needs at least method and url", "")
		return nil
	}
	return req
}

// lowerSaveTo lowers [{from, to, store?}] into response mappings. The
// destination store defaults to the app store.
func (c *compiler) lowerSaveTo(expr ast.Expression) []ir.ResponseMapping {
	arr, ok := expr.(*ast.ArrayLiteral)
	if !ok {
		c.report(CodeUnsupportedConstruct, expr.Idx0(),
			"saveTo must be an array of {from, to} mappings", "")
		return nil
	}
	mappings := make([]ir.ResponseMapping, 0, len(arr.Value))
	for _, elem := range arr.Value {
		obj, isObj := elem.(*ast.ObjectLiteral)
		if !isObj {
			c.report(CodeUnsupportedConstruct, elem.Idx0(),
				"each mapping must be an object literal", "")
			return nil
		}
		m := ir.ResponseMapping{Ref: ir.StoreRef{Store: "app"}}
		if !c.eachProperty(obj, func(key string, v ast.Expression) bool {
			switch key {
			case "from":
				from, ok := c.stringArg(v, "response path")
				m.ResponsePath = from
				return ok
			case "to":
				to, ok := c.stringArg(v, "key path")
				m.KeyPath = to
				return ok
			case "store":
				name, ok := c.stringArg(v, "store name")
				if !ok {
					return false
				}
				ref, known := c.surface.storeRef(name)
				if !known {
					c.reportf(CodeUnknownActionAPI, v.Idx0(), "",
						"%q is not a registered store", name)
					return false
				}
				m.Ref = ref
				return true
			default:
				c.reportf(CodeUnsupportedConstruct, v.Idx0(), "",
					"unknown mapping field %q", key)
				return false
			}
		}) {
			return nil
		}
		if m.ResponsePath == "" || m.KeyPath == "" {
			c.report(CodeUnsupportedConstruct, elem.Idx0(),
				"each mapping needs from and to", "")
			return nil
		}
		mappings = append(mappings, m)
	}
	return mappings
}

// lowerParallel lowers flow.parallel(cb, cb, ...) into a parallel sequence;
// each argument is a callback or a single API call.
func (c *compiler) lowerParallel(call *ast.CallExpression) ir.ActionDesc {
	if len(call.ArgumentList) == 0 {
		c.report(CodeUnsupportedConstruct, call.Idx0(),
			"flow.parallel takes one or more callbacks", "")
		return nil
	}
	actions := make([]ir.ActionDesc, 0, len(call.ArgumentList))
	for _, arg := range call.ArgumentList {
		a := c.lowerCallback(arg)
		if a == nil {
			return nil
		}
		actions = append(actions, a)
	}
	return ir.Sequence{Actions: actions, Strategy: ir.StrategyParallel}
}

// lowerCallback lowers either a call expression or a zero-parameter
// callback into a single action (a serial sequence when the callback has
// several statements).
func (c *compiler) lowerCallback(expr ast.Expression) ir.ActionDesc {
	switch e := expr.(type) {
	case *ast.CallExpression:
		return c.lowerActionExpr(e)
	default:
		body, ok := c.callbackBody(expr)
		if !ok {
			return nil
		}
		before := len(c.diags)
		actions := c.lowerStmts(body)
		if len(c.diags) > before {
			return nil
		}
		return wrapSerial(actions)
	}
}

// lowerCallbackList is lowerCallback for positions holding an action list.
// A bare call is tolerated where a callback is expected.
func (c *compiler) lowerCallbackList(expr ast.Expression) []ir.ActionDesc {
	if call, isCall := expr.(*ast.CallExpression); isCall {
		if a := c.lowerActionExpr(call); a != nil {
			return []ir.ActionDesc{a}
		}
		return nil
	}
	body, ok := c.callbackBody(expr)
	if !ok {
		return nil
	}
	before := len(c.diags)
	actions := c.lowerStmts(body)
	if len(c.diags) > before {
		return nil
	}
	if actions == nil {
		actions = []ir.ActionDesc{}
	}
	return actions
}

// callbackBody extracts the statement list of a zero-parameter function or
// arrow literal.
func (c *compiler) callbackBody(expr ast.Expression) ([]ast.Statement, bool) {
	switch fn := expr.(type) {
	case *ast.FunctionLiteral:
		if fn.Async {
			c.report(CodeAsyncNotSupported, fn.Function, "async callbacks are not supported", "")
			return nil, false
		}
		if fn.ParameterList != nil && len(fn.ParameterList.List) > 0 {
			c.report(CodeUnsupportedConstruct, fn.Function, "callbacks take no parameters", "")
			return nil, false
		}
		return fn.Body.List, true
	case *ast.ArrowFunctionLiteral:
		if fn.Async {
			c.report(CodeAsyncNotSupported, fn.Start, "async callbacks are not supported", "")
			return nil, false
		}
		if fn.ParameterList != nil && len(fn.ParameterList.List) > 0 {
			c.report(CodeUnsupportedConstruct, fn.Start, "callbacks take no parameters", "")
			return nil, false
		}
		switch body := fn.Body.(type) {
		case *ast.BlockStatement:
			return body.List, true
		case *ast.ExpressionBody:
			return []ast.Statement{&ast.ExpressionStatement{Expression: body.Expression}}, true
		}
		return nil, true
	default:
		c.report(CodeUnsupportedConstruct, expr.Idx0(),
			"expected a callback function", "")
		return nil, false
	}
}

// lowerValueObject lowers an object literal whose values may be arbitrary
// expressions (unlike constObject, which requires constants).
func (c *compiler) lowerValueObject(expr ast.Expression) map[string]ir.ValueDesc {
	obj, ok := expr.(*ast.ObjectLiteral)
	if !ok {
		c.report(CodeUnsupportedConstruct, expr.Idx0(),
			"expected an object literal", "")
		return nil
	}
	out := make(map[string]ir.ValueDesc, len(obj.Value))
	if !c.eachProperty(obj, func(key string, v ast.Expression) bool {
		desc := c.lowerValue(v)
		if desc == nil {
			return false
		}
		out[key] = desc
		return true
	}) {
		return nil
	}
	return out
}

// eachProperty iterates an object literal's keyed properties, reporting
// unsupported property forms. fn returns false to abort.
func (c *compiler) eachProperty(obj *ast.ObjectLiteral, fn func(key string, v ast.Expression) bool) bool {
	for _, prop := range obj.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			c.report(CodeUnsupportedConstruct, obj.Idx0(),
				"spread and shorthand properties are not supported", "")
			return false
		}
		key, ok := c.propertyKey(keyed)
		if !ok {
			return false
		}
		if !fn(key, keyed.Value) {
			return false
		}
	}
	return true
}
