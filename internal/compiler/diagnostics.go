package compiler

import (
	"fmt"

	"github.com/dop251/goja/file"
)

// Code classifies a compile rejection.
type Code string

const (
	// CodeParseError reports handler source the parser rejected outright.
	CodeParseError Code = "ParseError"
	// CodeUnsupportedConstruct reports syntax with no IR lowering, e.g.
	// local variables or dynamic member access.
	CodeUnsupportedConstruct Code = "UnsupportedConstruct"
	// CodeExternalReference reports an identifier that is not the event
	// parameter, a registered store, or part of the action API.
	CodeExternalReference Code = "ExternalReference"
	// CodeUnknownActionAPI reports a call to a function outside the
	// registered action API surface.
	CodeUnknownActionAPI Code = "UnknownActionApi"
	// CodeAsyncNotSupported reports async handlers and await expressions.
	CodeAsyncNotSupported Code = "AsyncNotSupported"
	// CodeDynamicLoopNotSupported reports loop statements; IR has no
	// bounded-iteration form.
	CodeDynamicLoopNotSupported Code = "DynamicLoopNotSupported"
)

// Location is a source position in the handler file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is one compile rejection. A handler either compiles completely
// or yields zero IR plus one or more diagnostics.
type Diagnostic struct {
	Code       Code     `json:"code"`
	Message    string   `json:"message"`
	Loc        Location `json:"sourceLocation"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s: %s", d.Loc, d.Code, d.Message)
	if d.Suggestion != "" {
		s += " (" + d.Suggestion + ")"
	}
	return s
}

// report appends a diagnostic at the position of idx.
func (c *compiler) report(code Code, idx file.Idx, msg, suggestion string) {
	loc := Location{File: c.filename}
	if c.file != nil && idx > 0 {
		pos := c.file.Position(int(idx) - c.file.Base())
		loc.Line = pos.Line
		loc.Column = pos.Column
	}
	c.diags = append(c.diags, Diagnostic{
		Code:       code,
		Message:    msg,
		Loc:        loc,
		Suggestion: suggestion,
	})
}

func (c *compiler) reportf(code Code, idx file.Idx, suggestion, format string, args ...any) {
	c.report(code, idx, fmt.Sprintf(format, args...), suggestion)
}
