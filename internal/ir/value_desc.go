package ir

import (
	"encoding/json"

	"github.com/roach88/uipulse/internal/value"
)

// Kind discriminators for value descriptors.
const (
	KindLiteral    = "literal"
	KindStoreValue = "storeValue"
	KindComputed   = "computed"
	KindEventData  = "eventData"
)

// ValueDesc is the sealed expression vocabulary. Resolution is pure given a
// store snapshot and event data.
type ValueDesc interface {
	valueDesc()
}

func (Literal) valueDesc()    {}
func (StoreValue) valueDesc() {}
func (Computed) valueDesc()   {}
func (EventData) valueDesc()  {}

// StoreRef names the store a descriptor reads from or writes to. Store is
// one of "app", "prefs", "file", "session", "remote"; Namespace qualifies
// file and remote stores. The executor binds session-scoped refs to the
// invocation's session id.
type StoreRef struct {
	Store     string `json:"store"`
	Namespace string `json:"namespace,omitempty"`
}

// Wire types for the string-typed literal kinds. Plain literals carry no
// type; the JSON encoding alone recovers them.
const (
	TypeColor = "color"
	TypeURL   = "url"
)

// Literal is a value known at compile time. Color and URL encode as bare
// strings, so Type records which typed kind to restore on decode.
type Literal struct {
	Type  string      `json:"type,omitempty"`
	Value value.Value `json:"value"`
}

// Lit wraps a value in a Literal. Convenience for compiler and test code.
func Lit(v value.Value) Literal {
	l := Literal{Value: v}
	switch v.(type) {
	case value.Color:
		l.Type = TypeColor
	case value.URL:
		l.Type = TypeURL
	}
	return l
}

// StoreValue reads the value at KeyPath in the referenced store. Default,
// when non-nil, substitutes for an absent path.
type StoreValue struct {
	Ref     StoreRef    `json:"storeRef"`
	KeyPath string      `json:"keyPath"`
	Default value.Value `json:"defaultValue,omitempty"`
}

// ComputedOp enumerates the computed operations.
type ComputedOp string

const (
	OpAdd      ComputedOp = "add"
	OpSubtract ComputedOp = "subtract"
	OpMultiply ComputedOp = "multiply"
	OpDivide   ComputedOp = "divide"
	OpModulo   ComputedOp = "modulo"
	OpConcat   ComputedOp = "concat"
	OpTemplate ComputedOp = "template"
	OpNegate   ComputedOp = "negate"
	OpNot      ComputedOp = "not"
)

// Computed applies Op to the resolved operands, left to right for binary
// arithmetic. For OpTemplate the placeholders {0}, {1}, ... in Template are
// substituted with the string-coerced operands.
type Computed struct {
	Op       ComputedOp  `json:"operation"`
	Operands []ValueDesc `json:"operands"`
	Template string      `json:"template,omitempty"`
}

// EventData reads a key path from the transient per-invocation event
// payload, e.g. a text field's current value.
type EventData struct {
	Path string `json:"path"`
}

func (l Literal) MarshalJSON() ([]byte, error) {
	type alias Literal
	a := alias(l)
	// Derive the wire type from the value itself so literals built without
	// Lit still round-trip.
	switch l.Value.(type) {
	case value.Color:
		a.Type = TypeColor
	case value.URL:
		a.Type = TypeURL
	}
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindLiteral, a})
}

func (l *Literal) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Type = raw.Type
	if raw.Value == nil {
		l.Value = value.Null{}
		return nil
	}
	v, err := value.Decode(raw.Value)
	if err != nil {
		return err
	}
	switch raw.Type {
	case TypeColor:
		v = value.Color(value.AsString(v))
	case TypeURL:
		v = value.URL(value.AsString(v))
	}
	l.Value = v
	return nil
}

func (sv StoreValue) MarshalJSON() ([]byte, error) {
	type alias StoreValue
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindStoreValue, alias(sv)})
}

func (sv *StoreValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ref     StoreRef        `json:"storeRef"`
		KeyPath string          `json:"keyPath"`
		Default json.RawMessage `json:"defaultValue"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sv.Ref = raw.Ref
	sv.KeyPath = raw.KeyPath
	sv.Default = nil
	if raw.Default != nil {
		d, err := value.Decode(raw.Default)
		if err != nil {
			return err
		}
		sv.Default = d
	}
	return nil
}

func (c Computed) MarshalJSON() ([]byte, error) {
	type alias Computed
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindComputed, alias(c)})
}

func (c *Computed) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op       ComputedOp        `json:"operation"`
		Operands []json.RawMessage `json:"operands"`
		Template string            `json:"template"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	operands, err := decodeValueDescs(raw.Operands)
	if err != nil {
		return err
	}
	c.Op = raw.Op
	c.Operands = operands
	c.Template = raw.Template
	return nil
}

func (e EventData) MarshalJSON() ([]byte, error) {
	type alias EventData
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindEventData, alias(e)})
}
