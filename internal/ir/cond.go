package ir

import "encoding/json"

// Kind discriminators for condition descriptors.
const (
	KindCompare    = "compare"
	KindStringTest = "stringTest"
	KindNullness   = "nullness"
	KindLogic      = "logic"
)

// CondDesc is the sealed predicate vocabulary. Evaluation is total: a
// condition never errors, type mismatches resolve to false.
type CondDesc interface {
	condDesc()
}

func (Compare) condDesc()    {}
func (StringTest) condDesc() {}
func (Nullness) condDesc()   {}
func (Logic) condDesc()      {}

// CompareOp enumerates equality and ordering comparisons. Ordering
// comparisons coerce both operands to numbers; a failed coercion makes the
// comparison false rather than an error.
type CompareOp string

const (
	CmpEq  CompareOp = "eq"
	CmpNeq CompareOp = "neq"
	CmpLt  CompareOp = "lt"
	CmpLte CompareOp = "lte"
	CmpGt  CompareOp = "gt"
	CmpGte CompareOp = "gte"
)

// Compare tests two resolved values against Op.
type Compare struct {
	Op    CompareOp `json:"op"`
	Left  ValueDesc `json:"left"`
	Right ValueDesc `json:"right"`
}

// StringOp enumerates the string predicates, operating on string-coerced
// operands.
type StringOp string

const (
	StrContains   StringOp = "contains"
	StrStartsWith StringOp = "startsWith"
	StrEndsWith   StringOp = "endsWith"
)

// StringTest applies Op to the string coercions of Left and Right.
type StringTest struct {
	Op    StringOp  `json:"op"`
	Left  ValueDesc `json:"left"`
	Right ValueDesc `json:"right"`
}

// NullOp enumerates the nullability predicates. IsEmpty covers null and
// zero-length string, array, and object.
type NullOp string

const (
	IsNull    NullOp = "isNull"
	IsNotNull NullOp = "isNotNull"
	IsEmpty   NullOp = "isEmpty"
)

// Nullness tests the resolved operand against Op.
type Nullness struct {
	Op      NullOp    `json:"op"`
	Operand ValueDesc `json:"operand"`
}

// LogicOp enumerates the logical combinators.
type LogicOp string

const (
	LogicAnd LogicOp = "and"
	LogicOr  LogicOp = "or"
	LogicNot LogicOp = "not"
)

// Logic combines nested conditions. LogicNot uses exactly one condition.
type Logic struct {
	Op    LogicOp    `json:"op"`
	Conds []CondDesc `json:"conditions"`
}

func (c Compare) MarshalJSON() ([]byte, error) {
	type alias Compare
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindCompare, alias(c)})
}

func (c *Compare) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op    CompareOp       `json:"op"`
		Left  json.RawMessage `json:"left"`
		Right json.RawMessage `json:"right"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	left, err := DecodeValueDesc(raw.Left)
	if err != nil {
		return err
	}
	right, err := DecodeValueDesc(raw.Right)
	if err != nil {
		return err
	}
	c.Op = raw.Op
	c.Left = left
	c.Right = right
	return nil
}

func (st StringTest) MarshalJSON() ([]byte, error) {
	type alias StringTest
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindStringTest, alias(st)})
}

func (st *StringTest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op    StringOp        `json:"op"`
		Left  json.RawMessage `json:"left"`
		Right json.RawMessage `json:"right"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	left, err := DecodeValueDesc(raw.Left)
	if err != nil {
		return err
	}
	right, err := DecodeValueDesc(raw.Right)
	if err != nil {
		return err
	}
	st.Op = raw.Op
	st.Left = left
	st.Right = right
	return nil
}

func (n Nullness) MarshalJSON() ([]byte, error) {
	type alias Nullness
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindNullness, alias(n)})
}

func (n *Nullness) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op      NullOp          `json:"op"`
		Operand json.RawMessage `json:"operand"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	operand, err := DecodeValueDesc(raw.Operand)
	if err != nil {
		return err
	}
	n.Op = raw.Op
	n.Operand = operand
	return nil
}

func (l Logic) MarshalJSON() ([]byte, error) {
	type alias Logic
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindLogic, alias(l)})
}

func (l *Logic) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op    LogicOp           `json:"op"`
		Conds []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	conds, err := decodeConds(raw.Conds)
	if err != nil {
		return err
	}
	l.Op = raw.Op
	l.Conds = conds
	return nil
}
