// Package value defines the closed StoredValue sum type used throughout the
// store and the descriptor IR, together with strict JSON decoding and a
// canonical serialization for content hashing.
package value

import (
	"math"
	"strconv"
)

// Value is a sealed interface over the storable value kinds.
// Only Null, String, Number, Int, Bool, Color, URL, Array, and Object
// implement it. Values are finite trees and immutable once constructed;
// mutation rebuilds the spine copy-on-write (see internal/keypath).
type Value interface {
	storedValue()
}

// Null represents an explicit null value.
// Using a concrete type keeps the sealed interface total - a nil Value
// means "absent", Null{} means "present and null".
type Null struct{}

func (Null) storedValue() {}

// String is a UTF-8 string value.
type String string

func (String) storedValue() {}

// Number is a floating-point numeric value.
type Number float64

func (Number) storedValue() {}

// Int is an integer numeric value. Whole-number JSON literals decode to Int,
// not Number, so round-tripping preserves integer identity.
type Int int64

func (Int) storedValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) storedValue() {}

// Color is a string-encoded color (e.g. "#ff8800"). On the plain JSON wire
// it is indistinguishable from String; the typedness lives in IR literals.
type Color string

func (Color) storedValue() {}

// URL is a string-encoded URL. Same wire treatment as Color.
type URL string

func (URL) storedValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) storedValue() {}

// Object is a string-keyed map of values. Key insertion order is irrelevant;
// serialization always emits keys in RFC 8785 order.
type Object map[string]Value

func (Object) storedValue() {}

// IsNull reports whether v is absent or an explicit Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// IsEmpty reports whether v is null, a zero-length string-like value, or a
// zero-length array/object. Numbers and booleans are never empty.
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case String:
		return val == ""
	case Color:
		return val == ""
	case URL:
		return val == ""
	case Array:
		return len(val) == 0
	case Object:
		return len(val) == 0
	default:
		return false
	}
}

// AsNumber coerces v to a float64. Strings parse via strconv; a non-numeric
// string reports ok=false rather than an error so that ordering comparisons
// stay total.
func AsNumber(v Value) (float64, bool) {
	switch val := v.(type) {
	case Number:
		return float64(val), true
	case Int:
		return float64(val), true
	case String:
		f, err := strconv.ParseFloat(string(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsString coerces v to its string rendering. Total: every value kind has a
// string form. Arrays and objects render as their deterministic JSON.
func AsString(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case String:
		return string(val)
	case Color:
		return string(val)
	case URL:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Number:
		return formatNumber(float64(val))
	case Bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, err := Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Truthy reports the boolean interpretation of v: false for null, false,
// zero, and empty string-likes; true otherwise.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(val)
	case Int:
		return val != 0
	case Number:
		return val != 0
	case String:
		return val != ""
	case Color:
		return val != ""
	case URL:
		return val != ""
	default:
		return true
	}
}

// Equal reports structural equality. Int and Number compare numerically when
// mixed; the string-encoded kinds (String, Color, URL) compare by payload.
func Equal(a, b Value) bool {
	if IsNull(a) && IsNull(b) {
		return true
	}
	if IsNull(a) || IsNull(b) {
		return false
	}

	if an, aok := numericOf(a); aok {
		if bn, bok := numericOf(b); bok {
			return an == bn
		}
		return false
	}

	if as, aok := stringOf(a); aok {
		if bs, bok := stringOf(b); bok {
			return as == bs
		}
		return false
	}

	switch av := a.(type) {
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, aval := range av {
			bval, exists := bv[k]
			if !exists || !Equal(aval, bval) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// numericOf returns the numeric payload of strictly numeric kinds.
// Unlike AsNumber it does not parse strings; equality must not treat
// "1" and 1 as equal.
func numericOf(v Value) (float64, bool) {
	switch val := v.(type) {
	case Number:
		return float64(val), true
	case Int:
		return float64(val), true
	default:
		return 0, false
	}
}

// stringOf returns the string payload of the string-encoded kinds.
func stringOf(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case Color:
		return string(val), true
	case URL:
		return string(val), true
	default:
		return "", false
	}
}

// formatNumber renders a float deterministically. Integral floats render
// without a fractional part so 3.0 and 3 read identically.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
