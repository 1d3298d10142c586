package keypath

import (
	"strconv"

	"github.com/roach88/uipulse/internal/value"
)

// Get walks root along p. Absent is signalled by ok=false: a missing object
// key, an out-of-range array index, or a segment/container kind mismatch all
// yield (nil, false). Callers decide whether absent maps to a logical null
// (descriptor resolution) or a lookup failure (typed store reads).
func Get(root value.Value, p KeyPath) (value.Value, bool) {
	cur := root
	for _, seg := range p {
		switch container := cur.(type) {
		case value.Object:
			v, exists := container[objectKey(seg)]
			if !exists {
				return nil, false
			}
			cur = v
		case value.Array:
			if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(container) {
				return nil, false
			}
			cur = container[seg.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set returns a new root with v placed at p, rebuilding the spine
// copy-on-write. Missing intermediates auto-vivify as empty objects, never
// arrays - a numeric-looking segment under an absent parent creates an
// object key, not an array slot. Scalar intermediates are replaced by
// objects. The previous value at p (or absent) is returned for patch
// construction.
func Set(root value.Value, p KeyPath, v value.Value) (newRoot, old value.Value, existed bool) {
	if len(p) == 0 {
		return v, root, root != nil
	}

	seg, rest := p[0], p[1:]

	switch container := root.(type) {
	case value.Object:
		key := objectKey(seg)
		child, childExists := container[key]
		if len(rest) == 0 {
			out := cloneObject(container)
			out[key] = v
			return out, child, childExists
		}
		sub, subOld, subExisted := Set(child, rest, v)
		out := cloneObject(container)
		out[key] = sub
		return out, subOld, subExisted

	case value.Array:
		if seg.IsIndex {
			idx := seg.Index
			out := cloneArray(container, idx+1)
			var child value.Value
			childExists := idx < len(container)
			if childExists {
				child = container[idx]
			}
			if len(rest) == 0 {
				out[idx] = v
				return out, child, childExists
			}
			sub, subOld, subExisted := Set(child, rest, v)
			out[idx] = sub
			return out, subOld, subExisted
		}
		// Key segment against an array: the array is replaced by an object.
		sub, _, _ := Set(nil, p, v)
		return sub, nil, false

	default:
		// Absent or scalar parent: vivify an object.
		obj := value.Object{}
		if len(rest) == 0 {
			obj[objectKey(seg)] = v
			return obj, nil, false
		}
		sub, subOld, subExisted := Set(nil, rest, v)
		obj[objectKey(seg)] = sub
		return obj, subOld, subExisted
	}
}

// Remove returns a new root with the value at p deleted. If p is absent the
// original root is returned unchanged with existed=false. Removing an array
// element splices it out.
func Remove(root value.Value, p KeyPath) (newRoot, old value.Value, existed bool) {
	if len(p) == 0 {
		return root, nil, false
	}

	seg, rest := p[0], p[1:]

	switch container := root.(type) {
	case value.Object:
		key := objectKey(seg)
		child, childExists := container[key]
		if !childExists {
			return root, nil, false
		}
		if len(rest) == 0 {
			out := cloneObject(container)
			delete(out, key)
			return out, child, true
		}
		sub, subOld, subExisted := Remove(child, rest)
		if !subExisted {
			return root, nil, false
		}
		out := cloneObject(container)
		out[key] = sub
		return out, subOld, true

	case value.Array:
		if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(container) {
			return root, nil, false
		}
		if len(rest) == 0 {
			out := make(value.Array, 0, len(container)-1)
			out = append(out, container[:seg.Index]...)
			out = append(out, container[seg.Index+1:]...)
			return out, container[seg.Index], true
		}
		sub, subOld, subExisted := Remove(container[seg.Index], rest)
		if !subExisted {
			return root, nil, false
		}
		out := cloneArray(container, len(container))
		out[seg.Index] = sub
		return out, subOld, true

	default:
		return root, nil, false
	}
}

// Merge shallow-merges obj into the object at p, creating one if the slot is
// absent or holds a non-object. Returns the previous value at p.
func Merge(root value.Value, p KeyPath, obj value.Object) (newRoot, old value.Value, existed bool) {
	cur, ok := Get(root, p)

	base, isObj := cur.(value.Object)
	var merged value.Object
	if ok && isObj {
		merged = cloneObject(base)
	} else {
		merged = value.Object{}
	}
	for k, v := range obj {
		merged[k] = v
	}

	newRoot, _, _ = Set(root, p, merged)
	return newRoot, cur, ok
}

// objectKey renders a segment as an object key. Index segments address
// object keys by their decimal text when the container is an object.
func objectKey(seg Segment) string {
	if seg.IsIndex {
		return strconv.Itoa(seg.Index)
	}
	return seg.Key
}

func cloneObject(o value.Object) value.Object {
	out := make(value.Object, len(o)+1)
	for k, v := range o {
		out[k] = v
	}
	return out
}

// cloneArray copies a, extending it with nulls to at least n elements.
// Setting past the end grows the array rather than failing.
func cloneArray(a value.Array, n int) value.Array {
	size := len(a)
	if n > size {
		size = n
	}
	out := make(value.Array, size)
	copy(out, a)
	for i := len(a); i < size; i++ {
		out[i] = value.Null{}
	}
	return out
}
