// Package keypath parses dot/bracket path expressions and navigates
// value trees with copy-on-write mutation.
package keypath

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a key path: either a field-name key or an array
// index. IsIndex discriminates.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeyPath is an ordered list of segments. It is a pure addressing value and
// never references store data.
type KeyPath []Segment

// Key constructs a key segment.
func Key(k string) Segment { return Segment{Key: k} }

// Index constructs an index segment.
func Index(i int) Segment { return Segment{Index: i, IsIndex: true} }

// Parse scans a path expression like "a.b[2].c" into segments. Parsing is
// total over well-formed input: a '.' flushes the pending identifier, "[n]"
// yields an index, and non-numeric bracket content falls back to a literal
// bracketed key. Malformed input (empty path, empty segment, unterminated
// bracket) returns an error.
func Parse(path string) (KeyPath, error) {
	if path == "" {
		return nil, fmt.Errorf("empty key path")
	}

	var (
		segs    KeyPath
		buf     strings.Builder
		started bool // a flushable segment has begun since the last flush
	)

	flush := func() error {
		if !started {
			return fmt.Errorf("empty segment in key path %q", path)
		}
		segs = append(segs, Key(buf.String()))
		buf.Reset()
		started = false
		return nil
	}

	i := 0
	for i < len(path) {
		switch c := path[i]; c {
		case '.':
			if err := flush(); err != nil {
				return nil, err
			}
			i++
			// A trailing '.' leaves nothing to flush at the end.
			if i == len(path) {
				return nil, fmt.Errorf("trailing '.' in key path %q", path)
			}
		case '[':
			// Flush any pending identifier before the bracket.
			if started {
				if err := flush(); err != nil {
					return nil, err
				}
			}
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated '[' in key path %q", path)
			}
			content := path[i+1 : i+end]
			if content == "" {
				return nil, fmt.Errorf("empty brackets in key path %q", path)
			}
			if n, err := strconv.Atoi(content); err == nil && n >= 0 {
				segs = append(segs, Index(n))
			} else {
				// Non-numeric bracket content is a literal bracketed key.
				segs = append(segs, Key(content))
			}
			i += end + 1
			// After ']' only '.', '[' or end of input may follow.
			if i < len(path) && path[i] == '.' {
				i++
				if i == len(path) {
					return nil, fmt.Errorf("trailing '.' in key path %q", path)
				}
			} else if i < len(path) && path[i] != '[' {
				return nil, fmt.Errorf("unexpected %q after ']' in key path %q", path[i], path)
			}
		default:
			buf.WriteByte(c)
			started = true
			i++
		}
	}

	if started {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty key path")
	}
	return segs, nil
}

// MustParse parses a path and panics on failure. Test and fixture use only.
func MustParse(path string) KeyPath {
	p, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the canonical textual form. Canonical input round-trips:
// keys joined with '.', indexes bracketed. Keys that contain grammar
// characters render bracketed.
func (p KeyPath) String() string {
	var b strings.Builder
	for i, seg := range p {
		switch {
		case seg.IsIndex:
			fmt.Fprintf(&b, "[%d]", seg.Index)
		case strings.ContainsAny(seg.Key, ".[]"):
			fmt.Fprintf(&b, "[%s]", seg.Key)
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

// Root returns the root-level key for this path: the first segment's key,
// or its decimal rendering for an index segment (numeric-looking roots
// address object keys, never arrays).
func (p KeyPath) Root() string {
	if len(p) == 0 {
		return ""
	}
	if p[0].IsIndex {
		return strconv.Itoa(p[0].Index)
	}
	return p[0].Key
}

// HasPrefix reports whether p starts with the segments of prefix.
func (p KeyPath) HasPrefix(prefix KeyPath) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, seg := range prefix {
		if p[i] != seg {
			return false
		}
	}
	return true
}
