package keypath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uipulse/internal/value"
)

func TestParse(t *testing.T) {
	tests := []struct {
		path string
		want KeyPath
	}{
		{"a", KeyPath{Key("a")}},
		{"a.b.c", KeyPath{Key("a"), Key("b"), Key("c")}},
		{"a.b[2].c", KeyPath{Key("a"), Key("b"), Index(2), Key("c")}},
		{"[0]", KeyPath{Index(0)}},
		{"items[10][2]", KeyPath{Key("items"), Index(10), Index(2)}},
		// Non-numeric bracket content is a literal bracketed key, not an error.
		{"a[weird key]", KeyPath{Key("a"), Key("weird key")}},
		{"a[x.y]", KeyPath{Key("a"), Key("x.y")}},
		{"user.name", KeyPath{Key("user"), Key("name")}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Parse(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, path := range []string{"", ".", "a.", ".a", "a..b", "a[", "a[]", "a[0]x"} {
		t.Run(path, func(t *testing.T) {
			_, err := Parse(path)
			assert.Error(t, err)
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	// Canonical input: render(parse(p)) == p and re-parses identically.
	for _, path := range []string{"a", "a.b.c", "a.b[2].c", "[0]", "items[10][2]", "a[x.y].b"} {
		t.Run(path, func(t *testing.T) {
			p, err := Parse(path)
			require.NoError(t, err)
			assert.Equal(t, path, p.String())

			again, err := Parse(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, again)
		})
	}
}

func TestRoot(t *testing.T) {
	assert.Equal(t, "a", MustParse("a.b").Root())
	assert.Equal(t, "2", MustParse("[2].b").Root())
}

func TestHasPrefix(t *testing.T) {
	p := MustParse("a.b[2].c")
	assert.True(t, p.HasPrefix(MustParse("a")))
	assert.True(t, p.HasPrefix(MustParse("a.b[2]")))
	assert.True(t, p.HasPrefix(p))
	assert.False(t, p.HasPrefix(MustParse("a.c")))
	assert.False(t, p.HasPrefix(MustParse("a.b[2].c.d")))
}

func TestGet(t *testing.T) {
	root := value.Object{
		"user": value.Object{
			"name": value.String("Ann"),
			"tags": value.Array{value.String("x"), value.String("y")},
		},
	}

	v, ok := Get(root, MustParse("user.name"))
	require.True(t, ok)
	assert.Equal(t, value.String("Ann"), v)

	v, ok = Get(root, MustParse("user.tags[1]"))
	require.True(t, ok)
	assert.Equal(t, value.String("y"), v)

	// Missing key, out-of-range index, kind mismatch: all absent.
	_, ok = Get(root, MustParse("user.missing"))
	assert.False(t, ok)
	_, ok = Get(root, MustParse("user.tags[5]"))
	assert.False(t, ok)
	_, ok = Get(root, MustParse("user.name[0]"))
	assert.False(t, ok)
	_, ok = Get(root, MustParse("user.tags.x"))
	assert.False(t, ok)
}

func TestSetGetConsistency(t *testing.T) {
	paths := []string{"a", "a.b", "a.b[2].c", "x[0]", "deep.er.est"}
	vals := []value.Value{
		value.String("s"), value.Int(42), value.Number(1.5),
		value.Array{value.Bool(true)}, value.Object{"k": value.Null{}},
	}
	for _, path := range paths {
		for _, v := range vals {
			p := MustParse(path)
			root, _, _ := Set(nil, p, v)
			got, ok := Get(root, p)
			require.True(t, ok, "path %s", path)
			assert.True(t, value.Equal(v, got), "path %s", path)
		}
	}
}

func TestSetCopyOnWrite(t *testing.T) {
	orig := value.Object{"user": value.Object{"name": value.String("Ann")}}

	root, old, existed := Set(orig, MustParse("user.name"), value.String("Bo"))
	require.True(t, existed)
	assert.Equal(t, value.String("Ann"), old)

	// The original tree is untouched.
	v, _ := Get(orig, MustParse("user.name"))
	assert.Equal(t, value.String("Ann"), v)
	v, _ = Get(root, MustParse("user.name"))
	assert.Equal(t, value.String("Bo"), v)
}

func TestSetAutoVivifiesObjectsNotArrays(t *testing.T) {
	// A numeric segment under an absent parent creates an object keyed by
	// the digits, never an array.
	root, _, _ := Set(nil, MustParse("a[3].b"), value.Int(1))

	a, ok := Get(root, MustParse("a"))
	require.True(t, ok)
	obj, isObj := a.(value.Object)
	require.True(t, isObj, "expected object, got %T", a)
	_, hasKey := obj["3"]
	assert.True(t, hasKey)
}

func TestSetGrowsExistingArray(t *testing.T) {
	root := value.Object{"xs": value.Array{value.Int(1)}}
	root2, _, existed := Set(root, MustParse("xs[3]"), value.Int(4))
	assert.False(t, existed)

	xs, _ := Get(root2, MustParse("xs"))
	arr := xs.(value.Array)
	require.Len(t, arr, 4)
	assert.Equal(t, value.Null{}, arr[1])
	assert.Equal(t, value.Int(4), arr[3])
}

func TestRemove(t *testing.T) {
	root := value.Object{
		"user": value.Object{"name": value.String("Ann"), "age": value.Int(30)},
		"xs":   value.Array{value.Int(1), value.Int(2), value.Int(3)},
	}

	r1, old, existed := Remove(root, MustParse("user.age"))
	require.True(t, existed)
	assert.Equal(t, value.Int(30), old)
	_, ok := Get(r1, MustParse("user.age"))
	assert.False(t, ok)

	// Array element removal splices.
	r2, old, existed := Remove(root, MustParse("xs[1]"))
	require.True(t, existed)
	assert.Equal(t, value.Int(2), old)
	xs, _ := Get(r2, MustParse("xs"))
	assert.Equal(t, value.Array{value.Int(1), value.Int(3)}, xs)

	// Removing an absent path leaves the root untouched.
	r3, _, existed := Remove(root, MustParse("user.missing.deep"))
	assert.False(t, existed)
	assert.True(t, value.Equal(root, r3))
}

func TestMerge(t *testing.T) {
	root := value.Object{"user": value.Object{"name": value.String("Ann")}}

	r1, old, existed := Merge(root, MustParse("user"), value.Object{"age": value.Int(30)})
	require.True(t, existed)
	assert.True(t, value.Equal(value.Object{"name": value.String("Ann")}, old))

	got, _ := Get(r1, MustParse("user"))
	assert.True(t, value.Equal(value.Object{"name": value.String("Ann"), "age": value.Int(30)}, got))

	// Merge into an absent slot creates the object.
	r2, _, existed := Merge(root, MustParse("meta"), value.Object{"v": value.Int(1)})
	assert.False(t, existed)
	got, _ = Get(r2, MustParse("meta.v"))
	assert.Equal(t, value.Int(1), got)
}
