package store

import "github.com/roach88/uipulse/internal/value"

// Op is the kind of a patch.
type Op string

const (
	OpSet    Op = "set"
	OpRemove Op = "remove"
	OpMerge  Op = "merge"
)

// Patch is the unit of observable change: one mutation at one key path.
// Old is nil when the path was absent before the mutation.
type Patch struct {
	Op   Op
	Path string
	Old  value.Value
	New  value.Value
}

// Change is an ordered, non-empty list of patches sharing an optional
// transaction id. A transaction commit emits exactly one Change carrying
// every patch in the batch. Rev increases monotonically per store.
type Change struct {
	Patches []Patch
	TxnID   string
	Rev     int64
}
