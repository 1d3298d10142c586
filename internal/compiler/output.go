package compiler

import (
	"encoding/json"

	"github.com/roach88/uipulse/internal/ir"
)

// MarshalIR encodes a compiled action for the screen bundle. Indented so
// bundle diffs stay reviewable.
func MarshalIR(a ir.ActionDesc) ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}
