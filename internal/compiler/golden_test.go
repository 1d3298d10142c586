package compiler

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// Golden fixtures pin the wire encoding of compiled handlers. A diff here
// means the bundle format changed for every client.
func TestCompileGolden(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "increment",
			src:  `store.set("count", store.get("count", 0) + 1)`,
		},
		{
			name: "toast_over_limit",
			src: `
function onChange(event) {
	if (event.count > 10) {
		ui.showToast(` + "`Too many: ${event.count}`" + `);
	}
}`,
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, diags := Compile(tt.name+".js", tt.src, nil)
			require.Empty(t, diags)
			out, err := MarshalIR(action)
			require.NoError(t, err)
			g.Assert(t, tt.name, out)
		})
	}
}
