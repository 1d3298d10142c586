package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/value"
)

func mustCompile(t *testing.T, src string) ir.ActionDesc {
	t.Helper()
	action, diags := Compile("handler.js", src, nil)
	require.Empty(t, diags, "unexpected diagnostics: %v", diags)
	require.NotNil(t, action)
	return action
}

func compileDiags(t *testing.T, src string) []Diagnostic {
	t.Helper()
	action, diags := Compile("handler.js", src, nil)
	require.Nil(t, action, "rejected handlers must produce zero IR")
	require.NotEmpty(t, diags)
	return diags
}

func appRef() ir.StoreRef { return ir.StoreRef{Store: "app"} }

func TestCompileIncrement(t *testing.T) {
	action := mustCompile(t, `store.set("count", store.get("count", 0) + 1)`)

	assert.Equal(t, ir.SetValue{
		Ref:     appRef(),
		KeyPath: "count",
		Value: ir.Computed{
			Op: ir.OpAdd,
			Operands: []ir.ValueDesc{
				ir.StoreValue{Ref: appRef(), KeyPath: "count", Default: value.Int(0)},
				ir.Lit(value.Int(1)),
			},
		},
	}, action)
}

func TestCompileHandlerFunction(t *testing.T) {
	src := `
function onSubmit(event) {
	if (event.form.age >= 18) {
		store.set("user.adult", true);
	} else {
		ui.showToast("Must be 18 or older");
	}
}`
	action := mustCompile(t, src)

	assert.Equal(t, ir.Conditional{
		Cond: ir.Compare{
			Op:    ir.CmpGte,
			Left:  ir.EventData{Path: "form.age"},
			Right: ir.Lit(value.Int(18)),
		},
		Then: []ir.ActionDesc{
			ir.SetValue{Ref: appRef(), KeyPath: "user.adult", Value: ir.Lit(value.Bool(true))},
		},
		Else: []ir.ActionDesc{
			ir.ShowToast{Message: ir.Lit(value.String("Must be 18 or older"))},
		},
	}, action)
}

func TestCompileArrowHandler(t *testing.T) {
	action := mustCompile(t, `(event) => store.set("query", event.text.value)`)
	assert.Equal(t, ir.SetValue{
		Ref:     appRef(),
		KeyPath: "query",
		Value:   ir.EventData{Path: "text.value"},
	}, action)
}

func TestCompileMultiStatementIsSerialSequence(t *testing.T) {
	src := `
ui.showLoading();
store.remove("cart");
ui.hideLoading();
`
	action := mustCompile(t, src)
	seq, ok := action.(ir.Sequence)
	require.True(t, ok)
	assert.Equal(t, ir.StrategySerial, seq.Strategy)
	assert.True(t, seq.StopOnError)
	require.Len(t, seq.Actions, 3)
	assert.Equal(t, ir.ShowLoading{}, seq.Actions[0])
	assert.Equal(t, ir.RemoveValue{Ref: appRef(), KeyPath: "cart"}, seq.Actions[1])
	assert.Equal(t, ir.HideLoading{}, seq.Actions[2])
}

func TestCompileSwitch(t *testing.T) {
	src := `
function onPress(event) {
	switch (event.button) {
	case "save":
		store.merge("doc", { dirty: false });
		break;
	case "discard":
		store.remove("doc.draft");
		break;
	default:
		ui.showToast("Unknown button");
	}
}`
	action := mustCompile(t, src)

	sw, ok := action.(ir.Switch)
	require.True(t, ok)
	assert.Equal(t, ir.EventData{Path: "button"}, sw.Value)
	require.Len(t, sw.Cases, 2)
	assert.Equal(t, ir.Lit(value.String("save")), sw.Cases[0].Match)
	assert.Equal(t, []ir.ActionDesc{
		ir.MergeValue{Ref: appRef(), KeyPath: "doc", Value: ir.Lit(value.Object{"dirty": value.Bool(false)})},
	}, sw.Cases[0].Actions)
	assert.Equal(t, []ir.ActionDesc{
		ir.ShowToast{Message: ir.Lit(value.String("Unknown button"))},
	}, sw.Default)
}

func TestCompileTransaction(t *testing.T) {
	src := `
store.transaction(() => {
	store.set("cart.items", []);
	store.set("cart.total", 0);
	store.remove("cart.coupon");
});`
	action := mustCompile(t, src)

	txn, ok := action.(ir.TxnAction)
	require.True(t, ok)
	require.Len(t, txn.Actions, 3)
	assert.Equal(t, ir.RemoveValue{Ref: appRef(), KeyPath: "cart.coupon"}, txn.Actions[2])
}

func TestCompileTransactionRejectsNonMutations(t *testing.T) {
	diags := compileDiags(t, `store.transaction(() => { ui.showToast("no"); })`)
	assert.Equal(t, CodeUnsupportedConstruct, diags[0].Code)
	assert.Contains(t, diags[0].Suggestion, "set, merge, and remove")
}

func TestCompileNavigateAndSystem(t *testing.T) {
	src := `
function go(event) {
	nav.push("productDetail", { sku: event.sku, source: "list" });
	system.haptic("light");
}`
	action := mustCompile(t, src)
	seq := action.(ir.Sequence)
	require.Len(t, seq.Actions, 2)

	assert.Equal(t, ir.Navigate{
		Op:     ir.NavPush,
		Target: "productDetail",
		Params: map[string]ir.ValueDesc{
			"sku":    ir.EventData{Path: "sku"},
			"source": ir.Lit(value.String("list")),
		},
	}, seq.Actions[0])

	assert.Equal(t, ir.SystemCall{
		Call: ir.SysHaptic,
		Args: map[string]ir.ValueDesc{"type": ir.Lit(value.String("light"))},
	}, seq.Actions[1])
}

func TestCompileRequest(t *testing.T) {
	src := `
net.request({
	method: "POST",
	url: "https://api.example.com/cart",
	headers: { Authorization: prefs.get("auth.token") },
	body: { sku: "abc" },
	saveTo: [{ from: "cart.id", to: "cart.id" }],
	onSuccess: () => { ui.showToast("Saved"); },
	onError: () => { ui.showToast("Failed"); }
});`
	action := mustCompile(t, src)

	req, ok := action.(ir.Request)
	require.True(t, ok)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, ir.Lit(value.String("https://api.example.com/cart")), req.Endpoint)
	assert.Equal(t, ir.StoreValue{Ref: ir.StoreRef{Store: "prefs"}, KeyPath: "auth.token"},
		req.Headers["Authorization"])
	assert.Equal(t, []ir.ResponseMapping{
		{ResponsePath: "cart.id", Ref: appRef(), KeyPath: "cart.id"},
	}, req.SaveTo)
	require.Len(t, req.OnSuccess, 1)
	require.Len(t, req.OnError, 1)
}

func TestCompileParallel(t *testing.T) {
	src := `
flow.parallel(
	() => store.set("a", 1),
	() => store.set("b", 2)
);`
	action := mustCompile(t, src)
	seq, ok := action.(ir.Sequence)
	require.True(t, ok)
	assert.Equal(t, ir.StrategyParallel, seq.Strategy)
	assert.Len(t, seq.Actions, 2)
}

func TestCompileAlertWithFollowUp(t *testing.T) {
	src := `
ui.showAlert("Delete?", "This cannot be undone", [
	{ label: "Cancel", role: "cancel" },
	{ label: "Delete", role: "destructive", action: () => store.remove("doc") }
]);`
	action := mustCompile(t, src)

	alert, ok := action.(ir.ShowAlert)
	require.True(t, ok)
	require.Len(t, alert.Buttons, 2)
	assert.Nil(t, alert.Buttons[0].Action)
	assert.Equal(t, ir.RemoveValue{Ref: appRef(), KeyPath: "doc"}, alert.Buttons[1].Action)
}

func TestCompileStringPredicates(t *testing.T) {
	src := `
function check(event) {
	if (event.email.endsWith("@example.com") && !event.name.isEmpty()) {
		store.set("valid", true);
	}
}`
	action := mustCompile(t, src)
	cond := action.(ir.Conditional).Cond

	assert.Equal(t, ir.Logic{
		Op: ir.LogicAnd,
		Conds: []ir.CondDesc{
			ir.StringTest{
				Op:    ir.StrEndsWith,
				Left:  ir.EventData{Path: "email"},
				Right: ir.Lit(value.String("@example.com")),
			},
			ir.Logic{Op: ir.LogicNot, Conds: []ir.CondDesc{
				ir.Nullness{Op: ir.IsEmpty, Operand: ir.EventData{Path: "name"}},
			}},
		},
	}, cond)
}

func TestRejectLoops(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"for", `for (;;) { ui.hideLoading(); }`},
		{"while", `while (true) { ui.hideLoading(); }`},
		{"do-while", `do { ui.hideLoading(); } while (true)`},
		{"for-of", `function f(event) { for (const x of event.items) { ui.hideLoading(); } }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := compileDiags(t, tt.src)
			assert.Equal(t, CodeDynamicLoopNotSupported, diags[0].Code)
		})
	}
}

func TestRejectAsync(t *testing.T) {
	diags := compileDiags(t, `async function f(event) { store.set("a", 1); }`)
	assert.Equal(t, CodeAsyncNotSupported, diags[0].Code)
}

func TestRejectExternalReference(t *testing.T) {
	diags := compileDiags(t, `function f(event) { store.set("a", someGlobal); }`)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeExternalReference, diags[0].Code)
	assert.Contains(t, diags[0].Message, "someGlobal")
	assert.Equal(t, "handler.js", diags[0].Loc.File)
	assert.Positive(t, diags[0].Loc.Line)
}

func TestRejectUnknownActionAPI(t *testing.T) {
	diags := compileDiags(t, `ui.explode("boom")`)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnknownActionAPI, diags[0].Code)
	assert.Contains(t, diags[0].Message, "ui.explode")
}

func TestRejectLocalVariables(t *testing.T) {
	diags := compileDiags(t, `function f(event) { const n = 1; store.set("a", 1); }`)
	assert.Equal(t, CodeUnsupportedConstruct, diags[0].Code)
	assert.Contains(t, diags[0].Message, "local variables")
}

func TestRejectStoreGetStatement(t *testing.T) {
	diags := compileDiags(t, `store.get("a")`)
	assert.Equal(t, CodeUnsupportedConstruct, diags[0].Code)
	assert.Contains(t, diags[0].Message, "discards its value")
}

func TestDiagnosticsAccumulate(t *testing.T) {
	src := `
function f(event) {
	while (true) { ui.hideLoading(); }
	store.set("a", missing);
	ui.explode();
}`
	diags := compileDiags(t, src)
	require.Len(t, diags, 3)

	codes := make([]Code, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
	}
	assert.Contains(t, codes, CodeDynamicLoopNotSupported)
	assert.Contains(t, codes, CodeExternalReference)
	assert.Contains(t, codes, CodeUnknownActionAPI)
}

func TestParseErrorIsDiagnostic(t *testing.T) {
	diags := compileDiags(t, `store.set("a",`)
	assert.Equal(t, CodeParseError, diags[0].Code)
}

func TestCustomSurface(t *testing.T) {
	surface := &Surface{
		Stores:  map[string]ir.StoreRef{"cache": {Store: "session"}},
		Actions: map[string]string{"ui.showToast": ir.KindShowToast},
	}
	action, diags := Compile("handler.js", `cache.set("k", 1)`, surface)
	require.Empty(t, diags)
	assert.Equal(t, ir.SetValue{
		Ref:     ir.StoreRef{Store: "session"},
		KeyPath: "k",
		Value:   ir.Lit(value.Int(1)),
	}, action)

	// The default namespaces are gone under a custom surface.
	_, diags = Compile("handler.js", `store.set("k", 1)`, surface)
	require.NotEmpty(t, diags)
	assert.Equal(t, CodeUnknownActionAPI, diags[0].Code)
}

func TestCompiledIRRoundTripsThroughWire(t *testing.T) {
	src := `
function onSubmit(event) {
	if (event.count > 10) {
		ui.showToast("Too many");
	}
	store.set("last", event.count);
}`
	action := mustCompile(t, src)
	hash1, err := ir.Hash(action)
	require.NoError(t, err)

	wire, err := MarshalIR(action)
	require.NoError(t, err)
	decoded, err := ir.DecodeAction(wire)
	require.NoError(t, err)
	assert.Equal(t, action, decoded)
	assert.Equal(t, hash1, ir.MustHash(decoded))
}
