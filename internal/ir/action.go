package ir

import (
	"encoding/json"
	"fmt"
)

// Kind discriminators for action descriptors.
const (
	KindSetValue     = "setValue"
	KindRemoveValue  = "removeValue"
	KindMergeValue   = "mergeValue"
	KindTransaction  = "transaction"
	KindNavigate     = "navigate"
	KindShowToast    = "showToast"
	KindShowAlert    = "showAlert"
	KindShowSheet    = "showSheet"
	KindDismissSheet = "dismissSheet"
	KindShowLoading  = "showLoading"
	KindHideLoading  = "hideLoading"
	KindSystem       = "system"
	KindRequest      = "request"
	KindSequence     = "sequence"
	KindConditional  = "conditional"
	KindSwitch       = "switch"
)

// ActionDesc is the sealed statement vocabulary. Control-flow composites
// (sequence, conditional, switch) are part of the closed set and matched
// exhaustively by the executor; only the host-facing leaves (navigation, UI
// prompts, system calls, network) dispatch through a registry.
type ActionDesc interface {
	actionDesc()
}

func (SetValue) actionDesc()     {}
func (RemoveValue) actionDesc()  {}
func (MergeValue) actionDesc()   {}
func (TxnAction) actionDesc()    {}
func (Navigate) actionDesc()     {}
func (ShowToast) actionDesc()    {}
func (ShowAlert) actionDesc()    {}
func (ShowSheet) actionDesc()    {}
func (DismissSheet) actionDesc() {}
func (ShowLoading) actionDesc()  {}
func (HideLoading) actionDesc()  {}
func (SystemCall) actionDesc()   {}
func (Request) actionDesc()      {}
func (Sequence) actionDesc()     {}
func (Conditional) actionDesc()  {}
func (Switch) actionDesc()       {}

// IsMutation reports whether a is a store mutation, the only action kinds a
// transaction admits.
func IsMutation(a ActionDesc) bool {
	switch a.(type) {
	case SetValue, RemoveValue, MergeValue:
		return true
	}
	return false
}

// SetValue writes the resolved value at KeyPath in the referenced store.
type SetValue struct {
	Ref     StoreRef  `json:"storeRef"`
	KeyPath string    `json:"keyPath"`
	Value   ValueDesc `json:"value"`
}

// RemoveValue deletes the value at KeyPath in the referenced store.
type RemoveValue struct {
	Ref     StoreRef `json:"storeRef"`
	KeyPath string   `json:"keyPath"`
}

// MergeValue shallow-merges the resolved object into the value at KeyPath.
type MergeValue struct {
	Ref     StoreRef  `json:"storeRef"`
	KeyPath string    `json:"keyPath"`
	Value   ValueDesc `json:"value"`
}

// TxnAction commits an ordered list of mutations atomically. All mutations
// must target the same store; observers see one change for the whole batch.
type TxnAction struct {
	Actions []ActionDesc `json:"actions"`
}

// NavOp enumerates the navigation operations.
type NavOp string

const (
	NavPush         NavOp = "push"
	NavPop          NavOp = "pop"
	NavReplace      NavOp = "replace"
	NavModal        NavOp = "modal"
	NavDismissModal NavOp = "dismissModal"
	NavPopTo        NavOp = "popTo"
	NavReset        NavOp = "reset"
)

// Navigate drives the host navigation stack. Target names the destination
// screen for push/replace/modal/popTo/reset; Params are resolved before
// dispatch.
type Navigate struct {
	Op     NavOp                `json:"op"`
	Target string               `json:"target,omitempty"`
	Params map[string]ValueDesc `json:"params,omitempty"`
}

// ShowToast displays a transient message.
type ShowToast struct {
	Message ValueDesc `json:"message"`
	Style   string    `json:"style,omitempty"`
}

// AlertButton is one alert choice; Action, when present, runs on selection.
type AlertButton struct {
	Label  ValueDesc  `json:"label"`
	Role   string     `json:"role,omitempty"`
	Action ActionDesc `json:"action,omitempty"`
}

// ShowAlert displays a modal alert and waits for a button choice.
type ShowAlert struct {
	Title   ValueDesc     `json:"title"`
	Message ValueDesc     `json:"message,omitempty"`
	Buttons []AlertButton `json:"buttons"`
}

// SheetOption is one sheet row; Action, when present, runs on selection.
type SheetOption struct {
	Label  ValueDesc  `json:"label"`
	Action ActionDesc `json:"action,omitempty"`
}

// ShowSheet displays an option sheet.
type ShowSheet struct {
	Title   ValueDesc     `json:"title,omitempty"`
	Options []SheetOption `json:"options"`
}

// DismissSheet dismisses the current sheet.
type DismissSheet struct{}

// ShowLoading displays a loading indicator, optionally with a message.
type ShowLoading struct {
	Message ValueDesc `json:"message,omitempty"`
}

// HideLoading hides the loading indicator.
type HideLoading struct{}

// SystemOp enumerates the host system calls.
type SystemOp string

const (
	SysShare             SystemOp = "share"
	SysOpenURL           SystemOp = "openUrl"
	SysHaptic            SystemOp = "haptic"
	SysCopyToClipboard   SystemOp = "copyToClipboard"
	SysRequestPermission SystemOp = "requestPermission"
)

// SystemCall invokes a host system capability with resolved arguments.
type SystemCall struct {
	Call SystemOp             `json:"call"`
	Args map[string]ValueDesc `json:"args,omitempty"`
}

// ResponseMapping copies one response field into a store after a successful
// request.
type ResponseMapping struct {
	ResponsePath string   `json:"responsePath"`
	Ref          StoreRef `json:"storeRef"`
	KeyPath      string   `json:"keyPath"`
}

// Request performs a network call. OnSuccess and OnError run asynchronously
// relative to the triggering sequence unless embedded in a strictly serial
// parent.
type Request struct {
	Method    string               `json:"method"`
	Endpoint  ValueDesc            `json:"endpoint"`
	Headers   map[string]ValueDesc `json:"headers,omitempty"`
	Body      ValueDesc            `json:"body,omitempty"`
	SaveTo    []ResponseMapping    `json:"saveTo,omitempty"`
	OnSuccess []ActionDesc         `json:"onSuccess,omitempty"`
	OnError   []ActionDesc         `json:"onError,omitempty"`
}

// Strategy selects how a sequence runs its sub-actions.
type Strategy string

const (
	StrategySerial   Strategy = "serial"
	StrategyParallel Strategy = "parallel"
)

// Sequence runs sub-actions serially or in parallel. StopOnError only
// applies to the serial strategy; parallel sequences always join on all
// sub-actions and collect failures.
type Sequence struct {
	Actions     []ActionDesc `json:"actions"`
	Strategy    Strategy     `json:"strategy"`
	StopOnError bool         `json:"stopOnError,omitempty"`
}

// Conditional evaluates its condition once, then runs exactly one branch. A
// false condition with no else branch is a no-op.
type Conditional struct {
	Cond CondDesc     `json:"condition"`
	Then []ActionDesc `json:"then"`
	Else []ActionDesc `json:"else,omitempty"`
}

// SwitchCase pairs a match value with the actions to run on equality.
type SwitchCase struct {
	Match   ValueDesc    `json:"match"`
	Actions []ActionDesc `json:"actions"`
}

// Switch resolves Value, then runs the first case whose resolved match
// equals it, else Default if present, else nothing.
type Switch struct {
	Value   ValueDesc    `json:"value"`
	Cases   []SwitchCase `json:"cases"`
	Default []ActionDesc `json:"default,omitempty"`
}

func (a SetValue) MarshalJSON() ([]byte, error) {
	type alias SetValue
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindSetValue, alias(a)})
}

func (a *SetValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ref     StoreRef        `json:"storeRef"`
		KeyPath string          `json:"keyPath"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := DecodeValueDesc(raw.Value)
	if err != nil {
		return err
	}
	a.Ref = raw.Ref
	a.KeyPath = raw.KeyPath
	a.Value = v
	return nil
}

func (a RemoveValue) MarshalJSON() ([]byte, error) {
	type alias RemoveValue
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindRemoveValue, alias(a)})
}

func (a MergeValue) MarshalJSON() ([]byte, error) {
	type alias MergeValue
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindMergeValue, alias(a)})
}

func (a *MergeValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ref     StoreRef        `json:"storeRef"`
		KeyPath string          `json:"keyPath"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := DecodeValueDesc(raw.Value)
	if err != nil {
		return err
	}
	a.Ref = raw.Ref
	a.KeyPath = raw.KeyPath
	a.Value = v
	return nil
}

func (a TxnAction) MarshalJSON() ([]byte, error) {
	type alias TxnAction
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindTransaction, alias(a)})
}

func (a *TxnAction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Actions []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	actions, err := decodeActions(raw.Actions)
	if err != nil {
		return err
	}
	for i, sub := range actions {
		if !IsMutation(sub) {
			return fmt.Errorf("transaction admits only store mutations, actions[%d] is not one", i)
		}
	}
	a.Actions = actions
	return nil
}

func (a Navigate) MarshalJSON() ([]byte, error) {
	type alias Navigate
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindNavigate, alias(a)})
}

func (a *Navigate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op     NavOp                      `json:"op"`
		Target string                     `json:"target"`
		Params map[string]json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	params, err := decodeValueMap(raw.Params)
	if err != nil {
		return err
	}
	a.Op = raw.Op
	a.Target = raw.Target
	a.Params = params
	return nil
}

func (a ShowToast) MarshalJSON() ([]byte, error) {
	type alias ShowToast
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindShowToast, alias(a)})
}

func (a *ShowToast) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message json.RawMessage `json:"message"`
		Style   string          `json:"style"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	msg, err := DecodeValueDesc(raw.Message)
	if err != nil {
		return err
	}
	a.Message = msg
	a.Style = raw.Style
	return nil
}

func (b *AlertButton) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label  json.RawMessage `json:"label"`
		Role   string          `json:"role"`
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	label, err := DecodeValueDesc(raw.Label)
	if err != nil {
		return err
	}
	b.Label = label
	b.Role = raw.Role
	b.Action = nil
	if raw.Action != nil {
		action, err := DecodeAction(raw.Action)
		if err != nil {
			return err
		}
		b.Action = action
	}
	return nil
}

func (a ShowAlert) MarshalJSON() ([]byte, error) {
	type alias ShowAlert
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindShowAlert, alias(a)})
}

func (a *ShowAlert) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title   json.RawMessage `json:"title"`
		Message json.RawMessage `json:"message"`
		Buttons []AlertButton   `json:"buttons"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	title, err := DecodeValueDesc(raw.Title)
	if err != nil {
		return err
	}
	a.Title = title
	a.Message = nil
	if raw.Message != nil {
		msg, err := DecodeValueDesc(raw.Message)
		if err != nil {
			return err
		}
		a.Message = msg
	}
	a.Buttons = raw.Buttons
	return nil
}

func (o *SheetOption) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label  json.RawMessage `json:"label"`
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	label, err := DecodeValueDesc(raw.Label)
	if err != nil {
		return err
	}
	o.Label = label
	o.Action = nil
	if raw.Action != nil {
		action, err := DecodeAction(raw.Action)
		if err != nil {
			return err
		}
		o.Action = action
	}
	return nil
}

func (a ShowSheet) MarshalJSON() ([]byte, error) {
	type alias ShowSheet
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindShowSheet, alias(a)})
}

func (a *ShowSheet) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title   json.RawMessage `json:"title"`
		Options []SheetOption   `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Title = nil
	if raw.Title != nil {
		title, err := DecodeValueDesc(raw.Title)
		if err != nil {
			return err
		}
		a.Title = title
	}
	a.Options = raw.Options
	return nil
}

func (a DismissSheet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
	}{KindDismissSheet})
}

func (a ShowLoading) MarshalJSON() ([]byte, error) {
	type alias ShowLoading
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindShowLoading, alias(a)})
}

func (a *ShowLoading) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Message = nil
	if raw.Message != nil {
		msg, err := DecodeValueDesc(raw.Message)
		if err != nil {
			return err
		}
		a.Message = msg
	}
	return nil
}

func (a HideLoading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
	}{KindHideLoading})
}

func (a SystemCall) MarshalJSON() ([]byte, error) {
	type alias SystemCall
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindSystem, alias(a)})
}

func (a *SystemCall) UnmarshalJSON(data []byte) error {
	var raw struct {
		Call SystemOp                   `json:"call"`
		Args map[string]json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	args, err := decodeValueMap(raw.Args)
	if err != nil {
		return err
	}
	a.Call = raw.Call
	a.Args = args
	return nil
}

func (a Request) MarshalJSON() ([]byte, error) {
	type alias Request
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindRequest, alias(a)})
}

func (a *Request) UnmarshalJSON(data []byte) error {
	var raw struct {
		Method    string                     `json:"method"`
		Endpoint  json.RawMessage            `json:"endpoint"`
		Headers   map[string]json.RawMessage `json:"headers"`
		Body      json.RawMessage            `json:"body"`
		SaveTo    []ResponseMapping          `json:"saveTo"`
		OnSuccess []json.RawMessage          `json:"onSuccess"`
		OnError   []json.RawMessage          `json:"onError"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	endpoint, err := DecodeValueDesc(raw.Endpoint)
	if err != nil {
		return err
	}
	headers, err := decodeValueMap(raw.Headers)
	if err != nil {
		return err
	}
	var body ValueDesc
	if raw.Body != nil {
		body, err = DecodeValueDesc(raw.Body)
		if err != nil {
			return err
		}
	}
	onSuccess, err := decodeActions(raw.OnSuccess)
	if err != nil {
		return err
	}
	onError, err := decodeActions(raw.OnError)
	if err != nil {
		return err
	}
	a.Method = raw.Method
	a.Endpoint = endpoint
	a.Headers = headers
	a.Body = body
	a.SaveTo = raw.SaveTo
	a.OnSuccess = onSuccess
	a.OnError = onError
	return nil
}

func (a Sequence) MarshalJSON() ([]byte, error) {
	type alias Sequence
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindSequence, alias(a)})
}

func (a *Sequence) UnmarshalJSON(data []byte) error {
	var raw struct {
		Actions     []json.RawMessage `json:"actions"`
		Strategy    Strategy          `json:"strategy"`
		StopOnError bool              `json:"stopOnError"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	actions, err := decodeActions(raw.Actions)
	if err != nil {
		return err
	}
	a.Actions = actions
	a.Strategy = raw.Strategy
	if a.Strategy == "" {
		a.Strategy = StrategySerial
	}
	a.StopOnError = raw.StopOnError
	return nil
}

func (a Conditional) MarshalJSON() ([]byte, error) {
	type alias Conditional
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindConditional, alias(a)})
}

func (a *Conditional) UnmarshalJSON(data []byte) error {
	var raw struct {
		Cond json.RawMessage   `json:"condition"`
		Then []json.RawMessage `json:"then"`
		Else []json.RawMessage `json:"else"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cond, err := DecodeCond(raw.Cond)
	if err != nil {
		return err
	}
	then, err := decodeActions(raw.Then)
	if err != nil {
		return err
	}
	els, err := decodeActions(raw.Else)
	if err != nil {
		return err
	}
	a.Cond = cond
	a.Then = then
	a.Else = els
	return nil
}

func (c *SwitchCase) UnmarshalJSON(data []byte) error {
	var raw struct {
		Match   json.RawMessage   `json:"match"`
		Actions []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	match, err := DecodeValueDesc(raw.Match)
	if err != nil {
		return err
	}
	actions, err := decodeActions(raw.Actions)
	if err != nil {
		return err
	}
	c.Match = match
	c.Actions = actions
	return nil
}

func (a Switch) MarshalJSON() ([]byte, error) {
	type alias Switch
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{KindSwitch, alias(a)})
}

func (a *Switch) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value   json.RawMessage   `json:"value"`
		Cases   []SwitchCase      `json:"cases"`
		Default []json.RawMessage `json:"default"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := DecodeValueDesc(raw.Value)
	if err != nil {
		return err
	}
	def, err := decodeActions(raw.Default)
	if err != nil {
		return err
	}
	a.Value = v
	a.Cases = raw.Cases
	a.Default = def
	return nil
}
