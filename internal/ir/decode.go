package ir

import (
	"encoding/json"
	"errors"
	"fmt"
)

// kindOf peeks the discriminator without decoding the rest of the node.
func kindOf(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty descriptor")
	}
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}
	if head.Kind == "" {
		return "", errors.New("descriptor missing kind discriminator")
	}
	return head.Kind, nil
}

// DecodeValueDesc decodes one value descriptor from its wire encoding.
func DecodeValueDesc(data []byte) (ValueDesc, error) {
	kind, err := kindOf(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindLiteral:
		var d Literal
		err = json.Unmarshal(data, &d)
		return d, err
	case KindStoreValue:
		var d StoreValue
		err = json.Unmarshal(data, &d)
		return d, err
	case KindComputed:
		var d Computed
		err = json.Unmarshal(data, &d)
		return d, err
	case KindEventData:
		var d EventData
		err = json.Unmarshal(data, &d)
		return d, err
	default:
		return nil, fmt.Errorf("unknown value descriptor kind %q", kind)
	}
}

// DecodeCond decodes one condition descriptor from its wire encoding.
func DecodeCond(data []byte) (CondDesc, error) {
	kind, err := kindOf(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindCompare:
		var d Compare
		err = json.Unmarshal(data, &d)
		return d, err
	case KindStringTest:
		var d StringTest
		err = json.Unmarshal(data, &d)
		return d, err
	case KindNullness:
		var d Nullness
		err = json.Unmarshal(data, &d)
		return d, err
	case KindLogic:
		var d Logic
		err = json.Unmarshal(data, &d)
		return d, err
	default:
		return nil, fmt.Errorf("unknown condition descriptor kind %q", kind)
	}
}

// DecodeAction decodes one action descriptor from its wire encoding.
func DecodeAction(data []byte) (ActionDesc, error) {
	kind, err := kindOf(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSetValue:
		var d SetValue
		err = json.Unmarshal(data, &d)
		return d, err
	case KindRemoveValue:
		var d RemoveValue
		err = json.Unmarshal(data, &d)
		return d, err
	case KindMergeValue:
		var d MergeValue
		err = json.Unmarshal(data, &d)
		return d, err
	case KindTransaction:
		var d TxnAction
		err = json.Unmarshal(data, &d)
		return d, err
	case KindNavigate:
		var d Navigate
		err = json.Unmarshal(data, &d)
		return d, err
	case KindShowToast:
		var d ShowToast
		err = json.Unmarshal(data, &d)
		return d, err
	case KindShowAlert:
		var d ShowAlert
		err = json.Unmarshal(data, &d)
		return d, err
	case KindShowSheet:
		var d ShowSheet
		err = json.Unmarshal(data, &d)
		return d, err
	case KindDismissSheet:
		return DismissSheet{}, nil
	case KindShowLoading:
		var d ShowLoading
		err = json.Unmarshal(data, &d)
		return d, err
	case KindHideLoading:
		return HideLoading{}, nil
	case KindSystem:
		var d SystemCall
		err = json.Unmarshal(data, &d)
		return d, err
	case KindRequest:
		var d Request
		err = json.Unmarshal(data, &d)
		return d, err
	case KindSequence:
		var d Sequence
		err = json.Unmarshal(data, &d)
		return d, err
	case KindConditional:
		var d Conditional
		err = json.Unmarshal(data, &d)
		return d, err
	case KindSwitch:
		var d Switch
		err = json.Unmarshal(data, &d)
		return d, err
	default:
		return nil, fmt.Errorf("unknown action descriptor kind %q", kind)
	}
}

func decodeValueDescs(raws []json.RawMessage) ([]ValueDesc, error) {
	if raws == nil {
		return nil, nil
	}
	out := make([]ValueDesc, len(raws))
	for i, raw := range raws {
		d, err := DecodeValueDesc(raw)
		if err != nil {
			return nil, fmt.Errorf("operands[%d]: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

func decodeConds(raws []json.RawMessage) ([]CondDesc, error) {
	if raws == nil {
		return nil, nil
	}
	out := make([]CondDesc, len(raws))
	for i, raw := range raws {
		d, err := DecodeCond(raw)
		if err != nil {
			return nil, fmt.Errorf("conditions[%d]: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

func decodeActions(raws []json.RawMessage) ([]ActionDesc, error) {
	if raws == nil {
		return nil, nil
	}
	out := make([]ActionDesc, len(raws))
	for i, raw := range raws {
		d, err := DecodeAction(raw)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

func decodeValueMap(raws map[string]json.RawMessage) (map[string]ValueDesc, error) {
	if raws == nil {
		return nil, nil
	}
	out := make(map[string]ValueDesc, len(raws))
	for k, raw := range raws {
		d, err := DecodeValueDesc(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}
