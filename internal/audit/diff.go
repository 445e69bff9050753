package audit

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// DiffFields computes a structured top-level diff between two JSON payloads.
// Fields present only in before diff to a nil To; fields present only in
// after diff from a nil From. Unchanged fields are omitted. Payloads that are
// not JSON objects fall back to a single "payload" change entry.
func DiffFields(before, after json.RawMessage) FieldChanges {
	if bytes.Equal(before, after) {
		return FieldChanges{}
	}

	beforeMap, beforeOK := asObject(before)
	afterMap, afterOK := asObject(after)
	if !beforeOK || !afterOK {
		return FieldChanges{"payload": {From: rawAny(before), To: rawAny(after)}}
	}

	changes := FieldChanges{}
	for field, fromVal := range beforeMap {
		toVal, exists := afterMap[field]
		if !exists {
			changes[field] = FieldChange{From: fromVal, To: nil}
			continue
		}
		if !reflect.DeepEqual(fromVal, toVal) {
			changes[field] = FieldChange{From: fromVal, To: toVal}
		}
	}
	for field, toVal := range afterMap {
		if _, exists := beforeMap[field]; !exists {
			changes[field] = FieldChange{From: nil, To: toVal}
		}
	}
	return changes
}

func asObject(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return map[string]any{}, true
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func rawAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
