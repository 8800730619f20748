package api

import (
	"bytes"
	"context"
	"encoding/json"
)

// listEnvelopeKeys is the order in which object-wrapped lists are looked up.
// The backend has answered list endpoints as a bare array, {"items": [...]},
// {"data": [...]} and {"results": [...]}.
var listEnvelopeKeys = []string{"items", "data", "results"}

// DecodeList normalizes a list response. A bare array wins; otherwise the
// first envelope key holding an array is used. Anything else (null, empty
// body, object without a known array) yields an empty, non-nil slice.
func DecodeList[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	out := []T{}
	if len(trimmed) == 0 {
		return out, nil
	}

	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		for _, key := range listEnvelopeKeys {
			v := bytes.TrimSpace(envelope[key])
			if len(v) == 0 || v[0] != '[' {
				continue
			}
			if err := json.Unmarshal(v, &out); err != nil {
				return nil, err
			}
			return out, nil
		}
	}
	return out, nil
}

// GetList issues r and normalizes the answer with DecodeList.
func GetList[T any](ctx context.Context, c *Client, r Request) ([]T, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, r, &raw); err != nil {
		return nil, err
	}
	items, err := DecodeList[T](raw)
	if err != nil {
		return nil, &TransportError{Op: "decode list " + r.Path, Err: err}
	}
	return items, nil
}
