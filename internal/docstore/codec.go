package docstore

import (
	"encoding/json"
	"fmt"
)

// Encode converts a tagged struct into Fields. Values become JSON-shaped
// (strings, float64, bool, nested maps and slices) so every backend stores
// the same representation.
func Encode(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return fields, nil
}

// Decode fills v from Fields.
func Decode(fields Fields, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func cloneFields(fields Fields) (Fields, error) {
	if fields == nil {
		return Fields{}, nil
	}
	return Encode(fields)
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
