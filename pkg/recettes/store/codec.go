package store

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Encode marshals a value for storage.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return data, nil
}

// Decode unmarshals a stored value into dst.
func Decode(data []byte, dst any) error {
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// AddFields applies integer deltas to a JSON object and returns the new
// encoding. A nil or "null" current value is treated as an empty object.
func AddFields(current []byte, deltas map[string]int64) ([]byte, error) {
	fields := make(map[string]int64)
	if len(current) > 0 && string(current) != "null" {
		if err := json.Unmarshal(current, &fields); err != nil {
			return nil, fmt.Errorf("decode counters: %w", err)
		}
	}
	for k, d := range deltas {
		fields[k] += d
	}
	return Encode(fields)
}
