// Package decode converts loosely-typed maps into concrete structs
// by round-tripping through JSON.
package decode

import "encoding/json"

// FromMap decodes a map[string]any into the target type T.
func FromMap[T any](data map[string]any) (T, error) {
	var result T
	b, err := json.Marshal(data)
	if err != nil {
		return result, err
	}
	err = json.Unmarshal(b, &result)
	return result, err
}

// ToMap encodes a struct into its map[string]any representation.
func ToMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	err = json.Unmarshal(b, &result)
	return result, err
}
