package common

import "encoding/json"

// Remarshal converts a decoded JSON value, usually a map[string]interface{},
// into T by encoding it again and decoding into T.
func Remarshal[T any](v interface{}) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
