package utils

import (
	"bytes"
	"encoding/json"
)

// MarshalJSONB marshals a value destined for a JSONB column.
func MarshalJSONB(data interface{}) ([]byte, error) {
	return json.Marshal(data)
}

// UnmarshalJSONB unmarshals JSONB column data into v, treating empty or null
// input as "leave v zero-valued" rather than an error.
func UnmarshalJSONB(data []byte, v interface{}) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, v)
}
