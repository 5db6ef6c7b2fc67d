// Package jsonutil wraps github.com/go-json-experiment/json behind the
// familiar Marshal/Unmarshal surface. Scan snapshots and API bodies are
// encoded on every status poll, so the faster codec pays for itself.
package jsonutil

import (
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Unmarshal parses JSON-encoded data into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent returns the indented JSON encoding of v. The prefix
// argument exists for encoding/json call-site compatibility and is
// ignored.
func MarshalIndent(v any, _, indent string) ([]byte, error) {
	return json.Marshal(v, jsontext.WithIndent(indent))
}

// Valid reports whether data is valid JSON.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}
