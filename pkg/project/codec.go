package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// marshal encodes v without HTML escaping and without a trailing newline.
// encoding/json escapes <, > and & by default, which only makes the document
// larger.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeArray decodes a JSON array into its raw elements.
func decodeArray(data []byte) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, err
	}
	return elems, nil
}

// decodeObject decodes a JSON object into its raw members.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	if members == nil {
		return nil, errors.New("expected object, got null")
	}
	return members, nil
}

// take decodes members[key] into v and removes it from members.
// Missing keys leave v untouched.
func take(members map[string]json.RawMessage, key string, v any) error {
	raw, ok := members[key]
	if !ok {
		return nil
	}
	delete(members, key)
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// isNull reports whether raw is the JSON literal null.
func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// firstByte returns the first non-space byte of data, or 0 for empty input.
func firstByte(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// decodeTag decodes a numeric array tag such as the shadow mode or the
// primitive kind. Tags written as floats ("12.0") are accepted.
func decodeTag(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	n := int(f)
	if float64(n) != f {
		return 0, false
	}
	return n, true
}

// decodeString decodes a JSON string, returning false for anything else.
func decodeString(raw json.RawMessage) (string, bool) {
	if firstByte(raw) != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// withMembers merges typed members over the raw extra members of an object.
func withMembers(extra map[string]json.RawMessage, typed map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+len(typed))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range typed {
		out[k] = v
	}
	return out
}
