package jsonutil

import (
	"bytes"
	"encoding/json"
)

// MarshalNoEscape encodes v into JSON without escaping <, >, & into \u003c, etc.
// Source code in reports is full of those characters.
func MarshalNoEscape(v any) ([]byte, error) {
	return encode(v, "")
}

// MarshalNoEscapeIndent is MarshalNoEscape with two-space indentation.
func MarshalNoEscapeIndent(v any) ([]byte, error) {
	return encode(v, "  ")
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// StripCodeFence removes a surrounding ```json ... ``` fence if present.
func StripCodeFence(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	s = s[3:]
	if nl := bytes.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return bytes.TrimSpace(raw)
	}
	s = bytes.TrimSpace(s)
	s = bytes.TrimSuffix(s, []byte("```"))
	return bytes.TrimSpace(s)
}

// UnmarshalFlex tries to unmarshal JSON bytes into v with best effort:
// 1) Direct unmarshal (after stripping a code fence)
// 2) Unwrap a payload that arrived as a quoted JSON string
// String values are never rewritten.
func UnmarshalFlex(raw []byte, v any) error {
	raw = StripCodeFence(raw)
	err := json.Unmarshal(raw, v)
	if err == nil {
		return nil
	}
	var quoted string
	if json.Unmarshal(raw, &quoted) != nil {
		return err
	}
	return json.Unmarshal(StripCodeFence([]byte(quoted)), v)
}
