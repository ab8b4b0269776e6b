// Package metadata decodes the CBOR-encoded on-chain metadata payload
// carried by an inscription into a storable form.
package metadata

import (
	"encoding/hex"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Extract decodes raw CBOR metadata bytes into the text the indexer stores.
//
// An empty map decodes to no metadata at all. A non-empty map or array is
// re-encoded as JSON text. Anything else - or bytes that fail to decode as
// CBOR - falls back to a hex encoding of the raw bytes.
func Extract(raw []byte) *string {
	if len(raw) == 0 {
		return nil
	}

	var value any
	if err := cbor.Unmarshal(raw, &value); err != nil {
		s := hex.EncodeToString(raw)
		return &s
	}

	switch v := value.(type) {
	case map[any]any:
		if len(v) == 0 {
			return nil
		}
		return encodeJSON(raw, normalize(v))
	case []any:
		return encodeJSON(raw, normalizeValue(v))
	default:
		s := hex.EncodeToString(raw)
		return &s
	}
}

func encodeJSON(raw []byte, v any) *string {
	data, err := json.Marshal(v)
	if err != nil {
		s := hex.EncodeToString(raw)
		return &s
	}
	s := string(data)
	return &s
}

// normalize converts a CBOR map[any]any into a map[string]any so it
// marshals to a JSON object rather than failing on non-string keys.
// Nested maps and arrays are converted the same way.
func normalize(m map[any]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[keyToString(k)] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		return normalize(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

func keyToString(k any) string {
	switch v := k.(type) {
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
