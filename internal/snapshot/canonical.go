package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// canonicalJSON re-encodes a JSON document with sorted object keys and no
// insignificant whitespace. Number text is preserved as written.
func canonicalJSON(raw []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding json value: %w", err)
	}

	return encode(v)
}

// encode marshals v without HTML escaping and without the trailing newline
// json.Encoder appends. Map keys come out sorted.
func encode(v any) (json.RawMessage, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding snapshot value: %w", err)
	}

	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
