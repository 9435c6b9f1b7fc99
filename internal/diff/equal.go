package diff

import (
	"bytes"
	"encoding/json"
	"math/big"
)

// Equal reports whether two JSON documents are structurally equal.
// Object key order and whitespace are ignored and numbers compare by exact
// value, so 1, 1.0 and 1e0 are equal. Documents that fail to parse fall back
// to a byte comparison of their trimmed text.
func Equal(a, b json.RawMessage) bool {
	av, aErr := decode(a)
	bv, bErr := decode(b)

	if aErr != nil || bErr != nil {
		return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
	}

	return equalValue(av, bv)
}

func decode(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	return v, nil
}

func equalValue(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case json.Number:
		bv, ok := b.(json.Number)
		return ok && equalNumber(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, present := bv[k]
			if !present || !equalValue(x, y) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equalNumber(a, b json.Number) bool {
	if a == b {
		return true
	}

	ar, aok := new(big.Rat).SetString(a.String())
	br, bok := new(big.Rat).SetString(b.String())
	if !aok || !bok {
		return false
	}

	return ar.Cmp(br) == 0
}
