package types

import (
	"bytes"
	"encoding/json"
	"sort"
)

// CanonicalJSON re-marshals v with object keys sorted and no insignificant
// whitespace, so two configuration documents that are structurally equal
// produce byte-identical keys regardless of struct field order or which
// backend wrote them.
func CanonicalJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, elt := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, elt); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// Canonicalize fills defaults and returns the canonical JSON key for cfg.
func (c SimConfig) Canonicalize() (string, error) {
	return CanonicalJSON(c.WithDefaults())
}

// Canonicalize fills the simulation-cfg defaults and returns the
// canonical JSON key for cfg.
func (c ExactConfig) Canonicalize() (string, error) {
	full := c
	full.Sim = c.Sim.WithDefaults()
	return CanonicalJSON(full)
}
