package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for sequence hashing. Version suffix enables future
// algorithm migration without colliding with old hashes.
const domainSequence = "prowl/sequence/v1"

// MarshalCanonical produces canonical JSON for hashing and journaling:
// object keys sorted, strings NFC-normalized, no HTML escaping, and no
// floats or nulls (both rejected with an error). The same step sequence
// always serializes to the same bytes.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(buf, val)
	case int:
		fmt.Fprintf(buf, "%d", val)
		return nil
	case int64:
		fmt.Fprintf(buf, "%d", val)
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case Params:
		return marshalCanonicalObject(buf, val)
	case map[string]any:
		return marshalCanonicalObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// marshalCanonicalString writes a JSON string with NFC normalization
// applied at the serialization boundary and HTML escaping disabled
// (<, > and & must not be escaped).
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	// Encoder appends a newline; strip it.
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// EncodeSteps canonically encodes a step sequence.
func EncodeSteps(steps []Step) ([]byte, error) {
	arr := make([]any, len(steps))
	for i, s := range steps {
		arr[i] = map[string]any{
			"index":   s.Index,
			"rule":    s.Rule,
			"params":  map[string]any(s.Params),
			"outcome": s.Outcome,
		}
	}
	return MarshalCanonical(arr)
}

// SequenceHash computes the content hash of a step sequence:
// SHA256(domain + 0x00 + canonicalJSON). The null separator prevents
// domain/data boundary ambiguity.
func SequenceHash(steps []Step) (string, error) {
	data, err := EncodeSteps(steps)
	if err != nil {
		return "", fmt.Errorf("sequence hash: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(domainSequence))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// EncodeParams canonically encodes a single parameter set.
func EncodeParams(p Params) ([]byte, error) {
	return MarshalCanonical(map[string]any(p))
}

// DecodeParams parses a canonically-encoded parameter set. Integers are
// restored as int64 (standard decoding would widen them to float64,
// which the canonical encoder rejects on the next round trip).
func DecodeParams(data []byte) (Params, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	v, err := restoreValue(raw)
	if err != nil {
		return nil, err
	}
	return Params(v.(map[string]any)), nil
}

func restoreValue(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q in params", val.String())
		}
		return n, nil
	case map[string]any:
		for k, elem := range val {
			restored, err := restoreValue(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			val[k] = restored
		}
		return val, nil
	case []any:
		for i, elem := range val {
			restored, err := restoreValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			val[i] = restored
		}
		return val, nil
	default:
		return val, nil
	}
}
