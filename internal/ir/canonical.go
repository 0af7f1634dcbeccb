package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical byte encoding of an IRValue.
// It is the only serialization used for hashing and statement fingerprints.
//
// The encoding is RFC 8785 JSON for null, bool, int, string, array and
// object. Values outside JSON are wrapped in single-key objects whose key
// starts with "$" ({"$float":"1.5"}, {"$map":[[k,v],...]},
// {"$type":"tag","value":v}) so they can never collide with plain objects
// produced from IRObject keys, which are NFC-normalized strings.
func MarshalCanonical(v IRValue) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v IRValue) error {
	switch val := v.(type) {
	case nil, IRNull:
		buf.WriteString("null")
	case IRBool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case IRInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case IRUint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case IRFloat:
		buf.WriteString(`{"$float":"`)
		buf.WriteString(formatFloat(float64(val)))
		buf.WriteString(`"}`)
	case IRString:
		s, err := marshalCanonicalString(string(val))
		if err != nil {
			return err
		}
		buf.Write(s)
	case IRArray:
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
	case IRObject:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := marshalCanonicalString(k)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := marshalCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case IRMap:
		buf.WriteString(`{"$map":[`)
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			if err := marshalCanonical(buf, e.Key); err != nil {
				return fmt.Errorf("map key %d: %w", i, err)
			}
			buf.WriteByte(',')
			if err := marshalCanonical(buf, e.Value); err != nil {
				return fmt.Errorf("map value %d: %w", i, err)
			}
			buf.WriteByte(']')
		}
		buf.WriteString(`]}`)
	case IRTagged:
		tag, err := marshalCanonicalString(val.Tag)
		if err != nil {
			return err
		}
		buf.WriteString(`{"$type":`)
		buf.Write(tag)
		buf.WriteString(`,"value":`)
		if err := marshalCanonical(buf, val.Value); err != nil {
			return fmt.Errorf("%s: %w", val.Tag, err)
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported IRValue type: %T", v)
	}
	return nil
}

// formatFloat renders floats so that NaN and signed zero have one spelling.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case f == 0:
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// marshalCanonicalString produces an NFC-normalized JSON string without HTML
// escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	// NFC normalize at serialization boundary
	normalized := norm.NFC.String(s)

	// Use encoder with HTML escaping disabled
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // CRITICAL: <, >, & must NOT be escaped
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// RFC 8785 leaves U+2028/U+2029 unescaped; encoding/json escapes them.
	result = unescapeU2028U2029(result)

	return result, nil
}

// unescapeU2028U2029 turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters, leaving \\u2028 (an escaped
// backslash followed by text) untouched.
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	backslashes := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '\\' && backslashes%2 == 0 && i+5 < len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			backslashes = 0
			continue
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
		out = append(out, c)
	}
	return out
}
