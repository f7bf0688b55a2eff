package seal

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"
)

// Canonicalize is the single mandatory canonicalization choke point: every
// digest, seal, and verification passes its payload through here.
//
// The canonical form of a payload is JSON with these fixed rules:
//
//   - object keys sorted by byte value, duplicates rejected
//   - no insignificant whitespace
//   - strings minimally escaped: quote, backslash, and C0 controls only,
//     no HTML escaping; input must be valid UTF-8
//   - numbers carried as IEEE-754 doubles and formatted shortest-form the
//     way encoding/json formats float64 ('f' for 1e-6 <= |x| < 1e21,
//     otherwise 'e' with the exponent's leading zero trimmed); NaN and
//     infinities rejected
//   - true/false/null literal
//
// Logically identical payloads therefore canonicalize to identical bytes
// regardless of source formatting: "1.0" and "1" both render as "1".
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, wrapError(KindCanonical, "VB-CANON-001", "payload is not serializable", err)
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON canonicalizes an encoded JSON value. See Canonicalize
// for the rules.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	if !utf8.Valid(raw) {
		return nil, newError(KindCanonical, "VB-CANON-002", "payload is not valid UTF-8")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, newError(KindCanonical, "VB-CANON-003", "trailing data after JSON value")
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, wrapError(KindCanonical, "VB-CANON-004", "invalid JSON", err)
	}
	return decodeFrom(dec, tok)
}

func decodeFrom(dec *json.Decoder, tok json.Token) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		// string, json.Number, bool, or nil.
		return tok, nil
	}
	switch d {
	case '{':
		obj := make(map[string]any)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, wrapError(KindCanonical, "VB-CANON-004", "invalid JSON", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, newError(KindCanonical, "VB-CANON-004", "object key is not a string")
			}
			if _, dup := obj[key]; dup {
				return nil, newError(KindCanonical, "VB-CANON-005", "duplicate object key "+strconv.Quote(key))
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj[key] = val
		}
		if _, err := dec.Token(); err != nil {
			return nil, wrapError(KindCanonical, "VB-CANON-004", "invalid JSON", err)
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, wrapError(KindCanonical, "VB-CANON-004", "invalid JSON", err)
		}
		return arr, nil
	}
	return nil, newError(KindInternal, "VB-INTERNAL-002", "unexpected JSON delimiter")
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeCanonicalString(buf, t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return wrapError(KindCanonical, "VB-CANON-006", "number "+t.String()+" is not representable", err)
		}
		return writeCanonicalNumber(buf, f)
	case float64:
		return writeCanonicalNumber(buf, t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return newError(KindInternal, "VB-INTERNAL-003", "unexpected value type in canonical writer")
	}
	return nil
}

func writeCanonicalNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return newError(KindCanonical, "VB-CANON-007", "number is not finite")
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b := strconv.AppendFloat(nil, f, format, -1, 64)
	if format == 'e' {
		// Trim the exponent's leading zero: 1e-09 becomes 1e-9.
		if n := len(b); n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	buf.Write(b)
	return nil
}

const hexDigits = "0123456789abcdef"

func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 0x20 && b != '"' && b != '\\' {
			// Multi-byte UTF-8 sequences pass through byte-for-byte.
			buf.WriteByte(b)
			continue
		}
		switch b {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[b>>4])
			buf.WriteByte(hexDigits[b&0xF])
		}
	}
	buf.WriteByte('"')
}
