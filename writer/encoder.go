package writer

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/pdfstore/object"
)

// SerializationError reports a value the encoder cannot represent. It is
// fatal for the whole render.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string { return "writer: " + e.Reason }

// Encode turns a storable value into its wire-format tokens. Text strings
// inside content streams are hex-encoded as-is; outside they are first
// transcoded to UTF-16BE with a byte-order marker. The match over kinds is
// exhaustive: anything else fails.
func Encode(obj object.Object, inContentStream bool) ([]byte, error) {
	switch v := obj.(type) {
	case object.Null:
		return []byte("null"), nil
	case object.Boolean:
		if v {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case object.Number:
		return []byte(v.String()), nil
	case object.Array:
		return encodeArray(v, inContentStream)
	case object.Date:
		return encodeDate(v), nil
	case object.String:
		return encodeString(v, inContentStream)
	case object.Name:
		return encodeName(v), nil
	case *object.Dict:
		return encodeDict(v, inContentStream)
	case object.Ref:
		return []byte(fmt.Sprintf("%d %d R", v.Num, v.Gen)), nil
	case *object.Stream:
		// The raw payload is the serializer's body-pass concern.
		return encodeDict(v.Dict, inContentStream)
	default:
		return nil, &SerializationError{Reason: fmt.Sprintf("cannot encode value of type %T", obj)}
	}
}

func encodeArray(arr object.Array, inContentStream bool) ([]byte, error) {
	parts := make([]string, len(arr))
	for i, item := range arr {
		enc, err := Encode(item, inContentStream)
		if err != nil {
			return nil, err
		}
		parts[i] = string(enc)
	}
	return []byte("[" + strings.Join(parts, " ") + "]"), nil
}

// encodeDate renders D:YYYYMMDDHHMMSS±HH'MM' as an escaped literal string.
func encodeDate(d object.Date) []byte {
	t := d.Time()
	zone := t.Format("-0700")
	raw := "D:" + t.Format("20060102150405") + zone[:3] + "'" + zone[3:] + "'"
	var buf bytes.Buffer
	buf.WriteByte('(')
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < 0x20 || c == '(' || c == ')' || c == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(c)
	}
	buf.WriteByte(')')
	return buf.Bytes()
}

func encodeString(s object.String, inContentStream bool) ([]byte, error) {
	raw := []byte(s)
	if !inContentStream {
		enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
		transcoded, err := enc.Bytes(raw)
		if err != nil {
			return nil, &SerializationError{Reason: "text transcoding failed: " + err.Error()}
		}
		raw = transcoded
	}
	var buf bytes.Buffer
	buf.WriteByte('<')
	fmt.Fprintf(&buf, "%X", raw)
	buf.WriteByte('>')
	return buf.Bytes(), nil
}

// encodeName emits '/' plus the name bytes, hex-escaping anything outside
// the printable range and the delimiter set.
func encodeName(n object.Name) []byte {
	var buf bytes.Buffer
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7E || strings.IndexByte("#()/<>", c) >= 0 {
			fmt.Fprintf(&buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
	return buf.Bytes()
}

func encodeDict(d *object.Dict, inContentStream bool) ([]byte, error) {
	if d == nil {
		return nil, &SerializationError{Reason: "cannot encode nil dictionary"}
	}
	var buf bytes.Buffer
	buf.WriteString("<< ")
	for _, key := range d.Keys() {
		val, _ := d.Get(key)
		encVal, err := Encode(val, inContentStream)
		if err != nil {
			return nil, err
		}
		buf.Write(encodeName(key))
		buf.WriteByte(' ')
		buf.Write(encVal)
		buf.WriteByte('\n')
	}
	buf.WriteString(">>")
	return buf.Bytes(), nil
}
