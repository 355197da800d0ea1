// Package object defines the value model for indirect PDF objects: a closed
// set of kinds plus the (number, generation) reference identifying an
// indirect object.
package object

import (
	"fmt"
	"strconv"
	"time"
)

// Ref uniquely identifies an indirect PDF object.
type Ref struct {
	Num int
	Gen int
}

// NewRef builds a reference from a bare object number, generation 0.
func NewRef(num int) Ref { return Ref{Num: num} }

func (r Ref) Kind() Kind     { return KindRef }
func (r Ref) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Less orders references by (Num, Gen).
func (r Ref) Less(other Ref) bool {
	if r.Num != other.Num {
		return r.Num < other.Num
	}
	return r.Gen < other.Gen
}

// Kind tags every storable value. The set is closed: the encoder matches
// exhaustively over it and rejects anything else.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindDate
	KindName
	KindArray
	KindDict
	KindStream
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindName:
		return "name"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindStream:
		return "stream"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Object is the base interface for all storable values.
type Object interface {
	Kind() Kind
}

// Null is the PDF null object.
type Null struct{}

func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "null" }

// Boolean is a PDF boolean.
type Boolean bool

func (Boolean) Kind() Kind { return KindBoolean }
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Number is a PDF numeric value, integer or real.
type Number struct {
	I     int64
	F     float64
	IsInt bool
}

// Int builds an integer Number.
func Int(i int64) Number { return Number{I: i, IsInt: true} }

// Real builds a real Number.
func Real(f float64) Number { return Number{F: f} }

func (Number) Kind() Kind { return KindNumber }

// Int64 returns the integer value, truncating a real.
func (n Number) Int64() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

// Float64 returns the value as a float.
func (n Number) Float64() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// String renders the canonical decimal form.
func (n Number) String() string {
	if n.IsInt {
		return strconv.FormatInt(n.I, 10)
	}
	return strconv.FormatFloat(n.F, 'f', -1, 64)
}

// String is a PDF text string: a byte sequence that may need transcoding
// when serialized outside a content stream.
type String []byte

func (String) Kind() Kind       { return KindString }
func (s String) String() string { return string(s) }

// Date is a PDF date value.
type Date time.Time

func (Date) Kind() Kind        { return KindDate }
func (d Date) Time() time.Time { return time.Time(d) }

// Name is a PDF name atom.
type Name string

func (Name) Kind() Kind       { return KindName }
func (n Name) String() string { return "/" + string(n) }

// Array is an ordered sequence of values.
type Array []Object

func (Array) Kind() Kind { return KindArray }

// Stream is a dictionary plus a raw byte payload.
type Stream struct {
	Dict *Dict
	Data []byte
}

// NewStream builds a stream, synthesizing an empty dictionary if needed.
func NewStream(dict *Dict, data []byte) *Stream {
	if dict == nil {
		dict = NewDict()
	}
	return &Stream{Dict: dict, Data: data}
}

func (*Stream) Kind() Kind { return KindStream }
