package parser

import (
	"fmt"

	"github.com/wudi/pdfstore/filters"
	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/scanner"
)

// ObjectStream gives member-by-number access to a /ObjStm container: a
// compressed stream bundling several non-stream indirect objects. The
// payload is decoded once; members decode lazily and are cached.
type ObjectStream struct {
	data  []byte // decoded payload
	first int
	pairs []memberOffset
	cache map[int]object.Object
}

type memberOffset struct {
	num int
	off int
}

// NewObjectStream validates the container dictionary, decodes its payload,
// and parses the header's (number, offset) pairs.
func NewObjectStream(st *object.Stream) (*ObjectStream, error) {
	if st == nil {
		return nil, fmt.Errorf("object stream: nil stream")
	}
	if typ := st.Dict.Name("Type"); typ != "ObjStm" {
		return nil, fmt.Errorf("object stream: unexpected type %q", typ)
	}
	n := int(st.Dict.Int64("N"))
	first := int(st.Dict.Int64("First"))
	if n < 0 || first < 0 {
		return nil, fmt.Errorf("object stream: invalid N=%d First=%d", n, first)
	}

	data, err := filters.Decode(st.Dict, st.Data)
	if err != nil {
		return nil, fmt.Errorf("object stream: %w", err)
	}
	if first > len(data) {
		return nil, fmt.Errorf("object stream: First %d exceeds payload length %d", first, len(data))
	}

	// Header: N whitespace-separated integer pairs before the First offset.
	s := scanner.New(data[:first])
	pairs := make([]memberOffset, 0, n)
	for i := 0; i < n; i++ {
		numTok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		offTok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		if numTok.Type != scanner.TokenNumber || offTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("object stream header: non-numeric pair at index %d", i)
		}
		pairs = append(pairs, memberOffset{num: int(numTok.Int), off: int(offTok.Int)})
	}

	return &ObjectStream{
		data:  data,
		first: first,
		pairs: pairs,
		cache: make(map[int]object.Object),
	}, nil
}

// Len returns the number of members.
func (o *ObjectStream) Len() int { return len(o.pairs) }

// Numbers lists the member object numbers in container order.
func (o *ObjectStream) Numbers() []int {
	out := make([]int, len(o.pairs))
	for i, p := range o.pairs {
		out[i] = p.num
	}
	return out
}

// Member decodes the member with the given object number.
func (o *ObjectStream) Member(num int) (object.Object, error) {
	if obj, ok := o.cache[num]; ok {
		return obj, nil
	}
	for _, p := range o.pairs {
		if p.num != num {
			continue
		}
		start := o.first + p.off
		if start > len(o.data) {
			return nil, fmt.Errorf("object stream: member %d offset %d out of range", num, start)
		}
		obj, err := DecodeBytes(o.data[start:])
		if err != nil {
			return nil, fmt.Errorf("object stream: member %d: %w", num, err)
		}
		o.cache[num] = obj
		return obj, nil
	}
	return nil, fmt.Errorf("object stream: member %d not present", num)
}
