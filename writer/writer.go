// Package writer serializes a store back into the classic file layout:
// header, body of indirect objects, cross-reference table, trailer. Offsets
// recorded in the table are byte-exact against the emitted output.
package writer

import (
	"bytes"
	"fmt"
	"os"

	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/observability"
	"github.com/wudi/pdfstore/store"
)

// Serializer renders stores. The zero value is usable; options add
// diagnostics.
type Serializer struct {
	log observability.Logger
}

// Option configures a serializer.
type Option func(*Serializer)

// WithLogger routes render diagnostics to log.
func WithLogger(log observability.Logger) Option {
	return func(w *Serializer) { w.log = log }
}

// NewSerializer builds a serializer.
func NewSerializer(opts ...Option) *Serializer {
	w := &Serializer{log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Render serializes the whole store into one byte slice. Any encoding
// failure aborts the render; no partial output is returned.
func (w *Serializer) Render(s *store.Store) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%%PDF-%s\n", s.Version())
	buf.WriteString("%\xe2\xe3\xcf\xd3\n")

	pairs := s.Pairs()
	offsets := make([]int, 0, len(pairs))
	for _, p := range pairs {
		enc, err := Encode(p.Obj, false)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d %d obj\n", p.Ref.Num, p.Ref.Gen)
		buf.Write(enc)
		buf.WriteByte('\n')
		if st, ok := p.Obj.(*object.Stream); ok {
			buf.WriteString("stream\n")
			buf.Write(st.Data)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(pairs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	trailer := object.NewDict()
	trailer.Set("Size", object.Int(int64(len(pairs))))
	for _, key := range s.Trailer().Keys() {
		val, _ := s.Trailer().Get(key)
		trailer.Set(key, val)
	}
	encTrailer, err := Encode(trailer, false)
	if err != nil {
		return nil, err
	}
	buf.WriteString("trailer\n")
	buf.Write(encTrailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	w.log.Debug("document rendered",
		observability.Int("objects", len(pairs)),
		observability.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// Persist renders the store and writes it to path. The render happens fully
// in memory first, so a failure leaves no file behind.
func (w *Serializer) Persist(s *store.Store, path string) error {
	data, err := w.Render(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Render serializes s with a default serializer.
func Render(s *store.Store) ([]byte, error) { return NewSerializer().Render(s) }

// Persist writes s to path with a default serializer.
func Persist(s *store.Store, path string) error { return NewSerializer().Persist(s, path) }
