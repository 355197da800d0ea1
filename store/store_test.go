package store_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/store"
)

// docBuilder assembles a classic-table PDF from raw object bodies.
type docBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int64
	order   []int
	trailer string
}

func newDocBuilder() *docBuilder {
	b := &docBuilder{offsets: make(map[int]int64)}
	b.buf.WriteString("%PDF-1.6\n")
	b.trailer = "<< /Size %d /Root 1 0 R >>"
	return b
}

func (b *docBuilder) add(num int, body string) *docBuilder {
	b.offsets[num] = int64(b.buf.Len())
	b.order = append(b.order, num)
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	return b
}

func (b *docBuilder) withTrailer(t string) *docBuilder {
	b.trailer = t
	return b
}

func (b *docBuilder) bytes() []byte {
	xrefOffset := b.buf.Len()
	max := 0
	for _, n := range b.order {
		if n > max {
			max = n
		}
	}
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", max+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= max; n++ {
		if off, ok := b.offsets[n]; ok {
			fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
		} else {
			b.buf.WriteString("0000000000 65535 f \n")
		}
	}
	b.buf.WriteString("trailer\n")
	fmt.Fprintf(&b.buf, b.trailer, max+1)
	fmt.Fprintf(&b.buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return b.buf.Bytes()
}

func simpleDoc() []byte {
	return newDocBuilder().
		add(1, "<< /Type /Catalog /Pages 2 0 R >>").
		add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>").
		add(3, "<< /Type /Page /Parent 2 0 R >>").
		bytes()
}

func openDoc(t *testing.T, data []byte) *store.Store {
	t.Helper()
	s, err := store.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	return s
}

func TestNewFreshDocument(t *testing.T) {
	s := store.New()

	assert.Equal(t, store.DefaultVersion, s.Version())
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.IsEmpty())

	root, ok := s.Trailer().Ref("Root")
	require.True(t, ok)
	catalog, isDict := s.Resolve(root).(*object.Dict)
	require.True(t, isDict)
	assert.Equal(t, object.Name("Catalog"), catalog.Name("Type"))

	pagesRef, ok := catalog.Ref("Pages")
	require.True(t, ok)
	pages, isDict := s.Resolve(pagesRef).(*object.Dict)
	require.True(t, isDict)
	assert.Equal(t, object.Name("Pages"), pages.Name("Type"))
	assert.Equal(t, int64(0), pages.Int64("Count"))

	id, ok := s.Trailer().Get("ID")
	require.True(t, ok)
	arr, isArr := id.(object.Array)
	require.True(t, isArr)
	assert.Len(t, arr, 2)
	assert.NotEqual(t, arr[0], arr[1])
}

func TestNewReaderRejectsNil(t *testing.T) {
	_, err := store.NewReader(nil)
	var cerr *store.ConstructionError
	require.ErrorAs(t, err, &cerr)
}

func TestNewReaderRejectsGarbage(t *testing.T) {
	_, err := store.NewReader(bytes.NewReader([]byte("not a document")))
	var cerr *store.ConstructionError
	require.ErrorAs(t, err, &cerr)
}

func TestEncryptedDocumentRejected(t *testing.T) {
	data := newDocBuilder().
		add(1, "<< /Type /Catalog >>").
		withTrailer("<< /Size %d /Root 1 0 R /Encrypt 9 0 R >>").
		bytes()

	s, err := store.NewReader(bytes.NewReader(data))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, store.ErrEncryptionUnsupported)
}

func TestResolve(t *testing.T) {
	s := openDoc(t, simpleDoc())

	obj := s.Resolve(object.Ref{Num: 1})
	dict, ok := obj.(*object.Dict)
	require.True(t, ok)
	assert.Equal(t, object.Name("Catalog"), dict.Name("Type"))

	// Repeated resolution returns the cached instance.
	assert.Same(t, dict, s.Resolve(object.Ref{Num: 1}).(*object.Dict))

	// Bare-number resolution.
	assert.Same(t, dict, s.ResolveNum(1).(*object.Dict))
}

func TestResolveMissesYieldDefault(t *testing.T) {
	s := openDoc(t, simpleDoc())

	assert.Nil(t, s.Resolve(object.Ref{Num: 0}))
	assert.Nil(t, s.Resolve(object.Ref{Num: -4}))
	assert.Nil(t, s.Resolve(object.Ref{Num: 99}))
	// Wrong generation is a miss.
	assert.Nil(t, s.Resolve(object.Ref{Num: 1, Gen: 5}))
}

func TestResolveConfigurableDefault(t *testing.T) {
	s, err := store.NewReader(bytes.NewReader(simpleDoc()), store.WithDefault(object.Null{}))
	require.NoError(t, err)

	assert.Equal(t, object.Null{}, s.Resolve(object.Ref{Num: 99}))
}

func TestResolveOverlayPrecedence(t *testing.T) {
	s := openDoc(t, simpleDoc())
	ref := object.Ref{Num: 3}

	// Prime the decode cache, then override.
	original := s.Resolve(ref)
	require.NotNil(t, original)

	replacement := object.DictOf(object.Name("Type"), object.Name("Page"), object.Name("Rotate"), object.Int(90))
	require.NoError(t, s.Assign(ref, replacement))

	assert.Same(t, replacement, s.Resolve(ref).(*object.Dict))
	assert.NotSame(t, original.(*object.Dict), s.Resolve(ref).(*object.Dict))
}

func TestAssignUnknownRefFails(t *testing.T) {
	s := openDoc(t, simpleDoc())

	err := s.Assign(object.Ref{Num: 42}, object.Null{})
	var aerr *store.AssignmentError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, object.Ref{Num: 42}, aerr.Ref)

	// A fresh store has no locator index at all.
	err = store.New().Assign(object.Ref{Num: 1}, object.Null{})
	assert.ErrorAs(t, err, &aerr)
}

func TestAssignWrongGenerationFails(t *testing.T) {
	s := openDoc(t, simpleDoc())

	// Only (1, 0) is indexed; a different generation must not fabricate a
	// new key.
	err := s.Assign(object.Ref{Num: 1, Gen: 7}, object.Null{})
	var aerr *store.AssignmentError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, object.Ref{Num: 1, Gen: 7}, aerr.Ref)

	refs := s.Refs()
	assert.Len(t, refs, 3)
	assert.NotContains(t, refs, object.Ref{Num: 1, Gen: 7})

	// The indexed generation still assigns fine.
	require.NoError(t, s.Assign(object.Ref{Num: 1}, object.Null{}))
	assert.Len(t, s.Refs(), 3)
}

func TestResolveDeletedObject(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.4\n")

	o1 := int64(buf.Len())
	buf.WriteString("1 0 obj\n(original)\nendobj\n")

	baseXRef := buf.Len()
	buf.WriteString("xref\n0 2\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(buf, "%010d 00000 n \n", o1)
	buf.WriteString("trailer\n<< /Size 2 /Root 1 0 R >>\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", baseXRef)

	// The incremental update deletes object 1.
	updateXRef := buf.Len()
	buf.WriteString("xref\n1 1\n")
	buf.WriteString("0000000000 00001 f \n")
	fmt.Fprintf(buf, "trailer\n<< /Size 2 /Root 1 0 R /Prev %d >>\n", baseXRef)
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", updateXRef)

	s := openDoc(t, buf.Bytes())

	assert.Nil(t, s.Resolve(object.Ref{Num: 1}))
	assert.False(t, s.HasNum(1))
	assert.Equal(t, 0, s.Len())
}

func TestResolveNumUsesIndexedGeneration(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.4\n")

	o1 := int64(buf.Len())
	buf.WriteString("1 5 obj\n(gen five)\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 2\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(buf, "%010d 00005 n \n", o1)
	buf.WriteString("trailer\n<< /Size 2 /Root 1 5 R >>\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	s := openDoc(t, buf.Bytes())

	assert.Equal(t, object.String("gen five"), s.ResolveNum(1))
	assert.Nil(t, s.Resolve(object.Ref{Num: 1, Gen: 0}))
}

func TestAllocateMonotonic(t *testing.T) {
	s := openDoc(t, simpleDoc())

	r1 := s.Allocate(object.Int(1))
	r2 := s.Allocate(object.Int(2))

	assert.Equal(t, object.Ref{Num: 4, Gen: 0}, r1)
	assert.Equal(t, object.Ref{Num: 5, Gen: 0}, r2)
	assert.Equal(t, object.Int(1), s.Resolve(r1))
	assert.Equal(t, object.Int(2), s.Resolve(r2))
}

func TestAllocateOnEmptyStore(t *testing.T) {
	s := store.New()
	// New() itself allocates 1 and 2.
	assert.Equal(t, object.Ref{Num: 3}, s.Allocate(object.Null{}))
}

func TestFetch(t *testing.T) {
	s := openDoc(t, simpleDoc())

	obj, err := s.Fetch(object.Ref{Num: 1})
	require.NoError(t, err)
	assert.NotNil(t, obj)

	// Miss with fallback.
	obj, err = s.Fetch(object.Ref{Num: 99}, object.Int(7))
	require.NoError(t, err)
	assert.Equal(t, object.Int(7), obj)

	// Miss without fallback.
	_, err = s.Fetch(object.Ref{Num: 99})
	var lerr *store.LookupError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, object.Ref{Num: 99}, lerr.Ref)

	// Non-positive id without fallback still fails.
	_, err = s.Fetch(object.Ref{Num: 0})
	assert.ErrorAs(t, err, &lerr)
}

func TestDeref(t *testing.T) {
	s := openDoc(t, simpleDoc())

	direct := object.Int(5)
	assert.Equal(t, direct, s.Deref(direct))

	resolved := s.Deref(object.Ref{Num: 1})
	dict, ok := resolved.(*object.Dict)
	require.True(t, ok)
	assert.Equal(t, object.Name("Catalog"), dict.Name("Type"))
}

func TestRefsUnionAndLen(t *testing.T) {
	s := openDoc(t, simpleDoc())
	assert.Equal(t, 3, s.Len())

	fresh := s.Allocate(object.Int(9))
	refs := s.Refs()
	assert.Equal(t, 4, s.Len())
	require.Len(t, refs, 4)
	// Index entries first in ascending order, overlay entries after.
	assert.Equal(t, object.Ref{Num: 1}, refs[0])
	assert.Equal(t, fresh, refs[3])

	// Overriding an indexed ref must not duplicate it.
	require.NoError(t, s.Assign(object.Ref{Num: 2}, object.Null{}))
	assert.Equal(t, 4, s.Len())
	assert.Len(t, s.Refs(), 4)
}

func TestPairsAndObjects(t *testing.T) {
	s := openDoc(t, simpleDoc())

	pairs := s.Pairs()
	require.Len(t, pairs, 3)
	for _, p := range pairs {
		assert.Equal(t, s.Resolve(p.Ref), p.Obj)
	}
	assert.Len(t, s.Objects(), 3)
}

func TestHasRefAndHasNum(t *testing.T) {
	s := openDoc(t, simpleDoc())

	assert.True(t, s.HasRef(object.Ref{Num: 1}))
	assert.False(t, s.HasRef(object.Ref{Num: 1, Gen: 2}))
	assert.False(t, s.HasRef(object.Ref{Num: 42}))

	assert.True(t, s.HasNum(1))
	assert.False(t, s.HasNum(42))

	fresh := s.Allocate(object.Int(1))
	assert.True(t, s.HasRef(fresh))
	assert.True(t, s.HasNum(fresh.Num))
}

func TestHasValue(t *testing.T) {
	s := openDoc(t, simpleDoc())
	assert.False(t, s.HasValue(object.Int(123)))

	s.Allocate(object.Int(123))
	assert.True(t, s.HasValue(object.Int(123)))

	assert.False(t, store.New().HasValue(object.Null{}))
}

func TestTypeOfAndIsStream(t *testing.T) {
	data := newDocBuilder().
		add(1, "<< /Type /Catalog /Pages 2 0 R >>").
		add(2, "<< /Type /Pages /Kids [] /Count 0 >>").
		add(3, "<< /Type /XObject /Length 4 >>\nstream\nabcd\nendstream").
		bytes()
	s := openDoc(t, data)

	assert.Equal(t, object.Name("Catalog"), s.TypeOf(object.Ref{Num: 1}))
	assert.Equal(t, object.Name("XObject"), s.TypeOf(object.Ref{Num: 3}))
	assert.Equal(t, object.Name(""), s.TypeOf(object.Ref{Num: 99}))

	assert.True(t, s.IsStream(object.Ref{Num: 3}))
	assert.False(t, s.IsStream(object.Ref{Num: 1}))
	assert.False(t, s.IsStream(object.Ref{Num: 99}))
}

func TestPageRefsFlattensDepthFirst(t *testing.T) {
	data := newDocBuilder().
		add(1, "<< /Type /Catalog /Pages 2 0 R >>").
		add(2, "<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 3 >>").
		add(3, "<< /Type /Page /Parent 2 0 R >>").
		add(4, "<< /Type /Pages /Parent 2 0 R /Kids [5 0 R 6 0 R] /Count 2 >>").
		add(5, "<< /Type /Page /Parent 4 0 R >>").
		add(6, "<< /Type /Page /Parent 4 0 R >>").
		bytes()
	s := openDoc(t, data)

	want := []object.Ref{{Num: 3}, {Num: 5}, {Num: 6}}
	assert.Equal(t, want, s.PageRefs())

	// Cached: later structural changes are not reflected.
	require.NoError(t, s.Assign(object.Ref{Num: 2},
		object.DictOf(object.Name("Type"), object.Name("Pages"), object.Name("Kids"), object.Array{})))
	assert.Equal(t, want, s.PageRefs())
}

func buildContainerDoc() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")

	o1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	o2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	// Objects 3 and 4 live inside container 5.
	o5 := buf.Len()
	payload := "3 0 4 9 (inside) << /Marker true >>"
	fmt.Fprintf(buf, "5 0 obj\n<< /Type /ObjStm /N 2 /First 8 /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(payload), payload)

	xrefOffset := buf.Len()
	var rows bytes.Buffer
	writeRow := func(typ byte, f2 int, f3 byte) {
		rows.Write([]byte{typ, byte(f2 >> 24), byte(f2 >> 16), byte(f2 >> 8), byte(f2), f3})
	}
	writeRow(0, 0, 255)
	writeRow(1, o1, 0)
	writeRow(1, o2, 0)
	writeRow(2, 5, 0)
	writeRow(2, 5, 1)
	writeRow(1, o5, 0)
	writeRow(1, xrefOffset, 0)
	fmt.Fprintf(buf, "6 0 obj\n<< /Type /XRef /Size 7 /W [1 4 1] /Root 1 0 R /Length %d >>\nstream\n",
		rows.Len())
	buf.Write(rows.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func TestResolveFromContainer(t *testing.T) {
	s := openDoc(t, buildContainerDoc())

	assert.Equal(t, object.String("inside"), s.Resolve(object.Ref{Num: 3}))

	marker, ok := s.Resolve(object.Ref{Num: 4}).(*object.Dict)
	require.True(t, ok)
	val, ok := marker.Get("Marker")
	require.True(t, ok)
	assert.Equal(t, object.Boolean(true), val)

	// Both members come out of the same decoded container.
	assert.Same(t, marker, s.Resolve(object.Ref{Num: 4}).(*object.Dict))
}

func TestPageRefsOnFreshStore(t *testing.T) {
	assert.Empty(t, store.New().PageRefs())
}

func TestStringSummary(t *testing.T) {
	s := store.New()
	assert.Equal(t, "store.Store{objects: 2, version: 1.3}", s.String())
}
