package parser_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/parser"
)

func TestDecodeIndirectDict(t *testing.T) {
	data := []byte("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	ref, obj, err := parser.DecodeIndirectAt(data, 0)
	require.NoError(t, err)
	assert.Equal(t, object.Ref{Num: 1, Gen: 0}, ref)

	dict, ok := obj.(*object.Dict)
	require.True(t, ok)
	assert.Equal(t, object.Name("Catalog"), dict.Name("Type"))
	pages, ok := dict.Ref("Pages")
	require.True(t, ok)
	assert.Equal(t, object.Ref{Num: 2}, pages)
}

func TestDecodeIndirectAtOffset(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("garbage up front\n")
	offset := int64(buf.Len())
	buf.WriteString("7 2 obj\n[1 2.5 (hi) /N null true]\nendobj\n")

	ref, obj, err := parser.DecodeIndirectAt(buf.Bytes(), offset)
	require.NoError(t, err)
	assert.Equal(t, object.Ref{Num: 7, Gen: 2}, ref)

	arr, ok := obj.(object.Array)
	require.True(t, ok)
	require.Len(t, arr, 6)
	assert.Equal(t, object.Int(1), arr[0])
	assert.Equal(t, object.Real(2.5), arr[1])
	assert.Equal(t, object.String("hi"), arr[2])
	assert.Equal(t, object.Name("N"), arr[3])
	assert.Equal(t, object.Null{}, arr[4])
	assert.Equal(t, object.Boolean(true), arr[5])
}

func TestDecodeAtValidatesHeader(t *testing.T) {
	data := []byte("3 0 obj\n42\nendobj\n")

	obj, err := parser.DecodeAt(data, 0, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, object.Int(42), obj)

	_, err = parser.DecodeAt(data, 0, 4, 0)
	assert.Error(t, err)
	_, err = parser.DecodeAt(data, 0, 3, 1)
	assert.Error(t, err)
}

func TestDecodeStreamWithIntegerLength(t *testing.T) {
	payload := "payload with endstream inside"
	data := []byte(fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(payload), payload))

	_, obj, err := parser.DecodeIndirectAt(data, 0)
	require.NoError(t, err)
	st, ok := obj.(*object.Stream)
	require.True(t, ok)
	assert.Equal(t, payload, string(st.Data))
	assert.Equal(t, int64(len(payload)), st.Dict.Int64("Length"))
}

func TestDecodeStreamWithIndirectLength(t *testing.T) {
	// Length points at another object; the standalone decoder falls back to
	// the endstream search.
	data := []byte("5 0 obj\n<< /Length 6 0 R >>\nstream\nraw data\nendstream\nendobj\n")

	_, obj, err := parser.DecodeIndirectAt(data, 0)
	require.NoError(t, err)
	st, ok := obj.(*object.Stream)
	require.True(t, ok)
	assert.Equal(t, "raw data", string(st.Data))
}

func TestDecodeDictWithoutStreamKeyword(t *testing.T) {
	// A dict followed by endobj must stay a dict even when it has a Length.
	data := []byte("5 0 obj\n<< /Length 3 >>\nendobj\n")

	_, obj, err := parser.DecodeIndirectAt(data, 0)
	require.NoError(t, err)
	_, ok := obj.(*object.Dict)
	assert.True(t, ok)
}

func TestDecodeNestedStructures(t *testing.T) {
	data := []byte("9 0 obj\n<< /Kids [<< /A 1 >> << /B [2 3] >>] >>\nendobj\n")

	_, obj, err := parser.DecodeIndirectAt(data, 0)
	require.NoError(t, err)
	dict, ok := obj.(*object.Dict)
	require.True(t, ok)
	kids, ok := dict.Get("Kids")
	require.True(t, ok)
	arr, ok := kids.(object.Array)
	require.True(t, ok)
	require.Len(t, arr, 2)

	first, ok := arr[0].(*object.Dict)
	require.True(t, ok)
	assert.Equal(t, int64(1), first.Int64("A"))
}

func TestDecodeBytes(t *testing.T) {
	obj, err := parser.DecodeBytes([]byte("<< /Size 3 /Root 1 0 R >>"))
	require.NoError(t, err)
	dict, ok := obj.(*object.Dict)
	require.True(t, ok)
	assert.Equal(t, int64(3), dict.Int64("Size"))
}

func TestDecodeMalformedHeader(t *testing.T) {
	_, _, err := parser.DecodeIndirectAt([]byte("not an object"), 0)
	assert.Error(t, err)

	_, _, err = parser.DecodeIndirectAt([]byte("1 0 notobj 42"), 0)
	assert.Error(t, err)
}
