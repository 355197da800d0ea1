// Package filters implements the stream filter decoders needed to open
// compressed object streams and cross-reference streams.
package filters

import (
	"bytes"
	"compress/zlib"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfstore/object"
)

// Decoder decodes one filter stage.
type Decoder interface {
	Name() string
	Decode(input []byte, params *object.Dict) ([]byte, error)
}

// Decode applies the stream dictionary's Filter chain to data. Streams
// without a Filter entry are returned as-is.
func Decode(dict *object.Dict, data []byte) ([]byte, error) {
	names, params := filterChain(dict)
	for i, name := range names {
		dec, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("filters: unsupported filter %q", name)
		}
		var p *object.Dict
		if i < len(params) {
			p = params[i]
		}
		out, err := dec.Decode(data, p)
		if err != nil {
			return nil, fmt.Errorf("filters: %s: %w", name, err)
		}
		data = out
	}
	return data, nil
}

var registry = map[string]Decoder{
	"FlateDecode":     flateDecoder{},
	"ASCIIHexDecode":  asciiHexDecoder{},
	"ASCII85Decode":   ascii85Decoder{},
	"RunLengthDecode": runLengthDecoder{},
}

// filterChain reads the Filter and DecodeParms entries of a stream dict.
// A single name and a single parameter dict are normalized to slices.
func filterChain(dict *object.Dict) ([]string, []*object.Dict) {
	if dict == nil {
		return nil, nil
	}
	var names []string
	fv, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := fv.(type) {
	case object.Name:
		names = append(names, string(f))
	case object.Array:
		for _, item := range f {
			if n, ok := item.(object.Name); ok {
				names = append(names, string(n))
			}
		}
	}
	var params []*object.Dict
	if pv, ok := dict.Get("DecodeParms"); ok {
		switch p := pv.(type) {
		case *object.Dict:
			params = append(params, p)
		case object.Array:
			for _, item := range p {
				d, _ := item.(*object.Dict)
				params = append(params, d)
			}
		}
	}
	return names, params
}

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(input []byte, params *object.Dict) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		return nil, err
	}
	return applyPredictor(out.Bytes(), params)
}

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(input []byte, params *object.Dict) ([]byte, error) {
	trimmed := bytes.Map(dropWhitespace, input)
	if i := bytes.IndexByte(trimmed, '>'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if len(trimmed)%2 == 1 {
		trimmed = append(trimmed, '0')
	}
	out := make([]byte, hex.DecodedLen(len(trimmed)))
	n, err := hex.Decode(out, trimmed)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(input []byte, params *object.Dict) ([]byte, error) {
	trimmed := bytes.TrimSpace(input)
	if bytes.HasPrefix(trimmed, []byte("<~")) {
		trimmed = trimmed[2:]
	}
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, len(trimmed)*4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(input []byte, params *object.Dict) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(input); {
		l := int(input[i])
		i++
		switch {
		case l == 128: // EOD
			return out.Bytes(), nil
		case l < 128:
			if i+l+1 > len(input) {
				return nil, errors.New("truncated literal run")
			}
			out.Write(input[i : i+l+1])
			i += l + 1
		default:
			if i >= len(input) {
				return nil, errors.New("truncated repeat run")
			}
			out.Write(bytes.Repeat(input[i:i+1], 257-l))
			i++
		}
	}
	return out.Bytes(), nil
}

func dropWhitespace(r rune) rune {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return -1
	}
	return r
}
