// Package parser decodes indirect objects out of a PDF byte buffer. It
// covers the two ways an object's bytes can be located: directly at a byte
// offset, or as a member of a compressed object stream.
package parser

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/scanner"
)

// DecodeAt decodes the indirect object starting at offset, validating its
// "num gen obj" header against the expected reference.
func DecodeAt(data []byte, offset int64, num, gen int) (object.Object, error) {
	ref, obj, err := DecodeIndirectAt(data, offset)
	if err != nil {
		return nil, err
	}
	if ref.Num != num || ref.Gen != gen {
		return nil, fmt.Errorf("object %d %d: header mismatch, found %s at offset %d", num, gen, ref, offset)
	}
	return obj, nil
}

// DecodeIndirectAt decodes the indirect object starting at offset and
// returns the reference declared by its "num gen obj" header.
func DecodeIndirectAt(data []byte, offset int64) (object.Ref, object.Object, error) {
	s := scanner.New(data)
	if err := s.SeekTo(offset); err != nil {
		return object.Ref{}, nil, err
	}
	tr := &tokenReader{s: s}

	tok, err := tr.next()
	if err != nil {
		return object.Ref{}, nil, fmt.Errorf("offset %d: %w", offset, err)
	}
	if tok.Type != scanner.TokenNumber || !tok.IsInt {
		return object.Ref{}, nil, fmt.Errorf("offset %d: expected object number", offset)
	}
	num := int(tok.Int)
	tok, err = tr.next()
	if err != nil {
		return object.Ref{}, nil, err
	}
	if tok.Type != scanner.TokenNumber || !tok.IsInt {
		return object.Ref{}, nil, fmt.Errorf("object %d: expected generation number", num)
	}
	gen := int(tok.Int)
	tok, err = tr.next()
	if err != nil {
		return object.Ref{}, nil, err
	}
	if tok.Type != scanner.TokenKeyword || tok.Str != "obj" {
		return object.Ref{}, nil, fmt.Errorf("object %d %d: expected obj keyword", num, gen)
	}
	ref := object.Ref{Num: num, Gen: gen}

	obj, err := decode(tr)
	if err != nil {
		return ref, nil, fmt.Errorf("object %d %d: %w", num, gen, err)
	}

	// A dictionary may be a stream's dictionary. The Length entry directs
	// the scanner to the payload end; an indirect Length falls back to an
	// endstream search.
	if dict, ok := obj.(*object.Dict); ok {
		if n, lok := dict.Get("Length"); lok {
			if l, nok := n.(object.Number); nok && l.IsInt {
				s.SetNextStreamLength(l.Int64())
			}
		}
		tok, err := tr.next()
		if err == nil && tok.Type == scanner.TokenStream {
			return ref, object.NewStream(dict, tok.Bytes), nil
		}
		s.SetNextStreamLength(-1)
		if err == nil {
			tr.unread(tok)
		}
	}
	return ref, obj, nil
}

// tokenReader adds one-token pushback over a scanner.
type tokenReader struct {
	s   *scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

// decode reads one value from the token stream.
func decode(tr *tokenReader) (object.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenNull:
		return object.Null{}, nil
	case scanner.TokenBoolean:
		return object.Boolean(tok.Bool), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return object.Int(tok.Int), nil
		}
		return object.Real(tok.Float), nil
	case scanner.TokenName:
		return object.Name(tok.Str), nil
	case scanner.TokenString:
		return object.String(tok.Bytes), nil
	case scanner.TokenRef:
		return object.Ref{Num: int(tok.Int), Gen: tok.Gen}, nil
	case scanner.TokenArrayOpen:
		return decodeArray(tr)
	case scanner.TokenDictOpen:
		return decodeDict(tr)
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.Str)
	}
}

func decodeArray(tr *tokenReader) (object.Object, error) {
	arr := object.Array{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		tr.unread(tok)
		item, err := decode(tr)
		if err != nil {
			return nil, err
		}
		arr = append(arr, item)
	}
}

func decodeDict(tr *tokenReader) (object.Object, error) {
	d := object.NewDict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, errors.New("expected name as dictionary key")
		}
		val, err := decode(tr)
		if err != nil {
			return nil, err
		}
		d.Set(object.Name(tok.Str), val)
	}
}

// DecodeBytes reads a single value from raw bytes, with no object header.
func DecodeBytes(data []byte) (object.Object, error) {
	return decode(&tokenReader{s: scanner.New(data)})
}
