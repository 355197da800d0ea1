// Package scanner tokenizes raw PDF object syntax. It operates on an
// in-memory byte slice; callers seek it to an object's start offset and pull
// tokens until the object is complete.
package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDictOpen  TokenType = iota // '<<'
	TokenArrayOpen                  // '['
	TokenName                       // '/Name'
	TokenString                     // literal or hex string
	TokenNumber                     // integer or real
	TokenBoolean                    // true / false
	TokenNull                       // null
	TokenRef                        // '5 0 R'
	TokenStream                     // stream payload bytes
	TokenKeyword                    // obj, endobj, endstream, '>>', ']', ...
)

type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Gen   int
	Bool  bool
	Pos   int64
}

// Scanner walks a byte slice emitting tokens.
type Scanner struct {
	data []byte
	pos  int64

	// nextStreamLen, when >= 0, tells the scanner how many payload bytes
	// follow the next 'stream' keyword. Without it the scanner falls back
	// to searching for 'endstream'.
	nextStreamLen int64
}

// New returns a scanner over data.
func New(data []byte) *Scanner {
	return &Scanner{data: data, nextStreamLen: -1}
}

func (s *Scanner) Position() int64 { return s.pos }

// SeekTo positions the scanner at offset.
func (s *Scanner) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return errors.New("scanner: seek out of range")
	}
	s.pos = offset
	return nil
}

// SetNextStreamLength hints the payload length of the next stream keyword.
// Pass a negative value to clear the hint.
func (s *Scanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

// Next returns the next token, or io.EOF when the input is exhausted.
func (s *Scanner) Next() (Token, error) {
	s.skipWhitespaceAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDictOpen, Str: "<<", Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArrayOpen, Str: "[", Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenKeyword, Str: "]", Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isNumberStart(c) {
		return s.scanNumberOrRef()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	s.pos++
	return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
}

func (s *Scanner) skipWhitespaceAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *Scanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) || isWhitespace(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) {
			hi, okHi := fromHex(s.data[s.pos+1])
			lo, okLo := fromHex(s.data[s.pos+2])
			if okHi && okLo {
				out.WriteByte(hi<<4 | lo)
				s.pos += 3
				continue
			}
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		switch {
		case c == '\\':
			s.pos++
			if s.pos >= int64(len(s.data)) {
				return Token{}, errors.New("scanner: unterminated literal string")
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\n':
				s.pos++
			case esc == '\r':
				s.pos++
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(unescape(esc))
				s.pos++
			}
		case c == '(':
			depth++
			buf.WriteByte(c)
			s.pos++
		case c == ')':
			depth--
			s.pos++
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
			s.pos++
		}
	}
	return Token{}, errors.New("scanner: unterminated literal string")
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var nibbles []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			if len(nibbles)%2 == 1 {
				nibbles = append(nibbles, '0')
			}
			out := make([]byte, 0, len(nibbles)/2)
			for i := 0; i < len(nibbles); i += 2 {
				hi, _ := fromHex(nibbles[i])
				lo, _ := fromHex(nibbles[i+1])
				out = append(out, hi<<4|lo)
			}
			return Token{Type: TokenString, Bytes: out, Pos: start}, nil
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if _, ok := fromHex(c); !ok {
			return Token{}, errors.New("scanner: invalid hex string digit")
		}
		nibbles = append(nibbles, c)
		s.pos++
	}
	return Token{}, errors.New("scanner: unterminated hex string")
}

func (s *Scanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	first := s.scanNumberLiteral()
	if first == "" {
		s.pos++
		return Token{}, errors.New("scanner: invalid number")
	}

	// Look ahead for '<gen> R'.
	save := s.pos
	s.skipWhitespaceAndComments()
	second := s.scanNumberLiteral()
	if second != "" {
		s.skipWhitespaceAndComments()
		if s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
			(s.pos+1 >= int64(len(s.data)) || isDelimiter(s.data[s.pos+1]) || isWhitespace(s.data[s.pos+1])) {
			num, err1 := strconv.Atoi(first)
			gen, err2 := strconv.Atoi(second)
			if err1 == nil && err2 == nil {
				s.pos++
				return Token{Type: TokenRef, Int: int64(num), Gen: gen, Pos: start}, nil
			}
		}
	}
	s.pos = save

	if i, err := strconv.ParseInt(first, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return Token{}, errors.New("scanner: malformed number " + strconv.Quote(first))
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

func (s *Scanner) scanNumberLiteral() string {
	start := s.pos
	seenDigit := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && isRegular(s.data[s.pos]) {
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

// scanStream consumes the payload following a 'stream' keyword. The keyword
// must be followed by LF or CRLF before the data (PDF 7.3.8).
func (s *Scanner) scanStream(start int64) (Token, error) {
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos >= int64(len(s.data)) || s.data[s.pos] != '\n' {
		return Token{}, errors.New("scanner: stream keyword not followed by EOL")
	}
	s.pos++
	dataStart := s.pos

	if s.nextStreamLen >= 0 {
		end := dataStart + s.nextStreamLen
		if end > int64(len(s.data)) {
			end = int64(len(s.data))
		}
		payload := append([]byte(nil), s.data[dataStart:end]...)
		s.pos = end
		s.nextStreamLen = -1
		s.skipToEndstream()
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}

	// No length hint: search for the next endstream keyword.
	idx := bytes.Index(s.data[dataStart:], []byte("endstream"))
	if idx < 0 {
		return Token{}, errors.New("scanner: endstream not found")
	}
	end := dataStart + int64(idx)
	// Trim the EOL that separates data from the keyword.
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	payload := append([]byte(nil), s.data[dataStart:end]...)
	s.pos = dataStart + int64(idx) + int64(len("endstream"))
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

func (s *Scanner) skipToEndstream() {
	needle := []byte("endstream")
	idx := bytes.Index(s.data[s.pos:], needle)
	if idx >= 0 {
		s.pos += int64(idx) + int64(len(needle))
	}
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isWhitespace(c) && !isDelimiter(c) }

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
