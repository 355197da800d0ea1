// Package xref builds the locator index of a PDF: the mapping from object
// numbers to where their bytes live, either directly at a file offset or
// inside a compressed object stream. It understands classic cross-reference
// tables, cross-reference streams, and Prev chains left by incremental
// updates.
package xref

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/pdfstore/filters"
	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/parser"
)

// LocatorKind discriminates the two places an object's bytes can live.
type LocatorKind int

const (
	// LocOffset locates an object directly at a byte offset.
	LocOffset LocatorKind = iota
	// LocContainer locates an object inside a compressed object stream.
	LocContainer
)

// Locator says where to find one object.
type Locator struct {
	Kind      LocatorKind
	Offset    int64      // valid when Kind == LocOffset
	Container object.Ref // valid when Kind == LocContainer
}

// entry is one sighting of an object number. A free sighting is kept as a
// tombstone: sections are merged newest-first, so a tombstone from an
// incremental update must shadow an in-use entry from an older section.
type entry struct {
	gen  int
	loc  Locator
	free bool
}

// Index is the parsed locator index plus the document-level metadata that
// rides along with it: the trailer dictionary and the header version.
type Index struct {
	entries map[int]entry
	trailer *object.Dict
	version string
	maxNum  int
}

// Version returns the format version from the file header, e.g. "1.7".
func (ix *Index) Version() string { return ix.version }

// Trailer returns the (newest) trailer dictionary.
func (ix *Index) Trailer() *object.Dict { return ix.trailer }

// Len returns the number of indexed in-use objects.
func (ix *Index) Len() int {
	n := 0
	for _, e := range ix.entries {
		if !e.free {
			n++
		}
	}
	return n
}

// MaxNum returns the highest indexed object number.
func (ix *Index) MaxNum() int { return ix.maxNum }

// Locate returns the locator and generation for an object number. Freed
// objects report as absent.
func (ix *Index) Locate(num int) (Locator, int, bool) {
	e, ok := ix.entries[num]
	if !ok || e.free {
		return Locator{}, 0, false
	}
	return e.loc, e.gen, true
}

// Has reports whether the object number is indexed and in use, any
// generation.
func (ix *Index) Has(num int) bool {
	e, ok := ix.entries[num]
	return ok && !e.free
}

// Refs lists all in-use references in ascending object-number order.
func (ix *Index) Refs() []object.Ref {
	nums := make([]int, 0, len(ix.entries))
	for n, e := range ix.entries {
		if e.free {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]object.Ref, len(nums))
	for i, n := range nums {
		out[i] = object.Ref{Num: n, Gen: ix.entries[n].gen}
	}
	return out
}

// Load parses the header and every reachable cross-reference section of the
// file held in data.
func Load(data []byte) (*Index, error) {
	version, err := headerVersion(data)
	if err != nil {
		return nil, err
	}
	ix := &Index{entries: make(map[int]entry), version: version}

	offset, err := startXRef(data)
	if err != nil {
		return nil, err
	}

	// Walk the Prev chain newest-first; existing entries and the first
	// trailer always win.
	seen := make(map[int64]bool)
	for {
		if offset <= 0 || offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref: offset %d out of range", offset)
		}
		if seen[offset] {
			return nil, errors.New("xref: circular Prev chain")
		}
		seen[offset] = true

		trailer, err := ix.loadSection(data, offset)
		if err != nil {
			return nil, err
		}
		if ix.trailer == nil {
			ix.trailer = trailer
		}
		prev, ok := trailer.Get("Prev")
		if !ok {
			break
		}
		n, ok := prev.(object.Number)
		if !ok || !n.IsInt {
			return nil, errors.New("xref: non-integer Prev entry")
		}
		offset = n.Int64()
	}

	for n := range ix.entries {
		if n > ix.maxNum {
			ix.maxNum = n
		}
	}
	if ix.trailer == nil {
		ix.trailer = object.NewDict()
	}
	return ix, nil
}

// loadSection parses one cross-reference section (classic table or stream)
// and returns its trailer dictionary.
func (ix *Index) loadSection(data []byte, offset int64) (*object.Dict, error) {
	rest := data[offset:]
	trimmed := bytes.TrimLeft(rest, "\x00\t\n\f\r ")
	if bytes.HasPrefix(trimmed, []byte("xref")) {
		return ix.loadTable(rest)
	}
	return ix.loadStream(data, offset)
}

func (ix *Index) loadTable(section []byte) (*object.Dict, error) {
	trailerIdx := bytes.Index(section, []byte("trailer"))
	if trailerIdx < 0 {
		return nil, errors.New("xref: table without trailer")
	}

	sc := bufio.NewScanner(bytes.NewReader(section[:trailerIdx]))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "xref" {
		return nil, errors.New("xref: keyword not found at section start")
	}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("xref: invalid subsection header %q", line)
		}
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("xref: subsection start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("xref: subsection count: %w", err)
		}
		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, errors.New("xref: truncated subsection")
			}
			fields := strings.Fields(sc.Text())
			if len(fields) < 3 {
				return nil, fmt.Errorf("xref: invalid entry %q", sc.Text())
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("xref: entry offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("xref: entry generation: %w", err)
			}
			if fields[2] != "n" {
				ix.add(start+i, entry{gen: gen, free: true})
				continue
			}
			ix.add(start+i, entry{gen: gen, loc: Locator{Kind: LocOffset, Offset: off}})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	obj, err := parser.DecodeBytes(section[trailerIdx+len("trailer"):])
	if err != nil {
		return nil, fmt.Errorf("xref: trailer: %w", err)
	}
	trailer, ok := obj.(*object.Dict)
	if !ok {
		return nil, errors.New("xref: trailer is not a dictionary")
	}
	return trailer, nil
}

func (ix *Index) loadStream(data []byte, offset int64) (*object.Dict, error) {
	_, obj, err := parser.DecodeIndirectAt(data, offset)
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}
	st, ok := obj.(*object.Stream)
	if !ok || st.Dict.Name("Type") != "XRef" {
		return nil, errors.New("xref: object at startxref is neither a table nor an XRef stream")
	}

	payload, err := filters.Decode(st.Dict, st.Data)
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}

	widths, err := fieldWidths(st.Dict)
	if err != nil {
		return nil, err
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return nil, errors.New("xref stream: zero-width rows")
	}

	ranges, err := indexRanges(st.Dict)
	if err != nil {
		return nil, err
	}

	pos := 0
	for _, rng := range ranges {
		for i := 0; i < rng.count; i++ {
			if pos+rowLen > len(payload) {
				return nil, errors.New("xref stream: truncated entry data")
			}
			typ := int64(1) // a zero-width type field defaults to 1 (PDF 7.5.8.2)
			if widths[0] > 0 {
				typ = beInt(payload[pos : pos+widths[0]])
			}
			f2 := beInt(payload[pos+widths[0] : pos+widths[0]+widths[1]])
			f3 := beInt(payload[pos+widths[0]+widths[1] : pos+rowLen])
			pos += rowLen

			num := rng.start + i
			switch typ {
			case 0:
				ix.add(num, entry{gen: int(f3), free: true})
			case 1:
				ix.add(num, entry{gen: int(f3), loc: Locator{Kind: LocOffset, Offset: f2}})
			case 2:
				ix.add(num, entry{loc: Locator{
					Kind:      LocContainer,
					Container: object.Ref{Num: int(f2)},
				}})
			default:
				// Unknown entry types must be treated as free.
				ix.add(num, entry{free: true})
			}
		}
	}
	return st.Dict, nil
}

// add records an entry unless the object number is already present; sections
// are walked newest-first, so the first sighting wins.
func (ix *Index) add(num int, e entry) {
	if _, ok := ix.entries[num]; ok {
		return
	}
	ix.entries[num] = e
}

func fieldWidths(dict *object.Dict) ([3]int, error) {
	var widths [3]int
	wv, ok := dict.Get("W")
	if !ok {
		return widths, errors.New("xref stream: missing W")
	}
	arr, ok := wv.(object.Array)
	if !ok || len(arr) != 3 {
		return widths, errors.New("xref stream: W must be a 3-element array")
	}
	for i, item := range arr {
		n, ok := item.(object.Number)
		if !ok || !n.IsInt || n.I < 0 || n.I > 8 {
			return widths, errors.New("xref stream: invalid W element")
		}
		widths[i] = int(n.I)
	}
	return widths, nil
}

type subRange struct {
	start int
	count int
}

func indexRanges(dict *object.Dict) ([]subRange, error) {
	if iv, ok := dict.Get("Index"); ok {
		arr, aok := iv.(object.Array)
		if !aok || len(arr)%2 != 0 {
			return nil, errors.New("xref stream: Index must hold pairs")
		}
		out := make([]subRange, 0, len(arr)/2)
		for i := 0; i < len(arr); i += 2 {
			s, sok := arr[i].(object.Number)
			c, cok := arr[i+1].(object.Number)
			if !sok || !cok {
				return nil, errors.New("xref stream: non-numeric Index pair")
			}
			out = append(out, subRange{start: int(s.Int64()), count: int(c.Int64())})
		}
		return out, nil
	}
	size := int(dict.Int64("Size"))
	if size <= 0 {
		return nil, errors.New("xref stream: missing Size")
	}
	return []subRange{{start: 0, count: size}}, nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// headerVersion extracts the version digits from the %PDF- header line.
func headerVersion(data []byte) (string, error) {
	idx := bytes.Index(data, []byte("%PDF-"))
	if idx < 0 || idx > 1024 {
		return "", errors.New("xref: %PDF header not found")
	}
	rest := data[idx+len("%PDF-"):]
	end := 0
	for end < len(rest) && end < 8 && !isEOLByte(rest[end]) && rest[end] != ' ' {
		end++
	}
	version := string(rest[:end])
	if version == "" {
		return "", errors.New("xref: empty version in header")
	}
	return version, nil
}

// startXRef finds the last startxref marker and its offset.
func startXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("xref: startxref not found")
	}
	sc := bufio.NewScanner(bytes.NewReader(data[idx+len("startxref"):]))
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		off, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("xref: parse startxref: %w", err)
		}
		return off, nil
	}
	return 0, errors.New("xref: startxref offset missing")
}

func isEOLByte(c byte) bool { return c == '\r' || c == '\n' }
