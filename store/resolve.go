package store

import (
	"fmt"
	"reflect"

	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/observability"
	"github.com/wudi/pdfstore/parser"
	"github.com/wudi/pdfstore/xref"
)

// Resolve returns the object identified by ref. Precedence is overlay,
// then decode cache, then locator index. Unresolvable keys — non-positive
// numbers, unknown references, failed decodes — yield the store's default
// sentinel; decode failures are absorbed, never propagated.
func (s *Store) Resolve(ref object.Ref) object.Object {
	obj, ok := s.resolve(ref)
	if !ok {
		return s.missing
	}
	return obj
}

// ResolveNum resolves a bare object number. The generation is taken from
// the locator index when the number is indexed, not assumed to be 0, so
// callers can address objects without tracking generations; unindexed
// numbers fall back to generation 0.
func (s *Store) ResolveNum(num int) object.Object {
	return s.Resolve(s.refForNum(num))
}

func (s *Store) refForNum(num int) object.Ref {
	if s.index != nil {
		if _, gen, ok := s.index.Locate(num); ok {
			return object.Ref{Num: num, Gen: gen}
		}
	}
	return object.Ref{Num: num}
}

// resolve reports whether anything was found, letting Fetch distinguish a
// stored null from a miss.
func (s *Store) resolve(ref object.Ref) (object.Object, bool) {
	if ref.Num <= 0 {
		return nil, false
	}
	if obj, ok := s.overlay[ref]; ok {
		return obj, true
	}
	if obj, ok := s.cache[ref]; ok {
		return obj, true
	}
	if s.index == nil {
		return nil, false
	}
	loc, gen, ok := s.index.Locate(ref.Num)
	if !ok || gen != ref.Gen {
		return nil, false
	}
	obj, err := s.load(ref, loc)
	if err != nil {
		s.log.Warn("object decode failed",
			observability.String("ref", ref.String()),
			observability.Err(err))
		return nil, false
	}
	s.cache[ref] = obj
	return obj, true
}

func (s *Store) load(ref object.Ref, loc xref.Locator) (object.Object, error) {
	switch loc.Kind {
	case xref.LocOffset:
		return parser.DecodeAt(s.data, loc.Offset, ref.Num, ref.Gen)
	case xref.LocContainer:
		cs, err := s.container(loc.Container)
		if err != nil {
			return nil, err
		}
		return cs.Member(ref.Num)
	default:
		return nil, fmt.Errorf("unknown locator kind %d", loc.Kind)
	}
}

// container decodes an object-stream container once and caches it.
func (s *Store) container(ref object.Ref) (*parser.ObjectStream, error) {
	if cs, ok := s.containers[ref]; ok {
		return cs, nil
	}
	loc, gen, ok := s.index.Locate(ref.Num)
	if !ok || loc.Kind != xref.LocOffset {
		return nil, fmt.Errorf("container %s not directly locatable", ref)
	}
	obj, err := parser.DecodeAt(s.data, loc.Offset, ref.Num, gen)
	if err != nil {
		return nil, err
	}
	st, sok := obj.(*object.Stream)
	if !sok {
		return nil, fmt.Errorf("container %s is not a stream", ref)
	}
	cs, err := parser.NewObjectStream(st)
	if err != nil {
		return nil, err
	}
	s.containers[ref] = cs
	return cs, nil
}

// Fetch is Resolve with strict semantics: when nothing is found it returns
// the fallback if one was supplied, and a LookupError otherwise.
func (s *Store) Fetch(ref object.Ref, fallback ...object.Object) (object.Object, error) {
	if obj, ok := s.resolve(ref); ok {
		return obj, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return nil, &LookupError{Ref: ref}
}

// Assign replaces the object stored under ref. Only references the locator
// index already knows, number and generation both, may be assigned; fresh
// ids must come from Allocate.
func (s *Store) Assign(ref object.Ref, obj object.Object) error {
	if s.index == nil {
		return &AssignmentError{Ref: ref}
	}
	if _, gen, ok := s.index.Locate(ref.Num); !ok || gen != ref.Gen {
		return &AssignmentError{Ref: ref}
	}
	s.setOverlay(ref, obj)
	return nil
}

// Allocate stores obj under the smallest unused object number, generation 0,
// and returns the new reference. Numbers grow monotonically across calls.
func (s *Store) Allocate(obj object.Object) object.Ref {
	next := s.overlayMax
	if s.index != nil && s.index.MaxNum() > next {
		next = s.index.MaxNum()
	}
	ref := object.Ref{Num: next + 1}
	s.setOverlay(ref, obj)
	return ref
}

func (s *Store) setOverlay(ref object.Ref, obj object.Object) {
	if _, ok := s.overlay[ref]; !ok {
		s.overlayOrder = append(s.overlayOrder, ref)
	}
	s.overlay[ref] = obj
	if ref.Num > s.overlayMax {
		s.overlayMax = ref.Num
	}
}

// Deref resolves obj when it is a reference and returns it unchanged
// otherwise. Useful wherever a field may or may not be indirect.
func (s *Store) Deref(obj object.Object) object.Object {
	if ref, ok := obj.(object.Ref); ok {
		return s.Resolve(ref)
	}
	return obj
}

// Refs lists the union of locator-index and overlay keys, deduplicated:
// index entries first in ascending number order, then overlay entries in
// allocation order.
func (s *Store) Refs() []object.Ref {
	var out []object.Ref
	if s.index != nil {
		out = s.index.Refs()
	}
	for _, ref := range s.overlayOrder {
		if s.index != nil {
			if _, gen, ok := s.index.Locate(ref.Num); ok && gen == ref.Gen {
				continue
			}
		}
		out = append(out, ref)
	}
	return out
}

// Pair is one indirect object with its reference.
type Pair struct {
	Ref object.Ref
	Obj object.Object
}

// Pairs resolves every key listed by Refs.
func (s *Store) Pairs() []Pair {
	refs := s.Refs()
	out := make([]Pair, len(refs))
	for i, ref := range refs {
		out[i] = Pair{Ref: ref, Obj: s.Resolve(ref)}
	}
	return out
}

// Objects resolves every key listed by Refs.
func (s *Store) Objects() []object.Object {
	refs := s.Refs()
	out := make([]object.Object, len(refs))
	for i, ref := range refs {
		out[i] = s.Resolve(ref)
	}
	return out
}

// Len returns the number of distinct keys.
func (s *Store) Len() int {
	n := 0
	if s.index != nil {
		n = s.index.Len()
	}
	for _, ref := range s.overlayOrder {
		if s.index != nil {
			if _, gen, ok := s.index.Locate(ref.Num); ok && gen == ref.Gen {
				continue
			}
		}
		n++
	}
	return n
}

// IsEmpty reports whether the store holds no objects at all.
func (s *Store) IsEmpty() bool { return s.Len() == 0 }

// HasRef reports whether the exact reference is known to the store.
func (s *Store) HasRef(ref object.Ref) bool {
	if _, ok := s.overlay[ref]; ok {
		return true
	}
	if s.index != nil {
		if _, gen, ok := s.index.Locate(ref.Num); ok && gen == ref.Gen {
			return true
		}
	}
	return false
}

// HasNum reports whether any generation of the object number is known.
func (s *Store) HasNum(num int) bool {
	if s.index != nil && s.index.Has(num) {
		return true
	}
	for ref := range s.overlay {
		if ref.Num == num {
			return true
		}
	}
	return false
}

// HasValue reports whether any stored object equals obj. This is a full
// scan over every resolvable object.
func (s *Store) HasValue(obj object.Object) bool {
	for _, ref := range s.Refs() {
		if reflect.DeepEqual(s.Resolve(ref), obj) {
			return true
		}
	}
	return false
}

// TypeOf returns the /Type name of the resolved object, following stream
// dictionaries; resolution failures yield "".
func (s *Store) TypeOf(ref object.Ref) object.Name {
	switch obj := s.Resolve(ref).(type) {
	case *object.Dict:
		return obj.Name("Type")
	case *object.Stream:
		return obj.Dict.Name("Type")
	default:
		return ""
	}
}

// IsStream reports whether ref resolves to a stream; failures yield false.
func (s *Store) IsStream(ref object.Ref) bool {
	_, ok := s.Resolve(ref).(*object.Stream)
	return ok
}

// PageRefs flattens the page tree depth-first, left to right: Pages nodes
// recurse into their Kids, Page nodes contribute themselves. The result is
// computed once and cached; structural changes made afterwards are not
// reflected.
func (s *Store) PageRefs() []object.Ref {
	if s.pagesOnce {
		return s.pages
	}
	s.pagesOnce = true

	root, ok := s.trailer.Ref("Root")
	if !ok {
		return s.pages
	}
	catalog, ok := s.Deref(root).(*object.Dict)
	if !ok {
		return s.pages
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return s.pages
	}
	if ref, ok := pagesObj.(object.Ref); ok {
		s.walkPages(ref, make(map[object.Ref]bool))
	}
	return s.pages
}

func (s *Store) walkPages(ref object.Ref, seen map[object.Ref]bool) {
	if seen[ref] {
		return
	}
	seen[ref] = true
	node, ok := s.Resolve(ref).(*object.Dict)
	if !ok {
		return
	}
	switch node.Name("Type") {
	case "Page":
		s.pages = append(s.pages, ref)
	case "Pages":
		kids, _ := node.Get("Kids")
		arr, _ := s.Deref(kids).(object.Array)
		for _, kid := range arr {
			if kidRef, ok := kid.(object.Ref); ok {
				s.walkPages(kidRef, seen)
			}
		}
	}
}
