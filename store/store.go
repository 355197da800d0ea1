// Package store implements the indirect-object store of a PDF document: a
// lazily-resolving, cached repository of objects addressed by (number,
// generation) references, with an overlay for objects created or replaced
// after load.
//
// A Store is not safe for concurrent use; callers needing shared access
// must serialize it externally.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/wudi/pdfstore/object"
	"github.com/wudi/pdfstore/observability"
	"github.com/wudi/pdfstore/parser"
	"github.com/wudi/pdfstore/xref"
)

// DefaultVersion is the format version of freshly created documents.
const DefaultVersion = "1.3"

// Store is the object repository for one document.
type Store struct {
	data  []byte      // raw bytes of the source, nil for fresh documents
	index *xref.Index // locator index, nil for fresh documents

	version string
	trailer *object.Dict

	cache        map[object.Ref]object.Object // decoded located objects
	overlay      map[object.Ref]object.Object // created/replaced objects, highest precedence
	overlayOrder []object.Ref
	overlayMax   int

	containers map[object.Ref]*parser.ObjectStream

	missing object.Object // sentinel returned for unresolvable keys

	pages     []object.Ref
	pagesOnce bool

	log observability.Logger
}

// Option configures a store at construction time.
type Option func(*Store)

// WithLogger routes internal diagnostics (e.g. absorbed decode failures)
// to log.
func WithLogger(log observability.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithDefault changes the sentinel returned for unresolvable keys. The
// default sentinel is nil.
func WithDefault(obj object.Object) Option {
	return func(s *Store) { s.missing = obj }
}

func newStore(opts ...Option) *Store {
	s := &Store{
		version:    DefaultVersion,
		trailer:    object.NewDict(),
		cache:      make(map[object.Ref]object.Object),
		overlay:    make(map[object.Ref]object.Object),
		containers: make(map[object.Ref]*parser.ObjectStream),
		log:        observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New creates a fresh, minimal document: an empty page tree, a catalog
// pointing at it, and a synthesized trailer with a random /ID pair.
func New(opts ...Option) *Store {
	s := newStore(opts...)
	pagesRef := s.Allocate(object.DictOf(
		object.Name("Type"), object.Name("Pages"),
		object.Name("Kids"), object.Array{},
		object.Name("Count"), object.Int(0),
	))
	catalogRef := s.Allocate(object.DictOf(
		object.Name("Type"), object.Name("Catalog"),
		object.Name("Pages"), pagesRef,
	))
	s.trailer.Set("Root", catalogRef)
	id1, id2 := uuid.NewString(), uuid.NewString()
	s.trailer.Set("ID", object.Array{object.String(id1), object.String(id2)})
	return s
}

// NewReader builds a store from an open byte source, reading it fully into
// memory.
func NewReader(r io.Reader, opts ...Option) (*Store, error) {
	if r == nil {
		return nil, &ConstructionError{Err: errors.New("nil reader")}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConstructionError{Err: err}
	}
	return fromData(data, opts...)
}

// Open builds a store from a file on disk.
func Open(path string, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConstructionError{Err: err}
	}
	return fromData(data, opts...)
}

func fromData(data []byte, opts ...Option) (*Store, error) {
	index, err := xref.Load(data)
	if err != nil {
		return nil, &ConstructionError{Err: err}
	}
	if index.Trailer().Has("Encrypt") {
		return nil, ErrEncryptionUnsupported
	}
	s := newStore(opts...)
	s.data = data
	s.index = index
	s.version = index.Version()
	s.trailer = index.Trailer()
	return s, nil
}

// Version returns the document's format version, e.g. "1.7".
func (s *Store) Version() string { return s.version }

// Trailer returns the document's trailer dictionary.
func (s *Store) Trailer() *object.Dict { return s.trailer }

// String returns a one-line diagnostic summary.
func (s *Store) String() string {
	return fmt.Sprintf("store.Store{objects: %d, version: %s}", s.Len(), s.version)
}
