package store

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfstore/object"
)

// ErrEncryptionUnsupported is returned at construction time for documents
// whose trailer declares an Encrypt entry.
var ErrEncryptionUnsupported = errors.New("store: encrypted documents are not supported")

// ConstructionError wraps any failure to build a store from its input.
type ConstructionError struct {
	Err error
}

func (e *ConstructionError) Error() string { return "store: construction failed: " + e.Err.Error() }
func (e *ConstructionError) Unwrap() error { return e.Err }

// LookupError reports a Fetch that found nothing and had no fallback.
type LookupError struct {
	Ref object.Ref
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("store: no object for reference %s", e.Ref)
}

// AssignmentError reports an Assign to a reference the locator index does
// not know; fresh ids must come from Allocate.
type AssignmentError struct {
	Ref object.Ref
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("store: cannot assign to %s: not present in the locator index", e.Ref)
}
