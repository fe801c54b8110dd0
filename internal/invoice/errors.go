package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrExtractionFailure marks a failed generation call or an unparseable
	// model response. The extractor absorbs it and returns Empty().
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrMissingDocument marks a document source that could not be read.
	ErrMissingDocument = errors.New("missing document")
)

// ExtractionError describes why extraction fell back to the empty structure.
type ExtractionError struct {
	Stage string // "generate" or "parse"
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is reports ErrExtractionFailure for every ExtractionError.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailure
}

// MissingContextError is returned when a document source is absent or
// unreadable. It terminates processing of that document.
type MissingContextError struct {
	Source string
	Err    error
}

func (e *MissingContextError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("missing document context: %s", e.Source)
	}
	return fmt.Sprintf("missing document context: %s: %v", e.Source, e.Err)
}

func (e *MissingContextError) Unwrap() error { return e.Err }

// Is reports ErrMissingDocument for every MissingContextError.
func (e *MissingContextError) Is(target error) bool {
	return target == ErrMissingDocument
}

// Path locates a field in a record: either a top-level field, or a field of
// the line item at Index.
type Path struct {
	Field Field
	Index int
	Item  LineItemField
}

// FieldPath returns the path of a top-level field.
func FieldPath(f Field) Path {
	return Path{Field: f, Index: -1}
}

// ItemPath returns the path of a field inside line item i. An empty item
// field refers to the line item as a whole.
func ItemPath(i int, f LineItemField) Path {
	return Path{Field: FieldLineItems, Index: i, Item: f}
}

// IsLineItem reports whether p points inside a line item.
func (p Path) IsLineItem() bool {
	return p.Index >= 0
}

// String renders p as "total_amount" or "line_items[1].quantity".
func (p Path) String() string {
	if !p.IsLineItem() {
		return string(p.Field)
	}
	if p.Item == "" {
		return fmt.Sprintf("%s[%d]", p.Field, p.Index)
	}
	return fmt.Sprintf("%s[%d].%s", p.Field, p.Index, p.Item)
}

// FieldError is the failure of a single field.
type FieldError struct {
	Path    Path
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Errors maps failing fields to their messages. A field absent from the map
// either validated or was null.
type Errors map[Path]string

// Add records msg for p.
func (e Errors) Add(p Path, msg string) {
	e[p] = msg
}

// Sorted returns the errors as FieldErrors ordered by path.
func (e Errors) Sorted() []*FieldError {
	out := make([]*FieldError, 0, len(e))
	for p, msg := range e {
		out = append(out, &FieldError{Path: p, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Path, out[j].Path
		if a.IsLineItem() != b.IsLineItem() {
			return !a.IsLineItem()
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.String() < b.String()
	})
	return out
}

// Strings returns the errors keyed by their rendered path.
func (e Errors) Strings() map[string]string {
	out := make(map[string]string, len(e))
	for p, msg := range e {
		out[p.String()] = msg
	}
	return out
}

// MarshalJSON encodes the errors as an object keyed by rendered path.
func (e Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Strings())
}
