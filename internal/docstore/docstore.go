// Package docstore is the document persistence layer behind the catalog.
//
// A Store keeps opaque documents grouped by kind. Documents carry the
// soft-delete flags, an optimistic-concurrency revision, named reference
// lists and named counters; everything else lives in Attrs and is never
// interpreted by the store.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound signals that no document has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrConflict signals that a Save lost a race against another writer.
	ErrConflict = errors.New("document revision conflict")
	// ErrExists signals that Insert hit an id that is already taken.
	ErrExists = errors.New("document already exists")
)

// Kind names a collection of documents, e.g. "albums".
type Kind string

// Document is the unit of storage.
type Document struct {
	ID        string              `json:"id" bson:"_id"`
	Kind      Kind                `json:"-" bson:"-"`
	Deleted   bool                `json:"deleted" bson:"deleted"`
	DeletedAt *time.Time          `json:"deletedAt,omitempty" bson:"deletedAt,omitempty"`
	Revision  int64               `json:"revision" bson:"revision"`
	Refs      map[string][]string `json:"refs,omitempty" bson:"refs,omitempty"`
	Counters  map[string]int64    `json:"counters,omitempty" bson:"counters,omitempty"`
	Attrs     map[string]any      `json:"attrs,omitempty" bson:"attrs,omitempty"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// State selects documents by their soft-delete flag.
type State int

const (
	// Active matches documents that are not deleted.
	Active State = iota
	// Trashed matches soft-deleted documents.
	Trashed
	// AnyState matches every document.
	AnyState
)

// Query narrows a Find call. Zero values mean "no restriction", except for
// State whose zero value is Active.
type Query struct {
	IDs   []string
	State State
	// Attrs holds equality matches against top-level attributes.
	Attrs map[string]string
	Limit int
}

// Store is the contract every backend implements.
type Store interface {
	// Get returns the document regardless of its deleted flag.
	Get(ctx context.Context, kind Kind, id string) (*Document, error)
	// Find returns matching documents ordered by creation time.
	Find(ctx context.Context, kind Kind, q Query) ([]*Document, error)
	// Insert persists a new document with revision 1.
	Insert(ctx context.Context, doc *Document) error
	// Save replaces the stored document if its revision still equals
	// doc.Revision, then bumps doc.Revision. It returns ErrConflict when the
	// stored revision moved and ErrNotFound when the document is gone.
	Save(ctx context.Context, doc *Document) error
	// Delete physically removes the documents and reports how many existed.
	Delete(ctx context.Context, kind Kind, ids []string) (int64, error)
}

// NewID returns a fresh document identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the identifier format used by the stores.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Clone returns a deep copy of the document maps and slices. Attribute
// values are copied shallowly.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.DeletedAt != nil {
		t := *d.DeletedAt
		c.DeletedAt = &t
	}
	if d.Refs != nil {
		c.Refs = make(map[string][]string, len(d.Refs))
		for k, v := range d.Refs {
			c.Refs[k] = append([]string(nil), v...)
		}
	}
	if d.Counters != nil {
		c.Counters = make(map[string]int64, len(d.Counters))
		for k, v := range d.Counters {
			c.Counters[k] = v
		}
	}
	if d.Attrs != nil {
		c.Attrs = make(map[string]any, len(d.Attrs))
		for k, v := range d.Attrs {
			c.Attrs[k] = v
		}
	}
	return &c
}

// RefList returns the named reference list, never nil.
func (d *Document) RefList(field string) []string {
	if d.Refs == nil || d.Refs[field] == nil {
		return []string{}
	}
	return d.Refs[field]
}

// SetRefList replaces the named reference list.
func (d *Document) SetRefList(field string, ids []string) {
	if d.Refs == nil {
		d.Refs = make(map[string][]string)
	}
	d.Refs[field] = ids
}

// Counter returns the named counter, zero when unset.
func (d *Document) Counter(field string) int64 {
	return d.Counters[field]
}

// SetCounter assigns the named counter.
func (d *Document) SetCounter(field string, v int64) {
	if d.Counters == nil {
		d.Counters = make(map[string]int64)
	}
	d.Counters[field] = v
}

// Matches reports whether the document satisfies the state and attribute
// parts of q. Backends that cannot push a filter down use it directly.
func (d *Document) Matches(q Query) bool {
	switch q.State {
	case Active:
		if d.Deleted {
			return false
		}
	case Trashed:
		if !d.Deleted {
			return false
		}
	}
	for k, want := range q.Attrs {
		v, ok := d.Attrs[k]
		if !ok {
			return false
		}
		if s, isString := v.(string); !isString || s != want {
			return false
		}
	}
	return true
}
