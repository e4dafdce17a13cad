package entities

import (
	"context"
	"errors"
	"fmt"

	"tunehall/internal/apperr"
	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
)

// Lifecycle captures the soft-delete operations a kind needs.
type Lifecycle interface {
	Kind() docstore.Kind
	Get(ctx context.Context, id string) (*docstore.Document, error)
	ListActive(ctx context.Context, filter map[string]string) ([]*docstore.Document, error)
	ListAll(ctx context.Context, filter map[string]string) ([]*docstore.Document, error)
	ListTrashed(ctx context.Context) ([]*docstore.Document, error)
	SoftDelete(ctx context.Context, ids ...string) (int, error)
	Restore(ctx context.Context, ids ...string) (int, error)
	ForceDelete(ctx context.Context, ids ...string) (int, error)
}

// Input carries the client-writable parts of a document.
type Input struct {
	Attrs map[string]any
	Refs  map[string][]string
}

// Service coordinates plain CRUD and lifecycle operations for one kind.
type Service interface {
	Kind() docstore.Kind
	Create(ctx context.Context, in Input) (*docstore.Document, error)
	Get(ctx context.Context, id string) (*docstore.Document, error)
	Update(ctx context.Context, id string, in Input) (*docstore.Document, error)
	ListActive(ctx context.Context, filter map[string]string) ([]*docstore.Document, error)
	ListAll(ctx context.Context, filter map[string]string) ([]*docstore.Document, error)
	ListTrashed(ctx context.Context) ([]*docstore.Document, error)
	SoftDelete(ctx context.Context, ids ...string) (int, error)
	Restore(ctx context.Context, ids ...string) (int, error)
	ForceDelete(ctx context.Context, ids ...string) (int, error)
}

type service struct {
	store     docstore.Store
	lifecycle Lifecycle
	retries   int
}

// New constructs a Service for the lifecycle's kind. Documents are created
// and updated through store.
func New(store docstore.Store, lc Lifecycle, conflictRetries int) Service {
	return &service{store: store, lifecycle: lc, retries: conflictRetries}
}

func (s *service) Kind() docstore.Kind { return s.lifecycle.Kind() }

func (s *service) Create(ctx context.Context, in Input) (*docstore.Document, error) {
	const op = "entities.Create"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkInput(op, in); err != nil {
		return nil, err
	}

	doc := &docstore.Document{
		ID:    docstore.NewID(),
		Kind:  s.Kind(),
		Attrs: in.Attrs,
	}
	for field, ids := range in.Refs {
		doc.SetRefList(field, dedupe(ids))
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, apperr.IO(op, fmt.Errorf("insert %s: %w", s.Kind(), err))
	}
	return doc, nil
}

func (s *service) Get(ctx context.Context, id string) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lifecycle.Get(ctx, id)
}

// Update merges in.Attrs into the stored attributes (a nil value removes
// the key) and replaces the listed reference fields. Trashed documents
// cannot be updated.
func (s *service) Update(ctx context.Context, id string, in Input) (*docstore.Document, error) {
	const op = "entities.Update"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkInput(op, in); err != nil {
		return nil, err
	}

	var doc *docstore.Document
	err := docstore.RetryOnConflict(ctx, s.retries, nil, func() error {
		var err error
		doc, err = s.lifecycle.Get(ctx, id)
		if err != nil {
			return err
		}
		for k, v := range in.Attrs {
			if v == nil {
				delete(doc.Attrs, k)
				continue
			}
			if doc.Attrs == nil {
				doc.Attrs = make(map[string]any)
			}
			doc.Attrs[k] = v
		}
		for field, ids := range in.Refs {
			doc.SetRefList(field, dedupe(ids))
		}
		err = s.store.Save(ctx, doc)
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound(op, catalog.Singular(s.Kind()), id)
		}
		return err
	})
	if err != nil {
		return nil, apperr.IO(op, err)
	}
	return doc, nil
}

func (s *service) ListActive(ctx context.Context, filter map[string]string) ([]*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lifecycle.ListActive(ctx, filter)
}

func (s *service) ListAll(ctx context.Context, filter map[string]string) ([]*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lifecycle.ListAll(ctx, filter)
}

func (s *service) ListTrashed(ctx context.Context) ([]*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lifecycle.ListTrashed(ctx)
}

func (s *service) SoftDelete(ctx context.Context, ids ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.lifecycle.SoftDelete(ctx, ids...)
}

func (s *service) Restore(ctx context.Context, ids ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.lifecycle.Restore(ctx, ids...)
}

func (s *service) ForceDelete(ctx context.Context, ids ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.lifecycle.ForceDelete(ctx, ids...)
}

// checkInput rejects writes to fields owned by the relationship engine or
// the store, and malformed reference ids. Attributes, reference lists and
// counters are rendered side by side, so none of them may reuse a reserved
// name.
func (s *service) checkInput(op string, in Input) error {
	for key := range in.Attrs {
		if reason, ok := reserved[key]; ok {
			return apperr.Validation(op, "attribute %q is %s", key, reason)
		}
	}
	for field, ids := range in.Refs {
		if reason, ok := reserved[field]; ok {
			return apperr.Validation(op, "field %q is %s", field, reason)
		}
		for _, id := range ids {
			if !docstore.ValidID(id) {
				return apperr.Validation(op, "malformed id %q in %s", id, field)
			}
		}
	}
	return nil
}

var reserved = reservedFields()

func reservedFields() map[string]string {
	fields := map[string]string{
		"id":        "a system field",
		"deleted":   "a system field",
		"deletedAt": "a system field",
		"revision":  "a system field",
		"createdAt": "a system field",
		"updatedAt": "a system field",
	}
	const managed = "maintained by relationship operations"
	for _, m := range catalog.Memberships {
		fields[m.Field] = managed
	}
	for _, f := range catalog.Favorites {
		fields[f.Field] = managed
		fields[f.Counter] = managed
	}
	return fields
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
