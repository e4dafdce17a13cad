package relations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
	"tunehall/internal/docstore/docstoretest"
)

type fixture struct {
	store  *docstoretest.Faulty
	engine *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := docstoretest.Wrap(docstore.NewMemory())
	return &fixture{store: store, engine: New(store, opts...)}
}

func (f *fixture) insert(t *testing.T, kind docstore.Kind, mutate func(*docstore.Document)) string {
	t.Helper()
	doc := &docstore.Document{ID: docstore.NewID(), Kind: kind}
	if mutate != nil {
		mutate(doc)
	}
	require.NoError(t, f.store.Store.Insert(context.Background(), doc))
	return doc.ID
}

func (f *fixture) raw(t *testing.T, kind docstore.Kind, id string) *docstore.Document {
	t.Helper()
	doc, err := f.store.Store.Get(context.Background(), kind, id)
	require.NoError(t, err)
	return doc
}

func (f *fixture) trash(t *testing.T, kind docstore.Kind, id string) {
	t.Helper()
	doc := f.raw(t, kind, id)
	doc.Deleted = true
	now := doc.UpdatedAt
	doc.DeletedAt = &now
	require.NoError(t, f.store.Store.Save(context.Background(), doc))
}

func withTracks(ids ...string) func(*docstore.Document) {
	return func(d *docstore.Document) { d.SetRefList(catalog.FieldTracks, ids) }
}

func withCounter(field string, n int64) func(*docstore.Document) {
	return func(d *docstore.Document) { d.SetCounter(field, n) }
}

func docIDs(docs []*docstore.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
