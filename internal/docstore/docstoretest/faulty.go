// Package docstoretest provides Store wrappers for exercising failure paths.
package docstoretest

import (
	"context"
	"sync"

	"tunehall/internal/docstore"
)

type key struct {
	kind docstore.Kind
	id   string
}

// Hook runs in place of, or ahead of, a store call. Returning an error
// fails the call without reaching the wrapped store.
type Hook func(ctx context.Context) error

// Faulty wraps a Store and lets tests inject errors or interleave writes
// before individual calls.
type Faulty struct {
	docstore.Store

	mu    sync.Mutex
	saves map[key][]Hook
	gets  map[key][]Hook
	finds map[docstore.Kind][]Hook
	calls map[string]int
}

// Wrap returns a Faulty around s.
func Wrap(s docstore.Store) *Faulty {
	return &Faulty{
		Store: s,
		saves: make(map[key][]Hook),
		gets:  make(map[key][]Hook),
		finds: make(map[docstore.Kind][]Hook),
		calls: make(map[string]int),
	}
}

// BeforeSave queues hooks for the next Save calls of one document, one hook
// per call.
func (f *Faulty) BeforeSave(kind docstore.Kind, id string, hooks ...Hook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key{kind, id}
	f.saves[k] = append(f.saves[k], hooks...)
}

// FailSave makes the next len(errs) saves of a document fail in order.
func (f *Faulty) FailSave(kind docstore.Kind, id string, errs ...error) {
	for _, err := range errs {
		f.BeforeSave(kind, id, Fail(err))
	}
}

// BeforeGet queues hooks for the next Get calls of one document.
func (f *Faulty) BeforeGet(kind docstore.Kind, id string, hooks ...Hook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key{kind, id}
	f.gets[k] = append(f.gets[k], hooks...)
}

// BeforeFind queues hooks for the next Find calls on a kind.
func (f *Faulty) BeforeFind(kind docstore.Kind, hooks ...Hook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds[kind] = append(f.finds[kind], hooks...)
}

// Fail returns a hook that always fails with err.
func Fail(err error) Hook {
	return func(context.Context) error { return err }
}

// Calls reports how many times method ("Get", "Find", "Insert", "Save",
// "Delete") reached the wrapper.
func (f *Faulty) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Faulty) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func pop[K comparable](f *Faulty, m map[K][]Hook, k K) Hook {
	f.mu.Lock()
	defer f.mu.Unlock()
	hooks := m[k]
	if len(hooks) == 0 {
		return nil
	}
	m[k] = hooks[1:]
	return hooks[0]
}

func (f *Faulty) Get(ctx context.Context, kind docstore.Kind, id string) (*docstore.Document, error) {
	f.count("Get")
	if h := pop(f, f.gets, key{kind, id}); h != nil {
		if err := h(ctx); err != nil {
			return nil, err
		}
	}
	return f.Store.Get(ctx, kind, id)
}

func (f *Faulty) Find(ctx context.Context, kind docstore.Kind, q docstore.Query) ([]*docstore.Document, error) {
	f.count("Find")
	if h := pop(f, f.finds, kind); h != nil {
		if err := h(ctx); err != nil {
			return nil, err
		}
	}
	return f.Store.Find(ctx, kind, q)
}

func (f *Faulty) Insert(ctx context.Context, doc *docstore.Document) error {
	f.count("Insert")
	return f.Store.Insert(ctx, doc)
}

func (f *Faulty) Save(ctx context.Context, doc *docstore.Document) error {
	f.count("Save")
	if h := pop(f, f.saves, key{doc.Kind, doc.ID}); h != nil {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return f.Store.Save(ctx, doc)
}

func (f *Faulty) Delete(ctx context.Context, kind docstore.Kind, ids []string) (int64, error) {
	f.count("Delete")
	return f.Store.Delete(ctx, kind, ids)
}

// Touch returns a hook that re-saves the stored document through s after
// applying mutate, so that the caller's copy becomes stale.
func Touch(s docstore.Store, kind docstore.Kind, id string, mutate func(*docstore.Document)) Hook {
	return func(ctx context.Context) error {
		doc, err := s.Get(ctx, kind, id)
		if err != nil {
			return err
		}
		if mutate != nil {
			mutate(doc)
		}
		return s.Save(ctx, doc)
	}
}
