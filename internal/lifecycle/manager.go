// Package lifecycle applies the soft-delete state machine to documents of
// one kind.
//
// A document is ACTIVE (deleted=false, no deletedAt) or TRASHED
// (deleted=true, deletedAt set). SoftDelete and Restore move documents
// between the two; ForceDelete removes them from the store for good. Every
// write touches a single document, so deleted and deletedAt always change
// together.
package lifecycle

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"

	"tunehall/internal/apperr"
	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
	"tunehall/internal/logging"
	"tunehall/internal/metrics"
)

// Manager runs lifecycle operations for one entity kind.
type Manager struct {
	store   docstore.Store
	kind    docstore.Kind
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *logging.Logger
	retries int
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock sets the clock used for deletedAt.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithConflictRetries bounds how often a single-document transition is
// replayed after a revision conflict.
func WithConflictRetries(n int) Option {
	return func(m *Manager) { m.retries = n }
}

// New returns a Manager for kind.
func New(store docstore.Store, kind docstore.Kind, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		kind:    kind,
		clock:   clock.New(),
		logger:  logging.Nop(),
		retries: docstore.DefaultConflictRetries,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Kind returns the entity kind the manager is bound to.
func (m *Manager) Kind() docstore.Kind { return m.kind }

// ListActive returns documents that are not deleted and match filter.
func (m *Manager) ListActive(ctx context.Context, filter map[string]string) ([]*docstore.Document, error) {
	return m.list(ctx, "lifecycle.ListActive", docstore.Query{State: docstore.Active, Attrs: filter})
}

// ListAll returns matching documents whatever their deleted flag.
func (m *Manager) ListAll(ctx context.Context, filter map[string]string) ([]*docstore.Document, error) {
	return m.list(ctx, "lifecycle.ListAll", docstore.Query{State: docstore.AnyState, Attrs: filter})
}

// ListTrashed returns soft-deleted documents.
func (m *Manager) ListTrashed(ctx context.Context) ([]*docstore.Document, error) {
	return m.list(ctx, "lifecycle.ListTrashed", docstore.Query{State: docstore.Trashed})
}

func (m *Manager) list(ctx context.Context, op string, q docstore.Query) ([]*docstore.Document, error) {
	docs, err := m.store.Find(ctx, m.kind, q)
	if err != nil {
		return nil, apperr.IO(op, err)
	}
	return docs, nil
}

// Get returns an active document. Trashed documents are reported as not
// found.
func (m *Manager) Get(ctx context.Context, id string) (*docstore.Document, error) {
	const op = "lifecycle.Get"
	doc, err := m.get(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, apperr.NotFound(op, catalog.Singular(m.kind), id)
	}
	return doc, nil
}

// GetAny returns a document whatever its deleted flag.
func (m *Manager) GetAny(ctx context.Context, id string) (*docstore.Document, error) {
	return m.get(ctx, "lifecycle.GetAny", id)
}

func (m *Manager) get(ctx context.Context, op, id string) (*docstore.Document, error) {
	if !docstore.ValidID(id) {
		return nil, apperr.Validation(op, "malformed %s id %q", catalog.Singular(m.kind), id)
	}
	doc, err := m.store.Get(ctx, m.kind, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound(op, catalog.Singular(m.kind), id)
	}
	if err != nil {
		return nil, apperr.IO(op, err)
	}
	return doc, nil
}

// SoftDelete trashes every active document in ids and returns how many
// changed. Trashed and unknown ids are skipped.
func (m *Manager) SoftDelete(ctx context.Context, ids ...string) (int, error) {
	const op = "lifecycle.SoftDelete"
	n, err := m.transition(ctx, op, ids, docstore.Active, func(doc *docstore.Document) {
		at := m.clock.Now().UTC()
		doc.Deleted = true
		doc.DeletedAt = &at
	})
	m.metrics.Transition(string(m.kind), "soft_delete", n)
	return n, err
}

// Restore reactivates every trashed document in ids and returns how many
// changed. Active and unknown ids are skipped.
func (m *Manager) Restore(ctx context.Context, ids ...string) (int, error) {
	const op = "lifecycle.Restore"
	n, err := m.transition(ctx, op, ids, docstore.Trashed, func(doc *docstore.Document) {
		doc.Deleted = false
		doc.DeletedAt = nil
	})
	m.metrics.Transition(string(m.kind), "restore", n)
	return n, err
}

// ForceDelete removes the documents in ids from the store regardless of
// their state. References held by other documents are left in place.
func (m *Manager) ForceDelete(ctx context.Context, ids ...string) (int, error) {
	const op = "lifecycle.ForceDelete"
	sel, err := m.selector(op, ids)
	if err != nil || len(sel) == 0 {
		return 0, err
	}
	n, err := m.store.Delete(ctx, m.kind, sel)
	if err != nil {
		return 0, apperr.IO(op, err)
	}
	m.metrics.Transition(string(m.kind), "force_delete", int(n))
	m.logger.WithContext(ctx).Info().
		Str("kind", string(m.kind)).
		Int64("removed", n).
		Msg("documents purged")
	return int(n), nil
}

// transition applies mutate to every document of ids currently in state
// from. Each document is saved on its own; a revision conflict reloads that
// document and re-checks its state before trying again.
func (m *Manager) transition(ctx context.Context, op string, ids []string, from docstore.State, mutate func(*docstore.Document)) (int, error) {
	sel, err := m.selector(op, ids)
	if err != nil || len(sel) == 0 {
		return 0, err
	}

	docs, err := m.store.Find(ctx, m.kind, docstore.Query{IDs: sel, State: from})
	if err != nil {
		return 0, apperr.IO(op, err)
	}

	changed := 0
	for _, doc := range docs {
		ok, err := m.apply(ctx, doc, from, mutate)
		if err != nil {
			return changed, apperr.IO(op, err)
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func (m *Manager) apply(ctx context.Context, doc *docstore.Document, from docstore.State, mutate func(*docstore.Document)) (bool, error) {
	cur := doc
	applied := false

	onConflict := func(error) {
		m.metrics.Conflict(string(m.kind))
		m.logger.WithContext(ctx).Debug().
			Str("kind", string(m.kind)).
			Str("id", doc.ID).
			Msg("revision conflict, reloading")
	}

	err := docstore.RetryOnConflict(ctx, m.retries, onConflict, func() error {
		if cur == nil {
			fresh, err := m.store.Get(ctx, m.kind, doc.ID)
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !fresh.Matches(docstore.Query{State: from}) {
				return nil
			}
			cur = fresh
		}

		mutate(cur)
		err := m.store.Save(ctx, cur)
		switch {
		case err == nil:
			applied = true
			return nil
		case errors.Is(err, docstore.ErrNotFound):
			// Purged between the read and the write.
			return nil
		case errors.Is(err, docstore.ErrConflict):
			cur = nil
			return err
		default:
			return err
		}
	})
	return applied, err
}

// selector validates ids and drops duplicates, keeping the first
// occurrence.
func (m *Manager) selector(op string, ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !docstore.ValidID(id) {
			return nil, apperr.Validation(op, "malformed %s id %q", catalog.Singular(m.kind), id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

