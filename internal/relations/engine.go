// Package relations keeps denormalized relationships between catalog
// documents consistent.
//
// The store has no multi-document transactions. Every write is a
// revision-checked Save; a lost race replays the read-modify-write from
// fresh reads. Operations that write two documents commit them one after
// the other, and a failure of the second write is reported as a partial
// IO error that Reconciler can repair later.
package relations

import (
	"context"
	"errors"

	"tunehall/internal/apperr"
	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
	"tunehall/internal/lifecycle"
	"tunehall/internal/logging"
	"tunehall/internal/metrics"
)

type settings struct {
	metrics *metrics.Metrics
	logger  *logging.Logger
	retries int
}

// Option customises an Engine or a Reconciler.
type Option func(*settings)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConflictRetries bounds how often a read-modify-write is replayed
// after a revision conflict.
func WithConflictRetries(n int) Option {
	return func(s *settings) { s.retries = n }
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:  logging.Nop(),
		retries: docstore.DefaultConflictRetries,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Engine runs membership and toggle operations.
type Engine struct {
	settings
	store    docstore.Store
	managers map[docstore.Kind]*lifecycle.Manager
}

// New returns an Engine over store.
func New(store docstore.Store, opts ...Option) *Engine {
	e := &Engine{
		settings: newSettings(opts),
		store:    store,
		managers: make(map[docstore.Kind]*lifecycle.Manager, len(catalog.Kinds)),
	}
	for _, kind := range catalog.Kinds {
		e.managers[kind] = e.newAccessor(kind)
	}
	return e
}

func (e *Engine) newAccessor(kind docstore.Kind) *lifecycle.Manager {
	return lifecycle.New(e.store, kind, lifecycle.WithLogger(e.logger), lifecycle.WithMetrics(e.metrics))
}

// accessor returns the lifecycle manager used to resolve documents of kind.
// The map is read-only after New.
func (e *Engine) accessor(kind docstore.Kind) *lifecycle.Manager {
	if m, ok := e.managers[kind]; ok {
		return m
	}
	return e.newAccessor(kind)
}

// retry replays fn on revision conflicts and records each one.
func (e *Engine) retry(ctx context.Context, kind docstore.Kind, id string, fn func() error) error {
	return docstore.RetryOnConflict(ctx, e.retries, func(err error) {
		e.metrics.Conflict(string(kind))
		e.logger.WithContext(ctx).Debug().
			Err(err).
			Str("kind", string(kind)).
			Str("id", id).
			Msg("revision conflict, replaying")
	}, fn)
}

// save writes doc and turns a vanished document into a not-found error.
func (e *Engine) save(ctx context.Context, op string, doc *docstore.Document) error {
	err := e.store.Save(ctx, doc)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound(op, catalog.Singular(doc.Kind), doc.ID)
	}
	return err
}

func validateIDs(op, what string, ids ...string) error {
	for _, id := range ids {
		if !docstore.ValidID(id) {
			return apperr.Validation(op, "malformed %s id %q", what, id)
		}
	}
	return nil
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

// without returns list minus the element at i, preserving order.
func without(list []string, i int) []string {
	out := make([]string, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
