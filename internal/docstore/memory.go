package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Memory keeps documents in process memory. It backs tests and the
// "memory" store driver.
type Memory struct {
	mu   sync.RWMutex
	docs map[Kind]map[string]*Document
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[Kind]map[string]*Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a copy of the stored document.
func (m *Memory) Get(ctx context.Context, kind Kind, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

// Find returns copies of every matching document.
func (m *Memory) Find(ctx context.Context, kind Kind, q Query) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var wanted map[string]bool
	if q.IDs != nil {
		wanted = make(map[string]bool, len(q.IDs))
		for _, id := range q.IDs {
			wanted[id] = true
		}
	}

	result := make([]*Document, 0)
	for id, doc := range m.docs[kind] {
		if wanted != nil && !wanted[id] {
			continue
		}
		if !doc.Matches(q) {
			continue
		}
		result = append(result, doc.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// Insert stores a new document.
func (m *Memory) Insert(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.docs[doc.Kind]
	if !ok {
		byID = make(map[string]*Document)
		m.docs[doc.Kind] = byID
	}
	if _, exists := byID[doc.ID]; exists {
		return ErrExists
	}

	now := m.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Revision = 1
	byID[doc.ID] = doc.Clone()
	return nil
}

// Save replaces the stored document when the revision still matches.
func (m *Memory) Save(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.docs[doc.Kind][doc.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Revision != doc.Revision {
		return ErrConflict
	}

	doc.Revision++
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = m.now()
	m.docs[doc.Kind][doc.ID] = doc.Clone()
	return nil
}

// Delete removes the documents with the given ids.
func (m *Memory) Delete(ctx context.Context, kind Kind, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for _, id := range ids {
		if _, ok := m.docs[kind][id]; ok {
			delete(m.docs[kind], id)
			removed++
		}
	}
	return removed, nil
}
