package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("insert and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		doc := &Document{
			ID:       NewID(),
			Kind:     "albums",
			Refs:     map[string][]string{"genres": {"g1"}},
			Counters: map[string]int64{"favorites": 3},
			Attrs:    map[string]any{"title": "Dummy"},
		}
		require.NoError(t, s.Insert(ctx, doc))
		assert.EqualValues(t, 1, doc.Revision)

		got, err := s.Get(ctx, "albums", doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
		assert.Equal(t, []string{"g1"}, got.RefList("genres"))
		assert.EqualValues(t, 3, got.Counter("favorites"))
		assert.Equal(t, "Dummy", got.Attrs["title"])
		assert.False(t, got.Deleted)
		assert.Nil(t, got.DeletedAt)

		err = s.Insert(ctx, &Document{ID: doc.ID, Kind: "albums"})
		assert.ErrorIs(t, err, ErrExists)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "albums", NewID())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save is revision checked", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		doc := &Document{ID: NewID(), Kind: "songs"}
		require.NoError(t, s.Insert(ctx, doc))

		first, err := s.Get(ctx, "songs", doc.ID)
		require.NoError(t, err)
		second, err := s.Get(ctx, "songs", doc.ID)
		require.NoError(t, err)

		first.SetCounter("favorites", 1)
		require.NoError(t, s.Save(ctx, first))
		assert.EqualValues(t, 2, first.Revision)

		second.SetCounter("favorites", 7)
		assert.ErrorIs(t, s.Save(ctx, second), ErrConflict)

		got, err := s.Get(ctx, "songs", doc.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.Counter("favorites"))

		gone := &Document{ID: NewID(), Kind: "songs", Revision: 1}
		assert.ErrorIs(t, s.Save(ctx, gone), ErrNotFound)
	})

	t.Run("find filters by state ids and attrs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		deletedAt := base.Add(time.Hour)
		docs := []*Document{
			{ID: NewID(), Kind: "genres", Attrs: map[string]any{"slug": "jazz"}, CreatedAt: base},
			{ID: NewID(), Kind: "genres", Attrs: map[string]any{"slug": "rock"}, CreatedAt: base.Add(time.Minute)},
			{ID: NewID(), Kind: "genres", Attrs: map[string]any{"slug": "jazz"}, CreatedAt: base.Add(2 * time.Minute),
				Deleted: true, DeletedAt: &deletedAt},
		}
		for _, d := range docs {
			require.NoError(t, s.Insert(ctx, d))
		}

		active, err := s.Find(ctx, "genres", Query{State: Active})
		require.NoError(t, err)
		assert.Equal(t, []string{docs[0].ID, docs[1].ID}, ids(active))

		trashed, err := s.Find(ctx, "genres", Query{State: Trashed})
		require.NoError(t, err)
		require.Len(t, trashed, 1)
		assert.Equal(t, docs[2].ID, trashed[0].ID)
		require.NotNil(t, trashed[0].DeletedAt)

		all, err := s.Find(ctx, "genres", Query{State: AnyState, Attrs: map[string]string{"slug": "jazz"}})
		require.NoError(t, err)
		assert.Equal(t, []string{docs[0].ID, docs[2].ID}, ids(all))

		byID, err := s.Find(ctx, "genres", Query{State: AnyState, IDs: []string{docs[1].ID, NewID()}})
		require.NoError(t, err)
		assert.Equal(t, []string{docs[1].ID}, ids(byID))

		none, err := s.Find(ctx, "genres", Query{State: AnyState, IDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, none)

		limited, err := s.Find(ctx, "genres", Query{State: AnyState, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("delete is physical", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		doc := &Document{ID: NewID(), Kind: "users"}
		require.NoError(t, s.Insert(ctx, doc))

		n, err := s.Delete(ctx, "users", []string{doc.ID, NewID()})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		_, err = s.Get(ctx, "users", doc.ID)
		assert.True(t, errors.Is(err, ErrNotFound))

		n, err = s.Delete(ctx, "users", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func ids(docs []*Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
