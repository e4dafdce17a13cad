package relations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunehall/internal/apperr"
	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
	"tunehall/internal/docstore/docstoretest"
)

func TestToggleFavoriteRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.insert(t, catalog.Albums, withCounter(catalog.CounterFavorites, 0))
	u1 := f.insert(t, catalog.Users, nil)

	res, err := f.engine.ToggleFavorite(ctx, catalog.FavoriteAlbums, u1, a1)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, []string{a1}, res.Favorites)
	assert.Equal(t, int64(1), f.raw(t, catalog.Albums, a1).Counter(catalog.CounterFavorites))
	assert.Equal(t, []string{a1}, f.raw(t, catalog.Users, u1).RefList(catalog.FieldFavoriteAlbums))

	res, err = f.engine.ToggleFavorite(ctx, catalog.FavoriteAlbums, u1, a1)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, int64(0), res.Count)
	assert.Empty(t, res.Favorites)
	assert.Equal(t, int64(0), f.raw(t, catalog.Albums, a1).Counter(catalog.CounterFavorites))
	assert.Empty(t, f.raw(t, catalog.Users, u1).RefList(catalog.FieldFavoriteAlbums))
}

func TestToggleFavoriteReturnsTargetCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s1 := f.insert(t, catalog.Songs, withCounter(catalog.CounterFavorites, 7))
	a1 := f.insert(t, catalog.Albums, withCounter(catalog.CounterFavorites, 3))
	u1 := f.insert(t, catalog.Users, func(d *docstore.Document) {
		d.SetRefList(catalog.FieldFavoriteAlbums, []string{a1})
	})

	res, err := f.engine.ToggleFavorite(ctx, catalog.FavoriteAlbums, u1, a1)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, int64(2), res.Count, "unlike must report the album's own counter")
	assert.Equal(t, int64(7), f.raw(t, catalog.Songs, s1).Counter(catalog.CounterFavorites))
}

func TestToggleFollowUsesFollowersCounter(t *testing.T) {
	f := newFixture(t)
	ar := f.insert(t, catalog.Artists, nil)
	u1 := f.insert(t, catalog.Users, nil)

	res, err := f.engine.ToggleFavorite(context.Background(), catalog.FollowedArtists, u1, ar)
	require.NoError(t, err)
	assert.True(t, res.Liked)

	doc := f.raw(t, catalog.Artists, ar)
	assert.Equal(t, int64(1), doc.Counter(catalog.CounterFollowers))
	assert.Equal(t, int64(0), doc.Counter(catalog.CounterFavorites))
}

func TestToggleFavoriteCounterSaturatesAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.insert(t, catalog.Albums, withCounter(catalog.CounterFavorites, 0))

	// The owner's set says liked but the counter has drifted to zero.
	u1 := f.insert(t, catalog.Users, func(d *docstore.Document) {
		d.SetRefList(catalog.FieldFavoriteAlbums, []string{a1})
	})
	rev := f.raw(t, catalog.Albums, a1).Revision

	res, err := f.engine.ToggleFavorite(ctx, catalog.FavoriteAlbums, u1, a1)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, int64(0), res.Count)

	doc := f.raw(t, catalog.Albums, a1)
	assert.Equal(t, int64(0), doc.Counter(catalog.CounterFavorites))
	assert.Equal(t, rev, doc.Revision, "a counter already at zero is not rewritten")
}

func TestToggleFavoriteNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.insert(t, catalog.Albums, nil)
	u1 := f.insert(t, catalog.Users, nil)
	gone := f.insert(t, catalog.Albums, nil)
	f.trash(t, catalog.Albums, gone)

	tests := []struct {
		name          string
		owner, target string
	}{
		{"missing owner", docstore.NewID(), a1},
		{"missing target", u1, docstore.NewID()},
		{"trashed target", u1, gone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			saves := f.store.Calls("Save")
			_, err := f.engine.ToggleFavorite(ctx, catalog.FavoriteAlbums, tc.owner, tc.target)
			require.ErrorIs(t, err, apperr.ErrNotFound)
			assert.False(t, apperr.IsPartial(err))
			assert.Equal(t, saves, f.store.Calls("Save"), "nothing is written before both loads succeed")
		})
	}

	_, err := f.engine.ToggleFavorite(ctx, catalog.FavoriteAlbums, "u1", a1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestToggleFavoriteOwnerConflictReplays(t *testing.T) {
	f := newFixture(t)
	a1 := f.insert(t, catalog.Albums, nil)
	a2 := f.insert(t, catalog.Albums, withCounter(catalog.CounterFavorites, 1))
	u1 := f.insert(t, catalog.Users, nil)

	// Another request likes a2 for the same user in between.
	f.store.BeforeSave(catalog.Users, u1, docstoretest.Touch(f.store.Store, catalog.Users, u1, func(d *docstore.Document) {
		d.SetRefList(catalog.FieldFavoriteAlbums, []string{a2})
	}))

	res, err := f.engine.ToggleFavorite(context.Background(), catalog.FavoriteAlbums, u1, a1)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, []string{a2, a1}, res.Favorites)
	assert.Equal(t, []string{a2, a1}, f.raw(t, catalog.Users, u1).RefList(catalog.FieldFavoriteAlbums))
	assert.Equal(t, int64(1), f.raw(t, catalog.Albums, a1).Counter(catalog.CounterFavorites))
}

func TestToggleFavoriteTargetConflictKeepsBothIncrements(t *testing.T) {
	f := newFixture(t)
	a1 := f.insert(t, catalog.Albums, withCounter(catalog.CounterFavorites, 4))
	u1 := f.insert(t, catalog.Users, nil)

	// Another user's like lands on the album between our read and our write.
	f.store.BeforeSave(catalog.Albums, a1, docstoretest.Touch(f.store.Store, catalog.Albums, a1, func(d *docstore.Document) {
		d.SetCounter(catalog.CounterFavorites, d.Counter(catalog.CounterFavorites)+1)
	}))

	res, err := f.engine.ToggleFavorite(context.Background(), catalog.FavoriteAlbums, u1, a1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Count)
	assert.Equal(t, int64(6), f.raw(t, catalog.Albums, a1).Counter(catalog.CounterFavorites))
}

func TestToggleFavoritePartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.insert(t, catalog.Albums, nil)
	u1 := f.insert(t, catalog.Users, nil)

	boom := errors.New("write timeout")
	f.store.FailSave(catalog.Albums, a1, boom)

	res, err := f.engine.ToggleFavorite(ctx, catalog.FavoriteAlbums, u1, a1)
	require.ErrorIs(t, err, apperr.ErrIO)
	assert.ErrorIs(t, err, boom)
	assert.True(t, apperr.IsPartial(err))
	assert.True(t, res.Liked)

	// Owner committed, counter did not: the documented drift.
	assert.Equal(t, []string{a1}, f.raw(t, catalog.Users, u1).RefList(catalog.FieldFavoriteAlbums))
	assert.Equal(t, int64(0), f.raw(t, catalog.Albums, a1).Counter(catalog.CounterFavorites))

	// An out-of-band recount repairs it.
	report, err := NewReconciler(f.store).RecountFavorites(ctx, catalog.FavoriteAlbums)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, int64(1), f.raw(t, catalog.Albums, a1).Counter(catalog.CounterFavorites))
}

func TestToggleFavoriteExhaustedConflictsArePartial(t *testing.T) {
	f := newFixture(t, WithConflictRetries(1))
	a1 := f.insert(t, catalog.Albums, nil)
	u1 := f.insert(t, catalog.Users, nil)

	f.store.FailSave(catalog.Albums, a1, docstore.ErrConflict, docstore.ErrConflict)

	_, err := f.engine.ToggleFavorite(context.Background(), catalog.FavoriteAlbums, u1, a1)
	require.ErrorIs(t, err, apperr.ErrIO)
	assert.ErrorIs(t, err, docstore.ErrConflict)
	assert.True(t, apperr.IsPartial(err))
}

func TestToggleFavoriteIsSequentiallyReversible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.insert(t, catalog.Users, nil)
	u2 := f.insert(t, catalog.Users, nil)
	s1 := f.insert(t, catalog.Songs, nil)

	_, err := f.engine.ToggleFavorite(ctx, catalog.FavoriteSongs, u2, s1)
	require.NoError(t, err)

	for i, want := range []bool{true, false, true, false} {
		res, err := f.engine.ToggleFavorite(ctx, catalog.FavoriteSongs, u1, s1)
		require.NoError(t, err)
		require.Equal(t, want, res.Liked, "call %d", i)
	}

	assert.Equal(t, int64(1), f.raw(t, catalog.Songs, s1).Counter(catalog.CounterFavorites))
	assert.Empty(t, f.raw(t, catalog.Users, u1).RefList(catalog.FieldFavoriteSongs))
	assert.Equal(t, []string{s1}, f.raw(t, catalog.Users, u2).RefList(catalog.FieldFavoriteSongs))
}
