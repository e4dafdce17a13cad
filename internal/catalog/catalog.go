// Package catalog names the entity kinds of the media catalog and the
// relationships maintained between them.
package catalog

import (
	"fmt"

	"tunehall/internal/docstore"
)

// Entity kinds. Every kind is soft-deletable.
const (
	Albums    docstore.Kind = "albums"
	Playlists docstore.Kind = "playlists"
	Users     docstore.Kind = "users"
	Songs     docstore.Kind = "songs"
	Artists   docstore.Kind = "artists"
	Genres    docstore.Kind = "genres"
)

// Kinds lists every entity kind in route order.
var Kinds = []docstore.Kind{Albums, Playlists, Users, Songs, Artists, Genres}

// Reference list and counter fields.
const (
	FieldTracks          = "tracks"
	FieldFavoriteAlbums  = "favoriteAlbums"
	FieldFavoriteSongs   = "favoriteSongs"
	FieldFavoriteArtists = "favoriteArtists"

	CounterFavorites = "favorites"
	CounterFollowers = "followers"
)

// Membership is an ordered, duplicate-free list of member ids stored on a
// container document.
type Membership struct {
	Name      string
	Container docstore.Kind
	Field     string
	Member    docstore.Kind
}

// Favorite is a toggle relation: a set of target ids on the owner plus a
// counter of owners on each target.
type Favorite struct {
	Name    string
	Owner   docstore.Kind
	Field   string
	Target  docstore.Kind
	Counter string
}

var (
	PlaylistTracks = Membership{
		Name:      "playlist_tracks",
		Container: Playlists,
		Field:     FieldTracks,
		Member:    Songs,
	}

	FavoriteAlbums = Favorite{
		Name:    "favorite_albums",
		Owner:   Users,
		Field:   FieldFavoriteAlbums,
		Target:  Albums,
		Counter: CounterFavorites,
	}

	FavoriteSongs = Favorite{
		Name:    "favorite_songs",
		Owner:   Users,
		Field:   FieldFavoriteSongs,
		Target:  Songs,
		Counter: CounterFavorites,
	}

	FollowedArtists = Favorite{
		Name:    "followed_artists",
		Owner:   Users,
		Field:   FieldFavoriteArtists,
		Target:  Artists,
		Counter: CounterFollowers,
	}
)

// Refs views the owner side of f as a plain reference list.
func (f Favorite) Refs() Membership {
	return Membership{Name: f.Name, Container: f.Owner, Field: f.Field, Member: f.Target}
}

// Favorites lists every toggle relation.
var Favorites = []Favorite{FavoriteAlbums, FavoriteSongs, FollowedArtists}

// Memberships lists every membership relation.
var Memberships = []Membership{PlaylistTracks}

// ParseKind resolves a kind name.
func ParseKind(name string) (docstore.Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", name)
}

// Singular names one entity of kind, for messages.
func Singular(kind docstore.Kind) string {
	s := string(kind)
	if len(s) > 1 && s[len(s)-1] == 's' {
		return s[:len(s)-1]
	}
	return s
}

// FavoriteByName resolves a toggle relation by name.
func FavoriteByName(name string) (Favorite, error) {
	for _, f := range Favorites {
		if f.Name == name {
			return f, nil
		}
	}
	return Favorite{}, fmt.Errorf("unknown favorite relation %q", name)
}

// MembershipByName resolves a membership relation by name.
func MembershipByName(name string) (Membership, error) {
	for _, m := range Memberships {
		if m.Name == name {
			return m, nil
		}
	}
	return Membership{}, fmt.Errorf("unknown membership relation %q", name)
}
