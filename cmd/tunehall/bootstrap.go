package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tunehall/internal/app/entities"
	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
)

const demoUsername = "demo"

type seedAlbum struct {
	Artist string
	Title  string
	Year   int
	Tracks []string
	Genres []string
	Liked  bool
}

var demoAlbums = []seedAlbum{
	{Artist: "Boards of Canada", Title: "Music Has the Right to Children", Year: 1998, Tracks: []string{"Turquoise Hexagon Sun", "Roygbiv", "Aquarius"}, Genres: []string{"Electronic", "Ambient"}, Liked: true},
	{Artist: "Massive Attack", Title: "Mezzanine", Year: 1998, Tracks: []string{"Angel", "Teardrop", "Inertia Creeps"}, Genres: []string{"Trip Hop"}, Liked: true},
	{Artist: "Portishead", Title: "Dummy", Year: 1994, Tracks: []string{"Mysterons", "Sour Times", "Glory Box"}, Genres: []string{"Trip Hop"}, Liked: true},
	{Artist: "Radiohead", Title: "OK Computer", Year: 1997, Tracks: []string{"Airbag", "Paranoid Android", "No Surprises"}, Genres: []string{"Alternative Rock"}},
	{Artist: "Nightmares on Wax", Title: "Carboot Soul", Year: 1999, Tracks: []string{"Les Nuits", "Morse", "Finer"}, Genres: []string{"Downtempo", "Electronic"}},
	{Artist: "Nils Frahm", Title: "Spaces", Year: 2013, Tracks: []string{"An Aborted Beginning", "Says", "Hammers"}, Genres: []string{"Modern Classical"}, Liked: true},
}

func newSeedCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()
			return seedDemoCatalog(cmd.Context(), rt)
		},
	}
}

// seedDemoCatalog creates a demo user with a small catalog, a playlist and
// some favorites. It does nothing once the demo user exists, even trashed.
func seedDemoCatalog(ctx context.Context, rt *runtime) error {
	users := rt.byKind[catalog.Users]
	existing, err := users.ListAll(ctx, map[string]string{"username": demoUsername})
	if err != nil {
		return fmt.Errorf("lookup demo user: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	user, err := users.Create(ctx, entities.Input{Attrs: map[string]any{
		"username":    demoUsername,
		"displayName": "Demo Listener",
	}})
	if err != nil {
		return fmt.Errorf("bootstrap demo user: %w", err)
	}

	s := seeder{rt: rt, ids: make(map[docstore.Kind]map[string]string)}
	var songIDs []string

	for _, album := range demoAlbums {
		artistID, err := s.byName(ctx, catalog.Artists, album.Artist)
		if err != nil {
			return err
		}
		genreIDs := make([]string, 0, len(album.Genres))
		for _, g := range album.Genres {
			id, err := s.byName(ctx, catalog.Genres, g)
			if err != nil {
				return err
			}
			genreIDs = append(genreIDs, id)
		}

		doc, err := rt.byKind[catalog.Albums].Create(ctx, entities.Input{
			Attrs: map[string]any{"title": album.Title, "artist": album.Artist, "year": album.Year},
			Refs:  map[string][]string{"artists": {artistID}, "genres": genreIDs},
		})
		if err != nil {
			return fmt.Errorf("insert demo album %q: %w", album.Title, err)
		}

		for i, title := range album.Tracks {
			song, err := rt.byKind[catalog.Songs].Create(ctx, entities.Input{
				Attrs: map[string]any{"title": title, "trackNumber": i + 1},
				Refs:  map[string][]string{"album": {doc.ID}, "artists": {artistID}},
			})
			if err != nil {
				return fmt.Errorf("insert demo song %q: %w", title, err)
			}
			songIDs = append(songIDs, song.ID)
		}

		if album.Liked {
			if _, err := rt.favorites.ToggleAlbumLike(ctx, user.ID, doc.ID); err != nil {
				return fmt.Errorf("like demo album %q: %w", album.Title, err)
			}
			if _, err := rt.favorites.ToggleArtistFollow(ctx, user.ID, artistID); err != nil {
				return fmt.Errorf("follow demo artist %q: %w", album.Artist, err)
			}
		}
	}

	playlist, err := rt.byKind[catalog.Playlists].Create(ctx, entities.Input{
		Attrs: map[string]any{"name": "Late Night", "owner": user.ID},
	})
	if err != nil {
		return fmt.Errorf("insert demo playlist: %w", err)
	}
	picks := make([]string, 0, len(songIDs)/3+1)
	for i := 1; i < len(songIDs); i += 3 {
		picks = append(picks, songIDs[i])
	}
	if _, err := rt.playlists.AddSongs(ctx, playlist.ID, picks); err != nil {
		return fmt.Errorf("fill demo playlist: %w", err)
	}
	if _, err := rt.favorites.ToggleSongLike(ctx, user.ID, picks[0]); err != nil {
		return fmt.Errorf("like demo song: %w", err)
	}

	rt.logger.Zerolog().Info().
		Int("albums", len(demoAlbums)).
		Int("songs", len(songIDs)).
		Msg("demo catalog seeded")
	return nil
}

// seeder creates name-keyed entities once per run.
type seeder struct {
	rt  *runtime
	ids map[docstore.Kind]map[string]string
}

func (s seeder) byName(ctx context.Context, kind docstore.Kind, name string) (string, error) {
	if id, ok := s.ids[kind][name]; ok {
		return id, nil
	}
	doc, err := s.rt.byKind[kind].Create(ctx, entities.Input{Attrs: map[string]any{"name": name}})
	if err != nil {
		return "", fmt.Errorf("insert demo %s %q: %w", kind, name, err)
	}
	if s.ids[kind] == nil {
		s.ids[kind] = make(map[string]string)
	}
	s.ids[kind][name] = doc.ID
	return doc.ID, nil
}
