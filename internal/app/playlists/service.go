package playlists

import (
	"context"

	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
)

// Engine captures the membership operations needed for playlist workflows.
type Engine interface {
	AddMembers(ctx context.Context, rel catalog.Membership, containerID string, memberIDs []string) ([]*docstore.Document, error)
	RemoveMembers(ctx context.Context, rel catalog.Membership, containerID string, memberIDs []string) ([]string, error)
}

// Service coordinates playlist track operations.
type Service interface {
	AddSongs(ctx context.Context, playlistID string, songIDs []string) ([]*docstore.Document, error)
	RemoveSongs(ctx context.Context, playlistID string, songIDs []string) ([]string, error)
}

type service struct {
	engine Engine
}

// New constructs a Service backed by the provided Engine.
func New(engine Engine) Service {
	return &service{engine: engine}
}

// AddSongs appends songs that are not on the playlist yet and returns the
// songs actually added.
func (s *service) AddSongs(ctx context.Context, playlistID string, songIDs []string) ([]*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.engine.AddMembers(ctx, catalog.PlaylistTracks, playlistID, songIDs)
}

// RemoveSongs drops songs from the playlist and returns the remaining
// track ids.
func (s *service) RemoveSongs(ctx context.Context, playlistID string, songIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.engine.RemoveMembers(ctx, catalog.PlaylistTracks, playlistID, songIDs)
}
