package favorites

import (
	"context"

	"tunehall/internal/catalog"
	"tunehall/internal/relations"
)

// Engine captures the toggle operation required for favorites workflows.
type Engine interface {
	ToggleFavorite(ctx context.Context, rel catalog.Favorite, ownerID, targetID string) (relations.Toggle, error)
}

// Service describes high level favorites operations used by HTTP handlers.
type Service interface {
	ToggleAlbumLike(ctx context.Context, userID, albumID string) (relations.Toggle, error)
	ToggleSongLike(ctx context.Context, userID, songID string) (relations.Toggle, error)
	ToggleArtistFollow(ctx context.Context, userID, artistID string) (relations.Toggle, error)
}

type service struct {
	engine Engine
}

// New constructs a favorites Service backed by the given engine.
func New(engine Engine) Service {
	return &service{engine: engine}
}

func (s *service) ToggleAlbumLike(ctx context.Context, userID, albumID string) (relations.Toggle, error) {
	return s.toggle(ctx, catalog.FavoriteAlbums, userID, albumID)
}

func (s *service) ToggleSongLike(ctx context.Context, userID, songID string) (relations.Toggle, error) {
	return s.toggle(ctx, catalog.FavoriteSongs, userID, songID)
}

func (s *service) ToggleArtistFollow(ctx context.Context, userID, artistID string) (relations.Toggle, error) {
	return s.toggle(ctx, catalog.FollowedArtists, userID, artistID)
}

func (s *service) toggle(ctx context.Context, rel catalog.Favorite, userID, targetID string) (relations.Toggle, error) {
	if err := ctx.Err(); err != nil {
		return relations.Toggle{}, err
	}
	return s.engine.ToggleFavorite(ctx, rel, userID, targetID)
}
