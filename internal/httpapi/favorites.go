package httpapi

import (
	"net/http"

	"tunehall/internal/apperr"
	"tunehall/internal/relations"
)

type toggleAlbumRequest struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	AlbumID string `json:"albumId" validate:"required,uuid"`
}

type toggleSongRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	SongID string `json:"songId" validate:"required,uuid"`
}

type toggleArtistRequest struct {
	UserID   string `json:"userId" validate:"required,uuid"`
	ArtistID string `json:"artistId" validate:"required,uuid"`
}

// toggleMessages holds the response wording for one toggle route.
type toggleMessages struct {
	counterKey string
	on, off    string
}

var (
	albumLike    = toggleMessages{"updatedAlbumFavorites", "Album liked successfully", "Album unliked successfully"}
	songLike     = toggleMessages{"updatedSongFavorites", "Song liked successfully", "Song unliked successfully"}
	artistFollow = toggleMessages{"updatedArtistFollowers", "Artist followed successfully", "Artist unfollowed successfully"}
)

// writeToggle renders a toggle result with the field names existing clients
// read. A partial failure still reports the committed user side; the target
// counter is left out because it was not written.
func writeToggle(w http.ResponseWriter, res relations.Toggle, err error, m toggleMessages) {
	favorites := res.Favorites
	if favorites == nil {
		favorites = []string{}
	}

	if err != nil {
		if !apperr.IsPartial(err) {
			writeError(w, err)
			return
		}
		writeJSON(w, statusOf(err), map[string]any{
			"error":                err.Error(),
			"partial":              true,
			"liked":                res.Liked,
			"updatedUserFavorites": favorites,
		})
		return
	}

	msg := m.off
	if res.Liked {
		msg = m.on
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"liked":                res.Liked,
		"message":              msg,
		"updatedUserFavorites": favorites,
		m.counterKey:           res.Count,
	})
}

func (s *Server) handleToggleAlbumLike(w http.ResponseWriter, r *http.Request) {
	var req toggleAlbumRequest
	if err := s.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.favorites.ToggleAlbumLike(r.Context(), req.UserID, req.AlbumID)
	writeToggle(w, res, err, albumLike)
}

func (s *Server) handleToggleSongLike(w http.ResponseWriter, r *http.Request) {
	var req toggleSongRequest
	if err := s.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.favorites.ToggleSongLike(r.Context(), req.UserID, req.SongID)
	writeToggle(w, res, err, songLike)
}

func (s *Server) handleToggleArtistFollow(w http.ResponseWriter, r *http.Request) {
	var req toggleArtistRequest
	if err := s.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.favorites.ToggleArtistFollow(r.Context(), req.UserID, req.ArtistID)
	writeToggle(w, res, err, artistFollow)
}
