package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

type songsRequest struct {
	SongIDs []string `json:"songIds" validate:"required,min=1,dive,uuid"`
}

func (s *Server) handleAddSongs(w http.ResponseWriter, r *http.Request) {
	var req songsRequest
	if err := s.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	added, err := s.playlists.AddSongs(r.Context(), mux.Vars(r)["playlistId"], req.SongIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAll(added))
}

func (s *Server) handleRemoveSongs(w http.ResponseWriter, r *http.Request) {
	var req songsRequest
	if err := s.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	tracks, err := s.playlists.RemoveSongs(r.Context(), mux.Vars(r)["playlistId"], req.SongIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}
