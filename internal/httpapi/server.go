package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"tunehall/internal/app/entities"
	"tunehall/internal/apperr"
	"tunehall/internal/docstore"
	"tunehall/internal/relations"
)

// EntityService captures the per-kind CRUD and lifecycle operations needed by
// the HTTP handlers.
type EntityService interface {
	Kind() docstore.Kind
	Create(ctx context.Context, in entities.Input) (*docstore.Document, error)
	Get(ctx context.Context, id string) (*docstore.Document, error)
	Update(ctx context.Context, id string, in entities.Input) (*docstore.Document, error)
	ListActive(ctx context.Context, filter map[string]string) ([]*docstore.Document, error)
	ListAll(ctx context.Context, filter map[string]string) ([]*docstore.Document, error)
	ListTrashed(ctx context.Context) ([]*docstore.Document, error)
	SoftDelete(ctx context.Context, ids ...string) (int, error)
	Restore(ctx context.Context, ids ...string) (int, error)
	ForceDelete(ctx context.Context, ids ...string) (int, error)
}

// PlaylistService coordinates playlist track operations.
type PlaylistService interface {
	AddSongs(ctx context.Context, playlistID string, songIDs []string) ([]*docstore.Document, error)
	RemoveSongs(ctx context.Context, playlistID string, songIDs []string) ([]string, error)
}

// FavoritesService coordinates like and follow toggles.
type FavoritesService interface {
	ToggleAlbumLike(ctx context.Context, userID, albumID string) (relations.Toggle, error)
	ToggleSongLike(ctx context.Context, userID, songID string) (relations.Toggle, error)
	ToggleArtistFollow(ctx context.Context, userID, artistID string) (relations.Toggle, error)
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	entities  []EntityService
	playlists PlaylistService
	favorites FavoritesService
	validate  *validator.Validate
}

// New configures a Server. One set of entity routes is mounted per service.
func New(entitySvcs []EntityService, playlists PlaylistService, favorites FavoritesService) *Server {
	return &Server{
		entities:  entitySvcs,
		playlists: playlists,
		favorites: favorites,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes builds the router. Relationship routes are registered ahead of the
// generic entity routes so that their literal segments win over {id}.
func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/playlists/add-songs/{playlistId}", s.handleAddSongs).Methods(http.MethodPost)
	api.HandleFunc("/playlists/remove-songs/{playlistId}", s.handleRemoveSongs).Methods(http.MethodPost)
	api.HandleFunc("/albums/toggle-like", s.handleToggleAlbumLike).Methods(http.MethodPost)
	api.HandleFunc("/songs/toggle-like", s.handleToggleSongLike).Methods(http.MethodPost)
	api.HandleFunc("/artists/toggle-follow", s.handleToggleArtistFollow).Methods(http.MethodPost)

	for _, svc := range s.entities {
		s.registerEntity(api.PathPrefix("/"+string(svc.Kind())).Subrouter(), svc)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	return router
}

type errorResponse struct {
	Error string `json:"error"`
	// Partial is set when the operation committed some of its writes.
	Partial bool `json:"partial,omitempty"`
}

type messageResponse struct {
	Message  string `json:"message"`
	Affected int    `json:"affected"`
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// writeError maps a service error onto a status code.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{Error: err.Error(), Partial: apperr.IsPartial(err)})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, docstore.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// render flattens a document into the shape clients see: attributes,
// reference lists and counters at the top level next to the system fields.
func render(doc *docstore.Document) map[string]any {
	out := make(map[string]any, len(doc.Attrs)+len(doc.Refs)+len(doc.Counters)+6)
	for k, v := range doc.Attrs {
		out[k] = v
	}
	for k, v := range doc.Refs {
		out[k] = v
	}
	for k, v := range doc.Counters {
		out[k] = v
	}
	out["id"] = doc.ID
	out["deleted"] = doc.Deleted
	if doc.DeletedAt != nil {
		out["deletedAt"] = doc.DeletedAt.Format(time.RFC3339Nano)
	}
	out["revision"] = doc.Revision
	out["createdAt"] = doc.CreatedAt.Format(time.RFC3339Nano)
	out["updatedAt"] = doc.UpdatedAt.Format(time.RFC3339Nano)
	return out
}

func renderAll(docs []*docstore.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, render(d))
	}
	return out
}
