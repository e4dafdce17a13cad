package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"tunehall/internal/app/entities"
)

type entityRequest struct {
	Attrs map[string]any      `json:"attrs" validate:"required_without=Refs"`
	Refs  map[string][]string `json:"refs"`
}

// idsRequest needs the ids field present; an empty list selects nothing.
type idsRequest struct {
	IDs []string `json:"ids" validate:"required,dive,uuid"`
}

func (s *Server) registerEntity(r *mux.Router, svc EntityService) {
	h := entityHandler{server: s, svc: svc}

	r.HandleFunc("", h.listActive).Methods(http.MethodGet)
	r.HandleFunc("/", h.listActive).Methods(http.MethodGet)
	r.HandleFunc("/all", h.listAll).Methods(http.MethodGet)
	r.HandleFunc("/trash", h.listTrashed).Methods(http.MethodGet)
	r.HandleFunc("/store", h.create).Methods(http.MethodPost)
	r.HandleFunc("/update/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/delete-many", h.batch(svc.SoftDelete, "Deleted successfully")).Methods(http.MethodDelete)
	r.HandleFunc("/delete/{id}", h.single(svc.SoftDelete, "Deleted successfully")).Methods(http.MethodDelete)
	r.HandleFunc("/restore-many", h.batch(svc.Restore, "Restored successfully")).Methods(http.MethodPatch)
	r.HandleFunc("/restore/{id}", h.single(svc.Restore, "Restored successfully")).Methods(http.MethodPatch)
	r.HandleFunc("/force-many", h.batch(svc.ForceDelete, "Deleted permanently")).Methods(http.MethodDelete)
	r.HandleFunc("/force/{id}", h.single(svc.ForceDelete, "Deleted permanently")).Methods(http.MethodDelete)
	r.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
}

type entityHandler struct {
	server *Server
	svc    EntityService
}

// queryFilter turns single-valued query parameters into an attribute filter.
func queryFilter(r *http.Request) map[string]string {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	filter := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 && v[0] != "" {
			filter[k] = v[0]
		}
	}
	return filter
}

func (h entityHandler) listActive(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListActive(r.Context(), queryFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAll(docs))
}

func (h entityHandler) listAll(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListAll(r.Context(), queryFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAll(docs))
}

func (h entityHandler) listTrashed(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListTrashed(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAll(docs))
}

func (h entityHandler) get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, render(doc))
}

func (h entityHandler) create(w http.ResponseWriter, r *http.Request) {
	var req entityRequest
	if err := h.server.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	doc, err := h.svc.Create(r.Context(), entities.Input{Attrs: req.Attrs, Refs: req.Refs})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, render(doc))
}

func (h entityHandler) update(w http.ResponseWriter, r *http.Request) {
	var req entityRequest
	if err := h.server.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	doc, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], entities.Input{Attrs: req.Attrs, Refs: req.Refs})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, render(doc))
}

type lifecycleFunc func(ctx context.Context, ids ...string) (int, error)

func (h entityHandler) single(fn lifecycleFunc, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := fn(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: msg, Affected: n})
	}
}

func (h entityHandler) batch(fn lifecycleFunc, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req idsRequest
		if err := h.server.decode(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		n, err := fn(r.Context(), req.IDs...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: msg, Affected: n})
	}
}
