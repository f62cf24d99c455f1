package api

import (
	"net/http"
	"strings"
)

import (
	"github.com/nanjiek/lockgate/internal/store"
	"github.com/nanjiek/lockgate/internal/validate"
)

func (s *Server) listMediaHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ownedLock(w, r)
	if !ok {
		return
	}
	items, err := s.store.ListMedia(r.Context(), l.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[store.Media]{Items: items})
}

func (s *Server) addMediaHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ownedLock(w, r)
	if !ok {
		return
	}
	var req MediaRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := validate.Media(req.URL, req.MediaType, req.Caption); err != nil {
		s.writeError(w, r, err)
		return
	}

	m := &store.Media{LockID: l.ID, URL: req.URL, MediaType: req.MediaType, Caption: req.Caption}
	if err := s.store.AddMedia(r.Context(), m); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) reorderMediaHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ownedLock(w, r)
	if !ok {
		return
	}
	var req OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validate.Order(req.IDs); err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.store.ReorderMedia(r.Context(), l.ID, req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[store.Media]{Items: items})
}

func (s *Server) deleteMediaHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		errResp(w, http.StatusNotFound, msgNotFound)
		return
	}
	m, err := s.store.GetMedia(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.store.GetLock(r.Context(), m.LockID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !canAccess(r.Context(), l.UserID) {
		errResp(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err := s.store.DeleteMedia(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
