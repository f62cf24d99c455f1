package api

import (
	"net/http"
	"strings"
)

import (
	"github.com/nanjiek/lockgate/internal/store"
	"github.com/nanjiek/lockgate/internal/validate"
)

func (s *Server) createLockHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	var req LockRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Lock(req.Title, req.Message); err != nil {
		s.writeError(w, r, err)
		return
	}

	owner := claims.UserID
	if req.UserID != 0 && req.UserID != owner {
		if !claims.IsAdmin {
			errResp(w, http.StatusForbidden, msgForbidden)
			return
		}
		owner = req.UserID
	}
	l := &store.Lock{
		UserID:   owner,
		Title:    req.Title,
		Message:  req.Message,
		IsPublic: req.IsPublic == nil || *req.IsPublic,
	}
	if err := s.store.CreateLock(r.Context(), l); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeLock(w, r, http.StatusCreated, l)
}

func (s *Server) getLockHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ownedLock(w, r)
	if !ok {
		return
	}
	s.writeLock(w, r, http.StatusOK, l)
}

func (s *Server) updateLockHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ownedLock(w, r)
	if !ok {
		return
	}
	var req LockRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Lock(req.Title, req.Message); err != nil {
		s.writeError(w, r, err)
		return
	}

	l.Title = req.Title
	l.Message = req.Message
	if req.IsPublic != nil {
		l.IsPublic = *req.IsPublic
	}
	if err := s.store.UpdateLock(r.Context(), l); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeLock(w, r, http.StatusOK, l)
}

func (s *Server) deleteLockHandler(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ownedLock(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteLock(r.Context(), l.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedLock loads {id} and checks ownership. Locks of other users answer 404.
func (s *Server) ownedLock(w http.ResponseWriter, r *http.Request) (*store.Lock, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		errResp(w, http.StatusNotFound, msgNotFound)
		return nil, false
	}
	l, err := s.store.GetLock(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if !canAccess(r.Context(), l.UserID) {
		errResp(w, http.StatusNotFound, msgNotFound)
		return nil, false
	}
	return l, true
}

func (s *Server) writeLock(w http.ResponseWriter, r *http.Request, status int, l *store.Lock) {
	resp, err := s.lockResponse(*l)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, resp)
}

func (s *Server) lockResponse(l store.Lock) (LockResponse, error) {
	token, err := s.codec.Encode(l.ID)
	if err != nil {
		return LockResponse{}, err
	}
	return LockResponse{Lock: l, Token: token, AlbumURL: s.cfg.PublicBaseURL + "/album/" + token}, nil
}

// lockResponses skips locks whose id cannot be encoded.
func (s *Server) lockResponses(locks []store.Lock) []LockResponse {
	out := make([]LockResponse, 0, len(locks))
	for _, l := range locks {
		resp, err := s.lockResponse(l)
		if err != nil {
			s.logger.Error("encode lock id", "id", l.ID, "err", err)
			continue
		}
		out = append(out, resp)
	}
	return out
}
