package api

import (
	"errors"
	"net/http"
	"strings"
)

import (
	"github.com/nanjiek/lockgate/internal/auth"
	"github.com/nanjiek/lockgate/internal/store"
	"github.com/nanjiek/lockgate/internal/validate"
)

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if s.issuer == nil {
		errResp(w, http.StatusServiceUnavailable, "login disabled")
		return
	}
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}
	if u == nil || auth.CheckPassword(u.PasswordHash, req.Password) != nil {
		errResp(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, exp, err := s.issuer.Generate(u.ID, u.Username, u.IsAdmin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp, User: *u})
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.User(req.Username, req.Email, req.Password, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u := &store.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownedUserID(w, r)
	if !ok {
		return
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// updateUserHandler changes username, email and optionally the password.
func (s *Server) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownedUserID(w, r)
	if !ok {
		return
	}
	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.User(req.Username, req.Email, req.Password, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u.Username = req.Username
	u.Email = req.Email
	if req.Password != "" {
		if u.PasswordHash, err = auth.HashPassword(req.Password); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.store.UpdateUser(r.Context(), u); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownedUserID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) userLocksHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownedUserID(w, r)
	if !ok {
		return
	}
	locks, err := s.store.ListLocksByUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[LockResponse]{Items: s.lockResponses(locks)})
}

// ownedUserID reads {id} and checks the caller may act on that user. Other
// users' records answer 404.
func (s *Server) ownedUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(r, "id")
	if !ok || !canAccess(r.Context(), id) {
		errResp(w, http.StatusNotFound, msgNotFound)
		return 0, false
	}
	return id, true
}
