package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

import (
	"github.com/gorilla/mux"
)

import (
	"github.com/nanjiek/lockgate/internal/store"
	"github.com/nanjiek/lockgate/internal/validate"
)

// Generic client messages. Album rejections all share one body.
const (
	msgAlbumUnavailable = "album not available"
	msgInternal         = "internal error"
	msgRateLimited      = "rate limit exceeded"
	msgUnauthorized     = "authentication required"
	msgForbidden        = "forbidden"
	msgNotFound         = "not found"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errResp(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Code: status, Message: msg})
}

func setRetryAfter(w http.ResponseWriter, retryAfterMs int64) {
	if retryAfterMs > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt((retryAfterMs+999)/1000, 10))
	}
}

// decodeJSON reads one JSON object into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &requestError{err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &requestError{err: errors.New("body must contain a single JSON object")}
	}
	return nil
}

type requestError struct {
	err error
}

func (e *requestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// writeError normalizes err into a status and client message. Anything not
// recognised is logged and reported as a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if es, ok := validate.AsErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "validation failed",
			Details: es,
		})
		return
	}

	var maxBytes *http.MaxBytesError
	var reqErr *requestError
	switch {
	case errors.As(err, &maxBytes):
		errResp(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", maxBytes.Limit))
	case errors.As(err, &reqErr):
		errResp(w, http.StatusBadRequest, reqErr.Error())
	case errors.Is(err, store.ErrNotFound):
		errResp(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, store.ErrConflict):
		errResp(w, http.StatusConflict, "already exists")
	case errors.Is(err, store.ErrMediaLimit):
		errResp(w, http.StatusConflict, fmt.Sprintf("a lock holds at most %d media items", store.MaxMediaPerLock))
	case errors.Is(err, store.ErrInvalidOrder):
		errResp(w, http.StatusBadRequest, store.ErrInvalidOrder.Error())
	default:
		s.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		errResp(w, http.StatusInternalServerError, msgInternal)
	}
}

// pathID parses a positive integer route variable.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
