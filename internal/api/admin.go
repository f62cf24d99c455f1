package api

import (
	"net"
	"net/http"
)

import (
	"github.com/gorilla/mux"
)

import (
	"github.com/nanjiek/lockgate/internal/botguard"
	"github.com/nanjiek/lockgate/internal/validate"
)

func (s *Server) adminLocksHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := validate.Page(queryInt(r, "limit"), queryInt(r, "offset"))
	locks, err := s.store.ListLocks(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := s.store.CountLocks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[LockResponse]{
		Items:  s.lockResponses(locks),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) adminStatsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) blockHandler(w http.ResponseWriter, r *http.Request) {
	s.setBlocked(w, r, true)
}

func (s *Server) unblockHandler(w http.ResponseWriter, r *http.Request) {
	s.setBlocked(w, r, false)
}

func (s *Server) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	if s.blocklist == nil {
		errResp(w, http.StatusServiceUnavailable, "blocklist requires redis")
		return
	}
	parsed := net.ParseIP(mux.Vars(r)["ip"])
	if parsed == nil {
		s.writeError(w, r, &validate.ValidationError{Field: "ip", Message: "invalid ip address"})
		return
	}
	ip := parsed.String()

	var err error
	if blocked {
		err = s.blocklist.Block(r.Context(), ip)
	} else {
		err = s.blocklist.Unblock(r.Context(), ip)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	claims, _ := claimsFrom(r.Context())
	s.logger.Info("blocklist updated", "ip", ip, "blocked", blocked, "by", claims.Username)
	writeJSON(w, http.StatusOK, BlocklistResponse{IP: ip, Blocked: blocked})
}

// classifyHandler runs the bot heuristic on supplied signals.
func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	var req BotClassifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	h := make(http.Header, len(req.Headers))
	for k, v := range req.Headers {
		h.Set(k, v)
	}
	sig := botguard.Signals{UserAgent: req.UserAgent, Referer: req.Referer, Header: h}
	res := s.bots.Classify(sig)
	writeJSON(w, http.StatusOK, BotClassifyResponse{Bot: res.Bot, Rule: res.Rule, Score: s.bots.Score(sig)})
}
