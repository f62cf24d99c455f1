package api

import (
	"net/http"
)

import (
	"github.com/gorilla/mux"
)

import (
	"github.com/nanjiek/lockgate/internal/admission"
	"github.com/nanjiek/lockgate/internal/store"
)

// albumHandler serves the public album page data. Every rejection carries
// the same body; only the status differs.
func (s *Server) albumHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	req := admission.Request{
		Token:     token,
		CallerIP:  s.resolver.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
		Header:    r.Header,
	}

	dec, album, err := s.pipeline.FetchAlbum(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !dec.Admit {
		if dec.Reason == admission.ReasonRateLimited {
			setRetryAfter(w, dec.RetryAfter.Milliseconds())
		}
		errResp(w, dec.Status(), msgAlbumUnavailable)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, toAlbumResponse(token, album))
}

func toAlbumResponse(token string, a *store.Album) AlbumResponse {
	media := make([]AlbumMediaDTO, 0, len(a.Media))
	for _, m := range a.Media {
		media = append(media, AlbumMediaDTO{
			URL:       m.URL,
			MediaType: m.MediaType,
			Caption:   m.Caption,
			Order:     m.DisplayOrder,
		})
	}
	return AlbumResponse{
		Token:     token,
		Title:     a.Title,
		Message:   a.Message,
		Owner:     a.OwnerUsername,
		ScanCount: a.ScanCount,
		CreatedAt: a.CreatedAt,
		Media:     media,
	}
}
