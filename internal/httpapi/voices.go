package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/solace/internal/artifact"
	"github.com/ent0n29/solace/internal/avatar"
	"github.com/ent0n29/solace/internal/voice"
)

type listVoicesResponse struct {
	DefaultVoiceID string        `json:"default_voice_id"`
	Provider       string        `json:"provider"`
	Voices         []voice.Voice `json:"voices"`
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		respondJSON(w, http.StatusOK, listVoicesResponse{Provider: "placeholder", Voices: []voice.Voice{}})
		return
	}
	voices, err := s.voices.Voices(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", s.voices.ProviderName()).Msg("list voices failed")
		respondError(w, http.StatusBadGateway, "voices_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, listVoicesResponse{
		DefaultVoiceID: s.voices.DefaultVoiceID(),
		Provider:       s.voices.ProviderName(),
		Voices:         voices,
	})
}

type listPresentersResponse struct {
	DefaultPresenterID string             `json:"default_presenter_id"`
	Provider           string             `json:"provider"`
	Presenters         []avatar.Presenter `json:"presenters"`
}

func (s *Server) handleListPresenters(w http.ResponseWriter, r *http.Request) {
	if s.presenters == nil {
		respondJSON(w, http.StatusOK, listPresentersResponse{Provider: "placeholder", Presenters: []avatar.Presenter{}})
		return
	}
	presenters, err := s.presenters.Presenters(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", s.presenters.ProviderName()).Msg("list presenters failed")
		respondError(w, http.StatusBadGateway, "presenters_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, listPresentersResponse{
		DefaultPresenterID: s.presenters.DefaultPresenterID(),
		Provider:           s.presenters.ProviderName(),
		Presenters:         presenters,
	})
}

// serveArtifact serves files that follow the artifact naming scheme and
// nothing else from the artifact directory.
func (s *Server) serveArtifact(kind artifact.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.artifacts == nil {
			http.NotFound(w, r)
			return
		}
		path, err := s.artifacts.Resolve(kind, chi.URLParam(r, "file"))
		if err != nil {
			respondError(w, http.StatusNotFound, "artifact_not_found", "artifact not found")
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		http.ServeFile(w, r, path)
	}
}
