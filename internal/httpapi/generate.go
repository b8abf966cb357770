package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/generation"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Emotion   string `json:"emotion"`
}

type chatResponse struct {
	Response     string               `json:"response"`
	Status       string               `json:"status"`
	ResultStatus generation.Status    `json:"result_status"`
	ErrorKind    generation.ErrorKind `json:"error_kind,omitempty"`
	SessionID    string               `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var conv *conversation.Context
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID != "" {
		c, err := s.sessions.Conversation(sessionID)
		if err != nil {
			respondSessionError(w, err)
			return
		}
		conv = c
	} else {
		conv = s.sessions.NewConversation()
	}

	res := s.orchestrator.Handle(r.Context(), conv, generation.Request{
		Kind:    generation.KindReply,
		Text:    req.Message,
		Emotion: req.Emotion,
	})
	if !respondIfFailed(w, res) {
		return
	}
	if sessionID != "" {
		s.recordExchange(r.Context(), sessionID, req.Message, req.Emotion, res)
	}
	respondJSON(w, http.StatusOK, chatResponse{
		Response:     res.Text,
		Status:       "success",
		ResultStatus: res.Status,
		ErrorKind:    res.ErrorKind,
		SessionID:    sessionID,
	})
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type ttsResponse struct {
	AudioURL     string               `json:"audio_url"`
	Status       string               `json:"status"`
	ResultStatus generation.Status    `json:"result_status"`
	ErrorKind    generation.ErrorKind `json:"error_kind,omitempty"`
	Provider     string               `json:"provider,omitempty"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	res := s.orchestrator.Handle(r.Context(), nil, generation.Request{
		Kind:    generation.KindSpeech,
		Text:    req.Text,
		VoiceID: req.Voice,
	})
	if !respondIfFailed(w, res) {
		return
	}
	respondJSON(w, http.StatusOK, ttsResponse{
		AudioURL:     res.ArtifactURL,
		Status:       "success",
		ResultStatus: res.Status,
		ErrorKind:    res.ErrorKind,
		Provider:     res.Provider,
	})
}

type avatarRequest struct {
	Text     string `json:"text"`
	AvatarID string `json:"avatar_id"`
}

type avatarResponse struct {
	VideoURL     string               `json:"video_url"`
	Status       string               `json:"status"`
	ResultStatus generation.Status    `json:"result_status"`
	ErrorKind    generation.ErrorKind `json:"error_kind,omitempty"`
	Provider     string               `json:"provider,omitempty"`
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	res := s.orchestrator.Handle(r.Context(), nil, generation.Request{
		Kind:        generation.KindAvatar,
		Text:        req.Text,
		PresenterID: req.AvatarID,
	})
	if !respondIfFailed(w, res) {
		return
	}
	respondJSON(w, http.StatusOK, avatarResponse{
		VideoURL:     res.ArtifactURL,
		Status:       "success",
		ResultStatus: res.Status,
		ErrorKind:    res.ErrorKind,
		Provider:     res.Provider,
	})
}

// respondIfFailed writes a 400 for validation failures and reports whether
// the caller should go on.
func respondIfFailed(w http.ResponseWriter, res generation.Result) bool {
	if res.Status != generation.StatusFailed {
		return true
	}
	respondError(w, http.StatusBadRequest, string(res.ErrorKind), string(res.Kind)+" request is invalid")
	return false
}
