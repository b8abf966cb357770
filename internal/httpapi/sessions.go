package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/orchestrator"
	"github.com/ent0n29/solace/internal/protocol"
	"github.com/ent0n29/solace/internal/session"
)

const (
	defaultMessageLimit = 50
	messageLogTimeout   = 2 * time.Second
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	if strings.TrimSpace(req.VoiceID) == "" && s.voices != nil {
		req.VoiceID = s.voices.DefaultVoiceID()
	}
	if strings.TrimSpace(req.PresenterID) == "" && s.presenters != nil {
		req.PresenterID = s.presenters.DefaultPresenterID()
	}

	sess := s.sessions.Create(req.UserID, req.VoiceID, req.PresenterID)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.View{
		Session:         sess,
		InactivityTTLMS: s.sessions.InactivityTimeout().Milliseconds(),
		Messages:        []session.StoredMessage{},
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	view, err := s.sessions.View(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.End(chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

type turnRequest struct {
	Message string `json:"message"`
	Emotion string `json:"emotion"`
	Avatar  bool   `json:"avatar"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	orchestrator.TurnResult
}

func (s *Server) handleSessionTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	conv, err := s.sessions.Conversation(id)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	treq := orchestrator.TurnRequest{
		Text:        req.Message,
		Emotion:     req.Emotion,
		VoiceID:     sess.VoiceID,
		PresenterID: sess.PresenterID,
		Avatar:      req.Avatar,
	}
	res := s.orchestrator.Turn(r.Context(), conv, treq)
	if res.Reply.Status == generation.StatusFailed {
		respondError(w, http.StatusBadRequest, string(res.Reply.ErrorKind), "message is required")
		return
	}
	s.recordExchange(r.Context(), id, treq.Text, treq.Emotion, res.Reply)
	respondJSON(w, http.StatusOK, turnResponse{SessionID: id, TurnResult: res})
}

// recordExchange appends a successful exchange to the session's message log.
// The log mirrors the conversation context, which only grows on success.
func (s *Server) recordExchange(ctx context.Context, sessionID, userText, emotion string, reply generation.Result) {
	if reply.Status != generation.StatusOK {
		_ = s.sessions.Touch(sessionID)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), messageLogTimeout)
	defer cancel()
	msgs := []session.Message{
		{Role: "user", Content: strings.TrimSpace(userText), Emotion: emotion},
		{Role: "assistant", Content: reply.Text},
	}
	for _, m := range msgs {
		if err := s.sessions.AppendMessage(ctx, sessionID, m); err != nil {
			s.metrics.SessionEvents.WithLabelValues("message_log_failed").Inc()
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("append message failed")
			return
		}
	}
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	conv, err := s.sessions.Conversation(sessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 16)
	outbound := make(chan any, 64)
	runDone := make(chan struct{})

	live := orchestrator.Live{
		SessionID:    sess.ID,
		VoiceID:      sess.VoiceID,
		PresenterID:  sess.PresenterID,
		Conversation: conv,
		OnTurn: func(ctx context.Context, req orchestrator.TurnRequest, res orchestrator.TurnResult) {
			s.recordExchange(ctx, sess.ID, req.Text, req.Emotion, res.Reply)
		},
	}
	go func() {
		defer close(runDone)
		_ = s.orchestrator.RunConnection(ctx, live, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.SessionEvents.WithLabelValues("ws_write_error").Inc()
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Keep websocket writes single-threaded; drop if the queue is saturated.
				s.metrics.SessionEvents.WithLabelValues("outbound_drop").Inc()
			}
			continue
		}

		s.metrics.WSMessages.WithLabelValues("in", string(protocol.TypeOf(parsed))).Inc()
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}
