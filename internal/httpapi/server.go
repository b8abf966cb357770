package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/solace/internal/artifact"
	"github.com/ent0n29/solace/internal/avatar"
	"github.com/ent0n29/solace/internal/config"
	"github.com/ent0n29/solace/internal/conversation"
	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/observability"
	"github.com/ent0n29/solace/internal/orchestrator"
	"github.com/ent0n29/solace/internal/session"
	"github.com/ent0n29/solace/internal/voice"
)

type Orchestrator interface {
	Handle(ctx context.Context, conv *conversation.Context, req generation.Request) generation.Result
	Turn(ctx context.Context, conv *conversation.Context, req orchestrator.TurnRequest) orchestrator.TurnResult
	RunConnection(ctx context.Context, live orchestrator.Live, inbound <-chan any, outbound chan<- any) error
	ChatProvider() string
}

type VoiceCatalog interface {
	Voices(ctx context.Context) ([]voice.Voice, error)
	DefaultVoiceID() string
	ProviderName() string
}

type PresenterCatalog interface {
	Presenters(ctx context.Context) ([]avatar.Presenter, error)
	DefaultPresenterID() string
	ProviderName() string
}

// ArtifactResolver maps a served filename to its path on disk.
type ArtifactResolver interface {
	Resolve(kind artifact.Kind, filename string) (string, error)
}

type Deps struct {
	Config       config.Config
	Sessions     *session.Manager
	Orchestrator Orchestrator
	Voices       VoiceCatalog
	Presenters   PresenterCatalog
	Artifacts    ArtifactResolver
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator Orchestrator
	voices       VoiceCatalog
	presenters   PresenterCatalog
	artifacts    ArtifactResolver
	metrics      *observability.Metrics
	logger       zerolog.Logger
	upgrader     websocket.Upgrader
}

func New(d Deps) *Server {
	allowed := make(map[string]struct{}, len(d.Config.AllowedOrigins))
	for _, o := range d.Config.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Server{
		cfg:          d.Config,
		sessions:     d.Sessions,
		orchestrator: d.Orchestrator,
		voices:       d.Voices,
		presenters:   d.Presenters,
		artifacts:    d.Artifacts,
		metrics:      d.Metrics,
		logger:       d.Logger.With().Str("component", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors(s.cfg.AllowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/{id}", s.handleGetSession)
		r.Post("/{id}/end", s.handleEndSession)
		r.Post("/{id}/turn", s.handleSessionTurn)
		r.Get("/{id}/ws", s.handleSessionWS)
	})

	r.Post("/v1/chat", s.handleChat)
	r.Post("/v1/tts", s.handleTTS)
	r.Post("/v1/avatar", s.handleAvatar)
	r.Get("/v1/voices", s.handleListVoices)
	r.Get("/v1/presenters", s.handleListPresenters)

	r.Get("/audio/{file}", s.serveArtifact(artifact.KindAudio))
	r.Get("/video/{file}", s.serveArtifact(artifact.KindVideo))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	providers := map[string]string{}
	if s.orchestrator != nil {
		providers["chat"] = s.orchestrator.ChatProvider()
	}
	if s.voices != nil {
		providers["speech"] = s.voices.ProviderName()
	}
	if s.presenters != nil {
		providers["avatar"] = s.presenters.ProviderName()
	}
	memoryMode := "in-memory"
	if s.cfg.DatabaseURL != "" {
		memoryMode = "postgres"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"providers":       providers,
		"memory":          memoryMode,
		"active_sessions": s.sessions.ActiveCount(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondSessionError maps session manager errors onto HTTP statuses.
func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrEnded):
		respondError(w, http.StatusConflict, "session_ended", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
