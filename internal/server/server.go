// Package server exposes the game over HTTP: a JSON API for playing, a
// WebSocket feed of live session events, and the operational endpoints
// (health probes and Prometheus metrics).
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/feihua/internal/corpus"
	"github.com/MrWong99/feihua/internal/game"
	"github.com/MrWong99/feihua/internal/health"
	"github.com/MrWong99/feihua/internal/observe"
	"github.com/MrWong99/feihua/pkg/provider/asr"
)

// Option configures a [Server].
type Option func(*Server)

// WithRecognizer enables spoken submissions via the given backend.
func WithRecognizer(r asr.Recognizer) Option {
	return func(s *Server) {
		s.recognizer = r
	}
}

// WithHealth sets the health handler. Default: liveness only, no checks.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server routes HTTP traffic to the game orchestrator and corpus store.
type Server struct {
	orch       *game.Orchestrator
	store      corpus.Store
	recognizer asr.Recognizer
	health     *health.Handler
	metrics    *observe.Metrics
	logger     *slog.Logger
}

// New creates a Server for the given orchestrator and store.
func New(orch *game.Orchestrator, store corpus.Store, opts ...Option) *Server {
	s := &Server{
		orch:   orch,
		store:  store,
		health: health.New(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the complete HTTP handler, observability middleware
// included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/game/start", s.handleStart)
	mux.HandleFunc("POST /api/v1/game/verify", s.handleVerify)
	mux.HandleFunc("POST /api/v1/game/verify-speech", s.handleVerifySpeech)
	mux.HandleFunc("POST /api/v1/game/ai-turn", s.handleAITurn)
	mux.HandleFunc("POST /api/v1/game/hint", s.handleHint)
	mux.HandleFunc("POST /api/v1/game/skip", s.handleSkip)
	mux.HandleFunc("POST /api/v1/game/search-poems", s.handleSearchPoems)
	mux.HandleFunc("GET /api/v1/game/random-char", s.handleRandomChar)
	mux.HandleFunc("GET /api/v1/game/{id}", s.handleSession)
	mux.HandleFunc("DELETE /api/v1/game/{id}", s.handleEnd)
	mux.HandleFunc("GET /api/v1/game/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/poets/{author}/poems", s.handlePoetPoems)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// httpStatus maps a handler error to a status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNoOpening):
		return http.StatusNotFound
	case errors.Is(err, game.ErrKeyword), errors.Is(err, game.ErrGameOver):
		return http.StatusBadRequest
	case errors.Is(err, corpus.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
