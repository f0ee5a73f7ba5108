// Package httpapi exposes the swipe backend over HTTP: ranked candidate
// batches, swipe and view writes, the liked-list, preference management, and
// the WebSocket upgrade for live push events.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/avdelag1/swipess/internal/feed"
	"github.com/avdelag1/swipess/internal/metrics"
	"github.com/avdelag1/swipess/internal/preference"
	"github.com/avdelag1/swipess/internal/push"
	"github.com/avdelag1/swipess/internal/ratelimit"
	"github.com/avdelag1/swipess/internal/swipe"
)

// Config holds HTTP server settings.
type Config struct {
	ListenAddr   string        // address to listen on, e.g. ":8080"
	ReadTimeout  time.Duration // timeout for reading the full request
	WriteTimeout time.Duration // timeout for writing the full response
	IdleTimeout  time.Duration // keep-alive idle timeout
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// FeedService is the swipe pipeline the API fronts.
type FeedService interface {
	NextBatch(ctx context.Context, userID, viewType string, cursor time.Time, pageSize int) (feed.Batch, error)
	RecordSwipe(ctx context.Context, userID, viewType, targetID, targetType, direction string) error
	RecordView(ctx context.Context, userID, viewType, candidateID string) error
	Likes(ctx context.Context, userID string, limit int) ([]swipe.Decision, error)
}

// PreferenceStore reads and writes match preferences.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (preference.Preferences, error)
	Put(ctx context.Context, p preference.Preferences) error
}

// SessionStore tracks per-user session state, in particular the active
// browsing mode (client or owner view).
type SessionStore interface {
	Touch(ctx context.Context, userID string) error
	Mode(ctx context.Context, userID string) (string, error)
	SetMode(ctx context.Context, userID, mode string) error
}

// TokenResolver maps a bearer token to a user ID.
type TokenResolver interface {
	UserID(token string) (string, error)
}

// Gate throttles requests per identifier. *ratelimit.Limiter satisfies it.
type Gate interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// Server is the HTTP front of the swipe backend.
type Server struct {
	config   Config
	verifier TokenResolver
	sessions SessionStore
	feed     FeedService
	prefs    PreferenceStore
	hub      *push.Hub
	gate     Gate

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer wires the handlers. sessions, hub, and gate may be nil; the
// corresponding features degrade gracefully (default mode, no push socket,
// no read throttling).
func NewServer(config Config, verifier TokenResolver, sessions SessionStore, feedSvc FeedService, prefs PreferenceStore, hub *push.Hub, gate Gate) *Server {
	s := &Server{
		config:   config,
		verifier: verifier,
		sessions: sessions,
		feed:     feedSvc,
		prefs:    prefs,
		hub:      hub,
		gate:     gate,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /feed", s.handleFeed)
	mux.HandleFunc("POST /swipes", s.handleSwipe)
	mux.HandleFunc("POST /views", s.handleView)
	mux.HandleFunc("GET /likes", s.handleLikes)

	mux.HandleFunc("GET /preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /preferences", s.handlePutPreferences)

	mux.HandleFunc("GET /mode", s.handleGetMode)
	mux.HandleFunc("PUT /mode", s.handlePutMode)

	mux.HandleFunc("GET /ws", s.handleWS)

	s.mux = mux
	s.httpServer = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks on ListenAndServe until the server is shut down.
func (s *Server) Start() error {
	log.Printf("[httpapi] listening on %s", s.config.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests
// up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("[httpapi] shutting down")
	return s.httpServer.Shutdown(ctx)
}
