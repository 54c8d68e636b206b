// Package server exposes the agent loop over HTTP. POST /api/v1/chat answers
// with a framed event stream; the other endpoints list tools, manage stored
// sessions and report health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"agentrelay/config"
	"agentrelay/mcp"
	"agentrelay/metrics"
	"agentrelay/model"
	"agentrelay/provider"
	"agentrelay/storage"
	"agentrelay/tools"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	maxRequestBody  = 10 << 20
	shutdownTimeout = 10 * time.Second
)

// ConversationStore is the persistence the server needs.
// *storage.SessionStore implements it.
type ConversationStore interface {
	Get(ctx context.Context, id string) ([]model.Message, error)
	Replace(ctx context.Context, id string, messages []model.Message, title string) error
	SetModel(ctx context.Context, id, modelName string) error
	Session(ctx context.Context, id string) (storage.Session, error)
	List(ctx context.Context) ([]storage.Session, error)
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, title string) error
	Search(ctx context.Context, query string, limit int) ([]storage.Match, error)
}

// ProviderFactory builds the provider serving one request. An empty
// modelName means the provider's configured model.
type ProviderFactory func(providerID, modelName string) (model.Provider, error)

// Options wires a Server.
type Options struct {
	Config *config.Config
	// Providers are the configured providers, used for health checks.
	Providers map[string]model.Provider
	// NewProvider builds per-request providers. Defaults to ConfigProviders.
	NewProvider ProviderFactory
	LocalTools  []tools.Definition
	Servers     []mcp.Server
	Connector   tools.Connector
	Store       ConversationStore
	Metrics     *metrics.Metrics
}

type Server struct {
	cfg         *config.Config
	providers   map[string]model.Provider
	newProvider ProviderFactory
	local       []tools.Definition
	servers     []mcp.Server
	connector   tools.Connector
	store       ConversationStore
	metrics     *metrics.Metrics
}

func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:         cfg,
		providers:   opts.Providers,
		newProvider: opts.NewProvider,
		local:       opts.LocalTools,
		servers:     opts.Servers,
		connector:   opts.Connector,
		store:       opts.Store,
		metrics:     opts.Metrics,
	}
	if s.newProvider == nil {
		s.newProvider = ConfigProviders(cfg)
	}
	return s
}

// ConfigProviders builds providers from the configuration entries.
func ConfigProviders(cfg *config.Config) ProviderFactory {
	return func(providerID, modelName string) (model.Provider, error) {
		pc, ok := cfg.Provider(providerID)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", providerID)
		}
		if !pc.Enabled {
			return nil, fmt.Errorf("provider %q is disabled", providerID)
		}
		if modelName != "" {
			pc.Model = modelName
		}
		return provider.NewFromConfig(pc)
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}", s.handleRenameSession)
	mux.HandleFunc("GET /api/v1/tools", s.handleTools)
	mux.HandleFunc("GET /api/v1/models", s.handleModels)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return withRequestLog(mux)
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Server.Listen
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	logger().Info().Str("addr", listener.Addr().String()).Msg("server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger().Warn().Err(err).Msg("http server shutdown error")
		return err
	}
	return nil
}

// resolveModel splits a requested model into provider ID and model name.
// "openai:gpt-4o" selects the openai provider; a prefix that is not a
// configured provider (as in "llama3:8b") leaves the whole string as the
// model of the default provider.
func (s *Server) resolveModel(requested string) (string, string) {
	if id, name, ok := strings.Cut(requested, ":"); ok {
		if _, known := s.cfg.Provider(id); known {
			return id, name
		}
	}
	return s.cfg.DefaultProvider, requested
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func logger() *zerolog.Logger {
	return config.Logger("server")
}
