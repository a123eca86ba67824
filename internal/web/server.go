// Package web exposes the gateway's HTTP API and the live event stream.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/akalogirou/weft/internal/catalog"
	"github.com/akalogirou/weft/internal/config"
	"github.com/akalogirou/weft/internal/engine"
	"github.com/akalogirou/weft/internal/natsbus"
	"github.com/akalogirou/weft/internal/store"
	"github.com/akalogirou/weft/internal/workflow"
	"github.com/nats-io/nats.go"
)

// Runner executes a workflow request. Satisfied by *engine.Engine.
type Runner interface {
	Execute(ctx context.Context, req engine.Request) (*workflow.Run, error)
}

type Server struct {
	store     *store.Store
	bus       *natsbus.Bus
	nats      *natsbus.Client
	runner    Runner
	catalog   *catalog.Catalog
	hub       *Hub
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(s *store.Store, bus *natsbus.Bus, runner Runner, cat *catalog.Catalog, cfg config.WebConfig, version string) *Server {
	return &Server{
		store:     s,
		bus:       bus,
		runner:    runner,
		catalog:   cat,
		hub:       NewHub(),
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	// Forward NATS run events to connected websocket clients.
	s.subscribeEvents()

	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	handler := s.withMiddleware(mux)
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler returns the routed API without starting a listener. Used by tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	return s.withMiddleware(mux)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if s.cfg.Auth != "" && !s.checkAuth(r) {
			jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkAuth accepts the configured token as either a Bearer token or a
// Basic Auth password.
func (s *Server) checkAuth(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Auth)) == 1
	}
	if _, pass, ok := r.BasicAuth(); ok {
		return subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Auth)) == 1
	}
	// Websocket clients cannot set headers from browsers; allow token query.
	if token := r.URL.Query().Get("token"); token != "" {
		return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Auth)) == 1
	}
	return false
}

func (s *Server) subscribeEvents() {
	if s.bus == nil {
		return
	}
	client, err := natsbus.NewClient(s.bus)
	if err != nil {
		slog.Error("web server nats client failed", "error", err)
		return
	}
	s.nats = client

	_, _ = client.Subscribe(natsbus.TopicEventsAnyRun, func(msg *nats.Msg) {
		var event map[string]any
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Warn("invalid run event payload", "error", err)
			return
		}
		s.hub.Broadcast(event)
	})
}
