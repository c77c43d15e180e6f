// Package api serves the generated site plus build status, server-sent build
// events and a live-reload channel for the serve command.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openarcade/gameshelf/internal/domain"
	"github.com/openarcade/gameshelf/internal/store"
)

// Store is the slice of build history the server reads.
type Store interface {
	LatestBatch() (*domain.BatchReport, error)
	ListBatches(opts store.ListOptions) ([]store.BatchSummary, error)
}

// Server is the HTTP server behind the serve command.
type Server struct {
	store     Store
	siteDir   string
	addr      string
	mux       *http.ServeMux
	sseHub    *SSEHub
	reloadHub *ReloadHub
	rebuilder *Rebuilder
	logger    *slog.Logger
}

// NewServer creates a new serve-mode server. rebuilder may be nil, in which
// case the rebuild endpoint reports unavailable.
func NewServer(st Store, siteDir, addr string, rebuilder *Rebuilder, logger *slog.Logger) *Server {
	s := &Server{
		store:     st,
		siteDir:   siteDir,
		addr:      addr,
		mux:       http.NewServeMux(),
		sseHub:    NewSSEHub(),
		reloadHub: NewReloadHub(logger),
		rebuilder: rebuilder,
		logger:    logger.With("component", "api"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/batches", s.listBatchesHandler())
	s.mux.HandleFunc("/api/rebuild", s.rebuildHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.HandleFunc("/livereload", s.reloadHub.Handler())
	s.mux.Handle("/metrics", promhttp.Handler())

	// Generated site
	s.mux.HandleFunc("/", s.siteHandler())
}

// Start runs the server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	go s.sseHub.Run()

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
		// Request contexts derive from ctx, so canceling it also ends the
		// long-lived SSE handlers and Shutdown can finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
	}()

	s.logger.Info("serving", "addr", s.addr, "site", s.siteDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Broadcast sends an event to all SSE clients.
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

// NotifyReload tells connected browsers to reload the page.
func (s *Server) NotifyReload() {
	s.reloadHub.Broadcast()
}

// siteHandler serves the generated site. The index page gets the live-reload
// script injected on the way out; the files on disk stay plain static output.
func (s *Server) siteHandler() http.HandlerFunc {
	files := http.FileServer(http.Dir(s.siteDir))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/index.html" {
			files.ServeHTTP(w, r)
			return
		}

		data, err := os.ReadFile(filepath.Join(s.siteDir, "index.html"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		html := strings.Replace(string(data), "</body>", liveReloadScript+"</body>", 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
