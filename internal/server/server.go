// Package server serves the website directory during development, with a
// live reload socket, a status page and the metrics endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/conneroisu/sitewright/internal/validation"
	"github.com/spf13/afero"
)

// Routes served next to the website files.
const (
	StatusPath  = "/_sitewright/status"
	HealthPath  = "/_sitewright/health"
	MetricsPath = "/metrics"
)

// Options configures a Server.
type Options struct {
	Fs         afero.Fs
	WebsiteDir string
	Host       string
	Port       int
	Status     StatusFunc
	// Metrics is mounted at MetricsPath when set.
	Metrics http.Handler
	Logger  logging.Logger
}

// Server is the development server.
type Server struct {
	opts   Options
	hub    *Hub
	files  http.Handler
	logger logging.Logger

	httpServer  *http.Server
	serverMutex sync.Mutex
	closed      bool
}

// New creates a Server. Nothing listens until Start.
func New(opts Options) *Server {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Status == nil {
		opts.Status = func() Status { return Status{} }
	}
	opts.WebsiteDir = filepath.Clean(opts.WebsiteDir)

	return &Server{
		opts:   opts,
		hub:    NewHub(validation.LocalOrigins(opts.Host, opts.Port), opts.Logger),
		files:  http.FileServer(afero.NewHttpFs(opts.Fs).Dir(opts.WebsiteDir)),
		logger: opts.Logger.WithComponent("DevServer"),
	}
}

// Addr is the listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Handler returns the routes without the listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(ReloadPath, s.hub)
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc(HealthPath, s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle(MetricsPath, s.opts.Metrics)
	}
	mux.HandleFunc("/", s.handleStatic)
	return s.logRequests(mux)
}

// Start listens until Shutdown or ctx is done. The live reload hub runs for
// the lifetime of ctx.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.serverMutex.Lock()
	if s.closed {
		s.serverMutex.Unlock()
		return nil
	}
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Serving website", "url", "http://"+s.Addr(), "directory", s.opts.WebsiteDir)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the listener, or keeps Start from listening when it has
// not started yet. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMutex.Lock()
	s.closed = true
	server := s.httpServer
	s.serverMutex.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Reload tells every connected browser to reload.
func (s *Server) Reload(files []string) {
	s.hub.Broadcast(Message{Type: "reload", Files: files})
}

// Clients returns the number of live reload connections
func (s *Server) Clients() int {
	return s.hub.Count()
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	full := filepath.Join(s.opts.WebsiteDir, filepath.FromSlash(name))

	info, err := s.opts.Fs.Stat(full)
	if err == nil && info.IsDir() && strings.HasSuffix(r.URL.Path, "/") {
		full = filepath.Join(full, "index.html")
		info, err = s.opts.Fs.Stat(full)
	}
	if err != nil || info.IsDir() || !isHTML(full) {
		s.files.ServeHTTP(w, r)
		return
	}

	data, err := afero.ReadFile(s.opts.Fs, full)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	injected, err := InjectReloadScript(data)
	if err != nil {
		s.logger.Warn(r.Context(), err, "Serving page without live reload", "file", full)
		injected = data
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(injected); err != nil {
		s.logger.Debug(r.Context(), "Response write failed", "file", full, "error", err.Error())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.opts.Status()
	st.Clients = s.hub.Count()
	templ.Handler(StatusPage(st)).ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.opts.Status()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   st.Version,
		"clients":   s.hub.Count(),
	}
	if st.LastRun != nil {
		health["last_run"] = map[string]interface{}{
			"id":      st.LastRun.RunID.String(),
			"written": len(st.LastRun.Written),
			"errors":  len(st.LastRun.Errors),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func isHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
