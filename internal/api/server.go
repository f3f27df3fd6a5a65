package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/expdata"
	"github.com/user/expdata/internal/export"
)

type Server struct {
	svc       *export.Service
	scheduler *export.Scheduler
	authToken string
	origins   []string
	version   string

	readyMu            sync.Mutex
	lastReadyStatus    bool
	lastReadyStatusAt  time.Time
	lastReadyStatusSet bool
	readyDebounce      time.Duration

	mu     sync.Mutex
	logger expdata.Logger
}

type Option func(*Server)

// WithAuthToken requires "Authorization: Bearer <token>" on every /api/
// route. Websocket clients may pass the token as the token query parameter.
func WithAuthToken(token string) Option {
	return func(s *Server) { s.authToken = token }
}

// WithScheduler exposes the latest scheduled runs.
func WithScheduler(sched *export.Scheduler) Option {
	return func(s *Server) { s.scheduler = sched }
}

// WithAllowedOrigins lists the websocket origins accepted besides the
// server's own host.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, origins...) }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

func WithLogger(l expdata.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReadyDebounce caches the health check result for d.
func WithReadyDebounce(d time.Duration) Option {
	return func(s *Server) { s.readyDebounce = d }
}

func NewServer(svc *export.Service, opts ...Option) *Server {
	s := &Server{svc: svc, version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) SetLogger(l expdata.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

func (s *Server) log(level, msg string, keysAndValues ...any) {
	s.mu.Lock()
	logger := s.logger
	s.mu.Unlock()
	if logger == nil {
		return
	}
	switch level {
	case "DEBUG":
		logger.Debug(msg, keysAndValues...)
	case "INFO":
		logger.Info(msg, keysAndValues...)
	case "WARN":
		logger.Warn(msg, keysAndValues...)
	case "ERROR":
		logger.Error(msg, keysAndValues...)
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/apps", s.listApps)
	mux.HandleFunc("GET /api/apps/{app}/export", s.downloadExport)
	mux.HandleFunc("GET /api/sessions/{code}/data", s.sessionData)

	mux.HandleFunc("POST /api/exports", s.createExport)
	mux.HandleFunc("GET /api/exports/{run}/{name}", s.downloadArtifact)
	mux.HandleFunc("GET /api/schedules/{name}", s.lastScheduledRun)

	mux.HandleFunc("GET /api/ws/export", s.handleExportWS)
	mux.HandleFunc("GET /api/version", s.handleVersion)

	mux.HandleFunc("GET /healthz", s.handleReadiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.corsMiddleware(s.authMiddleware(mux))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only protect /api/ routes
		if s.authToken == "" || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		token := ""
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid auth header", http.StatusUnauthorized)
				return
			}
			token = parts[1]
		} else if strings.HasPrefix(r.URL.Path, "/api/ws/") {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			if strings.HasPrefix(r.URL.Path, "/api/ws/") {
				s.log("WARN", "Rejected access to data export through non-authenticated websocket", "remote", r.RemoteAddr)
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusOf maps export errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, export.ErrUnknownApp), errors.Is(err, export.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrNoStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
