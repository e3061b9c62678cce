package emulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Server serves the workspace job endpoints from a Store.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	store      *Store
	token      string
	user       string
	logger     zerolog.Logger
}

// New builds a server over store. When token is non-empty every request must
// carry it as a bearer token. user is recorded as the creator of new jobs.
func New(store *Store, token, user string, logger zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		store:  store,
		token:  token,
		user:   user,
		logger: logger,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID, s.authenticate)

	s.router.HandleFunc("/api/2.0/clusters/spark-versions", s.listRuntimes).Methods(http.MethodGet)
	s.router.HandleFunc("/api/2.1/jobs/list", s.listJobs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/2.1/jobs/get", s.getJob).Methods(http.MethodGet)
	s.router.HandleFunc("/api/2.1/jobs/update", s.updateJob).Methods(http.MethodPost)
	s.router.HandleFunc("/api/2.1/jobs/create", s.createJob).Methods(http.MethodPost)
	s.router.HandleFunc("/api/2.1/jobs/delete", s.deleteJob).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "no API found for "+r.Method+" "+r.URL.Path)
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port string) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	s.logger.Info().Str("port", port).Msg("starting workspace emulator")
	return s.Serve(lis)
}

// Serve starts the server on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		s.logger.Info().Str("request_id", id).Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || got != s.token {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid access token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error_code": code, "message": message})
}
