// Package server serves the trial-data HTTP API used by the knock
// experiment client, and optionally the client's static build.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/logging"
	"github.com/nvandessel/gonogo/internal/ratelimit"
	"github.com/nvandessel/gonogo/internal/sanitize"
	"github.com/nvandessel/gonogo/internal/store"
)

// DefaultAddr is the listen address used when Config.Addr is empty.
const DefaultAddr = "localhost:3001"

// maxBodyBytes bounds a single POST body.
const maxBodyBytes = 1 << 20

// Config controls a Server.
type Config struct {
	// Addr is the TCP listen address. "localhost:0" picks a free port.
	Addr string

	// StaticDir, when set, is served at "/" with index.html as the fallback
	// for unknown paths.
	StaticDir string

	// Limiter throttles /api requests per client address. Nil disables it.
	Limiter *ratelimit.Limiter

	Logger *slog.Logger
}

// Server serves the trial-data API.
type Server struct {
	store      store.TrialStore
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a server backed by ts.
func NewServer(ts store.TrialStore, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		store:  ts,
		cfg:    cfg,
		logger: logging.OrDefault(cfg.Logger),
	}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/trialData", s.handlePostTrial)
	api.HandleFunc("GET /api/trialData", s.handleListTrials)
	api.HandleFunc("GET /api/trialData/{id}", s.handleGetTrial)

	mux := http.NewServeMux()
	mux.Handle("/api/", ratelimit.Middleware(s.cfg.Limiter, nil)(api))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.StaticDir != "" {
		mux.Handle("/", spaHandler(s.cfg.StaticDir))
	}
	return mux
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("trial-data server listening", "addr", s.addr)

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if s.cfg.Limiter != nil {
		go s.pruneLoop(ctx)
	}

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// pruneLoop drops idle client buckets until ctx is done.
func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.cfg.Limiter.Prune(10 * time.Minute); n > 0 {
				s.logger.Debug("pruned rate limit buckets", "count", n)
			}
		}
	}
}

type postResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handlePostTrial stores one trial posted by the experiment client.
func (s *Server) handlePostTrial(w http.ResponseWriter, r *http.Request) {
	var rec store.TrialRecord
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid trial data: " + err.Error()})
		return
	}
	cleanTrial(&rec)
	if err := validateTrial(rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rec.ID = 0

	id, err := s.store.AddTrial(r.Context(), rec)
	if err != nil {
		s.logger.Error("inserting trial data", "user", rec.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}
	s.logger.Debug("trial stored", "id", id, "user", rec.UserID, "trial", rec.TrialNumber)
	writeJSON(w, http.StatusOK, postResponse{Success: true, ID: id})
}

// cleanTrial sanitizes the client-chosen text fields in place.
func cleanTrial(rec *store.TrialRecord) {
	rec.UserID = sanitize.ID(rec.UserID)
	rec.SessionID = sanitize.ID(rec.SessionID)
	rec.Block = sanitize.Label(rec.Block)
	rec.Stimulus = sanitize.Label(rec.Stimulus)
}

func validateTrial(rec store.TrialRecord) error {
	if rec.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if rec.Source != "" && !rec.Source.Valid() {
		return fmt.Errorf("unknown source %q", rec.Source)
	}
	if rec.TrialNumber < 0 {
		return fmt.Errorf("trialNumber must be non-negative, got %d", rec.TrialNumber)
	}
	if rec.ReactionTime < 0 {
		return fmt.Errorf("reactionTime must be non-negative, got %d", rec.ReactionTime)
	}
	return nil
}

// handleListTrials returns trials filtered by userId, sessionId, source and limit.
func (s *Server) handleListTrials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		UserID:    q.Get("userId"),
		SessionID: q.Get("sessionId"),
		Source:    constants.Source(q.Get("source")),
	}
	if filter.Source != "" && !filter.Source.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown source %q", filter.Source)})
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		filter.Limit = n
	}

	trials, err := s.store.ListTrials(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing trial data", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}
	if trials == nil {
		trials = []store.TrialRecord{}
	}
	writeJSON(w, http.StatusOK, trials)
}

func (s *Server) handleGetTrial(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid trial id"})
		return
	}
	trial, err := s.store.GetTrial(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "trial not found"})
		return
	}
	if err != nil {
		s.logger.Error("getting trial", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, trial)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// spaHandler serves files from dir and falls back to dir/index.html for
// paths that do not name a file, so client-side routes resolve.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean)))
		if err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
