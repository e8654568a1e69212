// Package api serves profile extraction and composition parsing over HTTP
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"shikihoscraper/cache"
	"shikihoscraper/composition"
	"shikihoscraper/logger"
	"shikihoscraper/profile"
	"shikihoscraper/runner"
	"shikihoscraper/store"
)

var codePattern = regexp.MustCompile(`^[0-9A-Za-z]{4,5}$`)

// Options wires the server's collaborators. Cache and Store are optional.
type Options struct {
	Renderer runner.Renderer
	Engine   *profile.Engine
	Cache    *cache.Cache
	Store    *store.Store
	// AccessLog receives combined-format access lines, stdout by default
	AccessLog io.Writer
}

// Server handles the HTTP API
type Server struct {
	renderer  runner.Renderer
	engine    *profile.Engine
	cache     *cache.Cache
	store     *store.Store
	accessLog io.Writer
}

// ProfileResponse is a record with its parsed business composition
type ProfileResponse struct {
	Record      profile.Record      `json:"record"`
	Composition composition.Summary `json:"composition"`
	Columns     map[string]string   `json:"columns"`
}

// CompositionRequest carries a raw business composition string
type CompositionRequest struct {
	Text string `json:"text"`
}

// CompositionResponse is the parsed form of a composition string
type CompositionResponse struct {
	Composition composition.Summary `json:"composition"`
	Columns     map[string]string   `json:"columns"`
}

// NewServer creates a server; a nil Engine uses the default engine
func NewServer(opts Options) *Server {
	engine := opts.Engine
	if engine == nil {
		engine = profile.New()
	}
	accessLog := opts.AccessLog
	if accessLog == nil {
		accessLog = os.Stdout
	}
	return &Server{
		renderer:  opts.Renderer,
		engine:    engine,
		cache:     opts.Cache,
		store:     opts.Store,
		accessLog: accessLog,
	}
}

// Handler returns the routed handler with request IDs, access logging and panic recovery
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(requestID)
	router.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/profile/{code}", s.ProfileHandler).Methods(http.MethodGet)
	router.HandleFunc("/profile/{code}/stored", s.StoredProfileHandler).Methods(http.MethodGet)
	router.HandleFunc("/composition", s.CompositionHandler).Methods(http.MethodPost)

	logged := handlers.CombinedLoggingHandler(s.accessLog, router)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(logged)
}

// HealthHandler reports liveness and cache reachability
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.cache != nil {
		status["cache"] = "ok"
		if err := s.cache.Ping(r.Context()); err != nil {
			status["cache"] = "unavailable"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// ProfileHandler renders and extracts the profile of a code
func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(mux.Vars(r)["code"])
	if !codePattern.MatchString(code) {
		http.Error(w, "Invalid code parameter", http.StatusBadRequest)
		return
	}
	if s.renderer == nil {
		http.Error(w, "Scraping is not configured", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	log := logger.WithContext(ctx)

	// a cache hit leaves the store alone
	scraped := false
	scrape := func() (profile.Record, error) {
		scraped = true
		return runner.Scrape(ctx, s.renderer, s.engine, code)
	}

	var (
		rec profile.Record
		err error
	)
	if r.URL.Query().Get("fresh") == "1" {
		rec, err = scrape()
	} else {
		rec, err = cache.Memoize(ctx, s.cache, "profile:"+code, scrape)
	}
	if err != nil {
		log.Warn("profile scrape failed", "code", code, "error", err)
		http.Error(w, "Error scraping profile", scrapeStatus(err))
		return
	}

	if scraped && s.store != nil {
		if err := s.store.Save(ctx, "", rec); err != nil {
			log.Error("failed to store record", "code", code, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, newProfileResponse(rec))
}

// StoredProfileHandler returns the last stored record of a code
func (s *Server) StoredProfileHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(mux.Vars(r)["code"])
	if !codePattern.MatchString(code) {
		http.Error(w, "Invalid code parameter", http.StatusBadRequest)
		return
	}
	if s.store == nil {
		http.Error(w, "Store is not configured", http.StatusServiceUnavailable)
		return
	}

	rec, ok, err := s.store.Record(r.Context(), code)
	if err != nil {
		logger.WithContext(r.Context()).Error("failed to load record", "code", code, "error", err)
		http.Error(w, "Error loading record", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(rec))
}

// CompositionHandler parses a business composition string
func (s *Server) CompositionHandler(w http.ResponseWriter, r *http.Request) {
	var req CompositionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	summary := composition.Parse(req.Text)
	writeJSON(w, http.StatusOK, CompositionResponse{
		Composition: summary,
		Columns:     summary.ColumnMap(),
	})
}

func newProfileResponse(rec profile.Record) ProfileResponse {
	summary := composition.Parse(rec.BusinessComposition)
	return ProfileResponse{
		Record:      rec,
		Composition: summary,
		Columns:     summary.ColumnMap(),
	}
}

func scrapeStatus(err error) int {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		http.Error(w, "Error marshaling to JSON", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
