package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"pinchy/internal/agenda"
	"pinchy/internal/collector"
	"pinchy/internal/config"
	appLog "pinchy/internal/log"
	"pinchy/internal/model"
)

const eventsCacheTTL = 30 * time.Second

// Agenda answers the calendar endpoints.
type Agenda interface {
	Events(ctx context.Context, days int) agenda.Result
	Discover(ctx context.Context) agenda.Discovery
	Debug(ctx context.Context) agenda.DebugReport
}

// Collector writes dashboard snapshots on demand.
type Collector interface {
	Collect(ctx context.Context) error
}

// Server provides the dashboard JSON API and the embedded UI.
type Server struct {
	cfg       *config.Config
	agenda    Agenda
	collector Collector
	router    *mux.Router

	now func() time.Time

	// Expanded events per requested day count, so dashboard polling does
	// not re-parse the vdir tree on every request.
	eventsMu    sync.RWMutex
	eventsCache map[int]eventsCache
}

// embeddedStatic contains the exported dashboard build.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server. col may be nil, which disables
// POST /api/collect.
func NewServer(cfg *config.Config, ag Agenda, col Collector) *Server {
	s := &Server{
		cfg:         cfg,
		agenda:      ag,
		collector:   col,
		router:      mux.NewRouter(),
		now:         time.Now,
		eventsCache: make(map[int]eventsCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password means disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /api/health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Pinchy", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey guards write endpoints with a Bearer token when an API key
// is configured.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg == nil || s.cfg.APIKey == "" {
			next(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !secureCompare(strings.TrimSpace(token), s.cfg.APIKey) {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/calendars/discover", s.handleDiscover).Methods(http.MethodGet)
	api.HandleFunc("/calendars/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/calendars/debug", s.handleDebug).Methods(http.MethodGet)
	api.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	api.HandleFunc("/collect", s.requireAPIKey(s.handleCollect)).Methods(http.MethodPost)
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	api.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Everything outside /api is the embedded dashboard.
	s.router.PathPrefix("/").Handler(s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// collectionDTO is a collection as the dashboard expects it. EventCount is
// "?" when the count could not be known.
type collectionDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	EventCount any    `json:"event_count"`
	Color      string `json:"color"`
}

type discoverResponse struct {
	Calendars    []collectionDTO `json:"calendars"`
	CalendarPath string          `json:"calendar_path"`
	Source       string          `json:"source"`
	Found        bool            `json:"found"`
}

// handleDiscover lists calendar collections.
//
// GET /api/calendars/discover
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	d := s.agenda.Discover(r.Context())

	unknownCounts := d.Source == string(agenda.SourceGateway)
	cals := make([]collectionDTO, 0, len(d.Calendars))
	for _, c := range d.Calendars {
		dto := collectionDTO{ID: c.ID, Name: c.Name, Path: c.Path, EventCount: c.EventCount, Color: c.Color}
		if unknownCounts {
			dto.EventCount = "?"
		}
		cals = append(cals, dto)
	}

	writeJSON(w, http.StatusOK, discoverResponse{
		Calendars:    cals,
		CalendarPath: d.Path,
		Source:       d.Source,
		Found:        d.Found,
	})
}

type eventsResponse struct {
	Events []model.Event `json:"events"`
	Count  int           `json:"count"`
	Source agenda.Source `json:"source"`
}

// eventsCache holds a cached events response and its timestamp.
type eventsCache struct {
	resp      eventsResponse
	updatedAt time.Time
}

// handleEvents returns upcoming events.
//
// GET /api/calendars/events?days=7
//   - days: lookahead in days, default 7, clamped to [1, 90]
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	days := agenda.ClampDays(parseIntDefault(r.URL.Query().Get("days"), 7))

	now := s.now()
	s.eventsMu.RLock()
	ec, ok := s.eventsCache[days]
	s.eventsMu.RUnlock()
	if ok && now.Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	res := s.agenda.Events(r.Context(), days)
	resp := eventsResponse{Events: res.Events, Count: len(res.Events), Source: res.Source}

	appLog.Info("api events request",
		"days", days,
		"source", res.Source,
		"count", resp.Count,
	)

	s.eventsMu.Lock()
	s.eventsCache[days] = eventsCache{resp: resp, updatedAt: now}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/calendars/debug
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agenda.Debug(r.Context()))
}

// handleData serves the last collector snapshot, or {} before the first run.
//
// GET /api/data
func (s *Server) handleData(w http.ResponseWriter, _ *http.Request) {
	snap, err := collector.Read(s.cfg.DataDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("failed to read snapshot", err, "data_dir", s.cfg.DataDir)
		}
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleCollect starts a collection in the background.
//
// POST /api/collect
func (s *Server) handleCollect(w http.ResponseWriter, _ *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "collector not available")
		return
	}

	// The request context ends with the response; the run must outlive it.
	go func() {
		if err := s.collector.Collect(context.Background()); err != nil {
			appLog.Error("triggered collection failed", err)
		}
	}()

	s.eventsMu.Lock()
	clear(s.eventsCache)
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
}

// staticFileServer serves the embedded dashboard from internal/web/static.
// Unknown paths fall back to index.html so client-side routes resolve.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path

		// Never serve HTML for /api paths.
		if p == "/api" || strings.HasPrefix(p, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		name := strings.TrimPrefix(path.Clean(p), "/")
		if name != "" {
			if _, err := fs.Stat(sub, name); err != nil {
				r = r.Clone(r.Context())
				r.URL.Path = "/"
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
