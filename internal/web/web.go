package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"agenda/internal/calendar"
	"agenda/internal/category"
	"agenda/internal/config"
	appLog "agenda/internal/log"
	"agenda/internal/model"
	"agenda/internal/store"
	"agenda/internal/timetext"
)

// Options carries the collaborators the server does not build itself.
type Options struct {
	// Now is the clock used for "today". Defaults to time.Now.
	Now func() time.Time
	// Refresh, when set, re-imports subscriptions for
	// POST /api/subscriptions/refresh.
	Refresh func(ctx context.Context) error
}

// Server exposes the agenda store over a JSON API, plus the server-rendered
// /calendar page and the /calendar.ics feed.
type Server struct {
	cfg   *config.Config
	store *store.Store
	mux   *http.ServeMux
	now   func() time.Time

	refresh func(ctx context.Context) error

	// version is bumped on every successful mutation and keys the
	// export cache below.
	version int64

	exportMu    sync.RWMutex
	exportCache map[bool]*exportCache // keyed by include_imported
}

// exportCache holds one rendered /calendar.ics body.
type exportCache struct {
	body      string
	version   int64
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st *store.Store, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		mux:     http.NewServeMux(),
		now:     opts.Now,
		refresh: opts.Refresh,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return logRequests(h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="agenda", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/items", s.handleListItems)
	s.mux.HandleFunc("POST /api/items", s.handleCreateItem)
	s.mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	s.mux.HandleFunc("PATCH /api/items/{id}", s.handleUpdateItem)
	s.mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	s.mux.HandleFunc("GET /api/month", s.handleMonth)

	s.mux.HandleFunc("GET /api/todos", s.handleListTodos)
	s.mux.HandleFunc("POST /api/todos", s.handleCreateTodo)
	s.mux.HandleFunc("GET /api/todos/stats", s.handleTodoStats)
	s.mux.HandleFunc("PATCH /api/todos/{id}", s.handleUpdateTodo)
	s.mux.HandleFunc("DELETE /api/todos/{id}", s.handleDeleteTodo)
	s.mux.HandleFunc("POST /api/todos/{id}/schedule", s.handleScheduleTodo)

	s.mux.HandleFunc("GET /api/categories", s.handleListCategories)
	s.mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	s.mux.HandleFunc("GET /api/categories/counts", s.handleCategoryCounts)
	s.mux.HandleFunc("DELETE /api/categories/{key}", s.handleDeleteCategory)

	s.mux.HandleFunc("POST /api/drop", s.handleDrop)

	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	s.mux.HandleFunc("POST /api/subscriptions/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /calendar.ics", s.handleExport)
	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// today returns the current date key.
func (s *Server) today() string {
	return calendar.DateKey(s.now())
}

// changed records a successful mutation.
func (s *Server) changed() {
	s.exportMu.Lock()
	s.version++
	s.exportMu.Unlock()
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	const maxBody = 64 << 10
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadRequest{err}
	}
	return nil
}

// errBadRequest marks malformed request bodies and query values.
type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return "bad request: " + e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad),
		errors.Is(err, model.ErrEmptyTitle),
		errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, model.ErrInvalidTime),
		errors.Is(err, model.ErrEndNotAfterStart),
		errors.Is(err, model.ErrEndWithoutStart),
		errors.Is(err, model.ErrInvalidPayload),
		errors.Is(err, store.ErrInvalidTheme),
		errors.Is(err, category.ErrInvalidLabel),
		errors.Is(err, category.ErrInvalidColor),
		errors.Is(err, timetext.ErrInvalidTime),
		errors.Is(err, calendar.ErrInvalidDateKey):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, category.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyScheduled), errors.Is(err, category.ErrBuiltin):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure logs server-side failures and writes the mapped error.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "method", r.Method, "path", r.URL.Path)
		if errors.Is(err, store.ErrPersist) {
			writeError(w, status, "change applied but could not be saved")
			return
		}
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
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
