// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the tankguess backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", catalog listing and autocomplete.
//   - Play endpoints (anonymous or authenticated): mounted under /play/{category}.
//   - Records, stats and the daily leaderboard.
//   - Auth endpoints: /auth/signup, /auth/login, /auth/logout, /auth/me.
//   - Error mapping from engine/session/store errors to HTTP statuses.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Every request carries a player id: the user id behind a valid JWT, or
//     an anonymous cookie id otherwise.
//   - The events WebSocket is mounted outside the request timeout.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/tankguess/apps/go-server/internal/catalog"
	"github.com/robalobadob/tankguess/apps/go-server/internal/events"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
	"github.com/robalobadob/tankguess/apps/go-server/internal/store"
)

// Options carries the server's collaborators and settings.
type Options struct {
	Backend  store.Backend
	Catalogs *catalog.Set
	Screens  *session.Manager
	Hub      *events.Hub

	ClientOrigin   string
	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	Production     bool

	ActionRate  float64
	ActionBurst int

	Now func() time.Time
}

// Server bundles the router and its collaborators.
type Server struct {
	r       *chi.Mux
	opts    Options
	limiter *playerLimiter
}

// New constructs a Server, installs middleware, and registers routes.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CookieName == "" {
		opts.CookieName = "tankguess_token"
	}
	if opts.JWTExpiresDays <= 0 {
		opts.JWTExpiresDays = 14
	}
	s := &Server{r: chi.NewRouter(), opts: opts, limiter: newPlayerLimiter(opts.ActionRate, opts.ActionBurst, opts.Now)}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.corsFromOrigin)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"service":"tankguess-go","endpoints":["/health","/catalog/{category}","/play/{category}/*","/auth/*"]}`))
	})

	// Event stream: long-lived, no request timeout.
	s.r.With(s.withPlayer).Get("/play/{category}/events", s.handleEvents)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "catalogs": s.opts.Catalogs.Stats()})
		})

		s.mountCatalog(r)
		s.mountPlay(r.With(s.withPlayer))
		s.mountRecords(r.With(s.withPlayer))
		s.mountAuthRoutes(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromOrigin enables credentialed CORS for the configured client origin.
func (s *Server) corsFromOrigin(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- responses ---------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeErr maps a domain error to its status and code. Unknown errors are
// logged and reported as 500 without their text.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", chimw.GetReqID(r.Context())).Msg("request failed")
	}
	writeError(w, status, code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrInvalidIndex):
		return http.StatusUnprocessableEntity, "invalid_index"
	case errors.Is(err, game.ErrEmptyGuess):
		return http.StatusUnprocessableEntity, "empty_guess"
	case errors.Is(err, game.ErrRoundOver):
		return http.StatusConflict, "round_over"
	case errors.Is(err, session.ErrSettling):
		return http.StatusConflict, "settling"
	case errors.Is(err, game.ErrNoActiveRound):
		return http.StatusConflict, "no_active_round"
	case errors.Is(err, game.ErrStaleTransition):
		return http.StatusConflict, "stale_transition"
	case errors.Is(err, game.ErrItemFinished):
		return http.StatusConflict, "item_finished"
	case errors.Is(err, game.ErrCatalogExhausted):
		return http.StatusConflict, "catalog_exhausted"
	case errors.Is(err, game.ErrUnknownCategory):
		return http.StatusNotFound, "unknown_category"
	case errors.Is(err, game.ErrUnknownItem):
		return http.StatusNotFound, "unknown_item"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrUsernameTaken):
		return http.StatusConflict, "username_taken"
	}
	return http.StatusInternalServerError, "internal_error"
}
