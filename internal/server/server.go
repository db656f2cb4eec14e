// Package server sets up the HTTP router, middleware, and request handlers.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/howard-nolan/polishgw/internal/config"
	"github.com/howard-nolan/polishgw/internal/provider"
	"github.com/howard-nolan/polishgw/internal/usage"
)

// Completer is the one upstream operation the handler needs. The concrete
// implementation is completion.Client; tests substitute a stub so handler
// behavior can be verified without any network.
type Completer interface {
	Complete(ctx context.Context, cfg *provider.Config, input string) (string, error)
}

// Server holds the HTTP router and all dependencies that handlers need:
// config (free-tier settings and the usage limit), the usage counter
// store, and the completion client.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	store     usage.Store
	completer Completer
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler.
func New(cfg *config.Config, store usage.Store, completer Completer) *Server {
	s := &Server{cfg: cfg, store: store, completer: completer}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions.
func (s *Server) routes() {
	r := chi.NewRouter()

	// middleware.Logger prints a log line for every request: method,
	// path, status, and duration.
	r.Use(middleware.Logger)

	// The client is a browser app served from a different origin, so
	// every response needs CORS headers and OPTIONS preflights must be
	// answered without hitting a handler. cors.Handler does both.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		MaxAge:         300,
	}))

	// recoverJSON catches handler panics and turns them into the same
	// JSON error envelope everything else uses, instead of crashing the
	// process or sending a bare 500.
	r.Use(recoverJSON)

	r.Get("/health", s.handleHealth)
	r.Post("/v1/polish", s.handlePolish)

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface; every
// incoming request is delegated to chi's router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth responds with a simple JSON status indicating the server
// is alive — a basic liveness probe for deploy checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// recoverJSON is our variant of chi's middleware.Recoverer: the panic gets
// logged with detail server-side, the caller gets the generic 500 envelope
// with a human-readable message and nothing about the internals.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, genericErrorMessage, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
