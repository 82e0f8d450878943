// Package httpapi wires the HTTP endpoints onto the session store,
// query executor, and read pipeline, following a chi-router
// mount-table pattern.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medo6/shim/internal/query"
	"github.com/medo6/shim/internal/session"
)

const (
	middlewareTimeout = 5 * time.Minute
	readHeaderTimeout = 10 * time.Second
)

// Config bundles everything the router needs to build handlers.
type Config struct {
	Store      *session.Store
	Executor   *query.Executor
	DocRoot    string
	Version    string
	LogLocator LogLocator
	Debug      bool
}

// NewRouter builds the full URI table: the fixed endpoint set,
// falling through to static file service, with .htpasswd always
// forbidden.
func NewRouter(cfg Config) http.Handler {
	routes := &handlers{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(middlewareTimeout))

	r.Get("/new_session", routes.newSession)
	r.Get("/release_session", routes.releaseSession)
	r.Get("/execute_query", routes.executeQuery)
	r.Get("/cancel", routes.cancel)
	r.Post("/upload", routes.upload)
	r.Get("/read_bytes", routes.readBytes)
	r.Get("/read_lines", routes.readLines)
	r.Get("/version", routes.version)
	r.Get("/get_log", routes.getLog)
	if cfg.Debug {
		r.Get("/debug", routes.debug)
	}
	r.NotFound(routes.static)

	return r
}

// NewServer wraps an http.Server around the router with a bound
// context and a read-header timeout.
func NewServer(ctx context.Context, addr string, cfg Config) *http.Server {
	return &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

type handlers struct {
	cfg Config
}

// static serves the document root, rejecting any request path that
// references .htpasswd with a 403.
func (h *handlers) static(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.URL.Path, ".htpasswd") {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	http.FileServer(http.Dir(h.cfg.DocRoot)).ServeHTTP(w, r)
}
