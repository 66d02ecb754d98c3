// Package httpapi serves the proxy's inbound HTTP API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/charter"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/metrics"
	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/rates"
)

// Service answers the listing routes.
type Service interface {
	Search(ctx context.Context, params url.Values) (charter.SearchResult, []charter.Warning, error)
	Details(ctx context.Context, uri string) (charter.Details, error)
	Fleet(ctx context.Context, company string) (charter.FleetResult, error)
}

// Converter answers the currency route.
type Converter interface {
	Convert(ctx context.Context, from, to string, amount float64) (rates.Conversion, error)
}

type Handler struct {
	service        Service
	converter      Converter
	metrics        *metrics.Collector
	logger         *slog.Logger
	allowedOrigins map[string]struct{}
	ready          func() error
}

type Option func(*Handler)

// WithAllowedOrigins lists origins echoed back in CORS responses. Other
// origins get "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) {
		for _, o := range origins {
			if o != "" {
				h.allowedOrigins[o] = struct{}{}
			}
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithReadiness sets the check behind /readyz.
func WithReadiness(check func() error) Option {
	return func(h *Handler) {
		h.ready = check
	}
}

func NewHandler(service Service, converter Converter, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		converter:      converter,
		logger:         slog.Default().With("module", "httpapi"),
		allowedOrigins: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)
	r.Use(h.corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}) })
	r.Get("/readyz", h.readyz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	routes := func(r chi.Router) {
		r.Get("/search", h.search)
		r.Get("/entity-details", h.details)
		r.Get("/fleet", h.fleet)
		r.Get("/currency", h.currency)
	}
	r.Group(routes)
	r.Route("/api", func(r chi.Router) {
		routes(r)
		r.Get("/yacht-details", h.details)
		r.Get("/ship-details", h.details)
		r.Get("/filtered-ships", h.fleet)
	})
	return r
}
