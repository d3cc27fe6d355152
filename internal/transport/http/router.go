package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries everything the router needs beyond the handler itself.
type RouterConfig struct {
	Log            *slog.Logger
	RequestTimeout time.Duration
	// ReadyChecks maps dependency names to ping functions consulted by
	// the readiness endpoint.
	ReadyChecks map[string]Pinger
}

// NewRouter wires the reservation handlers, health endpoints and the
// Prometheus scrape endpoint onto a chi mux.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	health := newHealthHandler(cfg.ReadyChecks)
	r.Get("/health/live", health.live)
	r.Get("/health/ready", health.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/doctors/{doctorID}/slots", func(r chi.Router) {
		r.Post("/", h.createSlot)
		r.Get("/", h.listSlots)
		r.Post("/recurring", h.generateRecurringSlots)
		r.Delete("/{slotID}", h.deleteSlot)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.bookAppointment)
		r.Get("/", h.listAppointments)
		r.Get("/{id}", h.getAppointment)
		r.Post("/{id}/status", h.updateAppointmentStatus)
		r.Get("/{id}/join", h.canJoin)
	})

	return r
}

// PingFunc adapts a plain function to the Pinger interface.
func PingFunc(f func(ctx context.Context) error) Pinger { return pingerFunc(f) }
