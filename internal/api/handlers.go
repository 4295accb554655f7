package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/pricing"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/scheduler"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

// SchedulerControl exposes job introspection and manual invocation.
type SchedulerControl interface {
	Jobs() []scheduler.JobInfo
	RunNow(ctx context.Context, name string) error
}

// Pricer answers current-price lookups.
type Pricer interface {
	CurrentPrice(ctx context.Context, meterType string) (pricing.PriceQuote, error)
}

// HealthSource reads the latest persisted grid health report.
type HealthSource interface {
	LatestHealthReport(ctx context.Context) (storage.HealthReport, error)
}

// ResultCache serves hot copies of the latest results.
type ResultCache interface {
	GetCurrentPrice(ctx context.Context, out any) (bool, error)
	GetLatestHealth(ctx context.Context, out any) (bool, error)
}

// Liveness reports broker connectivity.
type Liveness interface {
	Connected() bool
}

// Handler is the admin/introspection surface. It is not the data API; it
// only exposes operational state of this service.
type Handler struct {
	Scheduler SchedulerControl
	Prices    Pricer
	Health    HealthSource
	Cache     ResultCache
	Gateway   Liveness
	Logger    *slog.Logger
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.handleHealthz)
	r.Get("/jobs", h.handleJobs)
	r.Post("/jobs/{name}/run", h.handleRunJob)
	r.Get("/pricing/current", h.handleCurrentPrice)
	r.Get("/grid/health", h.handleGridHealth)
	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"mqtt_connected": h.Gateway.Connected(),
	})
}

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Scheduler.Jobs())
}

func (h *Handler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := h.Scheduler.RunNow(ctx, name); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": name})
}

func (h *Handler) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	meterType := r.URL.Query().Get("meter_type")
	if meterType == "" {
		meterType = "residential"
	}
	if h.Cache != nil && meterType == "residential" {
		var quote pricing.PriceQuote
		if hit, err := h.Cache.GetCurrentPrice(r.Context(), &quote); err == nil && hit {
			writeJSON(w, http.StatusOK, quote)
			return
		}
	}
	quote, err := h.Prices.CurrentPrice(r.Context(), meterType)
	if err != nil {
		h.Logger.Error("current price lookup failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "price lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleGridHealth(w http.ResponseWriter, r *http.Request) {
	if h.Cache != nil {
		var report map[string]any
		if hit, err := h.Cache.GetLatestHealth(r.Context(), &report); err == nil && hit {
			writeJSON(w, http.StatusOK, report)
			return
		}
	}
	report, err := h.Health.LatestHealthReport(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no health report yet"})
		return
	}
	if err != nil {
		h.Logger.Error("health report lookup failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "health lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// NewServer builds the admin HTTP server with conservative timeouts.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
