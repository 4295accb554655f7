package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/pricing"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/scheduler"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

type fakeScheduler struct {
	jobs   []scheduler.JobInfo
	ran    []string
	runErr error
}

func (s *fakeScheduler) Jobs() []scheduler.JobInfo { return s.jobs }

func (s *fakeScheduler) RunNow(_ context.Context, name string) error {
	if s.runErr != nil {
		return s.runErr
	}
	s.ran = append(s.ran, name)
	return nil
}

type fakePricer struct {
	quote pricing.PriceQuote
	err   error
	calls []string
}

func (p *fakePricer) CurrentPrice(_ context.Context, meterType string) (pricing.PriceQuote, error) {
	p.calls = append(p.calls, meterType)
	return p.quote, p.err
}

type fakeHealthSource struct {
	report storage.HealthReport
	err    error
}

func (h *fakeHealthSource) LatestHealthReport(context.Context) (storage.HealthReport, error) {
	return h.report, h.err
}

type fakeResultCache struct {
	price      *pricing.PriceQuote
	health     map[string]any
	priceHits  int
	healthHits int
}

func (c *fakeResultCache) GetCurrentPrice(_ context.Context, out any) (bool, error) {
	if c.price == nil {
		return false, nil
	}
	c.priceHits++
	*out.(*pricing.PriceQuote) = *c.price
	return true, nil
}

func (c *fakeResultCache) GetLatestHealth(_ context.Context, out any) (bool, error) {
	if c.health == nil {
		return false, nil
	}
	c.healthHits++
	*out.(*map[string]any) = c.health
	return true, nil
}

type fakeLiveness struct{ connected bool }

func (l *fakeLiveness) Connected() bool { return l.connected }

func newTestHandler() (*Handler, *fakeScheduler, *fakePricer, *fakeHealthSource, *fakeResultCache) {
	sched := &fakeScheduler{}
	pricer := &fakePricer{}
	health := &fakeHealthSource{}
	cache := &fakeResultCache{}
	h := &Handler{
		Scheduler: sched,
		Prices:    pricer,
		Health:    health,
		Cache:     cache,
		Gateway:   &fakeLiveness{connected: true},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h, sched, pricer, health, cache
}

func TestHealthzReportsBrokerState(t *testing.T) {
	h, _, _, _, _ := newTestHandler()
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["mqtt_connected"] != true {
		t.Fatalf("expected mqtt_connected true, got %v", body)
	}
}

func TestJobsListing(t *testing.T) {
	h, sched, _, _, _ := newTestHandler()
	next := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sched.jobs = []scheduler.JobInfo{{Name: "pricing_optimization", Cadence: "every 15m0s", NextRun: next}}

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	var got []scheduler.JobInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got) != 1 || got[0].Name != "pricing_optimization" {
		t.Fatalf("unexpected jobs payload: %v", got)
	}
}

func TestRunJob(t *testing.T) {
	h, sched, _, _, _ := newTestHandler()
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/grid_health_check/run", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(sched.ran) != 1 || sched.ran[0] != "grid_health_check" {
		t.Fatalf("expected job invoked, got %v", sched.ran)
	}
}

func TestRunJobUnknownName(t *testing.T) {
	h, sched, _, _, _ := newTestHandler()
	sched.runErr = errors.New("unknown job \"nope\"")

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/nope/run", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestCurrentPriceCacheHit(t *testing.T) {
	h, _, pricer, _, cache := newTestHandler()
	cache.price = &pricing.PriceQuote{PricePerKWH: 0.1755, MeterType: "residential", PricingTier: "peak"}

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pricing/current", nil))

	if cache.priceHits != 1 {
		t.Fatalf("expected cache hit")
	}
	if len(pricer.calls) != 0 {
		t.Fatalf("cache hit must not reach the engine, got %v", pricer.calls)
	}
	var quote pricing.PriceQuote
	if err := json.Unmarshal(rec.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if quote.PricePerKWH != 0.1755 {
		t.Fatalf("expected cached price got %v", quote.PricePerKWH)
	}
}

func TestCurrentPriceBypassesCacheForOtherMeterTypes(t *testing.T) {
	h, _, pricer, _, cache := newTestHandler()
	cache.price = &pricing.PriceQuote{PricePerKWH: 0.1755, MeterType: "residential"}
	pricer.quote = pricing.PriceQuote{PricePerKWH: 0.114, MeterType: "commercial", PricingTier: "standard"}

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pricing/current?meter_type=commercial", nil))

	if cache.priceHits != 0 {
		t.Fatalf("commercial lookup must skip the residential cache")
	}
	if len(pricer.calls) != 1 || pricer.calls[0] != "commercial" {
		t.Fatalf("expected engine lookup for commercial, got %v", pricer.calls)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCurrentPriceEngineError(t *testing.T) {
	h, _, pricer, _, _ := newTestHandler()
	pricer.err = errors.New("db down")

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pricing/current?meter_type=industrial", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestGridHealthFallsBackToStore(t *testing.T) {
	h, _, _, health, _ := newTestHandler()
	health.report = storage.HealthReport{OverallStatus: "good", HealthScore: 0.85}

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grid/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var got storage.HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.OverallStatus != "good" {
		t.Fatalf("expected stored report, got %+v", got)
	}
}

func TestGridHealthCacheHit(t *testing.T) {
	h, _, _, health, cache := newTestHandler()
	health.err = errors.New("must not be called")
	cache.health = map[string]any{"overall_status": "excellent"}

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grid/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if cache.healthHits != 1 {
		t.Fatalf("expected cache hit")
	}
}

func TestGridHealthNoReportYet(t *testing.T) {
	h, _, _, health, _ := newTestHandler()
	health.err = storage.ErrNotFound

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grid/health", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
