package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/forecast"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

type fakeStore struct {
	snapshot  storage.MarketSnapshot
	decisions []storage.PricingDecision
	failHours map[int]bool
	current   *storage.PricingDecision
}

func (s *fakeStore) LatestMarketSnapshot(context.Context, float64) (storage.MarketSnapshot, error) {
	return s.snapshot, nil
}

func (s *fakeStore) CreatePricingDecision(_ context.Context, d storage.PricingDecision) error {
	if s.failHours[d.TargetTimestamp.Hour()] {
		return errors.New("write failed")
	}
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *fakeStore) CurrentPricingDecision(context.Context, time.Time) (storage.PricingDecision, error) {
	if s.current == nil {
		return storage.PricingDecision{}, storage.ErrNotFound
	}
	return *s.current, nil
}

type fakeForecasts struct {
	demand     []forecast.Point
	renewables []forecast.Point
	err        error
}

func (f *fakeForecasts) DemandForecasts(context.Context, time.Time, time.Time) ([]forecast.Point, error) {
	return f.demand, f.err
}

func (f *fakeForecasts) RenewableForecasts(context.Context, time.Time, time.Time) ([]forecast.Point, error) {
	return f.renewables, f.err
}

type fakeBroadcast struct {
	payloads []any
}

func (b *fakeBroadcast) PublishPricingUpdate(payload any) error {
	b.payloads = append(b.payloads, payload)
	return nil
}

type fakePriceCache struct {
	last any
}

func (c *fakePriceCache) SetCurrentPrice(_ context.Context, payload any) error {
	c.last = payload
	return nil
}

func newTestEngine(store *fakeStore, forecasts *fakeForecasts) (*Engine, *fakeBroadcast, *fakePriceCache) {
	broadcast := &fakeBroadcast{}
	priceCache := &fakePriceCache{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(store, forecasts, broadcast, priceCache, testPricingConfig(), logger)
	engine.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return engine, broadcast, priceCache
}

func TestOptimizeStoresAllHours(t *testing.T) {
	store := &fakeStore{snapshot: snapshotWith(0.12, 1100, 50.0)}
	engine, broadcast, priceCache := newTestEngine(store, &fakeForecasts{})

	if err := engine.Optimize(context.Background()); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if len(store.decisions) != 24 {
		t.Fatalf("expected 24 decisions got %d", len(store.decisions))
	}
	runID := store.decisions[0].RunID
	for _, d := range store.decisions {
		if d.RunID != runID {
			t.Fatalf("decisions from one run must share a run id")
		}
		if d.Algorithm != "supply_demand_optimization" {
			t.Fatalf("unexpected algorithm tag %q", d.Algorithm)
		}
		if d.Confidence != 0.85 {
			t.Fatalf("unexpected confidence %v", d.Confidence)
		}
	}
	if len(broadcast.payloads) != 1 {
		t.Fatalf("expected one pricing broadcast got %d", len(broadcast.payloads))
	}
	if priceCache.last == nil {
		t.Fatalf("expected current price cached")
	}
}

func TestOptimizeIsolatesDecisionWriteFailures(t *testing.T) {
	store := &fakeStore{
		snapshot:  snapshotWith(0.12, 1100, 50.0),
		failHours: map[int]bool{14: true},
	}
	engine, _, _ := newTestEngine(store, &fakeForecasts{})

	if err := engine.Optimize(context.Background()); err != nil {
		t.Fatalf("optimize should not fail on one bad write: %v", err)
	}
	if len(store.decisions) != 23 {
		t.Fatalf("expected 23 stored decisions got %d", len(store.decisions))
	}
}

func TestOptimizeSurvivesForecastFailure(t *testing.T) {
	store := &fakeStore{snapshot: snapshotWith(0.12, 1100, 50.0)}
	engine, _, _ := newTestEngine(store, &fakeForecasts{err: errors.New("forecast down")})

	if err := engine.Optimize(context.Background()); err != nil {
		t.Fatalf("optimize should fall back to heuristics: %v", err)
	}
	if len(store.decisions) != 24 {
		t.Fatalf("expected 24 decisions from fallback demand, got %d", len(store.decisions))
	}
}

func TestCurrentPriceFromDecision(t *testing.T) {
	store := &fakeStore{
		snapshot: snapshotWith(0.12, 1100, 50.0),
		current:  &storage.PricingDecision{OptimizedPriceKWH: 0.15},
	}
	engine, _, _ := newTestEngine(store, &fakeForecasts{})

	quote, err := engine.CurrentPrice(context.Background(), "commercial")
	if err != nil {
		t.Fatalf("current price: %v", err)
	}
	if quote.PricePerKWH != round4(0.15*0.95) {
		t.Fatalf("expected commercial multiplier applied, got %v", quote.PricePerKWH)
	}
	if quote.PricingTier != "standard" {
		t.Fatalf("expected standard tier at noon, got %q", quote.PricingTier)
	}
}

func TestCurrentPriceTimeOfUseFallback(t *testing.T) {
	store := &fakeStore{snapshot: snapshotWith(0.12, 1100, 50.0)}
	engine, _, _ := newTestEngine(store, &fakeForecasts{})
	engine.now = func() time.Time { return time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC) }

	quote, err := engine.CurrentPrice(context.Background(), "residential")
	if err != nil {
		t.Fatalf("current price: %v", err)
	}
	if quote.PricePerKWH != round4(0.12*1.5) {
		t.Fatalf("expected peak fallback price, got %v", quote.PricePerKWH)
	}
	if quote.PricingTier != "peak" {
		t.Fatalf("expected peak tier, got %q", quote.PricingTier)
	}
}
