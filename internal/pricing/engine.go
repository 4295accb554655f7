package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/config"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/forecast"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

const (
	algorithmTag   = "supply_demand_optimization"
	runConfidence  = 0.85
	forecastWindow = 24 * time.Hour
)

// Storage is the slice of the persistence store the engine needs.
type Storage interface {
	LatestMarketSnapshot(ctx context.Context, basePrice float64) (storage.MarketSnapshot, error)
	CreatePricingDecision(ctx context.Context, d storage.PricingDecision) error
	CurrentPricingDecision(ctx context.Context, now time.Time) (storage.PricingDecision, error)
}

// ForecastSource supplies demand and renewable forecast series.
type ForecastSource interface {
	DemandForecasts(ctx context.Context, from, to time.Time) ([]forecast.Point, error)
	RenewableForecasts(ctx context.Context, from, to time.Time) ([]forecast.Point, error)
}

// Broadcaster publishes pricing results to downstream subscribers.
type Broadcaster interface {
	PublishPricingUpdate(payload any) error
}

// PriceCache keeps the current price hot for lookups.
type PriceCache interface {
	SetCurrentPrice(ctx context.Context, payload any) error
}

// Engine runs the dynamic pricing optimization.
type Engine struct {
	store     Storage
	forecasts ForecastSource
	broadcast Broadcaster
	cache     PriceCache
	cfg       config.PricingConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewEngine(store Storage, forecasts ForecastSource, broadcast Broadcaster, cache PriceCache, cfg config.PricingConfig, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		forecasts: forecasts,
		broadcast: broadcast,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PriceQuote is the current price for a meter type.
type PriceQuote struct {
	PricePerKWH float64   `json:"price_per_kwh"`
	MeterType   string    `json:"meter_type"`
	Timestamp   time.Time `json:"timestamp"`
	PricingTier string    `json:"pricing_tier"`
}

type runSummary struct {
	RunID       string    `json:"run_id"`
	OptimizedAt time.Time `json:"optimized_at"`
	Hours       int       `json:"hours"`
	FirstHour   float64   `json:"first_hour_price_kwh"`
}

// Optimize pulls the market snapshot and forecasts, computes 24 hourly
// price decisions and persists them. Storing one decision can fail without
// aborting the rest of the run.
func (e *Engine) Optimize(ctx context.Context) error {
	now := e.now()
	snap, err := e.store.LatestMarketSnapshot(ctx, e.cfg.BasePrice)
	if err != nil {
		return fmt.Errorf("load market snapshot: %w", err)
	}
	demand, err := e.forecasts.DemandForecasts(ctx, now, now.Add(forecastWindow))
	if err != nil {
		e.logger.Error("demand forecast unavailable", slog.String("error", err.Error()))
		demand = nil
	}
	renewables, err := e.forecasts.RenewableForecasts(ctx, now, now.Add(forecastWindow))
	if err != nil {
		e.logger.Error("renewable forecast unavailable", slog.String("error", err.Error()))
		renewables = nil
	}

	prices := OptimizeHourly(now, snap, demand, renewables, e.cfg)

	runID := uuid.NewString()
	stored := 0
	for _, p := range prices {
		decision := storage.PricingDecision{
			RunID:             runID,
			OptimizedAt:       now,
			TargetTimestamp:   p.TargetTimestamp,
			OptimizedPriceKWH: p.OptimizedPrice,
			AdjustmentFactor:  p.AdjustmentFactor,
			PredictedDemandKW: p.PredictedDemandKW,
			PredictedSupplyKW: p.PredictedSupplyKW,
			RenewableKW:       p.RenewableKW,
			Algorithm:         algorithmTag,
			Confidence:        runConfidence,
		}
		if err := e.store.CreatePricingDecision(ctx, decision); err != nil {
			e.logger.Error("store pricing decision failed",
				slog.String("run", runID),
				slog.Time("target", p.TargetTimestamp),
				slog.String("error", err.Error()))
			continue
		}
		stored++
	}
	e.logger.Info("pricing optimization completed",
		slog.String("run", runID), slog.Int("stored", stored))

	summary := runSummary{RunID: runID, OptimizedAt: now, Hours: stored, FirstHour: prices[0].OptimizedPrice}
	if e.broadcast != nil {
		if err := e.broadcast.PublishPricingUpdate(summary); err != nil {
			e.logger.Warn("pricing broadcast failed", slog.String("error", err.Error()))
		}
	}
	if e.cache != nil {
		quote := e.quoteFromPrice(prices[0].OptimizedPrice, "residential", now)
		if err := e.cache.SetCurrentPrice(ctx, quote); err != nil {
			e.logger.Warn("price cache update failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

var meterTypeMultipliers = map[string]float64{
	"residential": 1.0,
	"commercial":  0.95,
	"industrial":  0.90,
}

// CurrentPrice returns the price in effect now for a meter type, falling
// back to time-of-use base pricing when no recent optimization exists.
func (e *Engine) CurrentPrice(ctx context.Context, meterType string) (PriceQuote, error) {
	now := e.now()
	price := 0.0
	decision, err := e.store.CurrentPricingDecision(ctx, now)
	switch {
	case err == nil:
		price = decision.OptimizedPriceKWH
	case errors.Is(err, storage.ErrNotFound):
		price = e.fallbackPrice(now)
	default:
		return PriceQuote{}, err
	}
	return e.quoteFromPrice(price, meterType, now), nil
}

func (e *Engine) fallbackPrice(now time.Time) float64 {
	switch {
	case isPeakHour(now.Hour()):
		return e.cfg.BasePrice * e.cfg.PeakMultiplier
	case isOffPeakHour(now.Hour()):
		return e.cfg.BasePrice * e.cfg.OffPeakMultiplier
	default:
		return e.cfg.BasePrice
	}
}

func (e *Engine) quoteFromPrice(price float64, meterType string, now time.Time) PriceQuote {
	multiplier, ok := meterTypeMultipliers[meterType]
	if !ok {
		multiplier = 1.0
	}
	return PriceQuote{
		PricePerKWH: round4(price * multiplier),
		MeterType:   meterType,
		Timestamp:   now,
		PricingTier: pricingTier(now.Hour()),
	}
}

func pricingTier(hour int) string {
	switch {
	case isPeakHour(hour):
		return "peak"
	case isOffPeakHour(hour):
		return "off_peak"
	default:
		return "standard"
	}
}
