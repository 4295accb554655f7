package pricing

import (
	"math"
	"time"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/config"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/forecast"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

// HourlyPrice is one optimized hour produced by a run.
type HourlyPrice struct {
	TargetTimestamp   time.Time
	OptimizedPrice    float64
	AdjustmentFactor  float64
	PredictedDemandKW float64
	PredictedSupplyKW float64
	RenewableKW       float64
	SupplyDemandRatio float64
}

const (
	renewableMatchWindow = 30 * time.Minute

	peakDemandKW    = 1200.0
	offPeakDemandKW = 600.0
	normalDemandKW  = 900.0
)

// OptimizeHourly computes 24 hourly price decisions from the market
// snapshot and forecast series. The computation is pure: identical inputs
// always produce identical output.
func OptimizeHourly(now time.Time, snap storage.MarketSnapshot, demand, renewables []forecast.Point, cfg config.PricingConfig) []HourlyPrice {
	prices := make([]HourlyPrice, 0, 24)
	for offset := 0; offset < 24; offset++ {
		target := now.Add(time.Duration(offset) * time.Hour)
		predictedDemand := demandForHour(demand, target)
		predictedRenewable := renewableForHour(renewables, target)
		prices = append(prices, optimalPrice(target, predictedDemand, predictedRenewable, snap, cfg))
	}
	return prices
}

// demandForHour picks the forecast point closest to the target hour, or a
// time-of-day heuristic when no forecast exists.
func demandForHour(points []forecast.Point, target time.Time) float64 {
	var closest *forecast.Point
	minDiff := math.Inf(1)
	for i := range points {
		diff := math.Abs(points[i].Timestamp.Sub(target).Seconds())
		if diff < minDiff {
			minDiff = diff
			closest = &points[i]
		}
	}
	if closest != nil {
		return closest.Predicted
	}
	switch {
	case isPeakHour(target.Hour()):
		return peakDemandKW
	case isOffPeakHour(target.Hour()):
		return offPeakDemandKW
	default:
		return normalDemandKW
	}
}

// renewableForHour sums every forecast point within 30 minutes of the
// target hour.
func renewableForHour(points []forecast.Point, target time.Time) float64 {
	total := 0.0
	for _, p := range points {
		diff := p.Timestamp.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= renewableMatchWindow {
			total += p.Predicted
		}
	}
	return total
}

func optimalPrice(target time.Time, predictedDemand, predictedRenewable float64, snap storage.MarketSnapshot, cfg config.PricingConfig) HourlyPrice {
	basePrice := snap.WholesalePrice

	totalSupply := snap.TotalSupplyKW + predictedRenewable
	ratio := totalSupply / math.Max(predictedDemand, 1)

	supplyAdjustment := 1.0
	if ratio > 1.2 {
		supplyAdjustment = 0.8 // oversupply discount
	} else if ratio < 0.9 {
		supplyAdjustment = 1.3 // undersupply premium
	}

	timeAdjustment := 1.0
	if isPeakHour(target.Hour()) {
		timeAdjustment = cfg.PeakMultiplier
	} else if isOffPeakHour(target.Hour()) {
		timeAdjustment = cfg.OffPeakMultiplier
	}

	renewableRatio := predictedRenewable / math.Max(predictedDemand, 1)
	renewableAdjustment := math.Max(0.7, 1-renewableRatio*0.3)

	frequencyDeviation := math.Abs(snap.GridFrequency - 50.0)
	stabilityAdjustment := 1 + frequencyDeviation*0.02

	optimized := basePrice * supplyAdjustment * timeAdjustment * renewableAdjustment * stabilityAdjustment
	optimized = math.Max(basePrice*0.5, math.Min(basePrice*2.0, optimized))
	optimized = round4(optimized)

	return HourlyPrice{
		TargetTimestamp:   target,
		OptimizedPrice:    optimized,
		AdjustmentFactor:  optimized / basePrice,
		PredictedDemandKW: predictedDemand,
		PredictedSupplyKW: totalSupply,
		RenewableKW:       predictedRenewable,
		SupplyDemandRatio: ratio,
	}
}

func isPeakHour(hour int) bool {
	return hour >= 17 && hour <= 21
}

func isOffPeakHour(hour int) bool {
	return hour >= 22 || hour <= 6
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
