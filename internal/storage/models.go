package storage

import "time"

// Meter is a registered smart meter device.
type Meter struct {
	MeterID           string
	Location          string
	MeterType         string
	IsActive          bool
	LastCommunication *time.Time
}

// EnergyReading is one telemetry sample from a smart meter. Immutable once
// persisted.
type EnergyReading struct {
	MeterID        string
	Timestamp      time.Time
	ActiveEnergy   float64
	ReactiveEnergy *float64
	ApparentEnergy *float64
	ActivePower    *float64
	ReactivePower  *float64
	PowerFactor    float64
	VoltageL1      *float64
	VoltageL2      *float64
	VoltageL3      *float64
	CurrentL1      *float64
	CurrentL2      *float64
	CurrentL3      *float64
	Frequency      *float64
	QualityFlag    string
}

// GenerationSample is one telemetry sample from a renewable source.
type GenerationSample struct {
	SourceID           string
	SourceType         string // "solar" or "wind"
	Timestamp          time.Time
	PowerOutputKW      float64
	EnergyGeneratedKWH float64
	IrradianceWM2      *float64
	WindSpeedMS        *float64
	WindDirectionDeg   *float64
	TemperatureC       *float64
	CapacityFactor     *float64
	Efficiency         *float64
}

// MarketSnapshot is the latest known wholesale market state.
type MarketSnapshot struct {
	Timestamp       time.Time
	WholesalePrice  float64
	TotalDemandKW   float64
	TotalSupplyKW   float64
	RenewableSupply float64
	GridFrequency   float64
}

// PricingDecision is one hour of a pricing optimization run.
type PricingDecision struct {
	RunID             string
	OptimizedAt       time.Time
	TargetTimestamp   time.Time
	OptimizedPriceKWH float64
	AdjustmentFactor  float64
	PredictedDemandKW float64
	PredictedSupplyKW float64
	RenewableKW       float64
	Algorithm         string
	Confidence        float64
}

// ForecastRow is one stored prediction point for a future timestamp.
type ForecastRow struct {
	TargetTimestamp time.Time
	Predicted       float64
	Lower           *float64
	Upper           *float64
}

// VoltageStats are aggregate voltage figures over a trailing window.
type VoltageStats struct {
	Average float64
	Min     float64
	Max     float64
	Count   int
}

// HealthReport is a persisted grid health check result.
type HealthReport struct {
	Timestamp      time.Time
	OverallStatus  string
	HealthScore    float64
	FrequencyScore float64
	VoltageScore   float64
	LoadScore      float64
	RenewableScore float64
	AlertCount     int
}
