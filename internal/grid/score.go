package grid

import (
	"math"
	"time"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

// Sub-score weights. They sum to 1.0 so the composite stays in [0,1].
const (
	weightFrequency = 0.30
	weightVoltage   = 0.30
	weightLoad      = 0.25
	weightRenewable = 0.15
)

type FrequencyMetric struct {
	CurrentFrequency float64 `json:"current_frequency"`
	TargetFrequency  float64 `json:"target_frequency"`
	Deviation        float64 `json:"deviation"`
	Status           string  `json:"status"`
	Score            float64 `json:"score"`
}

type VoltageMetric struct {
	AverageVoltage   float64 `json:"average_voltage"`
	MinVoltage       float64 `json:"min_voltage"`
	MaxVoltage       float64 `json:"max_voltage"`
	VoltageRange     float64 `json:"voltage_range"`
	DeviationPercent float64 `json:"deviation_percent"`
	ReadingCount     int     `json:"reading_count"`
	Status           string  `json:"status"`
	Score            float64 `json:"score"`
}

type LoadMetric struct {
	TotalDemandKW  float64 `json:"total_demand_kw"`
	GridCapacityKW float64 `json:"grid_capacity_kw"`
	LoadFactor     float64 `json:"load_factor"`
	Status         string  `json:"status"`
	Score          float64 `json:"score"`
}

type RenewableMetric struct {
	RenewablePowerKW     float64 `json:"renewable_power_kw"`
	TotalDemandKW        float64 `json:"total_demand_kw"`
	RenewablePenetration float64 `json:"renewable_penetration"`
	ActiveSources        int     `json:"active_sources"`
	Status               string  `json:"status"`
	Score                float64 `json:"score"`
}

// Alert is a transient notification derived from one sub-metric's status.
type Alert struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"` // info, warning, critical
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is one complete grid health check.
type Report struct {
	Timestamp     time.Time       `json:"timestamp"`
	OverallStatus string          `json:"overall_status"`
	HealthScore   float64         `json:"health_score"`
	Frequency     FrequencyMetric `json:"frequency"`
	Voltage       VoltageMetric   `json:"voltage"`
	Load          LoadMetric      `json:"load"`
	Renewable     RenewableMetric `json:"renewable"`
	Alerts        []Alert         `json:"alerts"`
}

func scoreFrequency(current, target float64) FrequencyMetric {
	deviation := math.Abs(current - target)
	status, score := "unstable", 0.3
	switch {
	case deviation <= 0.05:
		status, score = "stable", 1.0
	case deviation <= 0.1:
		status, score = "minor_deviation", 0.8
	case deviation <= 0.2:
		status, score = "moderate_deviation", 0.6
	}
	return FrequencyMetric{
		CurrentFrequency: current,
		TargetFrequency:  target,
		Deviation:        deviation,
		Status:           status,
		Score:            score,
	}
}

func scoreVoltage(stats storage.VoltageStats, target float64) VoltageMetric {
	if stats.Count == 0 {
		return VoltageMetric{Status: "no_data", Score: 0.5}
	}
	voltageRange := stats.Max - stats.Min
	avgDeviation := math.Abs(stats.Average-target) / target
	status, score := "unstable", 0.3
	switch {
	case avgDeviation <= 0.02 && voltageRange <= 10:
		status, score = "stable", 1.0
	case avgDeviation <= 0.05 && voltageRange <= 20:
		status, score = "minor_variation", 0.8
	case avgDeviation <= 0.1 && voltageRange <= 30:
		status, score = "moderate_variation", 0.6
	}
	return VoltageMetric{
		AverageVoltage:   stats.Average,
		MinVoltage:       stats.Min,
		MaxVoltage:       stats.Max,
		VoltageRange:     voltageRange,
		DeviationPercent: avgDeviation * 100,
		ReadingCount:     stats.Count,
		Status:           status,
		Score:            score,
	}
}

func scoreLoad(totalDemand, capacity float64) LoadMetric {
	loadFactor := 0.0
	if capacity > 0 {
		loadFactor = totalDemand / capacity
	}
	status, score := "critical", 0.2
	switch {
	case loadFactor <= 0.7:
		status, score = "normal", 1.0
	case loadFactor <= 0.85:
		status, score = "moderate", 0.8
	case loadFactor <= 0.95:
		status, score = "high", 0.6
	}
	return LoadMetric{
		TotalDemandKW:  totalDemand,
		GridCapacityKW: capacity,
		LoadFactor:     loadFactor,
		Status:         status,
		Score:          score,
	}
}

func scoreRenewable(renewablePower, totalDemand float64, sources int) RenewableMetric {
	penetration := 0.0
	if totalDemand > 0 {
		penetration = renewablePower / totalDemand
	}
	status, score := "low", 0.4
	switch {
	case penetration >= 0.3:
		status, score = "excellent", 1.0
	case penetration >= 0.2:
		status, score = "good", 0.8
	case penetration >= 0.1:
		status, score = "moderate", 0.6
	}
	return RenewableMetric{
		RenewablePowerKW:     renewablePower,
		TotalDemandKW:        totalDemand,
		RenewablePenetration: penetration,
		ActiveSources:        sources,
		Status:               status,
		Score:                score,
	}
}

// CompositeScore combines the four sub-scores with fixed weights.
func CompositeScore(frequency, voltage, load, renewable float64) float64 {
	return frequency*weightFrequency + voltage*weightVoltage + load*weightLoad + renewable*weightRenewable
}

func overallStatus(score float64) string {
	switch {
	case score >= 0.9:
		return "excellent"
	case score >= 0.8:
		return "good"
	case score >= 0.7:
		return "fair"
	case score >= 0.6:
		return "poor"
	default:
		return "critical"
	}
}
