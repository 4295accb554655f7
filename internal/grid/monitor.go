package grid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/config"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

const (
	voltageWindow = 30 * time.Minute
	demandWindow  = 15 * time.Minute
)

// Storage is the slice of the persistence store the monitor needs.
type Storage interface {
	LatestMarketSnapshot(ctx context.Context, basePrice float64) (storage.MarketSnapshot, error)
	VoltageStatsSince(ctx context.Context, since time.Time) (storage.VoltageStats, error)
	TotalActivePowerSince(ctx context.Context, since time.Time) (float64, error)
	RenewablePowerSince(ctx context.Context, since time.Time) (float64, int, error)
	CreateHealthReport(ctx context.Context, report storage.HealthReport) error
}

// Broadcaster publishes grid alerts to subscribers.
type Broadcaster interface {
	PublishGridAlert(payload any) error
}

// ReportCache keeps the latest health report hot for lookups.
type ReportCache interface {
	SetLatestHealth(ctx context.Context, payload any) error
}

// Monitor computes grid health reports from recent telemetry aggregates.
type Monitor struct {
	store     Storage
	broadcast Broadcaster
	cache     ReportCache
	cfg       config.GridConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewMonitor(store Storage, broadcast Broadcaster, cache ReportCache, cfg config.GridConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:     store,
		broadcast: broadcast,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CheckHealth computes the four sub-scores and the composite. A failing
// sub-metric degrades to status "error" with score 0; the composite is
// always computable.
func (m *Monitor) CheckHealth(ctx context.Context) (Report, error) {
	now := m.now()

	frequency := m.checkFrequency(ctx)
	voltage := m.checkVoltage(ctx, now)
	load := m.checkLoad(ctx, now)
	renewable := m.checkRenewable(ctx, now, load.TotalDemandKW)

	score := CompositeScore(frequency.Score, voltage.Score, load.Score, renewable.Score)
	status := overallStatus(score)
	alerts := generateAlerts(now, frequency, voltage, load, renewable)

	report := Report{
		Timestamp:     now,
		OverallStatus: status,
		HealthScore:   score,
		Frequency:     frequency,
		Voltage:       voltage,
		Load:          load,
		Renewable:     renewable,
		Alerts:        alerts,
	}

	if status == "poor" || status == "critical" {
		m.logger.Warn("grid health degraded",
			slog.String("status", status), slog.Float64("score", score))
	}
	for _, alert := range alerts {
		m.logger.Info("grid alert",
			slog.String("severity", alert.Severity),
			slog.String("category", alert.Category),
			slog.String("message", alert.Message))
		if m.broadcast != nil {
			if err := m.broadcast.PublishGridAlert(alert); err != nil {
				m.logger.Warn("alert broadcast failed", slog.String("error", err.Error()))
			}
		}
	}

	if err := m.store.CreateHealthReport(ctx, storage.HealthReport{
		Timestamp:      now,
		OverallStatus:  status,
		HealthScore:    score,
		FrequencyScore: frequency.Score,
		VoltageScore:   voltage.Score,
		LoadScore:      load.Score,
		RenewableScore: renewable.Score,
		AlertCount:     len(alerts),
	}); err != nil {
		m.logger.Error("store health report failed", slog.String("error", err.Error()))
	}
	if m.cache != nil {
		if err := m.cache.SetLatestHealth(ctx, report); err != nil {
			m.logger.Warn("health cache update failed", slog.String("error", err.Error()))
		}
	}
	return report, nil
}

func (m *Monitor) checkFrequency(ctx context.Context) FrequencyMetric {
	snap, err := m.store.LatestMarketSnapshot(ctx, 0)
	if err != nil {
		m.logger.Error("frequency check failed", slog.String("error", err.Error()))
		return FrequencyMetric{Status: "error", Score: 0}
	}
	return scoreFrequency(snap.GridFrequency, m.cfg.TargetFrequency)
}

func (m *Monitor) checkVoltage(ctx context.Context, now time.Time) VoltageMetric {
	stats, err := m.store.VoltageStatsSince(ctx, now.Add(-voltageWindow))
	if err != nil {
		m.logger.Error("voltage check failed", slog.String("error", err.Error()))
		return VoltageMetric{Status: "error", Score: 0}
	}
	return scoreVoltage(stats, m.cfg.TargetVoltage)
}

func (m *Monitor) checkLoad(ctx context.Context, now time.Time) LoadMetric {
	total, err := m.store.TotalActivePowerSince(ctx, now.Add(-demandWindow))
	if err != nil {
		m.logger.Error("load check failed", slog.String("error", err.Error()))
		return LoadMetric{Status: "error", Score: 0}
	}
	return scoreLoad(total, m.cfg.CapacityKW)
}

func (m *Monitor) checkRenewable(ctx context.Context, now time.Time, totalDemand float64) RenewableMetric {
	power, sources, err := m.store.RenewablePowerSince(ctx, now.Add(-demandWindow))
	if err != nil {
		m.logger.Error("renewable check failed", slog.String("error", err.Error()))
		return RenewableMetric{Status: "error", Score: 0}
	}
	return scoreRenewable(power, totalDemand, sources)
}

// generateAlerts applies per-metric threshold rules. Alerting keys off each
// sub-score's own status, never the composite.
func generateAlerts(now time.Time, frequency FrequencyMetric, voltage VoltageMetric, load LoadMetric, renewable RenewableMetric) []Alert {
	alerts := []Alert{}
	add := func(severity, category, message string) {
		alerts = append(alerts, Alert{
			ID:        uuid.NewString(),
			Severity:  severity,
			Category:  category,
			Message:   message,
			Timestamp: now,
		})
	}

	switch frequency.Status {
	case "unstable":
		add("critical", "frequency", fmt.Sprintf("Grid frequency unstable: %.2fHz", frequency.CurrentFrequency))
	case "moderate_deviation":
		add("warning", "frequency", fmt.Sprintf("Grid frequency deviation detected: %.3fHz", frequency.Deviation))
	}

	if voltage.Status == "unstable" {
		add("critical", "voltage", fmt.Sprintf("Voltage instability detected: %.2f%% deviation", voltage.DeviationPercent))
	}

	switch load.Status {
	case "critical":
		add("critical", "load", fmt.Sprintf("Grid overload: %.1f%% capacity", load.LoadFactor*100))
	case "high":
		add("warning", "load", fmt.Sprintf("High grid load: %.1f%% capacity", load.LoadFactor*100))
	}

	if renewable.RenewablePenetration < 0.05 {
		add("info", "renewable", fmt.Sprintf("Low renewable penetration: %.1f%%", renewable.RenewablePenetration*100))
	}
	return alerts
}
