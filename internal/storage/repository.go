package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

func (r *Repository) GetMeter(ctx context.Context, meterID string) (Meter, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT meter_id, location, meter_type, is_active, last_communication
		FROM smart_meters WHERE meter_id=$1`, meterID)
	var m Meter
	if err := row.Scan(&m.MeterID, &m.Location, &m.MeterType, &m.IsActive, &m.LastCommunication); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Meter{}, ErrNotFound
		}
		return Meter{}, err
	}
	return m, nil
}

func (r *Repository) MeterExists(ctx context.Context, meterID string) (bool, error) {
	row := r.Store.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM smart_meters WHERE meter_id=$1)`, meterID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *Repository) SourceExists(ctx context.Context, sourceID, sourceType string) (bool, error) {
	table := "solar_panels"
	column := "panel_id"
	if sourceType == "wind" {
		table = "wind_turbines"
		column = "turbine_id"
	}
	row := r.Store.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE `+column+`=$1)`, sourceID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateReading inserts the reading and refreshes the meter's last
// communication timestamp in a single transaction.
func (r *Repository) CreateReading(ctx context.Context, reading EnergyReading) error {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	_, err = tx.Exec(ctx, `
		INSERT INTO energy_readings (
			meter_id, timestamp, active_energy, reactive_energy, apparent_energy,
			active_power, reactive_power, power_factor,
			voltage_l1, voltage_l2, voltage_l3,
			current_l1, current_l2, current_l3,
			frequency, quality_flag)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		reading.MeterID, reading.Timestamp, reading.ActiveEnergy, reading.ReactiveEnergy,
		reading.ApparentEnergy, reading.ActivePower, reading.ReactivePower, reading.PowerFactor,
		reading.VoltageL1, reading.VoltageL2, reading.VoltageL3,
		reading.CurrentL1, reading.CurrentL2, reading.CurrentL3,
		reading.Frequency, reading.QualityFlag)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE smart_meters SET last_communication=now() WHERE meter_id=$1`, reading.MeterID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) CreateGenerationSample(ctx context.Context, sample GenerationSample) error {
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO renewable_energy_generation (
			source_id, source_type, timestamp, power_output_kw, energy_generated_kwh,
			irradiance_wm2, wind_speed_ms, wind_direction_deg, temperature_c,
			capacity_factor, efficiency)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sample.SourceID, sample.SourceType, sample.Timestamp, sample.PowerOutputKW,
		sample.EnergyGeneratedKWH, sample.IrradianceWM2, sample.WindSpeedMS,
		sample.WindDirectionDeg, sample.TemperatureC, sample.CapacityFactor, sample.Efficiency)
	return err
}

// LatestMarketSnapshot returns the most recent market row, or neutral
// defaults when the table is empty.
func (r *Repository) LatestMarketSnapshot(ctx context.Context, basePrice float64) (MarketSnapshot, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT timestamp,
		       COALESCE(real_time_price, $1),
		       COALESCE(total_demand_kw, 1000),
		       COALESCE(total_supply_kw, 1100),
		       COALESCE(renewable_supply_kw, 200),
		       COALESCE(frequency_hz, 50.0)
		FROM market_data ORDER BY timestamp DESC LIMIT 1`, basePrice)
	var snap MarketSnapshot
	err := row.Scan(&snap.Timestamp, &snap.WholesalePrice, &snap.TotalDemandKW,
		&snap.TotalSupplyKW, &snap.RenewableSupply, &snap.GridFrequency)
	if errors.Is(err, pgx.ErrNoRows) {
		return MarketSnapshot{
			Timestamp:       time.Now().UTC(),
			WholesalePrice:  basePrice,
			TotalDemandKW:   1000,
			TotalSupplyKW:   1100,
			RenewableSupply: 200,
			GridFrequency:   50.0,
		}, nil
	}
	if err != nil {
		return MarketSnapshot{}, err
	}
	return snap, nil
}

func (r *Repository) CreatePricingDecision(ctx context.Context, d PricingDecision) error {
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO dynamic_pricing (
			run_id, optimization_timestamp, target_timestamp,
			optimized_price_kwh, price_adjustment_factor,
			predicted_demand_kw, predicted_supply_kw, renewable_generation_kw,
			optimization_algorithm, optimization_confidence)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.RunID, d.OptimizedAt, d.TargetTimestamp, d.OptimizedPriceKWH, d.AdjustmentFactor,
		d.PredictedDemandKW, d.PredictedSupplyKW, d.RenewableKW, d.Algorithm, d.Confidence)
	return err
}

// CurrentPricingDecision returns the decision whose target hour covers now,
// searching one hour either side.
func (r *Repository) CurrentPricingDecision(ctx context.Context, now time.Time) (PricingDecision, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT run_id, optimization_timestamp, target_timestamp,
		       optimized_price_kwh, price_adjustment_factor,
		       predicted_demand_kw, predicted_supply_kw, renewable_generation_kw,
		       optimization_algorithm, optimization_confidence
		FROM dynamic_pricing
		WHERE target_timestamp BETWEEN $1 AND $2
		ORDER BY target_timestamp ASC LIMIT 1`,
		now.Add(-time.Hour), now.Add(time.Hour))
	var d PricingDecision
	err := row.Scan(&d.RunID, &d.OptimizedAt, &d.TargetTimestamp, &d.OptimizedPriceKWH,
		&d.AdjustmentFactor, &d.PredictedDemandKW, &d.PredictedSupplyKW, &d.RenewableKW,
		&d.Algorithm, &d.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return PricingDecision{}, ErrNotFound
	}
	if err != nil {
		return PricingDecision{}, err
	}
	return d, nil
}

func (r *Repository) VoltageStatsSince(ctx context.Context, since time.Time) (VoltageStats, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(voltage_l1), 0), COALESCE(MIN(voltage_l1), 0),
		       COALESCE(MAX(voltage_l1), 0), COUNT(voltage_l1)
		FROM energy_readings
		WHERE timestamp >= $1 AND voltage_l1 IS NOT NULL`, since)
	var stats VoltageStats
	if err := row.Scan(&stats.Average, &stats.Min, &stats.Max, &stats.Count); err != nil {
		return VoltageStats{}, err
	}
	return stats, nil
}

func (r *Repository) TotalActivePowerSince(ctx context.Context, since time.Time) (float64, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(active_power), 0)
		FROM energy_readings
		WHERE timestamp >= $1 AND active_power IS NOT NULL`, since)
	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repository) RenewablePowerSince(ctx context.Context, since time.Time) (float64, int, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(power_output_kw), 0), COUNT(DISTINCT source_id)
		FROM renewable_energy_generation
		WHERE timestamp >= $1`, since)
	var total float64
	var sources int
	if err := row.Scan(&total, &sources); err != nil {
		return 0, 0, err
	}
	return total, sources, nil
}

func (r *Repository) CreateHealthReport(ctx context.Context, report HealthReport) error {
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO grid_health_reports (
			timestamp, overall_status, health_score,
			frequency_score, voltage_score, load_score, renewable_score, alert_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		report.Timestamp, report.OverallStatus, report.HealthScore,
		report.FrequencyScore, report.VoltageScore, report.LoadScore,
		report.RenewableScore, report.AlertCount)
	return err
}

func (r *Repository) LatestHealthReport(ctx context.Context) (HealthReport, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT timestamp, overall_status, health_score,
		       frequency_score, voltage_score, load_score, renewable_score, alert_count
		FROM grid_health_reports ORDER BY timestamp DESC LIMIT 1`)
	var report HealthReport
	err := row.Scan(&report.Timestamp, &report.OverallStatus, &report.HealthScore,
		&report.FrequencyScore, &report.VoltageScore, &report.LoadScore,
		&report.RenewableScore, &report.AlertCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return HealthReport{}, ErrNotFound
	}
	if err != nil {
		return HealthReport{}, err
	}
	return report, nil
}

// PruneBefore deletes telemetry and derived records older than the cutoff.
// Each table is pruned independently so one failure does not block the rest.
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	var firstErr error
	statements := []string{
		`DELETE FROM energy_readings WHERE timestamp < $1`,
		`DELETE FROM renewable_energy_generation WHERE timestamp < $1`,
		`DELETE FROM dynamic_pricing WHERE target_timestamp < $1`,
		`DELETE FROM grid_health_reports WHERE timestamp < $1`,
	}
	for _, stmt := range statements {
		tag, err := r.Store.Pool.Exec(ctx, stmt, cutoff)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += tag.RowsAffected()
	}
	return total, firstErr
}

// PrunePricingBefore deletes only pricing decisions targeted before the
// cutoff, leaving telemetry untouched.
func (r *Repository) PrunePricingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.Store.Pool.Exec(ctx, `DELETE FROM dynamic_pricing WHERE target_timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) DemandPredictions(ctx context.Context, from, to time.Time) ([]ForecastRow, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT target_timestamp, predicted_consumption,
		       confidence_interval_lower, confidence_interval_upper
		FROM energy_predictions
		WHERE target_timestamp >= $1 AND target_timestamp <= $2
		ORDER BY target_timestamp ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []ForecastRow{}
	for rows.Next() {
		var rec ForecastRow
		if err := rows.Scan(&rec.TargetTimestamp, &rec.Predicted, &rec.Lower, &rec.Upper); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (r *Repository) RenewableForecastsBetween(ctx context.Context, from, to time.Time) ([]ForecastRow, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT target_timestamp, predicted_power_kw,
		       confidence_interval_lower, confidence_interval_upper
		FROM renewable_forecasts
		WHERE target_timestamp >= $1 AND target_timestamp <= $2
		ORDER BY target_timestamp ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []ForecastRow{}
	for rows.Next() {
		var rec ForecastRow
		if err := rows.Scan(&rec.TargetTimestamp, &rec.Predicted, &rec.Lower, &rec.Upper); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (r *Repository) MeterPredictions(ctx context.Context, meterID string, from, to time.Time) ([]ForecastRow, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT target_timestamp, predicted_consumption,
		       confidence_interval_lower, confidence_interval_upper
		FROM energy_predictions
		WHERE meter_id = $1 AND target_timestamp >= $2 AND target_timestamp <= $3
		ORDER BY target_timestamp ASC`, meterID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []ForecastRow{}
	for rows.Next() {
		var rec ForecastRow
		if err := rows.Scan(&rec.TargetTimestamp, &rec.Predicted, &rec.Lower, &rec.Upper); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}
