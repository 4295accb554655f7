package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

type meterPayload struct {
	Timestamp      string   `json:"timestamp"`
	ActiveEnergy   *float64 `json:"active_energy"`
	ReactiveEnergy *float64 `json:"reactive_energy"`
	ApparentEnergy *float64 `json:"apparent_energy"`
	ActivePower    *float64 `json:"active_power"`
	ReactivePower  *float64 `json:"reactive_power"`
	PowerFactor    *float64 `json:"power_factor"`
	VoltageL1      *float64 `json:"voltage_l1"`
	VoltageL2      *float64 `json:"voltage_l2"`
	VoltageL3      *float64 `json:"voltage_l3"`
	CurrentL1      *float64 `json:"current_l1"`
	CurrentL2      *float64 `json:"current_l2"`
	CurrentL3      *float64 `json:"current_l3"`
	Frequency      *float64 `json:"frequency"`
	QualityFlag    string   `json:"quality_flag"`
}

type generationPayload struct {
	Timestamp          string   `json:"timestamp"`
	PowerOutputKW      *float64 `json:"power_output_kw"`
	EnergyGeneratedKWH *float64 `json:"energy_generated_kwh"`
	IrradianceWM2      *float64 `json:"irradiance_wm2"`
	WindSpeedMS        *float64 `json:"wind_speed_ms"`
	WindDirectionDeg   *float64 `json:"wind_direction_deg"`
	TemperatureC       *float64 `json:"temperature_c"`
	CapacityFactor     *float64 `json:"capacity_factor"`
	Efficiency         *float64 `json:"efficiency"`
}

func decodeReading(meterID string, data []byte, now time.Time) (storage.EnergyReading, error) {
	var p meterPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return storage.EnergyReading{}, fmt.Errorf("decode meter payload: %w", err)
	}
	if p.ActiveEnergy == nil {
		return storage.EnergyReading{}, fmt.Errorf("meter payload missing active_energy")
	}
	reading := storage.EnergyReading{
		MeterID:        meterID,
		Timestamp:      parseTimestamp(p.Timestamp, now),
		ActiveEnergy:   *p.ActiveEnergy,
		ReactiveEnergy: p.ReactiveEnergy,
		ApparentEnergy: p.ApparentEnergy,
		ActivePower:    p.ActivePower,
		ReactivePower:  p.ReactivePower,
		PowerFactor:    1.0,
		VoltageL1:      p.VoltageL1,
		VoltageL2:      p.VoltageL2,
		VoltageL3:      p.VoltageL3,
		CurrentL1:      p.CurrentL1,
		CurrentL2:      p.CurrentL2,
		CurrentL3:      p.CurrentL3,
		Frequency:      p.Frequency,
		QualityFlag:    "good",
	}
	if p.PowerFactor != nil {
		reading.PowerFactor = *p.PowerFactor
	}
	if p.QualityFlag != "" {
		reading.QualityFlag = p.QualityFlag
	}
	return reading, nil
}

func decodeGeneration(sourceID, sourceType string, data []byte, now time.Time) (storage.GenerationSample, error) {
	var p generationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return storage.GenerationSample{}, fmt.Errorf("decode %s payload: %w", sourceType, err)
	}
	if p.PowerOutputKW == nil || p.EnergyGeneratedKWH == nil {
		return storage.GenerationSample{}, fmt.Errorf("%s payload missing generation fields", sourceType)
	}
	return storage.GenerationSample{
		SourceID:           sourceID,
		SourceType:         sourceType,
		Timestamp:          parseTimestamp(p.Timestamp, now),
		PowerOutputKW:      *p.PowerOutputKW,
		EnergyGeneratedKWH: *p.EnergyGeneratedKWH,
		IrradianceWM2:      p.IrradianceWM2,
		WindSpeedMS:        p.WindSpeedMS,
		WindDirectionDeg:   p.WindDirectionDeg,
		TemperatureC:       p.TemperatureC,
		CapacityFactor:     p.CapacityFactor,
		Efficiency:         p.Efficiency,
	}, nil
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC()
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC()
	}
	return fallback
}
