package forecast

import (
	"context"
	"time"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

// Point is one predicted value with confidence bounds.
type Point struct {
	Timestamp time.Time
	Predicted float64
	Lower     *float64
	Upper     *float64
}

// Provider produces a finite forecast series for one device.
type Provider interface {
	Forecast(ctx context.Context, deviceID string) ([]Point, error)
}

const defaultHorizon = 24 * time.Hour

// StoreProvider serves forecasts from the prediction tables filled by the
// external model pipeline.
type StoreProvider struct {
	Repo    *storage.Repository
	Horizon time.Duration
}

func NewStoreProvider(repo *storage.Repository) *StoreProvider {
	return &StoreProvider{Repo: repo, Horizon: defaultHorizon}
}

func (p *StoreProvider) Forecast(ctx context.Context, deviceID string) ([]Point, error) {
	now := time.Now().UTC()
	rows, err := p.Repo.MeterPredictions(ctx, deviceID, now, now.Add(p.Horizon))
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

// DemandForecasts returns all demand predictions in the window, across meters.
func (p *StoreProvider) DemandForecasts(ctx context.Context, from, to time.Time) ([]Point, error) {
	rows, err := p.Repo.DemandPredictions(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

// RenewableForecasts returns predicted renewable power in the window, all
// source types combined.
func (p *StoreProvider) RenewableForecasts(ctx context.Context, from, to time.Time) ([]Point, error) {
	rows, err := p.Repo.RenewableForecastsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func fromRows(rows []storage.ForecastRow) []Point {
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, Point{
			Timestamp: row.TargetTimestamp,
			Predicted: row.Predicted,
			Lower:     row.Lower,
			Upper:     row.Upper,
		})
	}
	return points
}
